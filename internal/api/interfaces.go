package api

import (
	"collabdesk/internal/services"
)

// HistoryService defines what handlers need from the audit history sink.
// The interface lives here, with the consumer, not with the implementation.
type HistoryService interface {
	Record(job services.HistoryJob)
	QueueLength() int
}
