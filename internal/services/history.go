package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"collabdesk/internal/models"
)

// HistoryJob is one completed mutation waiting to be written to the audit
// log. Data is the post-mutation state and gets serialized to JSON.
type HistoryJob struct {
	Type        models.OperationType
	TargetType  models.TargetType
	TargetID    uint
	Data        interface{}
	PerformedBy uint
	CompanyID   uint
}

// HistoryServiceImpl writes audit operations through a small worker pool so
// that mutation paths never block on history persistence.
type HistoryServiceImpl struct {
	opRepo OperationRepository

	jobs    chan HistoryJob
	workers int
	wg      sync.WaitGroup

	// mu orders Record against Shutdown: producers hold the read side while
	// sending, so the channel is never closed under them.
	mu     sync.RWMutex
	closed bool
}

// NewHistoryService creates the service with its queue; Start spawns the
// workers.
func NewHistoryService(opRepo OperationRepository, numWorkers, queueSize int) *HistoryServiceImpl {
	return &HistoryServiceImpl{
		opRepo:  opRepo,
		jobs:    make(chan HistoryJob, queueSize),
		workers: numWorkers,
	}
}

// Start initializes the worker pool
func (s *HistoryServiceImpl) Start() {
	log.Printf("🔧 Starting history worker pool with %d workers", s.workers)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *HistoryServiceImpl) worker(id int) {
	defer s.wg.Done()

	for job := range s.jobs {
		if err := s.record(job); err != nil {
			log.Printf("  History worker %d error: %v", id, err)
		}
	}

	log.Printf("  History worker %d shutting down", id)
}

// Record queues a completed mutation for the audit log. Drops the job with a
// log line when the queue is full rather than blocking the caller. After
// Shutdown it is a no-op.
func (s *HistoryServiceImpl) Record(job HistoryJob) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.jobs <- job:
	default:
		log.Printf("⚠️  History queue full, dropping %s/%s operation for target %d",
			job.Type, job.TargetType, job.TargetID)
	}
}

func (s *HistoryServiceImpl) record(job HistoryJob) error {
	description, err := json.Marshal(job.Data)
	if err != nil {
		return fmt.Errorf("failed to serialize operation data: %w", err)
	}

	op := &models.Operation{
		Type:          job.Type,
		TargetType:    job.TargetType,
		TargetID:      job.TargetID,
		Description:   string(description),
		PerformedByID: job.PerformedBy,
		CompanyID:     job.CompanyID,
		Date:          time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.opRepo.Record(ctx, op)
}

// QueueLength returns the current number of pending jobs
func (s *HistoryServiceImpl) QueueLength() int {
	return len(s.jobs)
}

// Shutdown stops accepting jobs, then waits for the workers to drain every
// job already queued. Safe to call more than once.
func (s *HistoryServiceImpl) Shutdown() {
	log.Println("🛑 Shutting down history service...")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()

	log.Println("✓ History service shutdown complete")
}
