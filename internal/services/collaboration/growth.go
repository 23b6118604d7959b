package collaboration

import (
	"context"

	"collabdesk/internal/models"
)

// Documents grow in fixed batches whenever an editor locks a line within
// the threshold of the current end, so nobody runs out of lines mid-edit.
const (
	GrowthBatchSize = 5
	GrowthThreshold = 5
)

// Grower appends line batches to a note when the editing frontier gets
// close to the end of the document.
type Grower struct {
	store LineAppender
}

// LineAppender is the slice of the document store the grower needs.
type LineAppender interface {
	AppendLines(ctx context.Context, noteID uint, n int) ([]models.NoteLine, error)
}

func NewGrower(store LineAppender) *Grower {
	return &Grower{store: store}
}

// ShouldGrow reports whether locking requestedLine warrants extending a
// document that currently has lineCount lines.
func (g *Grower) ShouldGrow(requestedLine, lineCount int) bool {
	return requestedLine >= lineCount-GrowthThreshold
}

// Grow appends one batch of blank lines and returns them. Line numbers
// continue densely from the current end; growth is monotonic and batches
// are never removed.
func (g *Grower) Grow(ctx context.Context, noteID uint) ([]models.NoteLine, error) {
	return g.store.AppendLines(ctx, noteID, GrowthBatchSize)
}
