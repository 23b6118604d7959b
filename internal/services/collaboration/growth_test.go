package collaboration

import (
	"context"
	"testing"

	"collabdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appendRecorder struct {
	lineCount int
	calls     int
}

func (a *appendRecorder) AppendLines(ctx context.Context, noteID uint, n int) ([]models.NoteLine, error) {
	a.calls++
	lines := make([]models.NoteLine, 0, n)
	for i := 1; i <= n; i++ {
		lines = append(lines, models.NoteLine{
			NoteID:     noteID,
			LineNumber: a.lineCount + i,
			Color:      models.DefaultLineColor,
			FontSize:   models.DefaultLineFontSize,
		})
	}
	a.lineCount += n
	return lines, nil
}

func TestShouldGrow(t *testing.T) {
	g := NewGrower(nil)

	// 50-line document: lines 45 and above trigger growth, 44 does not.
	assert.False(t, g.ShouldGrow(1, 50))
	assert.False(t, g.ShouldGrow(44, 50))
	assert.True(t, g.ShouldGrow(45, 50))
	assert.True(t, g.ShouldGrow(47, 50))
	assert.True(t, g.ShouldGrow(50, 50))
}

func TestGrowAppendsOneBatch(t *testing.T) {
	store := &appendRecorder{lineCount: 50}
	g := NewGrower(store)

	lines, err := g.Grow(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, lines, GrowthBatchSize)

	// Lines continue densely from the current end.
	assert.Equal(t, 51, lines[0].LineNumber)
	assert.Equal(t, 55, lines[len(lines)-1].LineNumber)
	assert.Equal(t, 1, store.calls)

	for _, line := range lines {
		assert.Equal(t, uint(3), line.NoteID)
		assert.Equal(t, models.DefaultLineColor, line.Color)
		assert.Equal(t, models.DefaultLineFontSize, line.FontSize)
	}
}
