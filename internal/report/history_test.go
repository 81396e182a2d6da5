package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/iamrotate/internal/batch"
	"github.com/systmms/iamrotate/internal/lifecycle"
)

func TestHistorySaveAndList(t *testing.T) {
	t.Parallel()

	history := NewHistory(t.TempDir())

	outcome := sampleOutcome()
	outcome.Passes[0].Notified = true

	first := New(outcome, lifecycle.DefaultPolicy(), true)
	first.GeneratedAt = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, history.Save(first))

	second := New(&batch.Outcome{}, lifecycle.DefaultPolicy(), false)
	second.GeneratedAt = time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, history.Save(second))

	entries, err := history.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, second.RunID, entries[0].RunID)
	assert.False(t, entries[0].Executed)
	assert.Equal(t, first.RunID, entries[1].RunID)
	assert.True(t, entries[1].Executed)
	assert.Equal(t, 1, entries[1].Passes)
	assert.Equal(t, 1, entries[1].Fails)
	assert.Equal(t, 1, entries[1].Notified)
}

func TestHistoryListHonorsLimit(t *testing.T) {
	t.Parallel()

	history := NewHistory(t.TempDir())
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rep := New(&batch.Outcome{}, lifecycle.DefaultPolicy(), false)
		rep.GeneratedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, history.Save(rep))
	}

	entries, err := history.List(2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestHistoryListMissingDir(t *testing.T) {
	t.Parallel()

	entries, err := NewHistory("/nonexistent/iamrotate-history").List(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDefaultHistoryDirEnvOverride(t *testing.T) {
	t.Setenv("IAMROTATE_HISTORY_DIR", "/tmp/custom-history")
	assert.Equal(t, "/tmp/custom-history", DefaultHistoryDir())
}
