package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lanbox/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_Stats(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.UnixMilli(1700000000000)

	events := []models.Event{
		{Kind: models.EventUpload, Filename: "a_1.txt", Size: 100, At: base},
		{Kind: models.EventUpload, Filename: "b_2.txt", Size: 50, At: base.Add(time.Second)},
		{Kind: models.EventDownload, Filename: "a_1.txt", Size: 100, Remote: "10.0.0.7", At: base.Add(2 * time.Second)},
		{Kind: models.EventDelete, Filename: "b_2.txt", At: base.Add(3 * time.Second)},
	}
	for _, ev := range events {
		require.NoError(t, j.Record(ctx, ev))
	}

	stats, err := j.Stats(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Uploads)
	assert.Equal(t, int64(1), stats.Downloads)
	assert.Equal(t, int64(1), stats.Deletes)
	assert.Equal(t, int64(150), stats.BytesUploaded)
	assert.Equal(t, int64(100), stats.BytesDownloaded)

	require.Len(t, stats.Recent, 2)
	assert.Equal(t, models.EventDelete, stats.Recent[0].Kind)
	assert.Equal(t, "10.0.0.7", stats.Recent[1].Remote)
	assert.True(t, stats.Recent[1].At.Equal(base.Add(2*time.Second)))
}

func TestJournal_EmptyStats(t *testing.T) {
	j := openTestJournal(t)

	stats, err := j.Stats(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, stats.Uploads)
	assert.Zero(t, stats.BytesUploaded)
	assert.Empty(t, stats.Recent)
}

func TestJournal_StampsMissingTime(t *testing.T) {
	j := openTestJournal(t)
	fixed := time.UnixMilli(1712345678000)
	j.now = func() time.Time { return fixed }

	require.NoError(t, j.Record(context.Background(), models.Event{Kind: models.EventUpload, Filename: "x", Size: 1}))

	recent, err := j.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].At.Equal(fixed))
}

func TestJournal_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.duckdb")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, models.Event{Kind: models.EventUpload, Filename: "keep", Size: 3}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	stats, err := j.Stats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Uploads)
}
