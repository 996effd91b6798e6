package ingest

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prodfeed/models"
)

// fakeTrigger records enqueued ids instead of running anything.
type fakeTrigger struct {
	mu  sync.Mutex
	ids []uint
}

func (f *fakeTrigger) Enqueue(id uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
}

func (f *fakeTrigger) enqueued() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.ids...)
}

func TestIntakeSubmitNewFile(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	trigger := &fakeTrigger{}
	in := NewIntake(db, store, trigger, zap.NewNop())

	res, err := in.Submit("feed.csv", strings.NewReader("UNIQUE_KEY\nA1\n"))
	require.NoError(t, err)

	assert.False(t, res.Reused)
	assert.NotZero(t, res.Upload.ID)
	assert.Equal(t, "feed.csv", res.Upload.FileName)
	assert.Equal(t, models.StatusPending, res.Upload.Status)
	assert.Len(t, res.Upload.FileHash, 64)
	assert.True(t, store.Exists(res.Upload.StorePath))
	assert.Equal(t, []uint{res.Upload.ID}, trigger.enqueued())
}

func TestIntakeSubmitDuplicateBytesReusesRecord(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	trigger := &fakeTrigger{}
	in := NewIntake(db, store, trigger, zap.NewNop())

	first, err := in.Submit("feed.csv", strings.NewReader("UNIQUE_KEY\nA1\n"))
	require.NoError(t, err)

	// pretend the first run finished with some progress
	require.NoError(t, db.Model(&first.Upload).Updates(map[string]any{
		"status":         models.StatusCompleted,
		"total_rows":     1,
		"processed_rows": 1,
	}).Error)

	// same bytes, different client file name
	second, err := in.Submit("renamed.csv", strings.NewReader("UNIQUE_KEY\nA1\n"))
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, first.Upload.ID, second.Upload.ID)
	assert.Equal(t, models.StatusPending, second.Upload.Status)
	assert.Zero(t, second.Upload.ProcessedRows)
	assert.Empty(t, second.Upload.ErrorMessage)

	// only one record and one stored file
	var count int64
	db.Model(&models.FileUpload{}).Count(&count)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, []uint{first.Upload.ID, first.Upload.ID}, trigger.enqueued())
}

func TestIntakeSubmitDifferentBytesCreateSeparateUploads(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	trigger := &fakeTrigger{}
	in := NewIntake(db, store, trigger, zap.NewNop())

	a, err := in.Submit("a.csv", strings.NewReader("UNIQUE_KEY\nA1\n"))
	require.NoError(t, err)
	b, err := in.Submit("b.csv", strings.NewReader("UNIQUE_KEY\nB1\n"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Upload.ID, b.Upload.ID)
	var count int64
	db.Model(&models.FileUpload{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestIntakeFailedUploadCanBeResubmitted(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	trigger := &fakeTrigger{}
	in := NewIntake(db, store, trigger, zap.NewNop())

	first, err := in.Submit("feed.csv", strings.NewReader("UNIQUE_KEY\nA1\n"))
	require.NoError(t, err)
	require.NoError(t, db.Model(&first.Upload).Updates(map[string]any{
		"status":        models.StatusFailed,
		"error_message": "boom",
	}).Error)

	second, err := in.Submit("feed.csv", strings.NewReader("UNIQUE_KEY\nA1\n"))
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, models.StatusPending, second.Upload.Status)
	assert.Empty(t, second.Upload.ErrorMessage)
}
