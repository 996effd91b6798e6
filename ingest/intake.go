package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"prodfeed/models"
)

// Trigger schedules an upload for asynchronous processing. Queue is the
// production implementation.
type Trigger interface {
	Enqueue(uploadID uint)
}

// Intake accepts raw feed bytes from any source (HTTP upload, inbox watcher)
// and turns them into a queued ingestion run. Identical bytes are detected
// by content hash and reuse the existing upload record instead of creating a
// duplicate.
type Intake struct {
	db      *gorm.DB
	store   *FileStore
	trigger Trigger
	log     *zap.Logger
}

// IntakeResult is what intake reports back to the submitter.
type IntakeResult struct {
	Upload models.FileUpload
	// Reused is true when the bytes matched an existing record, which was
	// reset to pending and queued for reprocessing.
	Reused bool
}

// NewIntake wires the intake service.
func NewIntake(db *gorm.DB, store *FileStore, trigger Trigger, log *zap.Logger) *Intake {
	return &Intake{db: db, store: store, trigger: trigger, log: log}
}

// Submit stages the bytes, dedupes by content hash, persists the upload
// record and enqueues the pipeline run.
func (in *Intake) Submit(fileName string, r io.Reader) (IntakeResult, error) {
	tmpPath, hash, err := in.store.Stage(r)
	if err != nil {
		return IntakeResult{}, err
	}

	var existing models.FileUpload
	err = in.db.Where("file_hash = ?", hash).First(&existing).Error
	if err == nil {
		in.store.Discard(tmpPath)
		return in.requeue(&existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		in.store.Discard(tmpPath)
		return IntakeResult{}, fmt.Errorf("lookup upload by hash: %w", err)
	}

	storePath, err := in.store.Promote(tmpPath, fileName)
	if err != nil {
		in.store.Discard(tmpPath)
		return IntakeResult{}, err
	}

	up := models.FileUpload{
		FileName:  fileName,
		FileHash:  hash,
		StorePath: storePath,
		Status:    models.StatusPending,
	}
	if err := in.db.Create(&up).Error; err != nil {
		// Race with a concurrent submit of the same bytes: keep the winner's
		// record and bytes, drop ours.
		if isUniqueViolation(err) {
			_ = in.store.Remove(storePath)
			if err2 := in.db.Where("file_hash = ?", hash).First(&existing).Error; err2 == nil {
				return in.requeue(&existing)
			}
		}
		_ = in.store.Remove(storePath)
		return IntakeResult{}, fmt.Errorf("create upload record: %w", err)
	}

	in.trigger.Enqueue(up.ID)
	in.log.Info("upload accepted",
		zap.Uint("upload_id", up.ID), zap.String("file", up.FileName))
	return IntakeResult{Upload: up}, nil
}

// requeue resets an existing record for reprocessing and queues it again.
// Progress and any previous error are cleared; total_rows is recomputed by
// pass 1 anyway.
func (in *Intake) requeue(up *models.FileUpload) (IntakeResult, error) {
	err := in.db.Model(up).Updates(map[string]any{
		"status":         models.StatusPending,
		"error_message":  "",
		"processed_rows": 0,
	}).Error
	if err != nil {
		return IntakeResult{}, fmt.Errorf("reset upload %d: %w", up.ID, err)
	}
	up.Status = models.StatusPending
	up.ErrorMessage = ""
	up.ProcessedRows = 0

	in.trigger.Enqueue(up.ID)
	in.log.Info("duplicate upload, reprocessing",
		zap.Uint("upload_id", up.ID), zap.String("file", up.FileName))
	return IntakeResult{Upload: *up, Reused: true}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") ||
		strings.Contains(s, "unique constraint") ||
		strings.Contains(s, "UNIQUE constraint")
}
