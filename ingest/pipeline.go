package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"prodfeed/models"
)

// ErrStorageMissing is returned when the stored file vanished between upload
// and processing.
var ErrStorageMissing = errors.New("source file missing from storage")

// Pipeline runs one upload through the full ingestion flow: verify storage,
// analyze the file (pass 1), then map and batch-upsert every row (pass 2),
// persisting status and progress on the upload record throughout. A single
// run is strictly sequential; concurrency only exists across runs for
// distinct uploads.
type Pipeline struct {
	db        *gorm.DB
	store     *FileStore
	log       *zap.Logger
	batchSize int
}

// NewPipeline wires the pipeline to its catalog database and file store.
// batchSize <= 0 selects DefaultBatchSize.
func NewPipeline(db *gorm.DB, store *FileStore, log *zap.Logger, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{db: db, store: store, log: log, batchSize: batchSize}
}

// Run processes the upload with the given id. Any failure is persisted onto
// the upload record (status=failed plus the cause) and then returned, so the
// calling trigger can apply its own retry policy.
func (p *Pipeline) Run(ctx context.Context, uploadID uint) error {
	var up models.FileUpload
	if err := p.db.First(&up, uploadID).Error; err != nil {
		return fmt.Errorf("load upload %d: %w", uploadID, err)
	}

	log := p.log.With(zap.Uint("upload_id", up.ID), zap.String("file", up.FileName))
	log.Info("ingestion started", zap.Int("batch_size", p.batchSize))

	if err := p.process(ctx, &up, log); err != nil {
		p.persistFailure(up.ID, err)
		log.Error("ingestion failed", zap.Error(err))
		return err
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, up *models.FileUpload, log *zap.Logger) error {
	db := p.db.WithContext(ctx)

	if err := db.Model(up).Update("status", models.StatusProcessing).Error; err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if !p.store.Exists(up.StorePath) {
		return fmt.Errorf("%w: %s", ErrStorageMissing, up.StorePath)
	}
	f, err := p.store.Open(up.StorePath)
	if err != nil {
		return err
	}
	r := NewReader(f)
	defer r.Close()

	header, err := r.Header()
	if err != nil {
		return err
	}

	// Pass 1: raw row count and duplicate-key accounting.
	analysis, err := Analyze(r, header)
	if err != nil {
		return fmt.Errorf("analyze csv: %w", err)
	}
	duplicates := 0
	for _, n := range analysis.KeyCounts {
		if n > 1 {
			duplicates++
		}
	}
	log.Info("analysis complete",
		zap.Int("total_rows", analysis.TotalRows),
		zap.Int("unique_keys", len(analysis.KeyCounts)),
		zap.Int("keys_with_duplicates", duplicates))

	if err := db.Model(up).Updates(map[string]any{
		"total_rows":     analysis.TotalRows,
		"processed_rows": 0,
	}).Error; err != nil {
		return fmt.Errorf("persist row count: %w", err)
	}

	var before int64
	db.Model(&models.Product{}).Count(&before)

	if err := r.Rewind(); err != nil {
		return err
	}

	// Pass 2: map rows and apply them in batches, checkpointing progress
	// after every flush so the status API can report partial progress.
	mapper := NewMapper(header, analysis.KeyCounts)
	writer := NewBatchWriter(db, p.batchSize)

	var processed, skipped, batches, rowNum int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			rowNum++
			skipped++
			log.Warn("skipping unparsable row", zap.Int("row", rowNum), zap.Error(err))
			continue
		}
		if err != nil {
			return fmt.Errorf("read csv row: %w", err)
		}
		rowNum++

		product, err := mapper.Map(rec)
		if errors.Is(err, ErrRowShape) {
			skipped++
			log.Warn("skipping malformed row", zap.Int("row", rowNum), zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}

		flushed, err := writer.Add(product)
		if err != nil {
			return err
		}
		if flushed > 0 {
			processed += flushed
			batches++
			if err := db.Model(up).Update("processed_rows", processed).Error; err != nil {
				return fmt.Errorf("checkpoint progress: %w", err)
			}
			log.Info("batch applied",
				zap.Int("batch", batches),
				zap.Int("processed", processed),
				zap.Int("total", analysis.TotalRows))
		}
	}

	flushed, err := writer.Flush()
	if err != nil {
		return err
	}
	if flushed > 0 {
		processed += flushed
		batches++
	}
	if err := db.Model(up).Update("processed_rows", processed).Error; err != nil {
		return fmt.Errorf("checkpoint progress: %w", err)
	}

	if err := db.Model(up).Update("status", models.StatusCompleted).Error; err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	var after int64
	db.Model(&models.Product{}).Count(&after)
	log.Info("ingestion complete",
		zap.Int("processed_rows", processed),
		zap.Int("total_rows", analysis.TotalRows),
		zap.Int("skipped_rows", skipped),
		zap.Int("batches", batches),
		zap.Int64("new_records", after-before),
		zap.Int64("updated_records", int64(processed)-(after-before)))
	return nil
}

// Failed is the final-failure hook, invoked by the trigger once its retries
// are exhausted. It persists the failure again, which is safe even when the
// run's own failure path already did.
func (p *Pipeline) Failed(uploadID uint, cause error) {
	p.persistFailure(uploadID, cause)
	p.log.Error("ingestion failed permanently",
		zap.Uint("upload_id", uploadID), zap.Error(cause))
}

// persistFailure writes the failed status outside any request context: the
// run's context may already be cancelled when we get here.
func (p *Pipeline) persistFailure(uploadID uint, cause error) {
	err := p.db.Model(&models.FileUpload{}).Where("id = ?", uploadID).Updates(map[string]any{
		"status":        models.StatusFailed,
		"error_message": cause.Error(),
	}).Error
	if err != nil {
		p.log.Error("could not persist failure", zap.Uint("upload_id", uploadID), zap.Error(err))
	}
}
