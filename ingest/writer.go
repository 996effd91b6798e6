package ingest

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prodfeed/models"
)

// DefaultBatchSize balances memory usage against round trips; matches the
// historical import job.
const DefaultBatchSize = 500

// BatchWriter accumulates mapped products and applies each full batch as a
// single insert-or-update statement keyed on unique_key. Callers Add rows
// and must Flush once after the last row to drain a final partial batch.
type BatchWriter struct {
	db   *gorm.DB
	size int
	buf  []models.Product
}

// NewBatchWriter returns a writer flushing every size rows (DefaultBatchSize
// when size <= 0).
func NewBatchWriter(db *gorm.DB, size int) *BatchWriter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchWriter{db: db, size: size, buf: make([]models.Product, 0, size)}
}

// Add buffers one product and flushes automatically when the batch is full.
// Returns the number of rows applied by that flush (0 when the threshold was
// not reached).
func (w *BatchWriter) Add(p models.Product) (int, error) {
	w.buf = append(w.buf, p)
	if len(w.buf) >= w.size {
		return w.Flush()
	}
	return 0, nil
}

// Flush upserts the buffered rows in one statement: existing unique keys get
// their mutable fields overwritten, new keys are inserted. Flushing an empty
// buffer is a no-op. Returns the number of buffered rows applied; it does
// not distinguish inserts from updates.
func (w *BatchWriter) Flush() (int, error) {
	if len(w.buf) == 0 {
		return 0, nil
	}

	now := time.Now()
	for i := range w.buf {
		w.buf[i].CreatedAt = now
		w.buf[i].UpdatedAt = now
	}

	// Postgres rejects a bulk upsert that touches the same row twice, so a
	// batch carrying a duplicated key is collapsed last-seen-wins first. The
	// applied count still reflects every buffered row: duplicates were real
	// source rows and count toward progress.
	rows := dedupeByKey(w.buf)

	err := w.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "unique_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title",
			"description",
			"style_number",
			"color_family",
			"size",
			"color_name",
			"unit_price",
			"occurrence_count",
			"updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("batch upsert (%d rows): %w", len(rows), err)
	}

	n := len(w.buf)
	w.buf = w.buf[:0]
	return n, nil
}

// dedupeByKey keeps the last occurrence of each unique key, preserving the
// first-seen order of keys.
func dedupeByKey(in []models.Product) []models.Product {
	pos := make(map[string]int, len(in))
	out := make([]models.Product, 0, len(in))
	for _, p := range in {
		if i, seen := pos[p.UniqueKey]; seen {
			out[i] = p
			continue
		}
		pos[p.UniqueKey] = len(out)
		out = append(out, p)
	}
	return out
}
