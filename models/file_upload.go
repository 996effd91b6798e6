package models

import (
	"math"
	"time"
)

// Upload lifecycle states. A failed upload can be re-queued by resetting it
// to pending; completed and failed are otherwise terminal.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// FileUpload represents one ingestion attempt of an uploaded CSV file.
// FileHash is unique: re-uploading identical bytes reuses the existing row
// instead of creating a second one.
type FileUpload struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	FileName      string    `gorm:"size:255;not null" json:"file_name"`
	FileHash      string    `gorm:"size:64;not null;uniqueIndex" json:"file_hash"`
	StorePath     string    `gorm:"column:store_path;size:512;not null" json:"store_path"`
	Status        string    `gorm:"size:16;not null;default:'pending';index" json:"status"`
	ErrorMessage  string    `gorm:"type:text" json:"error_message,omitempty"`
	TotalRows     int       `gorm:"not null;default:0" json:"total_rows"`
	ProcessedRows int       `gorm:"not null;default:0" json:"processed_rows"`
}

// ProgressPercentage returns import progress as 0-100, or 0 before the row
// count of the file is known.
func (f *FileUpload) ProgressPercentage() int {
	if f.TotalRows == 0 {
		return 0
	}
	return int(math.Round(float64(f.ProcessedRows) / float64(f.TotalRows) * 100))
}

// IsTerminal reports whether processing has finished, successfully or not.
func (f *FileUpload) IsTerminal() bool {
	return f.Status == StatusCompleted || f.Status == StatusFailed
}
