package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is one normalized catalog row, keyed by the business unique key
// from the source feed. Rows are shared across uploads: re-ingesting a key
// overwrites the mutable fields, it never creates a second row, and deleting
// an upload leaves its products in place.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UniqueKey string    `gorm:"size:255;not null;uniqueIndex" json:"unique_key"`
	// OccurrenceCount is how many rows in the source file shared this key;
	// >1 marks multi-variant products (size/color).
	OccurrenceCount int              `gorm:"not null;default:1" json:"occurrence_count"`
	Title           string           `gorm:"size:512;not null" json:"title"`
	Description     *string          `gorm:"type:text" json:"description"`
	StyleNumber     *string          `gorm:"size:255;index" json:"style_number"`
	ColorFamily     *string          `gorm:"size:255" json:"color_family"`
	Size            *string          `gorm:"size:64" json:"size"`
	ColorName       *string          `gorm:"size:255" json:"color_name"`
	UnitPrice       *decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_price"`
}
