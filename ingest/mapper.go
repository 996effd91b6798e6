package ingest

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"prodfeed/models"
)

// Recognized feed columns, matched by exact header name. Unrecognized
// columns are ignored; missing recognized columns map to defaults/NULL.
const (
	colUniqueKey   = "UNIQUE_KEY"
	colTitle       = "PRODUCT_TITLE"
	colDescription = "PRODUCT_DESCRIPTION"
	colStyleNumber = "STYLE#"
	colColorFamily = "SANMAR_MAINFRAME_COLOR"
	colSize        = "SIZE"
	colColorName   = "COLOR_NAME"
	colUnitPrice   = "PIECE_PRICE"
)

// ErrRowShape marks a record whose field count does not match the header.
// The row is skipped by the caller; it never aborts a run.
var ErrRowShape = errors.New("row field count does not match header")

// Mapper turns raw CSV records into catalog products. The header is resolved
// to column indexes once at construction, so mapping a row is a handful of
// slice lookups instead of repeated name-based searches.
type Mapper struct {
	idx       map[string]int
	width     int
	keyCounts map[string]int
}

// NewMapper builds a mapper for one file from its cleaned header and the
// occurrence counts produced by the first pass.
func NewMapper(header []string, keyCounts map[string]int) *Mapper {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	return &Mapper{idx: idx, width: len(header), keyCounts: keyCounts}
}

// field returns the raw value of a named column, or "" when the column is
// absent from the header.
func (m *Mapper) field(rec []string, name string) string {
	i, ok := m.idx[name]
	if !ok {
		return ""
	}
	return rec[i]
}

// Map transforms one raw record into a Product, sanitizing every text field.
// Returns ErrRowShape (wrapped with the counts) when the record width does
// not match the header.
func (m *Mapper) Map(rec []string) (models.Product, error) {
	if len(rec) != m.width {
		return models.Product{}, fmt.Errorf("%w: expected %d fields, got %d", ErrRowShape, m.width, len(rec))
	}

	rawKey := m.field(rec, colUniqueKey)
	occurrences, ok := m.keyCounts[rawKey]
	if !ok {
		occurrences = 1
	}

	return models.Product{
		UniqueKey:       CleanUTF8(rawKey),
		OccurrenceCount: occurrences,
		Title:           CleanUTF8(m.field(rec, colTitle)),
		Description:     m.optional(rec, colDescription),
		StyleNumber:     m.optional(rec, colStyleNumber),
		ColorFamily:     m.optional(rec, colColorFamily),
		Size:            m.optional(rec, colSize),
		ColorName:       m.optional(rec, colColorName),
		UnitPrice:       m.price(rec),
	}, nil
}

// optional sanitizes a nullable column, mapping empty values to NULL so the
// catalog keeps the distinction between "empty" and "no data".
func (m *Mapper) optional(rec []string, name string) *string {
	v := CleanUTF8(m.field(rec, name))
	if v == "" {
		return nil
	}
	return &v
}

// price parses the unit price as a fixed-point decimal rounded to cents.
// Empty and non-numeric values both map to NULL: storing zero for garbage
// would silently turn bad data into a free product.
func (m *Mapper) price(rec []string) *decimal.Decimal {
	v := CleanUTF8(m.field(rec, colUnitPrice))
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	d = d.Round(2)
	return &d
}
