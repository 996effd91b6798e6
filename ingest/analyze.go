package ingest

import (
	"encoding/csv"
	"errors"
	"io"
)

// Analysis is the result of the first pass over a file: the raw data-record
// count (malformed records included) and how many times each value of the
// UNIQUE_KEY column occurs. The map is threaded into the row mapper so every
// occurrence of a key can carry the total count for the whole file.
type Analysis struct {
	TotalRows int
	KeyCounts map[string]int
}

// Analyze consumes every record remaining on r (positioned just after the
// header) and builds the occurrence count per business key. A file without a
// UNIQUE_KEY column is tolerated: the map stays empty and every key defaults
// to 1 downstream. Pure read pass; nothing is persisted.
func Analyze(r *Reader, header []string) (Analysis, error) {
	a := Analysis{KeyCounts: make(map[string]int)}

	keyIdx := -1
	for i, h := range header {
		if h == colUniqueKey {
			keyIdx = i
			break
		}
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			a.TotalRows++ // raw line count, not a count of usable rows
			continue
		}
		if err != nil {
			return Analysis{}, err
		}
		a.TotalRows++
		if keyIdx >= 0 && keyIdx < len(rec) {
			a.KeyCounts[rec[keyIdx]]++
		}
	}
	return a, nil
}
