package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrNoHeader is returned when the file has no header record at all.
var ErrNoHeader = errors.New("invalid CSV: no header found")

// utf8BOM is stripped from the first header field if present (Excel prepends
// it and it breaks exact column-name matching).
const utf8BOM = "\xEF\xBB\xBF"

// Reader is a sequential, memory-bounded record reader over a CSV file. It
// holds the single open file handle for the duration of a run and supports
// rewinding to the first data record so the file can be scanned twice
// without reopening.
//
// The underlying csv.Reader is configured leniently (lazy quotes, variable
// field counts); width enforcement happens in the row mapper instead, so a
// malformed row skips one record rather than aborting the whole file.
type Reader struct {
	f      *os.File
	cr     *csv.Reader
	enc    encoding.Encoding
	header []string
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithEncoding transcodes the file from a legacy source encoding (e.g.
// charmap.Windows1252) to UTF-8 while streaming. Without it the bytes are
// read as-is and the sanitizer repairs any invalid sequences.
func WithEncoding(enc encoding.Encoding) ReaderOption {
	return func(r *Reader) { r.enc = enc }
}

// NewReader wraps an open CSV file. The caller keeps ownership of nothing:
// Close releases the handle.
func NewReader(f *os.File, opts ...ReaderOption) *Reader {
	r := &Reader{f: f}
	for _, opt := range opts {
		opt(r)
	}
	r.cr = r.newCSV()
	return r
}

func (r *Reader) newCSV() *csv.Reader {
	var src io.Reader = r.f
	if r.enc != nil {
		src = transform.NewReader(r.f, r.enc.NewDecoder())
	}
	cr := csv.NewReader(src)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// Header reads and returns the header record: BOM stripped from the first
// field, every name trimmed. Returns ErrNoHeader for an empty file. Must be
// called before Read.
func (r *Reader) Header() ([]string, error) {
	rec, err := r.cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header := make([]string, len(rec))
	for i, h := range rec {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		header[i] = strings.TrimSpace(h)
	}
	r.header = header
	return header, nil
}

// Read returns the next raw data record, or io.EOF at end of stream. Parse
// errors on individual records are returned as *csv.ParseError; callers skip
// the record and keep reading.
func (r *Reader) Read() ([]string, error) {
	return r.cr.Read()
}

// Rewind repositions the stream to immediately after the header record so a
// second full pass can run without reopening the file.
func (r *Reader) Rewind() error {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind csv: %w", err)
	}
	r.cr = r.newCSV()
	if _, err := r.cr.Read(); err != nil { // skip header row
		return fmt.Errorf("rewind csv: %w", err)
	}
	return nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
