// Package ingest implements the streaming CSV ingestion pipeline: two-pass
// file analysis, row mapping with UTF-8 repair, chunked batch upserts into
// the product catalog, and the queue/watcher plumbing that drives it.
package ingest

import (
	"strings"
	"unicode/utf8"
)

// CleanUTF8 normalizes a raw CSV field into valid UTF-8 text. Byte sequences
// that do not form a valid rune are dropped, not replaced with U+FFFD, so
// cleaned values never gain replacement characters. NUL is dropped as well
// because Postgres rejects it inside text values. Leading and trailing
// whitespace is trimmed. Valid multi-byte runes pass through byte-for-byte.
//
// CleanUTF8 never fails and is idempotent.
func CleanUTF8(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if strings.IndexByte(s, 0x00) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return strings.TrimSpace(s)
}
