package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCountsRowsAndDuplicateKeys(t *testing.T) {
	f := writeFeed(t, "UNIQUE_KEY,PRODUCT_TITLE\nA1,Widget\nA2,Gadget\nA1,Widget v2\nA1,Widget v3\n")
	r := NewReader(f)
	header, err := r.Header()
	require.NoError(t, err)

	a, err := Analyze(r, header)
	require.NoError(t, err)
	assert.Equal(t, 4, a.TotalRows)
	assert.Equal(t, 3, a.KeyCounts["A1"])
	assert.Equal(t, 1, a.KeyCounts["A2"])
	assert.Len(t, a.KeyCounts, 2)
}

func TestAnalyzeHeaderOnly(t *testing.T) {
	f := writeFeed(t, "UNIQUE_KEY,PRODUCT_TITLE\n")
	r := NewReader(f)
	header, err := r.Header()
	require.NoError(t, err)

	a, err := Analyze(r, header)
	require.NoError(t, err)
	assert.Equal(t, 0, a.TotalRows)
	assert.Empty(t, a.KeyCounts)
}

func TestAnalyzeMissingKeyColumn(t *testing.T) {
	f := writeFeed(t, "PRODUCT_TITLE\nWidget\nGadget\n")
	r := NewReader(f)
	header, err := r.Header()
	require.NoError(t, err)

	a, err := Analyze(r, header)
	require.NoError(t, err)
	assert.Equal(t, 2, a.TotalRows)
	assert.Empty(t, a.KeyCounts)
}

func TestAnalyzeShortRecordWithoutKeyField(t *testing.T) {
	// second column holds the key; a one-field row still counts as a row
	f := writeFeed(t, "PRODUCT_TITLE,UNIQUE_KEY\nWidget,A1\nGadget\n")
	r := NewReader(f)
	header, err := r.Header()
	require.NoError(t, err)

	a, err := Analyze(r, header)
	require.NoError(t, err)
	assert.Equal(t, 2, a.TotalRows)
	assert.Equal(t, map[string]int{"A1": 1}, a.KeyCounts)
}
