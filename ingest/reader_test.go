package ingest

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestReaderHeaderStripsBOMAndTrims(t *testing.T) {
	f := writeFeed(t, "\xEF\xBB\xBFUNIQUE_KEY, PRODUCT_TITLE \nA1,Widget\n")
	r := NewReader(f)

	header, err := r.Header()
	require.NoError(t, err)
	assert.Equal(t, []string{"UNIQUE_KEY", "PRODUCT_TITLE"}, header)

	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "Widget"}, rec)
}

func TestReaderEmptyFile(t *testing.T) {
	f := writeFeed(t, "")
	r := NewReader(f)
	_, err := r.Header()
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReaderRewind(t *testing.T) {
	f := writeFeed(t, "UNIQUE_KEY\nA1\nA2\n")
	r := NewReader(f)

	_, err := r.Header()
	require.NoError(t, err)

	// drain pass 1
	for {
		if _, err := r.Read(); err == io.EOF {
			break
		} else {
			require.NoError(t, err)
		}
	}

	require.NoError(t, r.Rewind())

	// pass 2 starts at the first data record, not the header
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, rec)
	rec, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"A2"}, rec)
	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestReaderVariableWidthRecords(t *testing.T) {
	f := writeFeed(t, "A,B\n1,2,3\n1\n")
	r := NewReader(f)
	_, err := r.Header()
	require.NoError(t, err)

	// lenient config: wrong-width rows are returned, not rejected
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Len(t, rec, 3)
	rec, err = r.Read()
	require.NoError(t, err)
	assert.Len(t, rec, 1)
}

func TestReaderWithEncoding(t *testing.T) {
	// "Café" in Windows-1252: é is 0xE9
	f := writeFeed(t, "PRODUCT_TITLE\nCaf\xe9\n")
	r := NewReader(f, WithEncoding(charmap.Windows1252))

	_, err := r.Header()
	require.NoError(t, err)
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "Café", rec[0])
}
