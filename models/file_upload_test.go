package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressPercentage(t *testing.T) {
	cases := []struct {
		name      string
		total     int
		processed int
		want      int
	}{
		{"unknown total", 0, 0, 0},
		{"not started", 100, 0, 0},
		{"halfway", 100, 50, 50},
		{"rounds nearest", 3, 1, 33},
		{"rounds up", 3, 2, 67},
		{"complete", 500, 500, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := FileUpload{TotalRows: tc.total, ProcessedRows: tc.processed}
			assert.Equal(t, tc.want, f.ProgressPercentage())
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, (&FileUpload{Status: StatusPending}).IsTerminal())
	assert.False(t, (&FileUpload{Status: StatusProcessing}).IsTerminal())
	assert.True(t, (&FileUpload{Status: StatusCompleted}).IsTerminal())
	assert.True(t, (&FileUpload{Status: StatusFailed}).IsTerminal())
}
