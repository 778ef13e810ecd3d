package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsImageBased(t *testing.T) {
	tests := []struct {
		name       string
		shortPages int
		pageCount  int
		want       bool
	}{
		{"6 of 10 short pages is a scan", 6, 10, true},
		{"4 of 10 short pages is not", 4, 10, false},
		{"exactly half is not", 5, 10, false},
		{"single short page is a scan", 1, 1, true},
		{"single full page is not", 0, 1, false},
		{"no short pages", 0, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isImageBased(tt.shortPages, tt.pageCount))
		})
	}
}
