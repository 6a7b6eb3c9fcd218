package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScale(t *testing.T) {
	tests := []struct {
		raw      int
		toLow    int
		toHigh   int
		expected int
	}{
		{0, 0, 100, 0},
		{1023, 0, 100, 100},
		{512, 0, 100, 50},
		{511, 0, 100, 49},
		{1023, 0, 255, 255},
		{512, 0, 255, 127},
		{300, 0, 255, 74},
		{-5, 0, 255, 0},
		{2000, 0, 255, 255},
		{1023, 100, 0, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, Scale(tc.raw, 0, 1023, tc.toLow, tc.toHigh), "raw=%d to [%d,%d]", tc.raw, tc.toLow, tc.toHigh)
	}
}

func TestScale_Float(t *testing.T) {
	assert.InDelta(t, 0.5, Scale(50, 0, 100, 0.0, 1.0), 1e-9)
	assert.InDelta(t, 25.0, Scale(0.25, 0.0, 1.0, 0, 100.0), 1e-9)
}

func TestScale_EmptySourceRange(t *testing.T) {
	assert.Equal(t, 7, Scale(3, 5, 5, 7, 9))
}
