package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestHasValidCoordinates(t *testing.T) {
	assert.False(t, HasValidCoordinates(nil, nil))
	assert.False(t, HasValidCoordinates(nil, ptr(5)))
	assert.False(t, HasValidCoordinates(ptr(5), nil))
	assert.False(t, HasValidCoordinates(ptr(91), ptr(0)))
	assert.False(t, HasValidCoordinates(ptr(-91), ptr(0)))
	assert.False(t, HasValidCoordinates(ptr(0), ptr(181)))
	assert.False(t, HasValidCoordinates(ptr(0), ptr(-181)))

	assert.True(t, HasValidCoordinates(ptr(47.6062), ptr(-122.3321)))

	// (0,0) passes the predicate; zero-exclusion lives in the callers.
	assert.True(t, HasValidCoordinates(ptr(0), ptr(0)))
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "Seattle, WA, US", FormatAddress("Seattle", "WA", "US"))
	assert.Equal(t, "Seattle, US", FormatAddress("Seattle", "", "US"))
	assert.Equal(t, "Seattle", FormatAddress("Seattle", "", ""))
	assert.Equal(t, "", FormatAddress("", "", ""))
}
