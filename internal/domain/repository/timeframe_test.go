package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTimeframe(t *testing.T) {
	for _, tf := range []string{"1m", "5m", "15m", "1h", "4h", "1d"} {
		assert.True(t, IsValidTimeframe(tf), tf)
	}
	assert.False(t, IsValidTimeframe("7m"))
	assert.False(t, IsValidTimeframe(""))
}

func TestNormalizeTimeframe(t *testing.T) {
	assert.Equal(t, TF1h, NormalizeTimeframe("1h"))
	assert.Equal(t, DefaultTimeframe(), NormalizeTimeframe(""))
	assert.Equal(t, DefaultTimeframe(), NormalizeTimeframe("bogus"))
}

func TestBucketStart(t *testing.T) {
	ts := time.Date(2026, 8, 1, 13, 47, 33, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 8, 1, 13, 47, 0, 0, time.UTC), TF1m.BucketStart(ts))
	assert.Equal(t, time.Date(2026, 8, 1, 13, 45, 0, 0, time.UTC), TF5m.BucketStart(ts))
	assert.Equal(t, time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC), TF1h.BucketStart(ts))
	assert.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), TF4h.BucketStart(ts))
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), TF1d.BucketStart(ts))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Minute, TF1m.Duration())
	assert.Equal(t, 24*time.Hour, TF1d.Duration())
	// unknown timeframes fall back to the default width
	assert.Equal(t, time.Minute, Timeframe("7m").Duration())
}
