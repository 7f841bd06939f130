package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
)

func testRule(weights models.AggregationWeights) *models.AggregationRule {
	return &models.AggregationRule{
		Market:     "MEME-PEPE",
		Version:    1,
		Weights:    weights,
		Timeframes: []string{"1m"},
	}
}

func signalEvent(ts time.Time, m models.RawMetrics) *models.AggregationEvent {
	return &models.AggregationEvent{
		Kind:      models.EventSignal,
		Market:    "MEME-PEPE",
		Timestamp: ts,
		Metrics:   m,
	}
}

func tradeEvent(ts time.Time, volume float64) *models.AggregationEvent {
	return &models.AggregationEvent{
		Kind:        models.EventTrade,
		Market:      "MEME-PEPE",
		Timestamp:   ts,
		TradeVolume: volume,
	}
}

func TestRawScore_NormalizedByAppliedWeights(t *testing.T) {
	w := models.AggregationWeights{VPMX: 0.5, Engagement: 0.3, Mentions: 0.2}
	// engagement = likes+shares+comments+mentions = 1, so every
	// weighted component is its weight times 1
	e := signalEvent(time.Now(), models.RawMetrics{Mentions: 1, VPMX: 1})
	assert.InDelta(t, 1.0, rawScore(e, w), 1e-9)
}

func TestRawScore_TradeUsesOnlyVolumeWeight(t *testing.T) {
	w := models.AggregationWeights{Volume: 0.7, VPMX: 0.3}
	e := tradeEvent(time.Now(), 42)
	assert.InDelta(t, 42.0, rawScore(e, w), 1e-9)
}

func TestRawScore_ZeroAppliedWeights(t *testing.T) {
	w := models.AggregationWeights{Volume: 1}
	e := signalEvent(time.Now(), models.RawMetrics{VPMX: 99})
	assert.Equal(t, 0.0, rawScore(e, w))
}

func TestCandleBuilder_OHLCInvariant(t *testing.T) {
	rule := testRule(models.AggregationWeights{VPMX: 1})
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, rule)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, v := range []float64{50, 80, 20, 65} {
		closed := b.Apply(signalEvent(base.Add(time.Duration(i)*time.Second), models.RawMetrics{VPMX: v}))
		assert.Nil(t, closed)
	}

	c := b.Current()
	require.NotNil(t, c)
	assert.Equal(t, 50.0, c.Open)
	assert.Equal(t, 80.0, c.High)
	assert.Equal(t, 20.0, c.Low)
	assert.Equal(t, 65.0, c.Close)
	assert.LessOrEqual(t, c.Low, c.Open)
	assert.LessOrEqual(t, c.Low, c.Close)
	assert.GreaterOrEqual(t, c.High, c.Open)
	assert.GreaterOrEqual(t, c.High, c.Close)
	assert.False(t, c.IsFinal)
}

func TestCandleBuilder_BucketRollCarriesClose(t *testing.T) {
	rule := testRule(models.AggregationWeights{VPMX: 1})
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, rule)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.Nil(t, b.Apply(signalEvent(base, models.RawMetrics{VPMX: 40})))
	require.Nil(t, b.Apply(signalEvent(base.Add(30*time.Second), models.RawMetrics{VPMX: 60})))

	closed := b.Apply(signalEvent(base.Add(90*time.Second), models.RawMetrics{VPMX: 70}))
	require.NotNil(t, closed)
	assert.True(t, closed.IsFinal)
	assert.Equal(t, 60.0, closed.Close)
	assert.Equal(t, base, closed.BucketStart)

	cur := b.Current()
	require.NotNil(t, cur)
	// the new candle opens at the prior close, not the first new value
	assert.Equal(t, 60.0, cur.Open)
	assert.Equal(t, 70.0, cur.Close)
	assert.Equal(t, base.Add(time.Minute), cur.BucketStart)
}

func TestCandleBuilder_DropsStragglers(t *testing.T) {
	rule := testRule(models.AggregationWeights{VPMX: 1})
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, rule)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.Nil(t, b.Apply(signalEvent(base, models.RawMetrics{VPMX: 40})))

	// older than the open bucket, must not disturb state
	closed := b.Apply(signalEvent(base.Add(-2*time.Minute), models.RawMetrics{VPMX: 999}))
	assert.Nil(t, closed)

	c := b.Current()
	require.NotNil(t, c)
	assert.Equal(t, 40.0, c.High)
}

func TestCandleBuilder_VolumeAndVPMX(t *testing.T) {
	rule := testRule(models.AggregationWeights{Volume: 1, VPMX: 1})
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, rule)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	b.Apply(tradeEvent(base, 100))
	b.Apply(tradeEvent(base.Add(time.Second), 50))
	b.Apply(signalEvent(base.Add(2*time.Second), models.RawMetrics{VPMX: 77}))

	c := b.Current()
	require.NotNil(t, c)
	// only trade events accumulate volume
	assert.Equal(t, 150.0, c.Volume)
	assert.Equal(t, 77.0, c.VPMXScore)
}

func TestCandleBuilder_EMASmoothing(t *testing.T) {
	rule := testRule(models.AggregationWeights{VPMX: 1})
	rule.Smoothing = true
	rule.SmoothingPeriod = 3 // alpha = 0.5
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, rule)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	b.Apply(signalEvent(base, models.RawMetrics{VPMX: 100}))
	b.Apply(signalEvent(base.Add(time.Second), models.RawMetrics{VPMX: 0}))

	c := b.Current()
	require.NotNil(t, c)
	// first value seeds the EMA; second smooths: 0.5*0 + 0.5*100
	assert.InDelta(t, 50.0, c.Close, 1e-9)
}

func TestCandleBuilder_SeededOpen(t *testing.T) {
	rule := testRule(models.AggregationWeights{VPMX: 1})
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, rule)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b.seedPrevClose(33, base.Add(-time.Minute))

	b.Apply(signalEvent(base, models.RawMetrics{VPMX: 80}))

	c := b.Current()
	require.NotNil(t, c)
	assert.Equal(t, 33.0, c.Open)
	assert.Equal(t, 80.0, c.Close)
}

func TestCandleBuilder_SeededOpenNotContiguous(t *testing.T) {
	rule := testRule(models.AggregationWeights{VPMX: 1})
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, rule)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// seeded bucket ends two minutes before the first event
	b.seedPrevClose(33, base.Add(-3*time.Minute))

	b.Apply(signalEvent(base, models.RawMetrics{VPMX: 80}))

	c := b.Current()
	require.NotNil(t, c)
	assert.Equal(t, 80.0, c.Open)
	assert.Equal(t, 80.0, c.Close)
}

func TestCandleBuilder_GapBreaksCloseCarry(t *testing.T) {
	rule := testRule(models.AggregationWeights{VPMX: 1})
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, rule)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.Nil(t, b.Apply(signalEvent(base, models.RawMetrics{VPMX: 60})))

	// the next event lands five buckets later
	closed := b.Apply(signalEvent(base.Add(5*time.Minute), models.RawMetrics{VPMX: 25}))
	require.NotNil(t, closed)
	assert.Equal(t, 60.0, closed.Close)

	cur := b.Current()
	require.NotNil(t, cur)
	// non-adjacent bucket opens on its own first value
	assert.Equal(t, 25.0, cur.Open)
	assert.Equal(t, base.Add(5*time.Minute), cur.BucketStart)
}

func TestCandleBuilder_RuleSwapAppliesNextBucket(t *testing.T) {
	v1 := testRule(models.AggregationWeights{VPMX: 1})
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, v1)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.Nil(t, b.Apply(signalEvent(base, models.RawMetrics{VPMX: 80})))

	v2 := testRule(models.AggregationWeights{VPMX: 0.5, Mentions: 0.5})
	v2.Version = 2
	b.SetRule(v2)

	// same bucket keeps the version it opened with
	require.Nil(t, b.Apply(signalEvent(base.Add(10*time.Second), models.RawMetrics{VPMX: 80})))
	cur := b.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 80.0, cur.Close)
	assert.Equal(t, 1, cur.RuleVersion)

	closed := b.Apply(signalEvent(base.Add(time.Minute), models.RawMetrics{VPMX: 80}))
	require.NotNil(t, closed)
	assert.Equal(t, 1, closed.RuleVersion)

	// the new bucket scores under v2: (0.5*80 + 0.5*0) / 1
	cur = b.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 2, cur.RuleVersion)
	assert.Equal(t, 80.0, cur.Open)
	assert.Equal(t, 40.0, cur.Close)
}

func TestCandleBuilder_CloseBefore(t *testing.T) {
	rule := testRule(models.AggregationWeights{VPMX: 1})
	b := newCandleBuilder("MEME-PEPE", drepo.TF1m, rule)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	b.Apply(signalEvent(base, models.RawMetrics{VPMX: 40}))

	// bucket has not elapsed yet
	assert.Nil(t, b.CloseBefore(base.Add(30*time.Second)))

	closed := b.CloseBefore(base.Add(time.Minute))
	require.NotNil(t, closed)
	assert.True(t, closed.IsFinal)
	assert.Nil(t, b.Current())
}
