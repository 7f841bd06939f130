package usecase

import (
	"time"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
)

// rawScore computes the weighted virality score of one event under a
// rule. Only components the event actually carries participate; the
// weighted sum is normalized by the sum of applied weights so a partial
// component set still lands on the same scale.
func rawScore(e *models.AggregationEvent, w models.AggregationWeights) float64 {
	type comp struct {
		weight float64
		value  float64
		ok     bool
	}
	var comps []comp
	switch e.Kind {
	case models.EventTrade:
		comps = []comp{{w.Volume, e.TradeVolume, true}}
	case models.EventSignal:
		comps = []comp{
			{w.VPMX, e.Metrics.VPMX, true},
			{w.Engagement, e.Metrics.Engagement(), true},
			{w.Mentions, e.Metrics.Mentions, true},
			{w.Shares, e.Metrics.Shares, true},
			{w.Likes, e.Metrics.Likes, true},
			{w.Comments, e.Metrics.Comments, true},
		}
	}

	var sum, applied float64
	for _, c := range comps {
		if !c.ok || c.weight <= 0 {
			continue
		}
		sum += c.weight * c.value
		applied += c.weight
	}
	if applied == 0 {
		return 0
	}
	return sum / applied
}

// candleBuilder folds an ordered event sequence into candles for one
// (market, timeframe). Not safe for concurrent use; each live worker
// and each rebuild replay owns its own builder.
type candleBuilder struct {
	market  string
	tf      drepo.Timeframe
	rule    *models.AggregationRule
	pending *models.AggregationRule

	cur     *models.Candle
	emaPrev float64
	emaInit bool

	// close of the last finalized or seeded bucket; carried into the
	// next open only when that bucket is adjacent
	prevClose  float64
	prevBucket time.Time
	havePrev   bool
}

func newCandleBuilder(market string, tf drepo.Timeframe, rule *models.AggregationRule) *candleBuilder {
	return &candleBuilder{market: market, tf: tf, rule: rule}
}

// seedPrevClose seeds the close of the bucket preceding the replay so
// its successor joins on open. Used by rebuilds that start mid-history.
func (b *candleBuilder) seedPrevClose(close float64, bucket time.Time) {
	b.prevClose = close
	b.prevBucket = bucket
	b.havePrev = true
	b.emaPrev = close
	b.emaInit = true
}

// SetRule stages a rule swap. It takes effect when the next bucket
// opens; the in-progress candle keeps the version it opened with.
func (b *candleBuilder) SetRule(rule *models.AggregationRule) {
	if rule == nil || rule.Version == b.rule.Version {
		return
	}
	b.pending = rule
}

// Apply folds one event in. If the event opens a new bucket the
// previous candle is returned finalized, otherwise nil.
func (b *candleBuilder) Apply(e *models.AggregationEvent) *models.Candle {
	bucket := b.tf.BucketStart(e.Timestamp)

	var closed *models.Candle
	if b.cur != nil && !b.cur.BucketStart.Equal(bucket) {
		if e.Timestamp.Before(b.cur.BucketStart) {
			// out-of-order stragglers older than the open bucket are
			// dropped; rebuilds recover them
			return nil
		}
		closed = b.closeCurrent()
	}

	if b.cur == nil && b.pending != nil {
		b.rule = b.pending
		b.pending = nil
	}

	score := rawScore(e, b.rule.Weights)
	value := score
	if b.rule.Smoothing && b.rule.SmoothingPeriod > 1 {
		alpha := 2.0 / (float64(b.rule.SmoothingPeriod) + 1)
		if !b.emaInit {
			b.emaPrev = score
			b.emaInit = true
		} else {
			b.emaPrev = alpha*score + (1-alpha)*b.emaPrev
		}
		value = b.emaPrev
	}

	if b.cur == nil {
		open := value
		if b.havePrev && bucket.Equal(b.prevBucket.Add(b.tf.Duration())) {
			// contiguous buckets join on open; after a gap the open is
			// the bucket's first value
			open = b.prevClose
		}
		b.cur = &models.Candle{
			Market:      b.market,
			Timeframe:   string(b.tf),
			BucketStart: bucket,
			Open:        open,
			High:        open,
			Low:         open,
			Close:       open,
			RuleVersion: b.rule.Version,
		}
	}

	if value > b.cur.High {
		b.cur.High = value
	}
	if value < b.cur.Low {
		b.cur.Low = value
	}
	b.cur.Close = value
	if e.Kind == models.EventTrade {
		b.cur.Volume += e.TradeVolume
	}
	if e.Kind == models.EventSignal {
		b.cur.VPMXScore = e.Metrics.VPMX
	}
	b.cur.UpdatedAt = time.Now().UTC()
	return closed
}

func (b *candleBuilder) closeCurrent() *models.Candle {
	c := b.cur
	c.IsFinal = true
	b.cur = nil
	b.prevClose = c.Close
	b.prevBucket = c.BucketStart
	b.havePrev = true
	return c
}

// Current returns a copy of the in-progress candle, or nil.
func (b *candleBuilder) Current() *models.Candle {
	if b.cur == nil {
		return nil
	}
	cp := *b.cur
	return &cp
}

// CloseBefore finalizes the open candle if its bucket ended before t.
func (b *candleBuilder) CloseBefore(t time.Time) *models.Candle {
	if b.cur == nil {
		return nil
	}
	if b.cur.BucketStart.Add(b.tf.Duration()).After(t) {
		return nil
	}
	return b.closeCurrent()
}
