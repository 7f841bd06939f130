package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
	"TrendForge/internal/repository"
	applogger "TrendForge/pkg/logger"
)

type aggFixture struct {
	agg     *Aggregator
	rules   *repository.MemoryRuleStore
	candles *repository.MemoryCandleStore
	events  *repository.MemoryEventStore
	sources *repository.MemorySourceStore
}

func newAggFixture(t *testing.T) *aggFixture {
	t.Helper()
	f := &aggFixture{
		rules:   repository.NewMemoryRuleStore(),
		candles: repository.NewMemoryCandleStore(),
		events:  repository.NewMemoryEventStore(),
		sources: repository.NewMemorySourceStore(),
	}
	f.agg = NewAggregator(f.rules, f.candles, f.events, f.sources, nopMetrics{}, applogger.Nop(),
		AggregatorConfig{FinalizeInterval: time.Hour, EventBuffer: 64})
	return f
}

func (f *aggFixture) addLiveSource(t *testing.T, key string) {
	t.Helper()
	err := f.sources.Upsert(context.Background(), &models.OracleSource{
		SourceKey: key,
		Health:    models.HealthActive,
		Mode:      models.ModeLive,
	})
	require.NoError(t, err)
}

func (f *aggFixture) addRule(t *testing.T, market string) {
	t.Helper()
	_, err := f.rules.Append(context.Background(), &models.AggregationRule{
		Market:     market,
		Weights:    models.AggregationWeights{VPMX: 1},
		Timeframes: []string{"1m"},
	})
	require.NoError(t, err)
}

func approvedSignal(id, source, symbol string, ts time.Time, vpmx float64) *models.OracleSignal {
	return &models.OracleSignal{
		ID:         id,
		SourceKey:  source,
		Symbol:     symbol,
		DetectedAt: ts,
		Metrics:    models.RawMetrics{VPMX: vpmx},
		Status:     models.SignalApproved,
	}
}

func TestAggregator_RejectsUnapprovedSignals(t *testing.T) {
	f := newAggFixture(t)
	sig := approvedSignal("sig-1", "src-alpha", "MEME-PEPE", time.Now(), 50)
	sig.Status = models.SignalPending

	err := f.agg.SubmitSignal(context.Background(), sig)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestAggregator_BuildsCandleFromSignals(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	f.addLiveSource(t, "src-alpha")
	f.addRule(t, "MEME-PEPE")
	base := time.Date(2026, 8, 1, 12, 0, 5, 0, time.UTC)

	require.NoError(t, f.agg.SubmitSignal(ctx, approvedSignal("sig-1", "src-alpha", "MEME-PEPE", base, 40)))
	require.NoError(t, f.agg.SubmitSignal(ctx, approvedSignal("sig-2", "src-alpha", "MEME-PEPE", base.Add(10*time.Second), 60)))
	f.agg.Stop()

	c, err := f.candles.Get(ctx, "MEME-PEPE", drepo.TF1m, base.Truncate(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 40.0, c.Open)
	assert.Equal(t, 60.0, c.Close)
	assert.Equal(t, 60.0, c.High)
	assert.Equal(t, 40.0, c.Low)
	assert.Equal(t, 1, c.RuleVersion)
}

func TestAggregator_TradeVolumeAccumulates(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	f.addRule(t, "MEME-PEPE")
	base := time.Date(2026, 8, 1, 12, 0, 5, 0, time.UTC)

	require.NoError(t, f.agg.SubmitTrade(ctx, "MEME-PEPE", base, 100))
	require.NoError(t, f.agg.SubmitTrade(ctx, "MEME-PEPE", base.Add(5*time.Second), 25))
	f.agg.Stop()

	c, err := f.candles.Get(ctx, "MEME-PEPE", drepo.TF1m, base.Truncate(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 125.0, c.Volume)
}

func TestAggregator_NonLiveSourceExcludedButRecorded(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	f.addRule(t, "MEME-PEPE")
	require.NoError(t, f.sources.Upsert(ctx, &models.OracleSource{
		SourceKey: "src-sim",
		Health:    models.HealthActive,
		Mode:      models.ModeSimulated,
	}))
	base := time.Date(2026, 8, 1, 12, 0, 5, 0, time.UTC)

	require.NoError(t, f.agg.SubmitSignal(ctx, approvedSignal("sig-1", "src-sim", "MEME-PEPE", base, 40)))
	f.agg.Stop()

	// the event lands in history for future rebuilds, carrying the
	// eligibility verdict the live path applied
	events, err := f.events.GetRange(ctx, "MEME-PEPE", base.Add(-time.Minute), base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].LiveEligible)

	// but no live candle was produced
	_, err = f.candles.Get(ctx, "MEME-PEPE", drepo.TF1m, base.Truncate(time.Minute))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAggregator_NoRuleNoCandle(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	f.addLiveSource(t, "src-alpha")
	base := time.Now().UTC()

	require.NoError(t, f.agg.SubmitSignal(ctx, approvedSignal("sig-1", "src-alpha", "MEME-PEPE", base, 40)))
	f.agg.Stop()

	_, err := f.candles.Get(ctx, "MEME-PEPE", drepo.TF1m, drepo.TF1m.BucketStart(base))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAggregator_RuleUpdatePicksUpNextBucket(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	f.addLiveSource(t, "src-alpha")
	f.addRule(t, "MEME-PEPE")
	base := time.Date(2026, 8, 1, 12, 0, 5, 0, time.UTC)

	require.NoError(t, f.agg.SubmitSignal(ctx, approvedSignal("sig-1", "src-alpha", "MEME-PEPE", base, 80)))

	_, err := f.rules.Append(ctx, &models.AggregationRule{
		Market:     "MEME-PEPE",
		Weights:    models.AggregationWeights{VPMX: 0.5, Mentions: 0.5},
		Timeframes: []string{"1m"},
	})
	require.NoError(t, err)

	require.NoError(t, f.agg.SubmitSignal(ctx, approvedSignal("sig-2", "src-alpha", "MEME-PEPE", base.Add(time.Minute), 80)))
	f.agg.Stop()

	first, err := f.candles.Get(ctx, "MEME-PEPE", drepo.TF1m, base.Truncate(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, first.RuleVersion)
	assert.Equal(t, 80.0, first.Close)

	// the next bucket scores under v2 and opens at the prior close
	second, err := f.candles.Get(ctx, "MEME-PEPE", drepo.TF1m, base.Add(time.Minute).Truncate(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, second.RuleVersion)
	assert.Equal(t, 80.0, second.Open)
	assert.Equal(t, 40.0, second.Close)
}

func TestAggregator_ConcurrentSubmitsAndRuleUpdates(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	f.addLiveSource(t, "src-alpha")
	f.addRule(t, "MEME-PEPE")
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// submissions race against rule updates; the run must stay clean
	// under the race detector
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				ts := base.Add(time.Duration(j) * time.Second)
				id := fmt.Sprintf("sig-%d-%d", n, j)
				_ = f.agg.SubmitSignal(ctx, approvedSignal(id, "src-alpha", "MEME-PEPE", ts, float64(j)))
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			_, _ = f.rules.Append(ctx, &models.AggregationRule{
				Market:     "MEME-PEPE",
				Weights:    models.AggregationWeights{VPMX: 1},
				Timeframes: []string{"1m"},
			})
		}
	}()
	wg.Wait()
	f.agg.Stop()

	c, err := f.candles.Get(ctx, "MEME-PEPE", drepo.TF1m, base)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.High, c.Low)
}

func TestAggregator_SubmitAfterStopFails(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	f.addLiveSource(t, "src-alpha")
	f.addRule(t, "MEME-PEPE")
	f.agg.Stop()

	err := f.agg.SubmitSignal(ctx, approvedSignal("sig-1", "src-alpha", "MEME-PEPE", time.Now(), 40))
	assert.Error(t, err)
}
