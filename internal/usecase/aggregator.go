package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
	applogger "TrendForge/pkg/logger"
)

// AggregatorConfig tunes the live candle aggregation engine.
type AggregatorConfig struct {
	FinalizeInterval time.Duration
	EventBuffer      int
}

// Aggregator turns approved signals and trade-volume events into OHLC
// candles. One goroutine owns each (market, timeframe) pair, so candle
// state never needs a lock and events apply in arrival order.
type Aggregator struct {
	rules   drepo.RuleStore
	candles drepo.CandleStore
	events  drepo.EventStore
	sources drepo.SourceStore
	metrics drepo.Metrics
	l       *applogger.Logger
	cfg     AggregatorConfig

	mu      sync.Mutex
	workers map[string]*pairWorker
	stopped bool

	wg sync.WaitGroup
}

// workerMsg carries one event plus the rule version current at dispatch
// time. The worker goroutine alone touches the builder, so rule swaps
// ride the same ordered channel as events.
type workerMsg struct {
	ev   *models.AggregationEvent
	rule *models.AggregationRule
}

type pairWorker struct {
	market  string
	tf      drepo.Timeframe
	ch      chan workerMsg
	builder *candleBuilder
}

func NewAggregator(
	rules drepo.RuleStore,
	candles drepo.CandleStore,
	events drepo.EventStore,
	sources drepo.SourceStore,
	metrics drepo.Metrics,
	l *applogger.Logger,
	cfg AggregatorConfig,
) *Aggregator {
	if cfg.FinalizeInterval <= 0 {
		cfg.FinalizeInterval = 5 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 1024
	}
	return &Aggregator{
		rules:   rules,
		candles: candles,
		events:  events,
		sources: sources,
		metrics: metrics,
		l:       l,
		cfg:     cfg,
		workers: make(map[string]*pairWorker),
	}
}

// SubmitSignal feeds one APPROVED signal into aggregation. Signals from
// sources that are not live-eligible are recorded in the event history
// but excluded from live candles; the eligibility snapshot rides the
// stored event so rebuilds exclude them the same way.
func (a *Aggregator) SubmitSignal(ctx context.Context, sig *models.OracleSignal) error {
	if sig.Status != models.SignalApproved {
		return fmt.Errorf("signal %s is %s: %w", sig.ID, sig.Status, models.ErrInvalidState)
	}

	src, err := a.sources.Get(ctx, sig.SourceKey)
	if err != nil {
		return fmt.Errorf("lookup source %s: %w", sig.SourceKey, err)
	}

	e := &models.AggregationEvent{
		Kind:         models.EventSignal,
		Market:       sig.Symbol,
		Timestamp:    sig.DetectedAt,
		SignalID:     sig.ID,
		Metrics:      sig.Metrics,
		Confidence:   sig.ConfidenceScore,
		LiveEligible: src.LiveEligible(),
	}
	if err := a.events.Append(ctx, e); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	if !e.LiveEligible {
		a.l.Debug("signal excluded from live aggregation",
			applogger.String("signal_id", sig.ID),
			applogger.String("source", sig.SourceKey),
			applogger.String("health", string(src.Health)),
			applogger.String("mode", string(src.Mode)),
		)
		return nil
	}
	return a.dispatch(ctx, e)
}

// SubmitTrade feeds one trade-volume event into aggregation.
func (a *Aggregator) SubmitTrade(ctx context.Context, market string, ts time.Time, volume float64) error {
	e := &models.AggregationEvent{
		Kind:         models.EventTrade,
		Market:       market,
		Timestamp:    ts,
		TradeVolume:  volume,
		LiveEligible: true,
	}
	if err := a.events.Append(ctx, e); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return a.dispatch(ctx, e)
}

// dispatch fans the event out to every timeframe the market's current
// rule enables.
func (a *Aggregator) dispatch(ctx context.Context, e *models.AggregationEvent) error {
	rule, err := a.rules.Current(ctx, e.Market)
	if err != nil {
		if err == models.ErrNotFound {
			a.l.Debug("no aggregation rule for market",
				applogger.String("market", e.Market),
			)
			return nil
		}
		return fmt.Errorf("lookup rule for %s: %w", e.Market, err)
	}

	for _, tfName := range rule.Timeframes {
		if !drepo.IsValidTimeframe(tfName) {
			continue
		}
		tf := drepo.Timeframe(tfName)
		w, err := a.worker(e.Market, tf, rule)
		if err != nil {
			return err
		}
		select {
		case w.ch <- workerMsg{ev: e, rule: rule}:
		default:
			a.metrics.RecordError("aggregation_backpressure")
			a.l.Warn("aggregation buffer full, dropping event",
				applogger.String("market", e.Market),
				applogger.String("tf", tfName),
			)
		}
	}
	return nil
}

func (a *Aggregator) worker(market string, tf drepo.Timeframe, rule *models.AggregationRule) (*pairWorker, error) {
	key := market + "|" + string(tf)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return nil, fmt.Errorf("aggregator stopped")
	}
	if w, ok := a.workers[key]; ok {
		return w, nil
	}
	w := &pairWorker{
		market:  market,
		tf:      tf,
		ch:      make(chan workerMsg, a.cfg.EventBuffer),
		builder: newCandleBuilder(market, tf, rule),
	}
	a.workers[key] = w
	a.wg.Add(1)
	go a.runWorker(w)
	return w, nil
}

func (a *Aggregator) runWorker(w *pairWorker) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.cfg.FinalizeInterval)
	defer ticker.Stop()

	for {
		select {
		case m, ok := <-w.ch:
			if !ok {
				a.flushWorker(w)
				return
			}
			w.builder.SetRule(m.rule)
			if closed := w.builder.Apply(m.ev); closed != nil {
				a.persist(w, closed)
			}
			if cur := w.builder.Current(); cur != nil {
				a.persist(w, cur)
			}
		case <-ticker.C:
			if closed := w.builder.CloseBefore(time.Now().UTC()); closed != nil {
				a.persist(w, closed)
			}
		}
	}
}

func (a *Aggregator) flushWorker(w *pairWorker) {
	if cur := w.builder.Current(); cur != nil {
		a.persist(w, cur)
	}
}

func (a *Aggregator) persist(w *pairWorker, c *models.Candle) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.candles.Upsert(ctx, c); err != nil {
		a.metrics.RecordError("candle_upsert")
		a.l.Error("candle upsert failed",
			applogger.String("market", w.market),
			applogger.String("tf", string(w.tf)),
			applogger.Error(err),
		)
		return
	}
	a.metrics.RecordCandleUpdate(w.market, string(w.tf))
}

// Stop closes all workers and flushes in-progress candles.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	for _, w := range a.workers {
		close(w.ch)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
