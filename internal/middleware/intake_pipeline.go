package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
)

// Ingestor is the minimal intake interface the pipeline needs.
type Ingestor interface {
	Ingest(ctx context.Context, sourceKey, symbol string, detectedAt time.Time, metrics models.RawMetrics) (*models.OracleSignal, error)
}

// IntakePipeline sits between the live stream and signal intake. It
// validates, throttles per symbol, and buffers measurements when
// downstream is unavailable.
type IntakePipeline struct {
	intake   Ingestor
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.RawMetricEvent
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*IntakePipeline)

// WithMaxRPS sets the max measurements per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IntakePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *IntakePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIntakePipeline creates a new pipeline.
func NewIntakePipeline(intake Ingestor, metrics domrepo.Metrics, opts ...PipelineOption) *IntakePipeline {
	p := &IntakePipeline{
		intake:   intake,
		metrics:  metrics,
		maxRPS:   20,   // default throttle per symbol
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.RawMetricEvent, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.RawMetricEvent, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered measurements.
func (p *IntakePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case ev := <-p.bufCh:
				if ev == nil {
					continue
				}
				if _, err := p.intake.Ingest(ctx, ev.SourceKey, ev.Symbol, models.EventTime(ev.DetectedAt), ev.Metrics); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IntakePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a measurement downstream,
// buffering on intake errors.
func (p *IntakePipeline) Process(ctx context.Context, ev *models.RawMetricEvent) error {
	start := time.Now()
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(ev.Symbol, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if _, err := p.intake.Ingest(ctx, ev.SourceKey, ev.Symbol, models.EventTime(ev.DetectedAt), ev.Metrics); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- ev:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateEvent(ev *models.RawMetricEvent) error {
	if ev == nil {
		return fmt.Errorf("event nil")
	}
	if ev.SourceKey == "" {
		return fmt.Errorf("source key empty")
	}
	if ev.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if ev.DetectedAt <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	m := ev.Metrics
	if m.Likes < 0 || m.Shares < 0 || m.Comments < 0 || m.Mentions < 0 || m.VPMX < 0 {
		return fmt.Errorf("negative metric component")
	}
	return nil
}

func (p *IntakePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() {
		p.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
