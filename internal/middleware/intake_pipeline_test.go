package middleware

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendForge/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignalIngested(string)        {}
func (nopMetrics) RecordAttestation(string)           {}
func (nopMetrics) RecordConsensusOutcome(string)      {}
func (nopMetrics) RecordCandleUpdate(string, string)  {}
func (nopMetrics) RecordRebuildBucket(string, string) {}
func (nopMetrics) RecordNodeTrust(string, float64)    {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLatency(string, float64)      {}

type fakeIngestor struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeIngestor) Ingest(_ context.Context, sourceKey, symbol string, _ time.Time, _ models.RawMetrics) (*models.OracleSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("downstream down")
	}
	return &models.OracleSignal{SourceKey: sourceKey, Symbol: symbol}, nil
}

func (f *fakeIngestor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func validMeasurement(symbol string) *models.RawMetricEvent {
	return &models.RawMetricEvent{
		SourceKey:  "src-firehose",
		Symbol:     symbol,
		DetectedAt: time.Now().UnixMilli(),
		Metrics:    models.RawMetrics{Likes: 10, VPMX: 5},
	}
}

func TestPipeline_ForwardsValidMeasurements(t *testing.T) {
	ing := &fakeIngestor{}
	p := NewIntakePipeline(ing, nopMetrics{})

	err := p.Process(context.Background(), validMeasurement("MEME-PEPE"))
	require.NoError(t, err)
	assert.Equal(t, 1, ing.callCount())
}

func TestPipeline_RejectsInvalidMeasurements(t *testing.T) {
	ing := &fakeIngestor{}
	p := NewIntakePipeline(ing, nopMetrics{})
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, nil))

	ev := validMeasurement("MEME-PEPE")
	ev.SourceKey = ""
	assert.Error(t, p.Process(ctx, ev))

	ev = validMeasurement("MEME-PEPE")
	ev.Symbol = ""
	assert.Error(t, p.Process(ctx, ev))

	ev = validMeasurement("MEME-PEPE")
	ev.DetectedAt = 0
	assert.Error(t, p.Process(ctx, ev))

	ev = validMeasurement("MEME-PEPE")
	ev.Metrics.Likes = -1
	assert.Error(t, p.Process(ctx, ev))

	assert.Equal(t, 0, ing.callCount())
}

func TestPipeline_ThrottlesPerSymbol(t *testing.T) {
	ing := &fakeIngestor{}
	p := NewIntakePipeline(ing, nopMetrics{}, WithMaxRPS(1))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, validMeasurement("MEME-PEPE")))
	// second measurement within the same second is dropped silently
	require.NoError(t, p.Process(ctx, validMeasurement("MEME-PEPE")))
	assert.Equal(t, 1, ing.callCount())

	// a different symbol has its own budget
	require.NoError(t, p.Process(ctx, validMeasurement("TREND-SKIBIDI")))
	assert.Equal(t, 2, ing.callCount())
}

func TestPipeline_BuffersOnDownstreamFailure(t *testing.T) {
	ing := &fakeIngestor{fail: true}
	p := NewIntakePipeline(ing, nopMetrics{}, WithBufferSize(4))
	ctx := context.Background()

	err := p.Process(ctx, validMeasurement("MEME-PEPE"))
	require.Error(t, err)

	// downstream recovers; the flush loop drains the buffer
	ing.mu.Lock()
	ing.fail = false
	ing.mu.Unlock()

	p.Start(ctx)
	defer p.Stop()

	require.Eventually(t, func() bool { return ing.callCount() >= 2 }, 2*time.Second, 10*time.Millisecond)
}
