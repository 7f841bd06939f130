package usecase

import (
	"context"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
	mid "TrendForge/internal/middleware"
	applogger "TrendForge/pkg/logger"
)

// StreamCollector reads raw engagement measurements from a live oracle
// stream and routes them through the intake pipeline.
type StreamCollector struct {
	stream  drepo.OracleStream
	pipe    *mid.IntakePipeline
	metrics drepo.Metrics
	l       *applogger.Logger
}

func NewStreamCollector(stream drepo.OracleStream, pipe *mid.IntakePipeline, metrics drepo.Metrics, l *applogger.Logger) *StreamCollector {
	return &StreamCollector{stream: stream, pipe: pipe, metrics: metrics, l: l}
}

// IsConnected reports whether the stream is up.
func (c *StreamCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *StreamCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	evCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, evCh, errCh)
	return nil
}

func (c *StreamCollector) consume(ctx context.Context, evCh <-chan *models.RawMetricEvent, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case ev := <-evCh:
			if ev == nil {
				continue
			}
			if err := c.pipe.Process(ctx, ev); err != nil {
				c.l.Warn("stream measurement rejected",
					applogger.String("source", ev.SourceKey),
					applogger.String("symbol", ev.Symbol),
					applogger.Error(err),
				)
			}
		}
	}
}

func (c *StreamCollector) Stop() error {
	c.pipe.Stop()
	return c.stream.Close()
}
