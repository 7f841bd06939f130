package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
	pkgkafka "TrendForge/pkg/kafka"
)

// KafkaTradeVolumeHandler consumes trade-volume events from the market
// module and feeds them into candle aggregation.
type KafkaTradeVolumeHandler struct {
	topic      string
	aggregator *Aggregator
	metrics    domrepo.Metrics
}

func NewKafkaTradeVolumeHandler(topic string, aggregator *Aggregator, metrics domrepo.Metrics) *KafkaTradeVolumeHandler {
	return &KafkaTradeVolumeHandler{topic: topic, aggregator: aggregator, metrics: metrics}
}

func (h *KafkaTradeVolumeHandler) Topic() string { return h.topic }

func (h *KafkaTradeVolumeHandler) Handle(ctx context.Context, b []byte) error {
	var m models.TradeVolumeEvent
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	ts := models.EventTime(m.Timestamp)
	h.metrics.RecordLatency("trade_ingest_e2e_seconds", time.Since(ts).Seconds())

	if err := h.aggregator.SubmitTrade(ctx, m.Market, ts, m.Volume); err != nil {
		h.metrics.RecordError("consumer_trade")
		return err
	}
	return nil
}

// KafkaRawMetricHandler consumes raw engagement measurements published
// by external collectors and routes them through signal intake.
type KafkaRawMetricHandler struct {
	topic   string
	intake  *SignalIntake
	metrics domrepo.Metrics
}

func NewKafkaRawMetricHandler(topic string, intake *SignalIntake, metrics domrepo.Metrics) *KafkaRawMetricHandler {
	return &KafkaRawMetricHandler{topic: topic, intake: intake, metrics: metrics}
}

func (h *KafkaRawMetricHandler) Topic() string { return h.topic }

func (h *KafkaRawMetricHandler) Handle(ctx context.Context, b []byte) error {
	var m models.RawMetricEvent
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	start := time.Now()
	_, err := h.intake.Ingest(ctx, m.SourceKey, m.Symbol, models.EventTime(m.DetectedAt), m.Metrics)
	h.metrics.RecordLatency("metric_ingest_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_ingest")
		return err
	}
	return nil
}

var (
	_ pkgkafka.MessageHandler = (*KafkaTradeVolumeHandler)(nil)
	_ pkgkafka.MessageHandler = (*KafkaRawMetricHandler)(nil)
)
