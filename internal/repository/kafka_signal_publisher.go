package repository

import (
	"context"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
	pkgkafka "TrendForge/pkg/kafka"
)

// KafkaSignalPublisher fans approved signals out to downstream trading
// consumers over Kafka.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) PublishApproved(ctx context.Context, s *models.OracleSignal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), map[string]interface{}{
		"signal_id":  s.ID,
		"source":     s.SourceKey,
		"symbol":     s.Symbol,
		"detected":   s.DetectedAt.UnixMilli(),
		"confidence": s.ConfidenceScore,
		"risk":       s.DeceptionRisk,
		"vpmx":       s.Metrics.VPMX,
	})
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)
