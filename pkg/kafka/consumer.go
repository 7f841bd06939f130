package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	WorkerCount int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
}

func (c *ConsumerConfig) applyDefaults() {
	if c.GroupID == "" {
		c.GroupID = "default"
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 50 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 2 * time.Second
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 10e3
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10e6
	}
}

type message struct {
	topic string
	data  []byte
	km    kafka.Message
	rd    *kafka.Reader
}

// Consumer wraps per-topic Kafka readers with a shared worker pool.
type Consumer struct {
	cfg      ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	msgChan  chan *message
	dlq      *kafka.Writer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	cfg.applyDefaults()

	c := &Consumer{
		cfg:      cfg,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		msgChan:  make(chan *message, cfg.BufferSize),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.DLQTopic,
			Balancer: &kafka.LeastBytes{},
		}
	}
	initConsumerMetricsOnce()
	return c, nil
}

// RegisterHandler registers a handler for its topic.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	c.handlers[h.Topic()] = h
}

// Start launches one reader per registered topic plus the worker pool.
// It returns after startup; message processing happens in background
// goroutines until Stop.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for topic := range c.handlers {
		rd := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = rd
		c.wg.Add(1)
		go c.readLoop(ctx, topic, rd)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}
	return nil
}

func (c *Consumer) readLoop(ctx context.Context, topic string, rd *kafka.Reader) {
	defer c.wg.Done()
	for {
		km, err := rd.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			time.Sleep(c.cfg.BackoffMin)
			continue
		}
		select {
		case c.msgChan <- &message{topic: topic, data: km.Value, km: km, rd: rd}:
			consumerQueueDepth.Set(float64(len(c.msgChan)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.msgChan:
			c.process(ctx, m)
		}
	}
}

// process handles one message with bounded retries, routes exhausted
// messages to the DLQ, and always commits the offset afterwards so a
// poison message cannot wedge the partition.
func (c *Consumer) process(ctx context.Context, m *message) {
	h := c.handlers[m.topic]
	start := time.Now()

	var err error
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return
			}
		}
		if err = h.Handle(ctx, m.data); err == nil {
			break
		}
		if errors.Is(err, context.Canceled) {
			return
		}
	}
	consumerHandleSeconds.WithLabelValues(m.topic).Observe(time.Since(start).Seconds())

	if err != nil && c.dlq != nil {
		_ = c.dlq.WriteMessages(ctx, kafka.Message{
			Key:   m.km.Key,
			Value: m.km.Value,
			Time:  time.Now(),
		})
	}
	if cerr := m.rd.CommitMessages(ctx, m.km); cerr != nil && !errors.Is(cerr, context.Canceled) {
		consumerCommitErrors.WithLabelValues(m.topic).Inc()
	}
}

// backoff returns an exponential backoff with jitter, capped at BackoffMax.
func (c *Consumer) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffMin << uint(attempt-1)
	if d > c.cfg.BackoffMax {
		d = c.cfg.BackoffMax
	}
	return d + time.Duration(rand.Int63n(int64(c.cfg.BackoffMin)))
}

// Stop shuts down readers and workers.
func (c *Consumer) Stop() error {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		for _, rd := range c.readers {
			_ = rd.Close()
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
		c.wg.Wait()
	})
	return nil
}

var (
	consumerQueueDepth    prometheus.Gauge
	consumerHandleSeconds *prometheus.HistogramVec
	consumerCommitErrors  *prometheus.CounterVec
	consumerMetricsOnce   sync.Once
)

func initConsumerMetricsOnce() {
	consumerMetricsOnce.Do(func() {
		consumerQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{Name: "trendforge_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"},
		)
		consumerHandleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "trendforge_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
		consumerCommitErrors = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "trendforge_kafka_consumer_commit_errors_total", Help: "Offset commit failures"},
			[]string{"topic"},
		)
	})
}
