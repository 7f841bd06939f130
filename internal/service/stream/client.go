package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements an OracleStream backed by a WebSocket feed of raw
// engagement measurements.
type Client struct {
	sourceKey      string
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates an OracleStream client for one source feed.
func New(sourceKey, apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration) drepo.OracleStream {
	return &Client{
		sourceKey:      sourceKey,
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("stream: connected source=%s", c.sourceKey)
	return nil
}

// Subscribe subscribes to the configured trend symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("stream not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		log.Printf("stream: subscribed %s", s)
	}
	return nil
}

type wsMeasurement struct {
	Symbol   string  `json:"symbol"`
	Likes    float64 `json:"likes"`
	Shares   float64 `json:"shares"`
	Comments float64 `json:"comments"`
	Mentions float64 `json:"mentions"`
	VPMX     float64 `json:"vpmx"`
	T        int64   `json:"t"` // ms
}

type wsFrame struct {
	Type string          `json:"type"`
	Data []wsMeasurement `json:"data"`
}

// Read streams raw metric events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.RawMetricEvent, <-chan error) {
	events := make(chan *models.RawMetricEvent, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				var f wsFrame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-measurement frames
					continue
				}
				if f.Type != "measurement" {
					continue
				}
				for _, d := range f.Data {
					ev := &models.RawMetricEvent{
						SourceKey:  c.sourceKey,
						Symbol:     d.Symbol,
						DetectedAt: d.T,
						Metrics: models.RawMetrics{
							Likes:    d.Likes,
							Shares:   d.Shares,
							Comments: d.Comments,
							Mentions: d.Mentions,
							VPMX:     d.VPMX,
						},
					}
					select {
					case events <- ev:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return events, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
