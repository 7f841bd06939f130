package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
)

type candleKey struct {
	market      string
	timeframe   string
	bucketStart int64
}

// MemoryCandleStore keeps candles keyed by (market, timeframe, bucket).
// Used by tests and as the store behind single-instance deployments
// without ClickHouse.
type MemoryCandleStore struct {
	mu      sync.RWMutex
	candles map[candleKey]models.Candle
}

func NewMemoryCandleStore() *MemoryCandleStore {
	return &MemoryCandleStore{candles: make(map[candleKey]models.Candle)}
}

func (s *MemoryCandleStore) Upsert(_ context.Context, c *models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.UpdatedAt = time.Now().UTC()
	s.candles[candleKey{c.Market, c.Timeframe, c.BucketStart.UnixNano()}] = cp
	return nil
}

func (s *MemoryCandleStore) Get(_ context.Context, market string, tf domrepo.Timeframe, bucketStart time.Time) (*models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candles[candleKey{market, string(tf), bucketStart.UnixNano()}]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (s *MemoryCandleStore) GetRange(_ context.Context, market string, tf domrepo.Timeframe, from, to time.Time) ([]*models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Candle, 0)
	for k, c := range s.candles {
		if k.market != market || k.timeframe != string(tf) {
			continue
		}
		if c.BucketStart.Before(from) || c.BucketStart.After(to) {
			continue
		}
		cp := c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart.Before(out[j].BucketStart) })
	return out, nil
}

// MemoryEventStore keeps the raw aggregation event history, ordered by
// timestamp, for rebuild replay.
type MemoryEventStore struct {
	mu       sync.RWMutex
	byMarket map[string][]models.AggregationEvent
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{byMarket: make(map[string][]models.AggregationEvent)}
}

func (s *MemoryEventStore) Append(_ context.Context, e *models.AggregationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.byMarket[e.Market]
	cp := *e
	// keep the slice sorted; events usually arrive in order so this is
	// an append in the common case
	idx := sort.Search(len(events), func(i int) bool { return events[i].Timestamp.After(cp.Timestamp) })
	events = append(events, models.AggregationEvent{})
	copy(events[idx+1:], events[idx:])
	events[idx] = cp
	s.byMarket[e.Market] = events
	return nil
}

func (s *MemoryEventStore) GetRange(_ context.Context, market string, from, to time.Time) ([]*models.AggregationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AggregationEvent, 0)
	for _, e := range s.byMarket[market] {
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		cp := e
		out = append(out, &cp)
	}
	return out, nil
}

var (
	_ domrepo.CandleStore = (*MemoryCandleStore)(nil)
	_ domrepo.EventStore  = (*MemoryEventStore)(nil)
)
