package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
	applogger "TrendForge/pkg/logger"
)

// CachedCandleStore wraps a CandleStore with a short-TTL Redis cache on
// range reads. Writes go straight through and invalidate nothing; the
// TTL is short enough that in-progress buckets stay fresh.
type CachedCandleStore struct {
	inner  domrepo.CandleStore
	client *redis.Client
	ttl    time.Duration
	l      *applogger.Logger
}

func NewCachedCandleStore(inner domrepo.CandleStore, client *redis.Client, ttl time.Duration, l *applogger.Logger) *CachedCandleStore {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &CachedCandleStore{inner: inner, client: client, ttl: ttl, l: l}
}

func (s *CachedCandleStore) Upsert(ctx context.Context, c *models.Candle) error {
	return s.inner.Upsert(ctx, c)
}

func (s *CachedCandleStore) Get(ctx context.Context, market string, tf domrepo.Timeframe, bucketStart time.Time) (*models.Candle, error) {
	return s.inner.Get(ctx, market, tf, bucketStart)
}

func (s *CachedCandleStore) GetRange(ctx context.Context, market string, tf domrepo.Timeframe, from, to time.Time) ([]*models.Candle, error) {
	key := s.rangeKey(market, tf, from, to)

	raw, err := s.client.Get(ctx, key).Result()
	if err == nil {
		var out []*models.Candle
		if uerr := json.Unmarshal([]byte(raw), &out); uerr == nil {
			return out, nil
		}
		// corrupt entry, fall through to the store
	} else if !errors.Is(err, redis.Nil) && s.l != nil {
		s.l.Warn("candle cache read error",
			applogger.String("key", key),
			applogger.Error(err),
		)
	}

	out, err := s.inner.GetRange(ctx, market, tf, from, to)
	if err != nil {
		return nil, err
	}

	if data, merr := json.Marshal(out); merr == nil {
		if serr := s.client.Set(ctx, key, data, s.ttl).Err(); serr != nil && s.l != nil {
			s.l.Warn("candle cache write error",
				applogger.String("key", key),
				applogger.Error(serr),
			)
		}
	}
	return out, nil
}

func (s *CachedCandleStore) rangeKey(market string, tf domrepo.Timeframe, from, to time.Time) string {
	return fmt.Sprintf("trendforge:candles:%s:%s:%d:%d", market, tf, from.Unix(), to.Unix())
}

var _ domrepo.CandleStore = (*CachedCandleStore)(nil)
