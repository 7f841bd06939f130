package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
	pkgch "TrendForge/pkg/clickhouse"
	applogger "TrendForge/pkg/logger"
)

// candleSchema creates the candle table. ReplacingMergeTree keyed by
// (market, timeframe, bucket_start) collapses repeated upserts to the
// row with the newest updated_at.
var candleSchema = []string{
	`CREATE TABLE IF NOT EXISTS candles (
        market       LowCardinality(String),
        timeframe    LowCardinality(String),
        bucket_start DateTime64(3, 'UTC'),
        open         Float64,
        high         Float64,
        low          Float64,
        close        Float64,
        volume       Float64,
        vpmx_score   Float64,
        is_final     UInt8,
        rule_version Int32,
        updated_at   DateTime64(3, 'UTC')
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY (market, timeframe, bucket_start)`,
}

// CHCandleStore implements CandleStore backed by ClickHouse.
type CHCandleStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client) (*CHCandleStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.InitSchema(ctx, candleSchema); err != nil {
		return nil, fmt.Errorf("candle schema: %w", err)
	}
	return &CHCandleStore{db: ch.DB()}, nil
}

// SetLogger injects a structured logger.
func (s *CHCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCandleStore) Upsert(ctx context.Context, c *models.Candle) error {
	const q = `
        INSERT INTO candles
            (market, timeframe, bucket_start, open, high, low, close,
             volume, vpmx_score, is_final, rule_version, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	final := uint8(0)
	if c.IsFinal {
		final = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		c.Market, c.Timeframe, c.BucketStart,
		c.Open, c.High, c.Low, c.Close,
		c.Volume, c.VPMXScore, final, int32(c.RuleVersion), time.Now().UTC(),
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse candle upsert error",
				applogger.String("market", c.Market),
				applogger.String("tf", c.Timeframe),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert candle: %w", err)
	}
	return nil
}

func (s *CHCandleStore) Get(ctx context.Context, market string, tf domrepo.Timeframe, bucketStart time.Time) (*models.Candle, error) {
	const q = `
        SELECT market, timeframe, bucket_start, open, high, low, close,
               volume, vpmx_score, is_final, rule_version, updated_at
        FROM candles FINAL
        WHERE market = ? AND timeframe = ? AND bucket_start = ?
        LIMIT 1
    `
	row := s.db.QueryRowContext(ctx, q, market, string(tf), bucketStart)
	c, err := scanCandle(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candle: %w", err)
	}
	return c, nil
}

func (s *CHCandleStore) GetRange(ctx context.Context, market string, tf domrepo.Timeframe, from, to time.Time) ([]*models.Candle, error) {
	start := time.Now()
	const q = `
        SELECT market, timeframe, bucket_start, open, high, low, close,
               volume, vpmx_score, is_final, rule_version, updated_at
        FROM candles FINAL
        WHERE market = ? AND timeframe = ? AND bucket_start >= ? AND bucket_start <= ?
        ORDER BY bucket_start ASC
    `
	rows, err := s.db.QueryContext(ctx, q, market, string(tf), from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse candle range query error",
				applogger.String("market", market),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get candle range: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Candle, 0, 256)
	for rows.Next() {
		c, err := scanCandle(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse candle range ok",
			applogger.String("market", market),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func scanCandle(scan func(dest ...any) error) (*models.Candle, error) {
	var (
		c       models.Candle
		final   uint8
		version int32
	)
	if err := scan(&c.Market, &c.Timeframe, &c.BucketStart,
		&c.Open, &c.High, &c.Low, &c.Close,
		&c.Volume, &c.VPMXScore, &final, &version, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.IsFinal = final == 1
	c.RuleVersion = int(version)
	return &c, nil
}

var _ domrepo.CandleStore = (*CHCandleStore)(nil)
