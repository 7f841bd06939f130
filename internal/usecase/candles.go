package usecase

import (
	"context"
	"fmt"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
)

// CandlesUseCase provides business logic for retrieving candles.
type CandlesUseCase struct {
	store domrepo.CandleStore
}

func NewCandlesUseCase(store domrepo.CandleStore) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

type GetCandlesParams struct {
	Market    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Market    string
	Timeframe string
	From      time.Time
	To        time.Time
	Count     int
	Candles   []*models.Candle
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Market == "" {
		return nil, fmt.Errorf("market required: %w", models.ErrValidation)
	}
	if !domrepo.IsValidTimeframe(string(p.Timeframe)) {
		return nil, fmt.Errorf("unknown timeframe %s: %w", p.Timeframe, models.ErrValidation)
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to: %w", models.ErrValidation)
	}
	if p.Limit <= 0 {
		p.Limit = 10000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}

	candles, err := uc.store.GetRange(ctx, p.Market, p.Timeframe, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		candles = candles[:p.Limit]
	}

	return &GetCandlesResult{
		Market:    p.Market,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(candles),
		Candles:   candles,
	}, nil
}
