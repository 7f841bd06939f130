package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
	"TrendForge/internal/repository"
)

func TestGetCandles_Validation(t *testing.T) {
	uc := NewCandlesUseCase(repository.NewMemoryCandleStore())
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := uc.GetCandles(ctx, GetCandlesParams{Market: "", Timeframe: drepo.TF1m, From: now.Add(-time.Hour), To: now})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = uc.GetCandles(ctx, GetCandlesParams{Market: "MEME-PEPE", Timeframe: drepo.Timeframe("7m"), From: now.Add(-time.Hour), To: now})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = uc.GetCandles(ctx, GetCandlesParams{Market: "MEME-PEPE", Timeframe: drepo.TF1m, From: now, To: now.Add(-time.Hour)})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestGetCandles_LimitApplied(t *testing.T) {
	store := repository.NewMemoryCandleStore()
	uc := NewCandlesUseCase(store)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Upsert(ctx, &models.Candle{
			Market:      "MEME-PEPE",
			Timeframe:   "1m",
			BucketStart: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	res, err := uc.GetCandles(ctx, GetCandlesParams{
		Market:    "MEME-PEPE",
		Timeframe: drepo.TF1m,
		From:      base,
		To:        base.Add(time.Hour),
		Limit:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Len(t, res.Candles, 3)
	assert.Equal(t, "MEME-PEPE", res.Market)
}
