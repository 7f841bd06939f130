package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendForge/internal/domain/models"
	"TrendForge/internal/repository"
	applogger "TrendForge/pkg/logger"
)

func newRuleAdmin(t *testing.T) (*RuleAdmin, *repository.MemoryAuditStore) {
	t.Helper()
	audits := repository.NewMemoryAuditStore()
	return NewRuleAdmin(repository.NewMemoryRuleStore(), audits, applogger.Nop()), audits
}

func TestRuleAdmin_VersionsAppend(t *testing.T) {
	admin, audits := newRuleAdmin(t)
	ctx := context.Background()
	w := models.AggregationWeights{VPMX: 0.5, Engagement: 0.3, Mentions: 0.2}

	v1, err := admin.UpsertRule(ctx, "alice", "admin", "MEME-PEPE", w, false, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	// empty timeframes fall back to the default
	assert.Equal(t, []string{"1m"}, v1.Timeframes)

	w.VPMX = 0.7
	v2, err := admin.UpsertRule(ctx, "alice", "admin", "MEME-PEPE", w, true, 5, []string{"1m", "1h"})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	cur, err := admin.CurrentRule(ctx, "MEME-PEPE")
	require.NoError(t, err)
	assert.Equal(t, 2, cur.Version)
	assert.Equal(t, 0.7, cur.Weights.VPMX)

	// old versions stay retrievable for rebuilds
	old, err := admin.RuleVersion(ctx, "MEME-PEPE", 1)
	require.NoError(t, err)
	assert.Equal(t, 0.5, old.Weights.VPMX)

	trail, err := audits.ListByEntity(ctx, "rule", "MEME-PEPE")
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestRuleAdmin_Validation(t *testing.T) {
	admin, _ := newRuleAdmin(t)
	ctx := context.Background()

	_, err := admin.UpsertRule(ctx, "alice", "admin", "MEME-PEPE",
		models.AggregationWeights{}, false, 0, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = admin.UpsertRule(ctx, "alice", "admin", "MEME-PEPE",
		models.AggregationWeights{VPMX: -1}, false, 0, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = admin.UpsertRule(ctx, "alice", "admin", "MEME-PEPE",
		models.AggregationWeights{VPMX: 1}, true, 1, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = admin.UpsertRule(ctx, "alice", "admin", "MEME-PEPE",
		models.AggregationWeights{VPMX: 1}, false, 0, []string{"7m"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = admin.UpsertRule(ctx, "bob", "reviewer", "MEME-PEPE",
		models.AggregationWeights{VPMX: 1}, false, 0, nil)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestRuleAdmin_Markets(t *testing.T) {
	admin, _ := newRuleAdmin(t)
	ctx := context.Background()
	w := models.AggregationWeights{VPMX: 1}

	_, err := admin.UpsertRule(ctx, "alice", "admin", "TREND-SKIBIDI", w, false, 0, nil)
	require.NoError(t, err)
	_, err = admin.UpsertRule(ctx, "alice", "admin", "MEME-PEPE", w, false, 0, nil)
	require.NoError(t, err)

	markets, err := admin.Markets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MEME-PEPE", "TREND-SKIBIDI"}, markets)
}
