package usecase

import (
	"context"
	"fmt"
	"time"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
	applogger "TrendForge/pkg/logger"
)

// RuleAdmin manages versioned aggregation rules. Updates never mutate a
// version in place; each change appends a new one.
type RuleAdmin struct {
	rules  drepo.RuleStore
	audits drepo.AuditStore
	l      *applogger.Logger
}

func NewRuleAdmin(rules drepo.RuleStore, audits drepo.AuditStore, l *applogger.Logger) *RuleAdmin {
	return &RuleAdmin{rules: rules, audits: audits, l: l}
}

// UpsertRule appends a new rule version for the market.
func (r *RuleAdmin) UpsertRule(ctx context.Context, actor, role, market string, weights models.AggregationWeights, smoothing bool, smoothingPeriod int, timeframes []string) (*models.AggregationRule, error) {
	if !models.HasPermission(role, models.PermRuleManage) {
		return nil, models.ErrPermissionDenied
	}
	if !weights.Valid() {
		return nil, fmt.Errorf("weights must be non-negative with one positive component: %w", models.ErrValidation)
	}
	if smoothing && smoothingPeriod < 2 {
		return nil, fmt.Errorf("smoothing period must be at least 2: %w", models.ErrValidation)
	}
	if len(timeframes) == 0 {
		timeframes = []string{string(drepo.DefaultTimeframe())}
	}
	for _, tf := range timeframes {
		if !drepo.IsValidTimeframe(tf) {
			return nil, fmt.Errorf("unknown timeframe %s: %w", tf, models.ErrValidation)
		}
	}

	before := ""
	if cur, err := r.rules.Current(ctx, market); err == nil {
		before = fmt.Sprintf("v%d", cur.Version)
	}

	rule := &models.AggregationRule{
		Market:          market,
		Weights:         weights,
		Smoothing:       smoothing,
		SmoothingPeriod: smoothingPeriod,
		Timeframes:      timeframes,
		CreatedBy:       actor,
		CreatedAt:       time.Now().UTC(),
	}
	stored, err := r.rules.Append(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("append rule for %s: %w", market, err)
	}

	entry := &models.AuditEntry{
		Actor:       actor,
		Action:      "rule.upsert",
		EntityType:  "rule",
		EntityID:    market,
		BeforeState: before,
		AfterState:  fmt.Sprintf("v%d", stored.Version),
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.audits.Append(ctx, entry); err != nil {
		r.l.Error("audit append failed",
			applogger.String("market", market),
			applogger.Error(err),
		)
	}
	r.l.Info("aggregation rule updated",
		applogger.String("market", market),
		applogger.Int("version", stored.Version),
		applogger.String("actor", actor),
	)
	return stored, nil
}

// CurrentRule returns the latest rule version for a market.
func (r *RuleAdmin) CurrentRule(ctx context.Context, market string) (*models.AggregationRule, error) {
	return r.rules.Current(ctx, market)
}

// RuleVersion returns one historical rule version.
func (r *RuleAdmin) RuleVersion(ctx context.Context, market string, version int) (*models.AggregationRule, error) {
	return r.rules.GetVersion(ctx, market, version)
}

// Markets lists markets with at least one rule.
func (r *RuleAdmin) Markets(ctx context.Context) ([]string, error) {
	return r.rules.Markets(ctx)
}
