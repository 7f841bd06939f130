package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
)

// MemoryRuleStore keeps versioned aggregation rules per market. All
// versions are retained so rebuilds can pin a historical version.
type MemoryRuleStore struct {
	mu       sync.RWMutex
	byMarket map[string][]models.AggregationRule // ascending version order
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{byMarket: make(map[string][]models.AggregationRule)}
}

func (s *MemoryRuleStore) Append(_ context.Context, r *models.AggregationRule) (*models.AggregationRule, error) {
	if !r.Weights.Valid() {
		return nil, models.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	cp.Version = len(s.byMarket[r.Market]) + 1
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.byMarket[r.Market] = append(s.byMarket[r.Market], cp)
	out := cp
	return &out, nil
}

func (s *MemoryRuleStore) Current(_ context.Context, market string) (*models.AggregationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.byMarket[market]
	if len(versions) == 0 {
		return nil, models.ErrNotFound
	}
	cp := versions[len(versions)-1]
	return &cp, nil
}

func (s *MemoryRuleStore) GetVersion(_ context.Context, market string, version int) (*models.AggregationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.byMarket[market]
	if version < 1 || version > len(versions) {
		return nil, models.ErrNotFound
	}
	cp := versions[version-1]
	return &cp, nil
}

func (s *MemoryRuleStore) Markets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byMarket))
	for m := range s.byMarket {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

var _ domrepo.RuleStore = (*MemoryRuleStore)(nil)
