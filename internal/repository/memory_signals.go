package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
)

// MemorySignalStore is a mutex-guarded in-memory signal table keyed by
// signal id.
type MemorySignalStore struct {
	mu      sync.RWMutex
	signals map[string]models.OracleSignal
}

func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{signals: make(map[string]models.OracleSignal)}
}

func (s *MemorySignalStore) Insert(_ context.Context, sig *models.OracleSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signals[sig.ID]; ok {
		return models.ErrDuplicate
	}
	cp := *sig
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.signals[sig.ID] = cp
	return nil
}

func (s *MemorySignalStore) Get(_ context.Context, id string) (*models.OracleSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := sig
	return &cp, nil
}

func (s *MemorySignalStore) Update(_ context.Context, sig *models.OracleSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.signals[sig.ID]
	if !ok {
		return models.ErrNotFound
	}
	cp := *sig
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.signals[sig.ID] = cp
	return nil
}

func (s *MemorySignalStore) List(_ context.Context, f models.SignalFilter) ([]*models.OracleSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.OracleSignal, 0)
	for _, sig := range s.signals {
		if f.SourceKey != "" && sig.SourceKey != f.SourceKey {
			continue
		}
		if f.Status != "" && sig.Status != f.Status {
			continue
		}
		if f.MaxConfidence > 0 && sig.ConfidenceScore > f.MaxConfidence {
			continue
		}
		if sig.DeceptionRisk < f.MinRisk {
			continue
		}
		cp := sig
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemorySignalStore) ListPendingOlderThan(_ context.Context, cutoff time.Time) ([]*models.OracleSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.OracleSignal, 0)
	for _, sig := range s.signals {
		if sig.Status != models.SignalPending {
			continue
		}
		if !sig.CreatedAt.Before(cutoff) {
			continue
		}
		cp := sig
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MemoryAttestationStore keeps attestations keyed by (signal, node).
type MemoryAttestationStore struct {
	mu       sync.RWMutex
	bySignal map[string]map[string]models.ConsensusAttestation
}

func NewMemoryAttestationStore() *MemoryAttestationStore {
	return &MemoryAttestationStore{bySignal: make(map[string]map[string]models.ConsensusAttestation)}
}

func (s *MemoryAttestationStore) Put(_ context.Context, a *models.ConsensusAttestation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.bySignal[a.SignalID]
	if !ok {
		m = make(map[string]models.ConsensusAttestation)
		s.bySignal[a.SignalID] = m
	}
	cp := *a
	if cp.SubmittedAt.IsZero() {
		cp.SubmittedAt = time.Now().UTC()
	}
	m[a.NodeID] = cp
	return nil
}

func (s *MemoryAttestationStore) GetBySignal(_ context.Context, signalID string) ([]*models.ConsensusAttestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.bySignal[signalID]
	out := make([]*models.ConsensusAttestation, 0, len(m))
	for _, a := range m {
		cp := a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

var (
	_ domrepo.SignalStore      = (*MemorySignalStore)(nil)
	_ domrepo.AttestationStore = (*MemoryAttestationStore)(nil)
)
