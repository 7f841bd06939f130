package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
)

// MemorySourceStore is a mutex-guarded in-memory oracle source registry.
// Sources are never deleted; health history lives in the audit trail.
type MemorySourceStore struct {
	mu      sync.RWMutex
	sources map[string]models.OracleSource
}

func NewMemorySourceStore() *MemorySourceStore {
	return &MemorySourceStore{sources: make(map[string]models.OracleSource)}
}

func (s *MemorySourceStore) Upsert(_ context.Context, src *models.OracleSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *src
	cp.UpdatedAt = time.Now().UTC()
	if existing, ok := s.sources[src.SourceKey]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	s.sources[src.SourceKey] = cp
	return nil
}

func (s *MemorySourceStore) Get(_ context.Context, sourceKey string) (*models.OracleSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[sourceKey]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := src
	return &cp, nil
}

func (s *MemorySourceStore) List(_ context.Context) ([]*models.OracleSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.OracleSource, 0, len(s.sources))
	for _, src := range s.sources {
		cp := src
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceKey < out[j].SourceKey })
	return out, nil
}

// MemoryNodeStore is a mutex-guarded in-memory validator node registry.
type MemoryNodeStore struct {
	mu    sync.RWMutex
	nodes map[string]models.ValidatorNode
}

func NewMemoryNodeStore() *MemoryNodeStore {
	return &MemoryNodeStore{nodes: make(map[string]models.ValidatorNode)}
}

func (s *MemoryNodeStore) Insert(_ context.Context, n *models.ValidatorNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[n.NodeID]; ok {
		return models.ErrDuplicate
	}
	cp := *n
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.nodes[n.NodeID] = cp
	return nil
}

func (s *MemoryNodeStore) Get(_ context.Context, nodeID string) (*models.ValidatorNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[nodeID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := n
	return &cp, nil
}

func (s *MemoryNodeStore) Update(_ context.Context, n *models.ValidatorNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.nodes[n.NodeID]
	if !ok {
		return models.ErrNotFound
	}
	cp := *n
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.nodes[n.NodeID] = cp
	return nil
}

func (s *MemoryNodeStore) ListEnabled(_ context.Context) ([]*models.ValidatorNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ValidatorNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		if !n.Enabled {
			continue
		}
		cp := n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

var (
	_ domrepo.SourceStore = (*MemorySourceStore)(nil)
	_ domrepo.NodeStore   = (*MemoryNodeStore)(nil)
)
