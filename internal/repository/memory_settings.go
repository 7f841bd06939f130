package repository

import (
	"context"
	"sync"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
)

// MemorySettingsStore keeps versioned consensus thresholds. Versions
// are append-only; the last entry is current.
type MemorySettingsStore struct {
	mu       sync.RWMutex
	versions []models.ConsensusSettings
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{}
}

func (s *MemorySettingsStore) Append(_ context.Context, settings *models.ConsensusSettings) (*models.ConsensusSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *settings
	cp.Version = len(s.versions) + 1
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.versions = append(s.versions, cp)
	out := cp
	return &out, nil
}

func (s *MemorySettingsStore) Current(_ context.Context) (*models.ConsensusSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.versions) == 0 {
		return nil, models.ErrNotFound
	}
	cp := s.versions[len(s.versions)-1]
	return &cp, nil
}

var _ domrepo.ConsensusSettingsStore = (*MemorySettingsStore)(nil)
