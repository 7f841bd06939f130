package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
)

// MemoryRebuildJobStore keeps rebuild jobs in memory.
type MemoryRebuildJobStore struct {
	mu   sync.RWMutex
	jobs map[string]models.RebuildJob
}

func NewMemoryRebuildJobStore() *MemoryRebuildJobStore {
	return &MemoryRebuildJobStore{jobs: make(map[string]models.RebuildJob)}
}

func (s *MemoryRebuildJobStore) Insert(_ context.Context, j *models.RebuildJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return models.ErrDuplicate
	}
	s.jobs[j.ID] = *j
	return nil
}

func (s *MemoryRebuildJobStore) Get(_ context.Context, id string) (*models.RebuildJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := j
	return &cp, nil
}

func (s *MemoryRebuildJobStore) Update(_ context.Context, j *models.RebuildJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return models.ErrNotFound
	}
	s.jobs[j.ID] = *j
	return nil
}

func (s *MemoryRebuildJobStore) FindCompleted(_ context.Context, market string, tf domrepo.Timeframe, start, end time.Time) (*models.RebuildJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.RebuildJob
	for _, j := range s.jobs {
		if j.Status != models.RebuildCompleted {
			continue
		}
		if j.Market != market || j.Timeframe != string(tf) {
			continue
		}
		if !j.StartRange.Equal(start) || !j.EndRange.Equal(end) {
			continue
		}
		cp := j
		if latest == nil || cp.FinishedAt.After(latest.FinishedAt) {
			latest = &cp
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	return latest, nil
}

// MemoryAuditStore is an append-only in-memory audit trail.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Append(_ context.Context, e *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, cp)
	return nil
}

func (s *MemoryAuditStore) ListByEntity(_ context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AuditEntry, 0)
	for _, e := range s.entries {
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		cp := e
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

var (
	_ domrepo.RebuildJobStore = (*MemoryRebuildJobStore)(nil)
	_ domrepo.AuditStore      = (*MemoryAuditStore)(nil)
)
