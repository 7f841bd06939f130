package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"TrendForge/internal/domain/models"
	"TrendForge/internal/repository"
	applogger "TrendForge/pkg/logger"
)

// nopMetrics satisfies the metrics interface without touching the
// global prometheus registry.
type nopMetrics struct{}

func (nopMetrics) RecordSignalIngested(string)       {}
func (nopMetrics) RecordAttestation(string)          {}
func (nopMetrics) RecordConsensusOutcome(string)     {}
func (nopMetrics) RecordCandleUpdate(string, string) {}
func (nopMetrics) RecordRebuildBucket(string, string) {}
func (nopMetrics) RecordNodeTrust(string, float64)   {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordLatency(string, float64)     {}

// captureSink records approved signals handed to aggregation.
type captureSink struct {
	mu      sync.Mutex
	signals []*models.OracleSignal
}

func (s *captureSink) SubmitSignal(_ context.Context, sig *models.OracleSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.signals)
}

type engineFixture struct {
	engine   *ConsensusEngine
	signals  *repository.MemorySignalStore
	atts     *repository.MemoryAttestationStore
	nodes    *repository.MemoryNodeStore
	audits   *repository.MemoryAuditStore
	settings *repository.MemorySettingsStore
	sink     *captureSink
}

func defaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		MinAttestors:         3,
		AutoApproveThreshold: 70,
		RiskCeiling:          30,
		AttestationTimeout:   5 * time.Minute,
		SweepInterval:        time.Hour,
		TrustAlpha:           0.1,
		TrustEpsilon:         5,
		VarianceWeight:       0.6,
		FlagWeight:           0.4,
	}
}

func newEngineFixture(t *testing.T, cfg ConsensusConfig) *engineFixture {
	t.Helper()
	f := &engineFixture{
		signals:  repository.NewMemorySignalStore(),
		atts:     repository.NewMemoryAttestationStore(),
		nodes:    repository.NewMemoryNodeStore(),
		audits:   repository.NewMemoryAuditStore(),
		settings: repository.NewMemorySettingsStore(),
		sink:     &captureSink{},
	}
	f.engine = NewConsensusEngine(
		f.signals, f.atts, f.nodes, f.audits, f.settings,
		nil, f.sink, nopMetrics{}, applogger.Nop(), cfg,
	)
	return f
}

func (f *engineFixture) addNode(t *testing.T, id string, trust float64) {
	t.Helper()
	err := f.nodes.Insert(context.Background(), &models.ValidatorNode{
		NodeID:     id,
		TrustScore: trust,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("insert node %s: %v", id, err)
	}
}

func (f *engineFixture) addPendingSignal(t *testing.T, id string) *models.OracleSignal {
	t.Helper()
	sig := &models.OracleSignal{
		ID:         id,
		SourceKey:  "src-alpha",
		Symbol:     "MEME-PEPE",
		DetectedAt: time.Now().UTC(),
		Status:     models.SignalPending,
	}
	if err := f.signals.Insert(context.Background(), sig); err != nil {
		t.Fatalf("insert signal %s: %v", id, err)
	}
	return sig
}
