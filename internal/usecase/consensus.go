package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
	applogger "TrendForge/pkg/logger"
)

// ConsensusConfig tunes the attestation quorum and scoring thresholds.
type ConsensusConfig struct {
	MinAttestors         int
	AutoApproveThreshold float64
	RiskCeiling          float64
	AttestationTimeout   time.Duration
	SweepInterval        time.Duration
	TrustAlpha           float64
	TrustEpsilon         float64
	VarianceWeight       float64
	FlagWeight           float64
}

// ApprovedSink receives signals the moment they reach APPROVED so they
// can flow into candle aggregation.
type ApprovedSink interface {
	SubmitSignal(ctx context.Context, s *models.OracleSignal) error
}

// ConsensusEngine drives the signal lifecycle: collects validator
// attestations, evaluates quorum, scores deception risk, resolves
// PENDING signals and maintains node trust.
type ConsensusEngine struct {
	signals  drepo.SignalStore
	atts     drepo.AttestationStore
	nodes    drepo.NodeStore
	audits   drepo.AuditStore
	settings drepo.ConsensusSettingsStore
	pub      drepo.SignalPublisher
	sink     ApprovedSink
	metrics  drepo.Metrics
	l        *applogger.Logger
	cfg      ConsensusConfig

	// per-signal locks serialize evaluation against concurrent
	// attestations and admin overrides
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewConsensusEngine(
	signals drepo.SignalStore,
	atts drepo.AttestationStore,
	nodes drepo.NodeStore,
	audits drepo.AuditStore,
	settings drepo.ConsensusSettingsStore,
	pub drepo.SignalPublisher,
	sink ApprovedSink,
	metrics drepo.Metrics,
	l *applogger.Logger,
	cfg ConsensusConfig,
) *ConsensusEngine {
	return &ConsensusEngine{
		signals:  signals,
		atts:     atts,
		nodes:    nodes,
		audits:   audits,
		settings: settings,
		pub:      pub,
		sink:     sink,
		metrics:  metrics,
		l:        l,
		cfg:      cfg,
		locks:    make(map[string]*sync.Mutex),
		stopCh:   make(chan struct{}),
	}
}

// thresholds resolves the active consensus thresholds: the latest
// settings version when one exists, the boot configuration otherwise.
func (e *ConsensusEngine) thresholds(ctx context.Context) models.ConsensusSettings {
	if e.settings != nil {
		if cur, err := e.settings.Current(ctx); err == nil {
			return *cur
		}
	}
	return models.ConsensusSettings{
		MinAttestors:         e.cfg.MinAttestors,
		AutoApproveThreshold: e.cfg.AutoApproveThreshold,
		RiskCeiling:          e.cfg.RiskCeiling,
	}
}

// Start launches the quorum timeout sweep. Safe to skip in tests.
func (e *ConsensusEngine) Start() {
	e.wg.Add(1)
	go e.sweepLoop()
}

// Stop halts the sweep loop and waits for it.
func (e *ConsensusEngine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *ConsensusEngine) signalLock(id string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	return mu
}

func (e *ConsensusEngine) releaseLock(id string) {
	e.lockMu.Lock()
	delete(e.locks, id)
	e.lockMu.Unlock()
}

// SubmitAttestation records one validator node's judgment and triggers
// evaluation. Attestations land only while the signal is PENDING; a
// resubmission from the same node replaces its prior entry.
func (e *ConsensusEngine) SubmitAttestation(ctx context.Context, signalID, nodeID string, confidence float64, deceptionFlag bool) error {
	node, err := e.nodes.Get(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("lookup node %s: %w", nodeID, err)
	}
	if !node.Enabled {
		return fmt.Errorf("node %s: %w", nodeID, models.ErrInvalidState)
	}

	mu := e.signalLock(signalID)
	mu.Lock()
	defer mu.Unlock()

	sig, err := e.signals.Get(ctx, signalID)
	if err != nil {
		return fmt.Errorf("lookup signal %s: %w", signalID, err)
	}
	if sig.Status != models.SignalPending {
		return fmt.Errorf("signal %s is %s: %w", signalID, sig.Status, models.ErrInvalidState)
	}

	att := &models.ConsensusAttestation{
		SignalID:           signalID,
		NodeID:             nodeID,
		LocalConfidence:    models.ClampScore(confidence),
		LocalDeceptionFlag: deceptionFlag,
		SubmittedAt:        time.Now().UTC(),
	}
	if err := e.atts.Put(ctx, att); err != nil {
		return fmt.Errorf("store attestation: %w", err)
	}
	e.metrics.RecordAttestation(nodeID)

	return e.evaluateLocked(ctx, sig)
}

// EvaluateSignal re-runs consensus evaluation for one signal. Used by
// the queue worker after out-of-band attestation writes.
func (e *ConsensusEngine) EvaluateSignal(ctx context.Context, signalID string) error {
	mu := e.signalLock(signalID)
	mu.Lock()
	defer mu.Unlock()

	sig, err := e.signals.Get(ctx, signalID)
	if err != nil {
		return fmt.Errorf("lookup signal %s: %w", signalID, err)
	}
	if sig.Status != models.SignalPending {
		return nil
	}
	return e.evaluateLocked(ctx, sig)
}

// evaluateLocked runs one consensus round. Caller holds the signal lock
// and guarantees the signal is PENDING.
func (e *ConsensusEngine) evaluateLocked(ctx context.Context, sig *models.OracleSignal) error {
	th := e.thresholds(ctx)

	atts, err := e.atts.GetBySignal(ctx, sig.ID)
	if err != nil {
		return fmt.Errorf("load attestations: %w", err)
	}
	if len(atts) < th.MinAttestors {
		return nil
	}

	votes := make([]weightedVote, 0, len(atts))
	for _, a := range atts {
		node, err := e.nodes.Get(ctx, a.NodeID)
		if err != nil || !node.Enabled {
			continue
		}
		votes = append(votes, weightedVote{
			NodeID:     a.NodeID,
			Confidence: a.LocalConfidence,
			Flagged:    a.LocalDeceptionFlag,
			Trust:      node.TrustScore,
		})
	}
	if len(votes) < th.MinAttestors {
		return nil
	}

	consensus := trustWeightedMedian(votes)
	risk := deceptionRisk(votes, e.cfg.VarianceWeight, e.cfg.FlagWeight)

	sig.ConfidenceScore = models.ClampScore(consensus)
	sig.DeceptionRisk = risk
	now := time.Now().UTC()

	switch {
	case risk > th.RiskCeiling:
		sig.Status = models.SignalFlagged
		sig.RequiresReview = true
		sig.FlagReason = fmt.Sprintf("deception risk %.1f exceeds ceiling %.1f", risk, th.RiskCeiling)
	case consensus >= th.AutoApproveThreshold:
		sig.Status = models.SignalApproved
		sig.ResolvedAt = now
	default:
		// a threshold miss is a review queue entry, never an automated
		// rejection; only a human resolves it from here
		sig.Status = models.SignalFlagged
		sig.RequiresReview = true
		sig.FlagReason = fmt.Sprintf("consensus confidence %.1f below approval threshold %.1f", consensus, th.AutoApproveThreshold)
	}
	sig.UpdatedAt = now

	if err := e.signals.Update(ctx, sig); err != nil {
		return fmt.Errorf("update signal: %w", err)
	}
	e.metrics.RecordConsensusOutcome(string(sig.Status))
	e.l.Info("consensus evaluated",
		applogger.String("signal_id", sig.ID),
		applogger.String("symbol", sig.Symbol),
		applogger.String("status", string(sig.Status)),
		applogger.Float64("confidence", sig.ConfidenceScore),
		applogger.Float64("risk", sig.DeceptionRisk),
		applogger.Int("attestors", len(votes)),
	)

	if sig.Status.Terminal() {
		e.updateTrust(ctx, votes, consensus)
		e.releaseLock(sig.ID)
	}
	if sig.Status == models.SignalApproved {
		e.fanOutApproved(ctx, sig)
	}
	return nil
}

// updateTrust applies the EMA trust update to every node that voted.
func (e *ConsensusEngine) updateTrust(ctx context.Context, votes []weightedVote, consensus float64) {
	for _, v := range votes {
		node, err := e.nodes.Get(ctx, v.NodeID)
		if err != nil {
			continue
		}
		node.TrustScore = trustReward(node.TrustScore, v.Confidence, consensus, e.cfg.TrustAlpha, e.cfg.TrustEpsilon)
		if err := e.nodes.Update(ctx, node); err != nil {
			e.l.Warn("trust update failed",
				applogger.String("node_id", v.NodeID),
				applogger.Error(err),
			)
			continue
		}
		e.metrics.RecordNodeTrust(v.NodeID, node.TrustScore)
	}
}

func (e *ConsensusEngine) fanOutApproved(ctx context.Context, sig *models.OracleSignal) {
	if e.sink != nil {
		if err := e.sink.SubmitSignal(ctx, sig); err != nil {
			e.metrics.RecordError("aggregation_submit")
			e.l.Error("aggregation hand-off failed",
				applogger.String("signal_id", sig.ID),
				applogger.Error(err),
			)
		}
	}
	if e.pub != nil {
		if err := e.pub.PublishApproved(ctx, sig); err != nil {
			e.metrics.RecordError("publish_approved")
			e.l.Error("approved signal publish failed",
				applogger.String("signal_id", sig.ID),
				applogger.Error(err),
			)
		}
	}
}

// sweepLoop flags signals whose attestation window expired without
// reaching quorum.
func (e *ConsensusEngine) sweepLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.SweepExpired(context.Background())
		}
	}
}

// SweepExpired flags every PENDING signal older than the attestation
// timeout as FLAGGED for manual review.
func (e *ConsensusEngine) SweepExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-e.cfg.AttestationTimeout)
	stale, err := e.signals.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		e.metrics.RecordError("quorum_sweep")
		e.l.Error("quorum sweep failed", applogger.Error(err))
		return
	}
	for _, sig := range stale {
		mu := e.signalLock(sig.ID)
		mu.Lock()
		cur, err := e.signals.Get(ctx, sig.ID)
		if err != nil || cur.Status != models.SignalPending {
			mu.Unlock()
			continue
		}
		cur.Status = models.SignalFlagged
		cur.RequiresReview = true
		cur.FlagReason = "insufficient quorum before attestation timeout"
		cur.UpdatedAt = time.Now().UTC()
		if err := e.signals.Update(ctx, cur); err != nil {
			e.l.Error("quorum flag failed",
				applogger.String("signal_id", cur.ID),
				applogger.Error(err),
			)
		} else {
			e.metrics.RecordConsensusOutcome("TIMEOUT_FLAGGED")
			e.l.Warn("signal flagged on quorum timeout",
				applogger.String("signal_id", cur.ID),
				applogger.String("symbol", cur.Symbol),
			)
		}
		mu.Unlock()
	}
}
