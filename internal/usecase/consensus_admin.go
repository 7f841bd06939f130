package usecase

import (
	"context"
	"fmt"
	"time"

	"TrendForge/internal/domain/models"
	applogger "TrendForge/pkg/logger"
)

// Admin overrides of automated consensus state. Every mutation here is
// capability-checked and lands in the audit trail.

func (e *ConsensusEngine) ApproveSignal(ctx context.Context, actor, role, signalID, reason string) (*models.OracleSignal, error) {
	if !models.HasPermission(role, models.PermSignalApprove) {
		return nil, models.ErrPermissionDenied
	}

	mu := e.signalLock(signalID)
	mu.Lock()
	defer mu.Unlock()

	sig, err := e.signals.Get(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("lookup signal %s: %w", signalID, err)
	}
	if sig.Status != models.SignalPending && sig.Status != models.SignalFlagged {
		return nil, fmt.Errorf("approve from %s: %w", sig.Status, models.ErrInvalidState)
	}

	before := string(sig.Status)
	now := time.Now().UTC()
	sig.Status = models.SignalApproved
	sig.ApprovedBy = actor
	sig.RequiresReview = false
	sig.ResolvedAt = now
	sig.UpdatedAt = now

	if err := e.signals.Update(ctx, sig); err != nil {
		return nil, fmt.Errorf("update signal: %w", err)
	}
	e.audit(ctx, actor, "signal.approve", "signal", sig.ID, before, string(sig.Status), reason)
	e.metrics.RecordConsensusOutcome("ADMIN_APPROVED")
	e.fanOutApproved(ctx, sig)
	return sig, nil
}

func (e *ConsensusEngine) RejectSignal(ctx context.Context, actor, role, signalID, reason string) (*models.OracleSignal, error) {
	if !models.HasPermission(role, models.PermSignalReject) {
		return nil, models.ErrPermissionDenied
	}

	mu := e.signalLock(signalID)
	mu.Lock()
	defer mu.Unlock()

	sig, err := e.signals.Get(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("lookup signal %s: %w", signalID, err)
	}
	// an APPROVED signal has already fanned out downstream and cannot
	// be silently retracted
	if sig.Status != models.SignalPending && sig.Status != models.SignalFlagged {
		return nil, fmt.Errorf("reject from %s: %w", sig.Status, models.ErrInvalidState)
	}

	before := string(sig.Status)
	now := time.Now().UTC()
	sig.Status = models.SignalRejected
	sig.RejectedBy = actor
	sig.RejectionReason = reason
	sig.RequiresReview = false
	sig.ResolvedAt = now
	sig.UpdatedAt = now

	if err := e.signals.Update(ctx, sig); err != nil {
		return nil, fmt.Errorf("update signal: %w", err)
	}
	e.audit(ctx, actor, "signal.reject", "signal", sig.ID, before, string(sig.Status), reason)
	e.metrics.RecordConsensusOutcome("ADMIN_REJECTED")
	return sig, nil
}

func (e *ConsensusEngine) FlagSignal(ctx context.Context, actor, role, signalID, reason string) (*models.OracleSignal, error) {
	if !models.HasPermission(role, models.PermSignalFlag) {
		return nil, models.ErrPermissionDenied
	}

	mu := e.signalLock(signalID)
	mu.Lock()
	defer mu.Unlock()

	sig, err := e.signals.Get(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("lookup signal %s: %w", signalID, err)
	}
	if sig.Status != models.SignalPending {
		return nil, fmt.Errorf("flag from %s: %w", sig.Status, models.ErrInvalidState)
	}

	before := string(sig.Status)
	sig.Status = models.SignalFlagged
	sig.RequiresReview = true
	sig.FlaggedBy = actor
	sig.FlagReason = reason
	sig.UpdatedAt = time.Now().UTC()

	if err := e.signals.Update(ctx, sig); err != nil {
		return nil, fmt.Errorf("update signal: %w", err)
	}
	e.audit(ctx, actor, "signal.flag", "signal", sig.ID, before, string(sig.Status), reason)
	return sig, nil
}

// UpdateSignalConfidence overrides the consensus confidence score.
func (e *ConsensusEngine) UpdateSignalConfidence(ctx context.Context, actor, role, signalID string, score float64, reason string) (*models.OracleSignal, error) {
	if !models.HasPermission(role, models.PermSignalAdjust) {
		return nil, models.ErrPermissionDenied
	}
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("confidence %.2f out of range: %w", score, models.ErrValidation)
	}

	mu := e.signalLock(signalID)
	mu.Lock()
	defer mu.Unlock()

	sig, err := e.signals.Get(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("lookup signal %s: %w", signalID, err)
	}

	before := fmt.Sprintf("%.2f", sig.ConfidenceScore)
	sig.ConfidenceScore = score
	sig.UpdatedAt = time.Now().UTC()

	if err := e.signals.Update(ctx, sig); err != nil {
		return nil, fmt.Errorf("update signal: %w", err)
	}
	e.audit(ctx, actor, "signal.adjust_confidence", "signal", sig.ID, before, fmt.Sprintf("%.2f", score), reason)
	return sig, nil
}

// GetSignal returns one signal with its attestations.
func (e *ConsensusEngine) GetSignal(ctx context.Context, signalID string) (*models.OracleSignal, []*models.ConsensusAttestation, error) {
	sig, err := e.signals.Get(ctx, signalID)
	if err != nil {
		return nil, nil, err
	}
	atts, err := e.atts.GetBySignal(ctx, signalID)
	if err != nil {
		return nil, nil, err
	}
	return sig, atts, nil
}

// ListSignals returns signals matching the review filter. Combining
// MaxConfidence and MinRisk yields the low-confidence/high-risk queue
// for one source.
func (e *ConsensusEngine) ListSignals(ctx context.Context, f models.SignalFilter) ([]*models.OracleSignal, error) {
	return e.signals.List(ctx, f)
}

// CurrentThresholds returns the active consensus thresholds. Version 0
// means no admin override was ever written and the boot configuration
// applies.
func (e *ConsensusEngine) CurrentThresholds(ctx context.Context) (*models.ConsensusSettings, error) {
	th := e.thresholds(ctx)
	return &th, nil
}

// UpdateThresholds appends a new consensus thresholds version. The new
// version applies to every evaluation from this point on; in-flight
// signals are re-scored against it on their next attestation.
func (e *ConsensusEngine) UpdateThresholds(ctx context.Context, actor, role string, minAttestors int, autoApprove, riskCeiling float64, reason string) (*models.ConsensusSettings, error) {
	if !models.HasPermission(role, models.PermConsensusTune) {
		return nil, models.ErrPermissionDenied
	}
	if minAttestors < 1 {
		return nil, fmt.Errorf("min attestors %d: %w", minAttestors, models.ErrValidation)
	}
	if autoApprove < 0 || autoApprove > 100 || riskCeiling < 0 || riskCeiling > 100 {
		return nil, fmt.Errorf("thresholds out of range: %w", models.ErrValidation)
	}
	if e.settings == nil {
		return nil, fmt.Errorf("settings store not configured: %w", models.ErrInvalidState)
	}

	before := e.thresholds(ctx)
	stored, err := e.settings.Append(ctx, &models.ConsensusSettings{
		MinAttestors:         minAttestors,
		AutoApproveThreshold: autoApprove,
		RiskCeiling:          riskCeiling,
		UpdatedBy:            actor,
		Reason:               reason,
	})
	if err != nil {
		return nil, fmt.Errorf("append settings: %w", err)
	}
	e.audit(ctx, actor, "consensus.thresholds", "consensus", "thresholds",
		fmt.Sprintf("min=%d approve=%.1f ceiling=%.1f", before.MinAttestors, before.AutoApproveThreshold, before.RiskCeiling),
		fmt.Sprintf("min=%d approve=%.1f ceiling=%.1f", stored.MinAttestors, stored.AutoApproveThreshold, stored.RiskCeiling),
		reason)
	e.l.Info("consensus thresholds updated",
		applogger.Int("version", stored.Version),
		applogger.String("actor", actor),
	)
	return stored, nil
}

// ForceSync re-runs consensus evaluation over every PENDING signal.
// Used after node-set or threshold changes to settle the backlog
// without waiting for the next attestation.
func (e *ConsensusEngine) ForceSync(ctx context.Context, actor, role string) (int, error) {
	if !models.HasPermission(role, models.PermOpsControl) {
		return 0, models.ErrPermissionDenied
	}
	pending, err := e.signals.List(ctx, models.SignalFilter{Status: models.SignalPending})
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	evaluated := 0
	for _, sig := range pending {
		if err := e.EvaluateSignal(ctx, sig.ID); err != nil {
			e.l.Warn("force sync evaluation failed",
				applogger.String("signal_id", sig.ID),
				applogger.Error(err),
			)
			continue
		}
		evaluated++
	}
	e.audit(ctx, actor, "consensus.force_sync", "consensus", "network", "",
		fmt.Sprintf("evaluated=%d", evaluated), "")
	return evaluated, nil
}

// AuditTrail returns the audit entries for one entity, newest first.
func (e *ConsensusEngine) AuditTrail(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	return e.audits.ListByEntity(ctx, entityType, entityID)
}

func (e *ConsensusEngine) audit(ctx context.Context, actor, action, entityType, entityID, before, after, reason string) {
	entry := &models.AuditEntry{
		Actor:       actor,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		BeforeState: before,
		AfterState:  after,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.audits.Append(ctx, entry); err != nil {
		e.metrics.RecordError("audit_append")
		e.l.Error("audit append failed",
			applogger.String("action", action),
			applogger.String("entity_id", entityID),
			applogger.Error(err),
		)
	}
}
