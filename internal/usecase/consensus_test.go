package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendForge/internal/domain/models"
)

func TestConsensus_QuorumReachedApproves(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()
	f.addNode(t, "node-a", 50)
	f.addNode(t, "node-b", 50)
	f.addNode(t, "node-c", 50)
	f.addPendingSignal(t, "sig-1")

	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-a", 72, false))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-b", 75, false))

	// two attestations are below quorum, nothing resolves yet
	sig, err := f.signals.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, models.SignalPending, sig.Status)

	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-c", 80, false))

	sig, err = f.signals.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, models.SignalApproved, sig.Status)
	assert.Equal(t, 75.0, sig.ConfidenceScore)
	assert.False(t, sig.ResolvedAt.IsZero())
	assert.Equal(t, 1, f.sink.count())
}

func TestConsensus_LowConfidenceFlagsForReview(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()
	f.addNode(t, "node-a", 50)
	f.addNode(t, "node-b", 50)
	f.addNode(t, "node-c", 50)
	f.addPendingSignal(t, "sig-1")

	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-a", 40, false))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-b", 42, false))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-c", 44, false))

	// a threshold miss goes to the review queue, never auto-REJECTED
	sig, err := f.signals.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, models.SignalFlagged, sig.Status)
	assert.True(t, sig.RequiresReview)
	assert.Contains(t, sig.FlagReason, "below approval threshold")
	assert.True(t, sig.ResolvedAt.IsZero())
	assert.Zero(t, f.sink.count())

	// a reviewer can still resolve it either way
	resolved, err := f.engine.ApproveSignal(ctx, "reviewer-1", "reviewer", "sig-1", "manual override")
	require.NoError(t, err)
	assert.Equal(t, models.SignalApproved, resolved.Status)
	assert.Equal(t, 1, f.sink.count())
}

func TestConsensus_HighRiskFlags(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()
	f.addNode(t, "node-a", 50)
	f.addNode(t, "node-b", 50)
	f.addNode(t, "node-c", 50)
	f.addPendingSignal(t, "sig-1")

	// wide dispersion plus two deception flags
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-a", 20, true))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-b", 90, true))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-c", 55, false))

	sig, err := f.signals.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, models.SignalFlagged, sig.Status)
	assert.True(t, sig.RequiresReview)
	assert.Contains(t, sig.FlagReason, "deception risk")
	assert.Zero(t, f.sink.count())

	// flagged is not terminal, trust untouched
	node, err := f.nodes.Get(ctx, "node-a")
	require.NoError(t, err)
	assert.Equal(t, 50.0, node.TrustScore)
}

func TestConsensus_TrustUpdatesOnTerminal(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()
	f.addNode(t, "node-a", 50)
	f.addNode(t, "node-b", 50)
	f.addNode(t, "node-c", 50)
	f.addPendingSignal(t, "sig-1")

	// consensus lands on 75; node-c sits outside epsilon
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-a", 72, false))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-b", 75, false))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-c", 95, false))

	sig, err := f.signals.Get(ctx, "sig-1")
	require.NoError(t, err)
	require.Equal(t, models.SignalApproved, sig.Status)

	accurate, err := f.nodes.Get(ctx, "node-a")
	require.NoError(t, err)
	assert.InDelta(t, 55.0, accurate.TrustScore, 1e-9)

	outlier, err := f.nodes.Get(ctx, "node-c")
	require.NoError(t, err)
	assert.InDelta(t, 45.0, outlier.TrustScore, 1e-9)
}

func TestConsensus_ResubmissionReplaces(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()
	f.addNode(t, "node-a", 50)
	f.addNode(t, "node-b", 50)
	f.addNode(t, "node-c", 50)
	f.addPendingSignal(t, "sig-1")

	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-a", 10, false))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-a", 80, false))

	atts, err := f.atts.GetBySignal(ctx, "sig-1")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, 80.0, atts[0].LocalConfidence)

	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-b", 78, false))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-c", 82, false))

	sig, err := f.signals.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, models.SignalApproved, sig.Status)
	assert.Equal(t, 80.0, sig.ConfidenceScore)
}

func TestConsensus_AttestationRejectedAfterResolution(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()
	f.addNode(t, "node-a", 50)
	f.addNode(t, "node-b", 50)
	f.addNode(t, "node-c", 50)
	f.addNode(t, "node-d", 50)
	f.addPendingSignal(t, "sig-1")

	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-a", 75, false))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-b", 75, false))
	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-c", 75, false))

	err := f.engine.SubmitAttestation(ctx, "sig-1", "node-d", 75, false)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestConsensus_DisabledNodeCannotAttest(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()
	require.NoError(t, f.nodes.Insert(ctx, &models.ValidatorNode{NodeID: "node-x", TrustScore: 50}))
	f.addPendingSignal(t, "sig-1")

	err := f.engine.SubmitAttestation(ctx, "sig-1", "node-x", 75, false)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestConsensus_ConfidenceClamped(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()
	f.addNode(t, "node-a", 50)
	f.addPendingSignal(t, "sig-1")

	require.NoError(t, f.engine.SubmitAttestation(ctx, "sig-1", "node-a", 150, false))

	atts, err := f.atts.GetBySignal(ctx, "sig-1")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, 100.0, atts[0].LocalConfidence)
}

func TestConsensus_SweepFlagsStalePending(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()

	stale := &models.OracleSignal{
		ID:        "sig-stale",
		SourceKey: "src-alpha",
		Symbol:    "MEME-PEPE",
		Status:    models.SignalPending,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, f.signals.Insert(ctx, stale))
	f.addPendingSignal(t, "sig-fresh")

	f.engine.SweepExpired(ctx)

	got, err := f.signals.Get(ctx, "sig-stale")
	require.NoError(t, err)
	assert.Equal(t, models.SignalFlagged, got.Status)
	assert.True(t, got.RequiresReview)
	assert.Equal(t, "insufficient quorum before attestation timeout", got.FlagReason)

	fresh, err := f.signals.Get(ctx, "sig-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.SignalPending, fresh.Status)
}

func TestConsensus_EvaluateSignalIgnoresResolved(t *testing.T) {
	f := newEngineFixture(t, defaultConsensusConfig())
	ctx := context.Background()
	sig := f.addPendingSignal(t, "sig-1")
	sig.Status = models.SignalRejected
	require.NoError(t, f.signals.Update(ctx, sig))

	assert.NoError(t, f.engine.EvaluateSignal(ctx, "sig-1"))
}
