package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendForge/internal/domain/models"
	"TrendForge/internal/repository"
	applogger "TrendForge/pkg/logger"
)

func newRegistry(t *testing.T) (*OracleRegistry, *repository.MemoryNodeStore) {
	t.Helper()
	nodes := repository.NewMemoryNodeStore()
	reg := NewOracleRegistry(
		repository.NewMemorySourceStore(), nodes,
		repository.NewMemoryAuditStore(), applogger.Nop(),
	)
	return reg, nodes
}

func TestRegistry_RegisterSourceStartsDegraded(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	src, err := reg.RegisterSource(ctx, "alice", "admin", "src-tiktok", models.ModeSimulated, "new feed")
	require.NoError(t, err)
	assert.Equal(t, models.HealthDegraded, src.Health)
	assert.Equal(t, models.ModeSimulated, src.Mode)
	assert.False(t, src.LiveEligible())
}

func TestRegistry_HealthAndModeGateLiveEligibility(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	_, err := reg.RegisterSource(ctx, "alice", "admin", "src-x", models.ModeLive, "")
	require.NoError(t, err)

	conf := 88.0
	risk := 150.0
	src, err := reg.UpdateHealth(ctx, "alice", "admin", "src-x", models.HealthActive, &conf, &risk)
	require.NoError(t, err)
	assert.True(t, src.LiveEligible())
	assert.Equal(t, 88.0, src.ConfidenceScore)
	// rolling scores are clamped to the 0-100 scale
	assert.Equal(t, 100.0, src.DeceptionRisk)
	assert.False(t, src.LastHealthCheck.IsZero())

	src, err = reg.UpdateHealth(ctx, "alice", "admin", "src-x", models.HealthOffline, nil, nil)
	require.NoError(t, err)
	assert.False(t, src.LiveEligible())

	src, err = reg.SetMode(ctx, "alice", "admin", "src-x", models.ModeSeed)
	require.NoError(t, err)
	assert.Equal(t, models.ModeSeed, src.Mode)
}

func TestRegistry_PermissionChecks(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	_, err := reg.RegisterSource(ctx, "bob", "reviewer", "src-x", models.ModeLive, "")
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	_, err = reg.AddNode(ctx, "bob", "operator", "node-1", "eu-west", "fp", 50)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestRegistry_NodeLifecycle(t *testing.T) {
	reg, nodes := newRegistry(t)
	ctx := context.Background()

	node, err := reg.AddNode(ctx, "alice", "admin", "node-1", "eu-west", "fp-1", 120)
	require.NoError(t, err)
	assert.True(t, node.Enabled)
	// starting trust is clamped
	assert.Equal(t, 100.0, node.TrustScore)

	_, err = reg.AddNode(ctx, "alice", "admin", "node-1", "eu-west", "fp-1", 50)
	assert.ErrorIs(t, err, models.ErrDuplicate)

	node, err = reg.SetNodeEnabled(ctx, "alice", "admin", "node-1", false)
	require.NoError(t, err)
	assert.False(t, node.Enabled)

	// disabled nodes keep their record but leave the active roster
	listed, err := reg.ListNodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
	stored, err := nodes.Get(ctx, "node-1")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)

	node, err = reg.RotateNodeKey(ctx, "alice", "admin", "node-1", "fp-2")
	require.NoError(t, err)
	assert.Equal(t, "fp-2", node.KeyFingerprint)
}

func TestRegistry_RestartNodeKeepsTrust(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	_, err := reg.AddNode(ctx, "alice", "admin", "node-1", "eu-west", "fp-1", 64)
	require.NoError(t, err)
	_, err = reg.SetNodeEnabled(ctx, "alice", "admin", "node-1", false)
	require.NoError(t, err)

	_, err = reg.RestartNode(ctx, "bob", "operator", "node-1")
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	node, err := reg.RestartNode(ctx, "alice", "admin", "node-1")
	require.NoError(t, err)
	assert.True(t, node.Enabled)
	assert.False(t, node.LastRestartAt.IsZero())
	assert.Equal(t, 64.0, node.TrustScore)
}
