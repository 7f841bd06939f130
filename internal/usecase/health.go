package usecase

import (
	"context"
	"fmt"
	"time"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
	applogger "TrendForge/pkg/logger"
)

// OracleRegistry manages the source and validator node registries.
// Health and mode transitions here gate which measurements reach live
// aggregation.
type OracleRegistry struct {
	sources drepo.SourceStore
	nodes   drepo.NodeStore
	audits  drepo.AuditStore
	l       *applogger.Logger
}

func NewOracleRegistry(sources drepo.SourceStore, nodes drepo.NodeStore, audits drepo.AuditStore, l *applogger.Logger) *OracleRegistry {
	return &OracleRegistry{sources: sources, nodes: nodes, audits: audits, l: l}
}

// RegisterSource creates or updates a source entry.
func (r *OracleRegistry) RegisterSource(ctx context.Context, actor, role, sourceKey string, mode models.SourceMode, notes string) (*models.OracleSource, error) {
	if !models.HasPermission(role, models.PermOracleUpdate) {
		return nil, models.ErrPermissionDenied
	}
	src, err := r.sources.Get(ctx, sourceKey)
	if err != nil && err != models.ErrNotFound {
		return nil, fmt.Errorf("lookup source %s: %w", sourceKey, err)
	}
	before := ""
	if src != nil {
		before = string(src.Mode)
	} else {
		src = &models.OracleSource{SourceKey: sourceKey, Health: models.HealthDegraded}
	}
	src.Mode = mode
	src.Notes = notes
	if err := r.sources.Upsert(ctx, src); err != nil {
		return nil, fmt.Errorf("upsert source %s: %w", sourceKey, err)
	}
	r.audit(ctx, actor, "source.register", "source", sourceKey, before, string(mode), notes)
	return src, nil
}

// UpdateHealth sets a source's health status from an external probe or
// an operator. Sources are never deleted; OFFLINE is the deepest state.
func (r *OracleRegistry) UpdateHealth(ctx context.Context, actor, role, sourceKey string, health models.HealthStatus, confidence, risk *float64) (*models.OracleSource, error) {
	if !models.HasPermission(role, models.PermOracleUpdate) {
		return nil, models.ErrPermissionDenied
	}
	src, err := r.sources.Get(ctx, sourceKey)
	if err != nil {
		return nil, fmt.Errorf("lookup source %s: %w", sourceKey, err)
	}

	before := string(src.Health)
	src.Health = health
	src.LastHealthCheck = time.Now().UTC()
	if confidence != nil {
		src.ConfidenceScore = models.ClampScore(*confidence)
	}
	if risk != nil {
		src.DeceptionRisk = models.ClampScore(*risk)
	}
	if err := r.sources.Upsert(ctx, src); err != nil {
		return nil, fmt.Errorf("upsert source %s: %w", sourceKey, err)
	}

	r.audit(ctx, actor, "source.health", "source", sourceKey, before, string(health), "")
	if health == models.HealthOffline {
		r.l.Warn("oracle source marked OFFLINE",
			applogger.String("source", sourceKey),
			applogger.String("actor", actor),
		)
	}
	return src, nil
}

// SetMode switches a source between LIVE, SIMULATED and SEED.
func (r *OracleRegistry) SetMode(ctx context.Context, actor, role, sourceKey string, mode models.SourceMode) (*models.OracleSource, error) {
	if !models.HasPermission(role, models.PermOracleUpdate) {
		return nil, models.ErrPermissionDenied
	}
	src, err := r.sources.Get(ctx, sourceKey)
	if err != nil {
		return nil, fmt.Errorf("lookup source %s: %w", sourceKey, err)
	}
	before := string(src.Mode)
	src.Mode = mode
	if err := r.sources.Upsert(ctx, src); err != nil {
		return nil, fmt.Errorf("upsert source %s: %w", sourceKey, err)
	}
	r.audit(ctx, actor, "source.mode", "source", sourceKey, before, string(mode), "")
	return src, nil
}

// GetSource returns one source entry.
func (r *OracleRegistry) GetSource(ctx context.Context, sourceKey string) (*models.OracleSource, error) {
	return r.sources.Get(ctx, sourceKey)
}

// ListSources returns all registered sources.
func (r *OracleRegistry) ListSources(ctx context.Context) ([]*models.OracleSource, error) {
	return r.sources.List(ctx)
}

// AddNode registers a validator node with a starting trust score.
func (r *OracleRegistry) AddNode(ctx context.Context, actor, role, nodeID, region, keyFingerprint string, trust float64) (*models.ValidatorNode, error) {
	if !models.HasPermission(role, models.PermNodeManage) {
		return nil, models.ErrPermissionDenied
	}
	node := &models.ValidatorNode{
		NodeID:         nodeID,
		Region:         region,
		TrustScore:     models.ClampScore(trust),
		Enabled:        true,
		KeyFingerprint: keyFingerprint,
	}
	if err := r.nodes.Insert(ctx, node); err != nil {
		return nil, fmt.Errorf("insert node %s: %w", nodeID, err)
	}
	r.audit(ctx, actor, "node.add", "node", nodeID, "", "enabled", "")
	return node, nil
}

// SetNodeEnabled enables or disables a node without losing its history.
func (r *OracleRegistry) SetNodeEnabled(ctx context.Context, actor, role, nodeID string, enabled bool) (*models.ValidatorNode, error) {
	if !models.HasPermission(role, models.PermNodeManage) {
		return nil, models.ErrPermissionDenied
	}
	node, err := r.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("lookup node %s: %w", nodeID, err)
	}
	before := fmt.Sprintf("enabled=%t", node.Enabled)
	node.Enabled = enabled
	if err := r.nodes.Update(ctx, node); err != nil {
		return nil, fmt.Errorf("update node %s: %w", nodeID, err)
	}
	r.audit(ctx, actor, "node.set_enabled", "node", nodeID, before, fmt.Sprintf("enabled=%t", enabled), "")
	return node, nil
}

// RestartNode re-enables a node and stamps the restart time. Restarted
// nodes keep their trust score; a restart recovers a stuck scorer, it
// is not a trust reset.
func (r *OracleRegistry) RestartNode(ctx context.Context, actor, role, nodeID string) (*models.ValidatorNode, error) {
	if !models.HasPermission(role, models.PermNodeManage) {
		return nil, models.ErrPermissionDenied
	}
	node, err := r.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("lookup node %s: %w", nodeID, err)
	}
	before := fmt.Sprintf("enabled=%t", node.Enabled)
	node.Enabled = true
	node.LastRestartAt = time.Now().UTC()
	if err := r.nodes.Update(ctx, node); err != nil {
		return nil, fmt.Errorf("update node %s: %w", nodeID, err)
	}
	r.audit(ctx, actor, "node.restart", "node", nodeID, before, "restarted", "")
	return node, nil
}

// RotateNodeKey replaces a node's key fingerprint.
func (r *OracleRegistry) RotateNodeKey(ctx context.Context, actor, role, nodeID, keyFingerprint string) (*models.ValidatorNode, error) {
	if !models.HasPermission(role, models.PermNodeManage) {
		return nil, models.ErrPermissionDenied
	}
	node, err := r.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("lookup node %s: %w", nodeID, err)
	}
	before := node.KeyFingerprint
	node.KeyFingerprint = keyFingerprint
	if err := r.nodes.Update(ctx, node); err != nil {
		return nil, fmt.Errorf("update node %s: %w", nodeID, err)
	}
	r.audit(ctx, actor, "node.rotate_key", "node", nodeID, before, keyFingerprint, "")
	return node, nil
}

// ListNodes returns enabled validator nodes.
func (r *OracleRegistry) ListNodes(ctx context.Context) ([]*models.ValidatorNode, error) {
	return r.nodes.ListEnabled(ctx)
}

func (r *OracleRegistry) audit(ctx context.Context, actor, action, entityType, entityID, before, after, reason string) {
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
	if err := r.audits.Append(ctx, entry); err != nil {
		r.l.Error("audit append failed",
			applogger.String("action", action),
			applogger.String("entity_id", entityID),
			applogger.Error(err),
		)
	}
}
