package repository

import (
	"context"
	"time"

	"TrendForge/internal/domain/models"
)

// SourceStore provides access to the oracle source registry.
type SourceStore interface {
	// Upsert inserts or replaces a source keyed by SourceKey.
	Upsert(ctx context.Context, s *models.OracleSource) error

	// Get retrieves a source. Returns models.ErrNotFound if unknown.
	Get(ctx context.Context, sourceKey string) (*models.OracleSource, error)

	// List returns all registered sources.
	List(ctx context.Context) ([]*models.OracleSource, error)
}

// NodeStore provides access to the validator node registry.
type NodeStore interface {
	// Insert adds a node. Returns models.ErrDuplicate if the id exists.
	Insert(ctx context.Context, n *models.ValidatorNode) error

	// Get retrieves a node. Returns models.ErrNotFound if unknown.
	Get(ctx context.Context, nodeID string) (*models.ValidatorNode, error)

	// Update replaces a node. Returns models.ErrNotFound if unknown.
	Update(ctx context.Context, n *models.ValidatorNode) error

	// ListEnabled returns enabled nodes ordered by node id.
	ListEnabled(ctx context.Context) ([]*models.ValidatorNode, error)
}

// SignalStore provides access to oracle signals.
type SignalStore interface {
	// Insert adds a signal. Returns models.ErrDuplicate if the id exists.
	Insert(ctx context.Context, s *models.OracleSignal) error

	// Get retrieves a signal. Returns models.ErrNotFound if unknown.
	Get(ctx context.Context, id string) (*models.OracleSignal, error)

	// Update replaces a signal. Returns models.ErrNotFound if unknown.
	Update(ctx context.Context, s *models.OracleSignal) error

	// List returns signals matching the filter, newest first. Status
	// and source narrow the set; MaxConfidence and MinRisk select the
	// low-confidence/high-risk review queue.
	List(ctx context.Context, f models.SignalFilter) ([]*models.OracleSignal, error)

	// ListPendingOlderThan returns PENDING signals created before cutoff.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.OracleSignal, error)
}

// ConsensusSettingsStore keeps versioned consensus thresholds. The
// highest version is current; old versions are retained for audit.
type ConsensusSettingsStore interface {
	// Append stores a new settings version and returns it. The version
	// number is assigned by the store.
	Append(ctx context.Context, s *models.ConsensusSettings) (*models.ConsensusSettings, error)

	// Current returns the latest settings version, or models.ErrNotFound
	// when none was ever written.
	Current(ctx context.Context) (*models.ConsensusSettings, error)
}

// AttestationStore provides access to consensus attestations.
type AttestationStore interface {
	// Put inserts or replaces the attestation for (signal, node).
	Put(ctx context.Context, a *models.ConsensusAttestation) error

	// GetBySignal returns all attestations for a signal ordered by node id.
	GetBySignal(ctx context.Context, signalID string) ([]*models.ConsensusAttestation, error)
}

// RuleStore provides access to versioned aggregation rules.
type RuleStore interface {
	// Append stores a new rule version for the market and returns it.
	// The version number is assigned by the store.
	Append(ctx context.Context, r *models.AggregationRule) (*models.AggregationRule, error)

	// Current returns the latest rule version for a market.
	// Returns models.ErrNotFound if the market has no rule.
	Current(ctx context.Context, market string) (*models.AggregationRule, error)

	// GetVersion returns a specific rule version for a market.
	GetVersion(ctx context.Context, market string, version int) (*models.AggregationRule, error)

	// Markets returns all markets that have at least one rule.
	Markets(ctx context.Context) ([]string, error)
}

// CandleStore provides access to candle buckets.
type CandleStore interface {
	// Upsert writes a candle keyed by (market, timeframe, bucket start).
	Upsert(ctx context.Context, c *models.Candle) error

	// Get retrieves one candle. Returns models.ErrNotFound if absent.
	Get(ctx context.Context, market string, tf Timeframe, bucketStart time.Time) (*models.Candle, error)

	// GetRange retrieves candles within [from, to] ordered by bucket ASC.
	GetRange(ctx context.Context, market string, tf Timeframe, from, to time.Time) ([]*models.Candle, error)
}

// EventStore keeps the raw signal/trade event history replayed by rebuilds.
type EventStore interface {
	// Append records one aggregation input event.
	Append(ctx context.Context, e *models.AggregationEvent) error

	// GetRange returns events for a market within [from, to) ordered by
	// timestamp ASC.
	GetRange(ctx context.Context, market string, from, to time.Time) ([]*models.AggregationEvent, error)
}

// RebuildJobStore provides access to rebuild jobs.
type RebuildJobStore interface {
	// Insert adds a job. Returns models.ErrDuplicate if the id exists.
	Insert(ctx context.Context, j *models.RebuildJob) error

	// Get retrieves a job. Returns models.ErrNotFound if unknown.
	Get(ctx context.Context, id string) (*models.RebuildJob, error)

	// Update replaces a job. Returns models.ErrNotFound if unknown.
	Update(ctx context.Context, j *models.RebuildJob) error

	// FindCompleted returns a COMPLETED job with the identical range for
	// the pair, or models.ErrNotFound.
	FindCompleted(ctx context.Context, market string, tf Timeframe, start, end time.Time) (*models.RebuildJob, error)
}

// AuditStore is the append-only audit trail.
type AuditStore interface {
	// Append records an entry. Entries are never updated or deleted.
	Append(ctx context.Context, e *models.AuditEntry) error

	// ListByEntity returns entries for one entity, newest first.
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error)
}

// SignalPublisher fans out approved signals to downstream consumers.
type SignalPublisher interface {
	PublishApproved(ctx context.Context, s *models.OracleSignal) error
	Close() error
}

// OracleStream is a live websocket feed of raw engagement measurements
// from one oracle source.
type OracleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawMetricEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Metrics records operational measurements.
type Metrics interface {
	RecordSignalIngested(sourceKey string)
	RecordAttestation(nodeID string)
	RecordConsensusOutcome(outcome string)
	RecordCandleUpdate(market, tf string)
	RecordRebuildBucket(market, tf string)
	RecordNodeTrust(nodeID string, trust float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
