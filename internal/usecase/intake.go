package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
	applogger "TrendForge/pkg/logger"
	"TrendForge/pkg/queue"
)

// SignalIntake validates raw measurements and opens PENDING signals for
// consensus.
type SignalIntake struct {
	sources drepo.SourceStore
	signals drepo.SignalStore
	audits  drepo.AuditStore
	queue   queue.QueueService
	metrics drepo.Metrics
	l       *applogger.Logger

	symbols     map[string]struct{}
	maintenance atomic.Bool
}

func NewSignalIntake(
	sources drepo.SourceStore,
	signals drepo.SignalStore,
	audits drepo.AuditStore,
	q queue.QueueService,
	metrics drepo.Metrics,
	l *applogger.Logger,
	symbols []string,
) *SignalIntake {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &SignalIntake{
		sources: sources,
		signals: signals,
		audits:  audits,
		queue:   q,
		metrics: metrics,
		l:       l,
		symbols: set,
	}
}

// SetMaintenance toggles maintenance mode. While on, intake rejects new
// measurements; consensus and aggregation drain what is already in
// flight.
func (i *SignalIntake) SetMaintenance(ctx context.Context, actor, role string, on bool, reason string) error {
	if !models.HasPermission(role, models.PermOpsControl) {
		return models.ErrPermissionDenied
	}
	before := i.maintenance.Load()
	i.maintenance.Store(on)
	if i.audits != nil {
		entry := &models.AuditEntry{
			Actor:       actor,
			Action:      "intake.maintenance",
			EntityType:  "intake",
			EntityID:    "maintenance",
			BeforeState: fmt.Sprintf("enabled=%t", before),
			AfterState:  fmt.Sprintf("enabled=%t", on),
			Reason:      reason,
			CreatedAt:   time.Now().UTC(),
		}
		if err := i.audits.Append(ctx, entry); err != nil {
			i.l.Error("audit append failed", applogger.Error(err))
		}
	}
	i.l.Warn("maintenance mode switched",
		applogger.String("actor", actor),
		applogger.Bool("enabled", on),
	)
	return nil
}

// MaintenanceOn reports whether intake is paused.
func (i *SignalIntake) MaintenanceOn() bool {
	return i.maintenance.Load()
}

// Ingest records one raw measurement as a PENDING signal and schedules
// a consensus evaluation. Measurements from an OFFLINE source are
// rejected unless the source runs in SEED mode, which exists exactly
// for replaying historical batches.
func (i *SignalIntake) Ingest(ctx context.Context, sourceKey, symbol string, detectedAt time.Time, metrics models.RawMetrics) (*models.OracleSignal, error) {
	if i.maintenance.Load() {
		return nil, fmt.Errorf("intake in maintenance: %w", models.ErrInvalidState)
	}
	if _, ok := i.symbols[symbol]; !ok {
		return nil, fmt.Errorf("symbol %s: %w", symbol, models.ErrInvalidSymbol)
	}

	src, err := i.sources.Get(ctx, sourceKey)
	if err != nil {
		if err != models.ErrNotFound {
			return nil, fmt.Errorf("lookup source %s: %w", sourceKey, err)
		}
		// first measurement from a new source registers it DEGRADED
		// until an operator confirms its health
		src = &models.OracleSource{
			SourceKey: sourceKey,
			Health:    models.HealthDegraded,
			Mode:      models.ModeSimulated,
		}
		if err := i.sources.Upsert(ctx, src); err != nil {
			return nil, fmt.Errorf("register source %s: %w", sourceKey, err)
		}
		i.l.Info("auto-registered oracle source",
			applogger.String("source", sourceKey),
		)
	}

	if src.Health == models.HealthOffline && src.Mode != models.ModeSeed {
		return nil, fmt.Errorf("source %s is OFFLINE: %w", sourceKey, models.ErrInvalidSource)
	}

	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}
	sig := &models.OracleSignal{
		ID:         uuid.NewString(),
		SourceKey:  sourceKey,
		Symbol:     symbol,
		DetectedAt: detectedAt.UTC(),
		Metrics:    metrics,
		Status:     models.SignalPending,
	}
	if err := i.signals.Insert(ctx, sig); err != nil {
		return nil, fmt.Errorf("insert signal: %w", err)
	}
	i.metrics.RecordSignalIngested(sourceKey)

	// hand the evaluation to the queue; ingestion never blocks on
	// consensus
	if i.queue != nil {
		payload := models.ConsensusEvalPayload{SignalID: sig.ID}
		if err := i.queue.PublishMessage(ctx, JobConsensusEvaluate, payload); err != nil {
			i.metrics.RecordError("queue_publish")
			i.l.Warn("consensus evaluation enqueue failed",
				applogger.String("signal_id", sig.ID),
				applogger.Error(err),
			)
		}
	}

	i.l.Debug("signal ingested",
		applogger.String("signal_id", sig.ID),
		applogger.String("source", sourceKey),
		applogger.String("symbol", symbol),
	)
	return sig, nil
}
