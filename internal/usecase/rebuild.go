package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"TrendForge/internal/domain/models"
	drepo "TrendForge/internal/domain/repository"
	applogger "TrendForge/pkg/logger"
	"TrendForge/pkg/queue"
)

// RebuildConfig tunes historical candle rebuilds.
type RebuildConfig struct {
	BucketRetries int
}

// RebuildScheduler recomputes historical candles by replaying the
// event history bucket by bucket. At most one job runs per
// (market, timeframe) pair; progress commits after every bucket so a
// failed job resumes instead of restarting.
type RebuildScheduler struct {
	jobs    drepo.RebuildJobStore
	events  drepo.EventStore
	candles drepo.CandleStore
	rules   drepo.RuleStore
	audits  drepo.AuditStore
	queue   queue.QueueService
	metrics drepo.Metrics
	l       *applogger.Logger
	cfg     RebuildConfig

	mu      sync.Mutex
	running map[string]string // pair key -> job id

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc
}

func NewRebuildScheduler(
	jobs drepo.RebuildJobStore,
	events drepo.EventStore,
	candles drepo.CandleStore,
	rules drepo.RuleStore,
	audits drepo.AuditStore,
	q queue.QueueService,
	metrics drepo.Metrics,
	l *applogger.Logger,
	cfg RebuildConfig,
) *RebuildScheduler {
	if cfg.BucketRetries <= 0 {
		cfg.BucketRetries = 3
	}
	return &RebuildScheduler{
		jobs:    jobs,
		events:  events,
		candles: candles,
		rules:   rules,
		audits:  audits,
		queue:   q,
		metrics: metrics,
		l:       l,
		cfg:     cfg,
		running: make(map[string]string),
		cancels: make(map[string]context.CancelFunc),
	}
}

func pairKey(market string, tf drepo.Timeframe) string {
	return market + "|" + string(tf)
}

// Request queues a rebuild for one (market, timeframe) range. A
// COMPLETED job over the identical range short-circuits unless force is
// set. The rule version is pinned now so a later rule change cannot
// alter what the job computes.
func (s *RebuildScheduler) Request(ctx context.Context, actor, role, market string, tf drepo.Timeframe, start, end time.Time, force bool) (*models.RebuildJob, error) {
	if !models.HasPermission(role, models.PermRebuildTrigger) {
		return nil, models.ErrPermissionDenied
	}
	if !drepo.IsValidTimeframe(string(tf)) {
		return nil, fmt.Errorf("unknown timeframe %s: %w", tf, models.ErrValidation)
	}
	start = tf.BucketStart(start)
	end = tf.BucketStart(end)
	if !start.Before(end) {
		return nil, fmt.Errorf("start must precede end: %w", models.ErrValidation)
	}

	rule, err := s.rules.Current(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("lookup rule for %s: %w", market, err)
	}

	key := pairKey(market, tf)
	s.mu.Lock()
	if jobID, busy := s.running[key]; busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("job %s already running for %s: %w", jobID, key, models.ErrRebuildInProgress)
	}
	s.mu.Unlock()

	if !force {
		if done, err := s.jobs.FindCompleted(ctx, market, tf, start, end); err == nil {
			s.l.Info("rebuild already completed, skipping",
				applogger.String("job_id", done.ID),
				applogger.String("market", market),
				applogger.String("tf", string(tf)),
			)
			return done, nil
		}
	}

	job := &models.RebuildJob{
		ID:          uuid.NewString(),
		Market:      market,
		Timeframe:   string(tf),
		StartRange:  start,
		EndRange:    end,
		Status:      models.RebuildQueued,
		Force:       force,
		RuleVersion: rule.Version,
		RequestedBy: actor,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.jobs.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("insert rebuild job: %w", err)
	}

	s.auditJob(ctx, actor, "rebuild.request", job)

	if s.queue != nil {
		if err := s.queue.PublishMessage(ctx, JobRebuildRun, models.RebuildJobPayload{JobID: job.ID}); err != nil {
			s.metrics.RecordError("queue_publish")
			s.l.Error("rebuild dispatch failed",
				applogger.String("job_id", job.ID),
				applogger.Error(err),
			)
		}
	}
	return job, nil
}

// Resume re-dispatches a FAILED job. Replay picks up after the last
// committed bucket.
func (s *RebuildScheduler) Resume(ctx context.Context, actor, role, jobID string) (*models.RebuildJob, error) {
	if !models.HasPermission(role, models.PermRebuildTrigger) {
		return nil, models.ErrPermissionDenied
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("lookup job %s: %w", jobID, err)
	}
	if job.Status != models.RebuildFailed {
		return nil, fmt.Errorf("resume from %s: %w", job.Status, models.ErrInvalidState)
	}

	job.Status = models.RebuildQueued
	job.Error = ""
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	s.auditJob(ctx, actor, "rebuild.resume", job)
	if s.queue != nil {
		if err := s.queue.PublishMessage(ctx, JobRebuildRun, models.RebuildJobPayload{JobID: job.ID}); err != nil {
			s.metrics.RecordError("queue_publish")
		}
	}
	return job, nil
}

// Cancel requests cancellation of a QUEUED or RUNNING job. A running
// replay stops at the next bucket boundary, so committed buckets stay
// committed.
func (s *RebuildScheduler) Cancel(ctx context.Context, actor, role, jobID string) (*models.RebuildJob, error) {
	if !models.HasPermission(role, models.PermRebuildTrigger) {
		return nil, models.ErrPermissionDenied
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("lookup job %s: %w", jobID, err)
	}
	switch job.Status {
	case models.RebuildQueued:
		job.Status = models.RebuildCancelled
		job.FinishedAt = time.Now().UTC()
		if err := s.jobs.Update(ctx, job); err != nil {
			return nil, fmt.Errorf("update job: %w", err)
		}
	case models.RebuildRunning:
		s.cancelMu.Lock()
		if cancel, ok := s.cancels[jobID]; ok {
			cancel()
		}
		s.cancelMu.Unlock()
	default:
		return nil, fmt.Errorf("cancel from %s: %w", job.Status, models.ErrInvalidState)
	}
	s.auditJob(ctx, actor, "rebuild.cancel", job)
	return job, nil
}

// GetJob returns one rebuild job.
func (s *RebuildScheduler) GetJob(ctx context.Context, jobID string) (*models.RebuildJob, error) {
	return s.jobs.Get(ctx, jobID)
}

// Run executes one job to completion. Invoked by the queue worker.
func (s *RebuildScheduler) Run(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("lookup job %s: %w", jobID, err)
	}
	if job.Status != models.RebuildQueued {
		// cancelled or already picked up elsewhere
		return nil
	}
	tf := drepo.Timeframe(job.Timeframe)

	key := pairKey(job.Market, tf)
	s.mu.Lock()
	if other, busy := s.running[key]; busy && other != job.ID {
		s.mu.Unlock()
		return fmt.Errorf("pair %s busy with job %s: %w", key, other, models.ErrRebuildInProgress)
	}
	s.running[key] = job.ID
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, key)
		s.mu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancels[job.ID] = cancel
	s.cancelMu.Unlock()
	defer func() {
		cancel()
		s.cancelMu.Lock()
		delete(s.cancels, job.ID)
		s.cancelMu.Unlock()
	}()

	job.Status = models.RebuildRunning
	job.StartedAt = time.Now().UTC()
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	s.l.Info("rebuild started",
		applogger.String("job_id", job.ID),
		applogger.String("market", job.Market),
		applogger.String("tf", job.Timeframe),
		applogger.Int("rule_version", job.RuleVersion),
	)

	return s.replay(runCtx, job, tf)
}

// replay walks the range bucket by bucket in chronological order.
func (s *RebuildScheduler) replay(ctx context.Context, job *models.RebuildJob, tf drepo.Timeframe) error {
	rule, err := s.rules.GetVersion(ctx, job.Market, job.RuleVersion)
	if err != nil {
		return s.fail(job, fmt.Errorf("lookup rule v%d: %w", job.RuleVersion, err))
	}

	cursor := job.StartRange
	if !job.ProgressCursor.IsZero() {
		// resume after the last committed bucket
		cursor = job.ProgressCursor.Add(tf.Duration())
	}

	var prevClose float64
	var prevBucket time.Time
	var havePrev bool
	if !job.ProgressCursor.IsZero() {
		if prev, err := s.candles.Get(ctx, job.Market, tf, job.ProgressCursor); err == nil {
			prevClose = prev.Close
			prevBucket = prev.BucketStart
			havePrev = true
		}
	}

	for bucket := cursor; bucket.Before(job.EndRange); bucket = bucket.Add(tf.Duration()) {
		select {
		case <-ctx.Done():
			job.Status = models.RebuildCancelled
			job.FinishedAt = time.Now().UTC()
			if err := s.jobs.Update(context.Background(), job); err != nil {
				return fmt.Errorf("update cancelled job: %w", err)
			}
			s.l.Info("rebuild cancelled at bucket boundary",
				applogger.String("job_id", job.ID),
			)
			return nil
		default:
		}

		var candle *models.Candle
		var bErr error
		for attempt := 0; attempt < s.cfg.BucketRetries; attempt++ {
			candle, bErr = s.rebuildBucket(ctx, job.Market, tf, bucket, rule, prevClose, prevBucket, havePrev)
			if bErr == nil {
				break
			}
		}
		if bErr != nil {
			return s.fail(job, fmt.Errorf("bucket %s: %w", bucket.Format(time.RFC3339), bErr))
		}

		if candle != nil {
			prevClose = candle.Close
			prevBucket = candle.BucketStart
			havePrev = true
		}

		job.ProgressCursor = bucket
		if err := s.jobs.Update(ctx, job); err != nil {
			return s.fail(job, fmt.Errorf("commit cursor: %w", err))
		}
		s.metrics.RecordRebuildBucket(job.Market, job.Timeframe)
	}

	job.Status = models.RebuildCompleted
	job.FinishedAt = time.Now().UTC()
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("update completed job: %w", err)
	}
	s.l.Info("rebuild completed",
		applogger.String("job_id", job.ID),
		applogger.String("market", job.Market),
		applogger.String("tf", job.Timeframe),
	)
	return nil
}

// rebuildBucket recomputes one bucket from the event history and
// overwrites the stored candle. Buckets with no events are left alone.
// Signal events that were not live-eligible at append time are skipped,
// so the replay reproduces exactly what live aggregation computed.
func (s *RebuildScheduler) rebuildBucket(ctx context.Context, market string, tf drepo.Timeframe, bucket time.Time, rule *models.AggregationRule, prevClose float64, prevBucket time.Time, havePrev bool) (*models.Candle, error) {
	events, err := s.events.GetRange(ctx, market, bucket, bucket.Add(tf.Duration()))
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	builder := newCandleBuilder(market, tf, rule)
	if havePrev {
		builder.seedPrevClose(prevClose, prevBucket)
	}
	for _, e := range events {
		if e.Kind == models.EventSignal && !e.LiveEligible {
			continue
		}
		builder.Apply(e)
	}
	candle := builder.Current()
	if candle == nil {
		return nil, nil
	}
	candle.IsFinal = true
	if err := s.candles.Upsert(ctx, candle); err != nil {
		return nil, fmt.Errorf("upsert candle: %w", err)
	}
	return candle, nil
}

func (s *RebuildScheduler) fail(job *models.RebuildJob, cause error) error {
	job.Status = models.RebuildFailed
	job.Error = cause.Error()
	job.FinishedAt = time.Now().UTC()
	if err := s.jobs.Update(context.Background(), job); err != nil {
		return fmt.Errorf("update failed job: %w", err)
	}
	s.metrics.RecordError("rebuild")
	s.l.Error("rebuild failed",
		applogger.String("job_id", job.ID),
		applogger.Error(cause),
	)
	return cause
}

func (s *RebuildScheduler) auditJob(ctx context.Context, actor, action string, job *models.RebuildJob) {
	entry := &models.AuditEntry{
		Actor:      actor,
		Action:     action,
		EntityType: "rebuild",
		EntityID:   job.ID,
		AfterState: string(job.Status),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.audits.Append(ctx, entry); err != nil {
		s.l.Error("audit append failed",
			applogger.String("job_id", job.ID),
			applogger.Error(err),
		)
	}
}
