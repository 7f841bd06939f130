package models

import "time"

// RebuildStatus is the lifecycle state of a rebuild job.
//
// QUEUED -> RUNNING -> {COMPLETED, FAILED, CANCELLED}
type RebuildStatus string

const (
	RebuildQueued    RebuildStatus = "QUEUED"
	RebuildRunning   RebuildStatus = "RUNNING"
	RebuildCompleted RebuildStatus = "COMPLETED"
	RebuildFailed    RebuildStatus = "FAILED"
	RebuildCancelled RebuildStatus = "CANCELLED"
)

// Terminal reports whether the job can no longer change state.
func (s RebuildStatus) Terminal() bool {
	return s == RebuildCompleted || s == RebuildFailed || s == RebuildCancelled
}

// RebuildJob recomputes historical candles for one (market, timeframe)
// range. ProgressCursor is the last successfully committed bucket
// start; a retry after FAILED resumes at the next bucket.
type RebuildJob struct {
	ID             string
	Market         string
	Timeframe      string
	StartRange     time.Time
	EndRange       time.Time
	Status         RebuildStatus
	ProgressCursor time.Time
	Force          bool
	RuleVersion    int // pinned at job creation for determinism
	Error          string
	RequestedBy    string
	CreatedAt      time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
}
