package usecase

import (
	"context"
	"fmt"

	"TrendForge/internal/domain/models"
	"TrendForge/pkg/queue"
)

// Queue message types.
const (
	JobConsensusEvaluate = "consensus.evaluate"
	JobRebuildRun        = "rebuild.run"
)

// ConsensusEvalJob re-evaluates one signal's consensus state.
type ConsensusEvalJob struct {
	engine *ConsensusEngine
}

func NewConsensusEvalJob(engine *ConsensusEngine) *ConsensusEvalJob {
	return &ConsensusEvalJob{engine: engine}
}

func (j *ConsensusEvalJob) Name() string { return "consensus-evaluate" }
func (j *ConsensusEvalJob) Type() string { return JobConsensusEvaluate }

func (j *ConsensusEvalJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[models.ConsensusEvalPayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	if p.SignalID == "" {
		return fmt.Errorf("empty signal id")
	}
	return j.engine.EvaluateSignal(ctx, p.SignalID)
}

// RebuildRunJob executes one queued rebuild job.
type RebuildRunJob struct {
	scheduler *RebuildScheduler
}

func NewRebuildRunJob(scheduler *RebuildScheduler) *RebuildRunJob {
	return &RebuildRunJob{scheduler: scheduler}
}

func (j *RebuildRunJob) Name() string { return "rebuild-run" }
func (j *RebuildRunJob) Type() string { return JobRebuildRun }

func (j *RebuildRunJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[models.RebuildJobPayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	if p.JobID == "" {
		return fmt.Errorf("empty job id")
	}
	return j.scheduler.Run(ctx, p.JobID)
}

var (
	_ queue.Job = (*ConsensusEvalJob)(nil)
	_ queue.Job = (*RebuildRunJob)(nil)
)
