package orchestrator

import (
	"context"
	"fmt"

	"github.com/vantari/taskweave/internal/config"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// Orchestrator drives one request end to end: plan, execute, aggregate,
// notify. Two orchestrations share no mutable state; everything lives on
// the per-request plan.
type Orchestrator struct {
	planner    *Planner
	scheduler  *Scheduler
	aggregator *Aggregator
	cfg        config.OrchestratorConfig
	logger     *zap.Logger
}

// New wires the orchestration pipeline.
func New(planner *Planner, scheduler *Scheduler, aggregator *Aggregator,
	cfg config.OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		planner:    planner,
		scheduler:  scheduler,
		aggregator: aggregator,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process handles one user request. It always runs to a closing
// notification, even when every task fails, and never returns an error
// to the caller. The whole run is bounded by
// the configured deadline; tasks caught by it are marked cancelled.
func (o *Orchestrator) Process(ctx context.Context, request string, conv *task.Conversation, sink Sink) *Summary {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline())
	defer cancel()

	if err := sink.SendProgress(ctx, "Looking at your request..."); err != nil {
		o.logger.Debug("progress update failed", zap.Error(err))
	}

	plan := o.planner.Plan(ctx, request, conv)
	o.logger.Info("plan ready",
		zap.String("plan", plan.ID),
		zap.Int("tasks", len(plan.Tasks)),
		zap.Bool("degraded", plan.Degraded))

	_ = sink.SendProgress(ctx, fmt.Sprintf("Processing %d task(s)...", len(plan.Tasks)))

	o.scheduler.Execute(ctx, plan, conv, sink)

	summary := o.aggregator.Aggregate(ctx, plan)
	o.logger.Info("orchestration finished",
		zap.String("plan", plan.ID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("work", summary.Duration))

	// The closing note may outlive the deadline; deliver it regardless.
	if err := sink.Finish(context.WithoutCancel(ctx), summary.ClosingNote); err != nil {
		o.logger.Warn("closing notification failed", zap.Error(err))
	}
	return summary
}
