package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/vantari/taskweave/internal/capability"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// Invoker is the scheduler's view of the capability layer.
type Invoker interface {
	Invoke(ctx context.Context, req *capability.Request) (*task.Result, error)
}

// Scheduler executes a plan's tasks one at a time in dependency order,
// delivering each result to the sink the moment it is ready. A task
// failure never aborts the plan; dependents of a failed task are
// short-circuited without invoking their capability.
type Scheduler struct {
	invoker Invoker
	logger  *zap.Logger
}

// NewScheduler creates a scheduler over the given invoker.
func NewScheduler(invoker Invoker, logger *zap.Logger) *Scheduler {
	return &Scheduler{invoker: invoker, logger: logger}
}

// Execute runs every task in the plan to a terminal state and returns the
// tasks in completion order. It never returns an error: failures live on
// the tasks themselves.
func (s *Scheduler) Execute(ctx context.Context, plan *task.Plan, conv *task.Conversation, sink Sink) []*task.Task {
	ordered, forced := Order(plan.Tasks, s.logger)

	done := make([]*task.Task, 0, len(ordered))
	for i, t := range ordered {
		if ctx.Err() != nil {
			s.fail(t, task.Errorf(task.ErrCancelled, "orchestration deadline exceeded"))
			done = append(done, t)
			continue
		}

		s.progress(ctx, sink, fmt.Sprintf("Working on task %d/%d: %s...",
			i+1, len(ordered), t.Description))

		if depErr := s.gate(plan, t, forced[t.ID]); depErr != nil {
			s.fail(t, depErr)
			done = append(done, t)
			s.logger.Info("task short-circuited",
				zap.String("task", t.ID),
				zap.String("kind", string(depErr.Kind)))
			continue
		}

		s.run(ctx, plan, t, conv, sink)
		done = append(done, t)
	}
	return done
}

// gate checks a task's dependencies. It returns a DependencyFailed error
// when any dependency is missing from the plan or itself failed. Deps
// forced satisfiable by the resolver's deadlock break are skipped.
func (s *Scheduler) gate(plan *task.Plan, t *task.Task, fiat []string) *task.Error {
	fiatSet := make(map[string]bool, len(fiat))
	for _, d := range fiat {
		fiatSet[d] = true
	}

	for _, depID := range t.Dependencies {
		dep := plan.Lookup(depID)
		if dep == nil {
			return task.Errorf(task.ErrDependencyFailed,
				"dependency %q not present in plan", depID)
		}
		if fiatSet[depID] {
			continue
		}
		if dep.Status == task.StatusFailed {
			return task.Errorf(task.ErrDependencyFailed,
				"dependency %q failed: %s", depID, dep.Error.Message)
		}
		if dep.Status == task.StatusCompleted {
			if dep.Result != nil && dep.Result.Content != "" {
				if t.Input.DependencyOutputs == nil {
					t.Input.DependencyOutputs = make(map[string]string)
				}
				t.Input.DependencyOutputs[depID] = dep.Result.Content
			}
			continue
		}
		return task.Errorf(task.ErrDependencyFailed,
			"dependency %q is not terminal", depID)
	}
	return nil
}

// run executes one gated task and delivers its result.
func (s *Scheduler) run(ctx context.Context, plan *task.Plan, t *task.Task, conv *task.Conversation, sink Sink) {
	if err := t.SetStatus(task.StatusReady); err != nil {
		s.logger.Error("illegal status transition", zap.Error(err))
		return
	}
	now := time.Now()
	t.StartedAt = &now
	_ = t.SetStatus(task.StatusRunning)

	s.logger.Info("executing task",
		zap.String("task", t.ID),
		zap.String("type", string(t.Type)),
		zap.Int("priority", t.Priority))

	result, err := s.invoker.Invoke(ctx, &capability.Request{
		Task:         t,
		Conversation: conv,
		Progress: func(text string) {
			s.progress(ctx, sink, text)
		},
	})

	finished := time.Now()
	t.FinishedAt = &finished

	if err != nil {
		s.fail(t, asTaskError(err))
		s.logger.Warn("task failed",
			zap.String("task", t.ID),
			zap.String("kind", string(t.Error.Kind)),
			zap.Duration("took", t.Duration()))
		return
	}

	t.Result = result
	_ = t.SetStatus(task.StatusCompleted)
	s.logger.Info("task completed",
		zap.String("task", t.ID),
		zap.Duration("took", t.Duration()))

	if derr := sink.DeliverResult(ctx, result); derr != nil {
		s.logger.Error("result delivery failed",
			zap.String("task", t.ID), zap.Error(derr))
	}
}

func (s *Scheduler) fail(t *task.Task, terr *task.Error) {
	if t.Status.Terminal() {
		return
	}
	t.Error = terr
	t.Status = task.StatusFailed
}

func (s *Scheduler) progress(ctx context.Context, sink Sink, text string) {
	if err := sink.SendProgress(ctx, text); err != nil {
		s.logger.Debug("progress update failed", zap.Error(err))
	}
}

func asTaskError(err error) *task.Error {
	if te, ok := err.(*task.Error); ok {
		return te
	}
	return task.NewError(task.ErrPermanentBackend, err)
}
