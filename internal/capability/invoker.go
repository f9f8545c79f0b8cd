package capability

import (
	"context"
	"errors"
	"time"

	"github.com/vantari/taskweave/internal/provider"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// Invoker is the uniform entry point for capability execution. It wraps
// handler dispatch with a per-call timeout and a bounded retry for
// transient failures; permanent failures surface after one attempt.
type Invoker struct {
	registry *Registry
	policy   RetryPolicy
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInvoker creates an invoker over the given registry.
func NewInvoker(registry *Registry, policy RetryPolicy, timeout time.Duration, logger *zap.Logger) *Invoker {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Invoker{
		registry: registry,
		policy:   policy,
		timeout:  timeout,
		logger:   logger,
	}
}

// Invoke runs the handler registered for the task's type. The returned
// error, if any, is always a *task.Error.
func (inv *Invoker) Invoke(ctx context.Context, req *Request) (*task.Result, error) {
	handler, ok := inv.registry.Get(req.Task.Type)
	if !ok {
		return nil, task.Errorf(task.ErrPermanentBackend,
			"unsupported task type: %s", req.Task.Type)
	}

	var result *task.Result
	op := func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, inv.timeout)
		defer cancel()

		r, err := handler.Invoke(callCtx, req)
		if err != nil {
			return inv.classify(ctx, callCtx, err)
		}
		result = r
		return nil
	}

	err := inv.policy.Do(ctx, op, func(err error) bool {
		return task.KindOf(err).Retryable()
	})
	if err != nil {
		inv.logger.Warn("capability invocation failed",
			zap.String("task", req.Task.ID),
			zap.String("type", string(req.Task.Type)),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// classify maps a raw handler error onto the task error taxonomy. The
// per-call timeout is reported as Timeout only while the orchestration
// itself is still alive; otherwise the failure is a Cancelled.
func (inv *Invoker) classify(parent, call context.Context, err error) *task.Error {
	if te, ok := err.(*task.Error); ok {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if parent.Err() != nil {
			return task.NewError(task.ErrCancelled, err)
		}
		if call.Err() != nil {
			return task.NewError(task.ErrTimeout, err)
		}
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Transient() {
			return task.NewError(task.ErrTransientBackend, err)
		}
		return task.NewError(task.ErrPermanentBackend, err)
	}

	// Untyped network-level failures are worth one more try.
	return task.NewError(task.ErrTransientBackend, err)
}
