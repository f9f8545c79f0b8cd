package orchestrator

import (
	"context"

	"github.com/vantari/taskweave/internal/task"
)

// Sink is where one request's output goes. SendProgress overwrites a
// single transient status line and may be called any number of times;
// DeliverResult appends a new permanent message or attachment; Finish
// delivers the closing notification exactly once, after which the sink
// receives nothing else. The orchestration never reads from the sink.
type Sink interface {
	SendProgress(ctx context.Context, text string) error
	DeliverResult(ctx context.Context, result *task.Result) error
	Finish(ctx context.Context, text string) error
}
