package capability

import (
	"context"
	"sync"

	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// Request carries everything a handler may need for one invocation.
type Request struct {
	Task         *task.Task
	Conversation *task.Conversation
	// Progress, when non-nil, receives partial output while the handler is
	// still generating. Handlers may ignore it.
	Progress func(text string)
}

// Handler executes one capability. Implementations are registered by task
// type; adding a capability means registering a new handler, not branching.
type Handler interface {
	Type() task.Type
	Invoke(ctx context.Context, req *Request) (*task.Result, error)
}

// Registry maps task types to capability handlers.
type Registry struct {
	handlers map[task.Type]Handler
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewRegistry creates an empty capability registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[task.Type]Handler),
		logger:   logger,
	}
}

// Register adds a handler for its task type, replacing any previous one.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
	r.logger.Info("registered capability", zap.String("type", string(h.Type())))
}

// Get returns the handler for a task type.
func (r *Registry) Get(t task.Type) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered task types.
func (r *Registry) Types() []task.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]task.Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
