package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/vantari/taskweave/internal/config"
	"github.com/vantari/taskweave/internal/provider"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// Summarization condenses the request's thread history into a summary:
// main topics, conclusions, and per-participant positions.
type Summarization struct {
	router *provider.Router
	cfg    config.CapabilityConfig
	logger *zap.Logger
}

// NewSummarization creates the thread summarization handler.
func NewSummarization(router *provider.Router, cfg config.CapabilityConfig, logger *zap.Logger) *Summarization {
	return &Summarization{router: router, cfg: cfg, logger: logger}
}

func (h *Summarization) Type() task.Type { return task.TypeSummarization }

// Invoke summarizes the conversation the task arrived in.
func (h *Summarization) Invoke(ctx context.Context, req *Request) (*task.Result, error) {
	if req.Conversation.ThreadLength() == 0 {
		return nil, task.Errorf(task.ErrPermanentBackend, "no thread messages to summarize")
	}

	var transcript strings.Builder
	for _, m := range req.Conversation.Messages {
		author := m.Author
		if author == "" {
			author = m.Role
		}
		fmt.Fprintf(&transcript, "%s: %s\n", author, m.Text)
	}

	prompt := fmt.Sprintf(
		"Summarize the following conversation. Cover the main topics, any conclusions reached, and where participants disagreed.\n\n%s",
		transcript.String())
	if extra := strings.TrimSpace(req.Task.Input.Text); extra != "" {
		prompt = fmt.Sprintf("%s\n\nAdditional instruction: %s", prompt, extra)
	}

	resp, err := h.router.Route(ctx, "text", &provider.ChatRequest{
		Model:       h.cfg.TextModel,
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Temperature: h.cfg.Temperature,
		MaxTokens:   h.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("thread summarized",
		zap.String("task", req.Task.ID),
		zap.Int("messages", req.Conversation.ThreadLength()))

	return &task.Result{
		Kind:    task.ResultText,
		Content: resp.Content,
		Model:   resp.Model,
	}, nil
}
