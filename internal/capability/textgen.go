package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vantari/taskweave/internal/config"
	"github.com/vantari/taskweave/internal/provider"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// streamFlushThreshold is how much buffered text accumulates before a
// partial update is pushed to the progress callback.
const streamFlushThreshold = 800

// TextGeneration answers a task with generated text, streaming partial
// output to the progress callback while the model is still talking.
type TextGeneration struct {
	router *provider.Router
	cfg    config.CapabilityConfig
	logger *zap.Logger
}

// NewTextGeneration creates the text generation handler.
func NewTextGeneration(router *provider.Router, cfg config.CapabilityConfig, logger *zap.Logger) *TextGeneration {
	return &TextGeneration{router: router, cfg: cfg, logger: logger}
}

func (h *TextGeneration) Type() task.Type { return task.TypeTextGeneration }

// buildMessages folds thread history and dependency outputs around the
// task input, oldest first.
func buildMessages(req *Request) []provider.Message {
	var msgs []provider.Message
	if req.Conversation != nil {
		for _, m := range req.Conversation.Messages {
			content := m.Text
			if m.Role == "user" && m.Author != "" {
				content = fmt.Sprintf("%s: %s", m.Author, m.Text)
			}
			msgs = append(msgs, provider.Message{Role: m.Role, Content: content})
		}
	}

	input := req.Task.Input.Text
	if len(req.Task.Input.DependencyOutputs) > 0 {
		ids := make([]string, 0, len(req.Task.Input.DependencyOutputs))
		for id := range req.Task.Input.DependencyOutputs {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		var b strings.Builder
		b.WriteString("Results from earlier steps:\n")
		for _, id := range ids {
			fmt.Fprintf(&b, "- %s\n", req.Task.Input.DependencyOutputs[id])
		}
		b.WriteString("\n")
		b.WriteString(input)
		input = b.String()
	}

	return append(msgs, provider.Message{Role: "user", Content: input})
}

// Invoke generates a text reply. When the caller supplied a progress
// callback the response is streamed and flushed in chunks; otherwise a
// single non-streaming call is made.
func (h *TextGeneration) Invoke(ctx context.Context, req *Request) (*task.Result, error) {
	chatReq := &provider.ChatRequest{
		Model:       h.cfg.TextModel,
		Messages:    buildMessages(req),
		Temperature: h.cfg.Temperature,
		MaxTokens:   h.cfg.MaxTokens,
	}

	if req.Progress == nil {
		resp, err := h.router.Route(ctx, "text", chatReq)
		if err != nil {
			return nil, err
		}
		return &task.Result{
			Kind:    task.ResultText,
			Content: resp.Content,
			Model:   resp.Model,
		}, nil
	}

	stream, err := h.router.RouteStream(ctx, "text", chatReq)
	if err != nil {
		return nil, err
	}

	var full strings.Builder
	buffered := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-stream:
			if !ok || chunk == nil || chunk.Done {
				return &task.Result{
					Kind:    task.ResultText,
					Content: full.String(),
					Model:   h.cfg.TextModel,
				}, nil
			}
			full.WriteString(chunk.Content)
			buffered += len(chunk.Content)
			if buffered >= streamFlushThreshold {
				req.Progress(full.String())
				buffered = 0
			}
		}
	}
}
