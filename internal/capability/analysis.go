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

// ImageAnalysis describes an attached image with a vision model.
type ImageAnalysis struct {
	router *provider.Router
	cfg    config.CapabilityConfig
	logger *zap.Logger
}

// NewImageAnalysis creates the image analysis handler.
func NewImageAnalysis(router *provider.Router, cfg config.CapabilityConfig, logger *zap.Logger) *ImageAnalysis {
	return &ImageAnalysis{router: router, cfg: cfg, logger: logger}
}

func (h *ImageAnalysis) Type() task.Type { return task.TypeImageAnalysis }

// imageURL resolves the task's image reference to something the vision
// endpoint accepts: pre-encoded bytes become a data URL, otherwise the
// remote URL is passed through.
func imageURL(ref *task.ImageRef) string {
	if ref.Base64 != "" {
		mime := ref.MimeType
		if mime == "" {
			mime = "image/png"
		}
		return fmt.Sprintf("data:%s;base64,%s", mime, ref.Base64)
	}
	return ref.URL
}

// Invoke analyzes the request's attached image, guided by the task input.
func (h *ImageAnalysis) Invoke(ctx context.Context, req *Request) (*task.Result, error) {
	ref := req.Task.Input.Image
	if ref == nil && req.Conversation != nil {
		ref = req.Conversation.Image
	}
	if ref == nil {
		return nil, task.Errorf(task.ErrPermanentBackend, "no image to analyze")
	}

	instruction := strings.TrimSpace(req.Task.Input.Text)
	if instruction == "" {
		instruction = "Describe the image in great detail as if viewing a photo."
	}

	resp, err := h.router.Route(ctx, "vision", &provider.ChatRequest{
		Model: h.cfg.VisionModel,
		Messages: []provider.Message{{
			Role:     "user",
			Content:  instruction,
			ImageURL: imageURL(ref),
		}},
		MaxTokens: h.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("image analyzed",
		zap.String("task", req.Task.ID),
		zap.Int("content_length", len(resp.Content)))

	return &task.Result{
		Kind:    task.ResultAnalysis,
		Content: resp.Content,
		Model:   resp.Model,
	}, nil
}
