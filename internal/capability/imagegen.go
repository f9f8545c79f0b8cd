package capability

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/vantari/taskweave/internal/config"
	"github.com/vantari/taskweave/internal/provider"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// ImageGeneration renders a task's prompt into an image. Non-English
// prompts are first translated into the canonical prompt language with a
// best-effort inference call; when translation fails the raw prompt is
// used as-is rather than failing the task.
type ImageGeneration struct {
	router *provider.Router
	cfg    config.CapabilityConfig
	client *http.Client
	logger *zap.Logger
}

// NewImageGeneration creates the image generation handler.
func NewImageGeneration(router *provider.Router, cfg config.CapabilityConfig, logger *zap.Logger) *ImageGeneration {
	return &ImageGeneration{
		router: router,
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (h *ImageGeneration) Type() task.Type { return task.TypeImageGeneration }

// needsTranslation reports whether more than a fifth of the prompt's
// letters fall outside Latin script.
func needsTranslation(text string) bool {
	letters, foreign := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if !unicode.In(r, unicode.Latin) {
			foreign++
		}
	}
	return letters > 0 && foreign*5 > letters
}

// languageNames maps ISO 639-1 codes to the names used in the rewrite
// instruction. Unknown values pass through, so configs may spell the
// language out directly.
var languageNames = map[string]string{
	"en": "English",
	"ko": "Korean",
	"ja": "Japanese",
	"zh": "Chinese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
}

func promptLanguageName(lang string) string {
	if lang == "" {
		return "English"
	}
	if name, ok := languageNames[strings.ToLower(lang)]; ok {
		return name
	}
	return lang
}

// translatePrompt converts the prompt into the canonical prompt language.
func (h *ImageGeneration) translatePrompt(ctx context.Context, prompt string) string {
	lang := promptLanguageName(h.cfg.PromptLanguage)
	resp, err := h.router.Route(ctx, "text", &provider.ChatRequest{
		Model: h.cfg.TextModel,
		Messages: []provider.Message{{
			Role: "user",
			Content: fmt.Sprintf(
				"Rewrite the following request as a concise %s image-generation prompt. Reply with the prompt only.\n\n%q",
				lang, prompt),
		}},
		MaxTokens: 1024,
	})
	if err != nil {
		h.logger.Warn("prompt translation failed, using raw input", zap.Error(err))
		return prompt
	}
	translated := strings.TrimSpace(resp.Content)
	if translated == "" {
		return prompt
	}
	return translated
}

// download fetches the generated image bytes.
func (h *ImageGeneration) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", &provider.APIError{Status: resp.StatusCode, Body: "image download failed"}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}

// Invoke generates one image and returns its bytes plus the backend's
// revised prompt.
func (h *ImageGeneration) Invoke(ctx context.Context, req *Request) (*task.Result, error) {
	prompt := req.Task.Input.Text
	if strings.TrimSpace(prompt) == "" {
		return nil, task.Errorf(task.ErrPermanentBackend, "empty image prompt")
	}
	if needsTranslation(prompt) {
		prompt = h.translatePrompt(ctx, prompt)
	}

	img, err := h.router.RouteImage(ctx, "image", &provider.ImageRequest{
		Model:   h.cfg.ImageModel,
		Prompt:  prompt,
		Size:    h.cfg.ImageSize,
		Quality: h.cfg.ImageQuality,
		Style:   h.cfg.ImageStyle,
	})
	if err != nil {
		return nil, err
	}

	result := &task.Result{
		Kind:          task.ResultImage,
		ImageURL:      img.URL,
		RevisedPrompt: img.RevisedPrompt,
		Model:         h.cfg.ImageModel,
		MimeType:      "image/png",
	}

	switch {
	case img.Base64 != "":
		data, decErr := base64.StdEncoding.DecodeString(img.Base64)
		if decErr != nil {
			return nil, fmt.Errorf("decode image: %w", decErr)
		}
		result.ImageData = data
	case img.URL != "":
		data, mime, dlErr := h.download(ctx, img.URL)
		if dlErr != nil {
			return nil, dlErr
		}
		result.ImageData = data
		result.MimeType = mime
	default:
		return nil, task.Errorf(task.ErrPermanentBackend, "provider returned no image payload")
	}

	h.logger.Info("image generated",
		zap.String("task", req.Task.ID),
		zap.Int("bytes", len(result.ImageData)))
	return result, nil
}
