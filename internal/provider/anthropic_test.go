package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestAnthropicEndpointDefault(t *testing.T) {
	p := NewAnthropicProvider(Config{ID: "a"}, zap.NewNop())
	if got := p.config.Endpoint; got != "https://api.anthropic.com/v1" {
		t.Errorf("default endpoint = %q, want https://api.anthropic.com/v1", got)
	}
}

// The endpoint must carry the API version prefix: the request URL is the
// endpoint plus /messages, so a configured endpoint without /v1 would
// post to a nonexistent path.
func TestAnthropicChatResolvedURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","model":"claude-sonnet-4-20250514",
			"content":[{"type":"text","text":"hi"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Config{ID: "a", Endpoint: srv.URL + "/v1"}, zap.NewNop())
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Model:    "claude-sonnet-4-20250514",
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("request path = %q, want /v1/messages", gotPath)
	}
	if resp.Content != "hi" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestImageSourceDataURL(t *testing.T) {
	src := imageSource("data:image/png;base64,aGVsbG8=")
	if src == nil {
		t.Fatal("expected a source for a well-formed data URL")
	}
	if src.Type != "base64" {
		t.Errorf("type = %q, want base64", src.Type)
	}
	if src.MediaType != "image/png" {
		t.Errorf("media type = %q, want image/png", src.MediaType)
	}
	if src.Data != "aGVsbG8=" {
		t.Errorf("data = %q", src.Data)
	}
}

func TestImageSourceHTTPS(t *testing.T) {
	src := imageSource("https://example.com/photo.jpg")
	if src == nil {
		t.Fatal("expected a source for an https URL")
	}
	if src.Type != "url" || src.URL != "https://example.com/photo.jpg" {
		t.Errorf("source = %+v", src)
	}
}

func TestImageSourceMalformedDataURL(t *testing.T) {
	if src := imageSource("data:image/png,not-base64"); src != nil {
		t.Errorf("expected nil for a data URL without base64 marker, got %+v", src)
	}
}

func TestConvertRequestHoistsSystemMessage(t *testing.T) {
	p := NewAnthropicProvider(Config{ID: "anthropic-test"}, zap.NewNop())
	ar := p.convertRequest(&ChatRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
		},
	})
	if ar.System != "be brief" {
		t.Errorf("system = %q", ar.System)
	}
	if len(ar.Messages) != 1 {
		t.Fatalf("converted %d messages, want 1", len(ar.Messages))
	}
	if ar.Messages[0].Role != "user" {
		t.Errorf("role = %q", ar.Messages[0].Role)
	}
	if ar.MaxTokens != 4096 {
		t.Errorf("max tokens = %d, want default 4096", ar.MaxTokens)
	}
}

func TestConvertRequestKeepsExplicitMaxTokens(t *testing.T) {
	p := NewAnthropicProvider(Config{ID: "anthropic-test"}, zap.NewNop())
	ar := p.convertRequest(&ChatRequest{
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "hi"}},
	})
	if ar.MaxTokens != 1024 {
		t.Errorf("max tokens = %d, want 1024", ar.MaxTokens)
	}
}
