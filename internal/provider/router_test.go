package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

// fakeProvider answers chats with its own ID so tests can see who served
// the request.
type fakeProvider struct {
	id  string
	err error
}

func (f *fakeProvider) ID() string   { return f.id }
func (f *fakeProvider) Name() string { return f.id }

func (f *fakeProvider) Chat(context.Context, *ChatRequest) (*ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResponse{Content: f.id}, nil
}

func (f *fakeProvider) ChatStream(context.Context, *ChatRequest) (<-chan *StreamChunk, error) {
	ch := make(chan *StreamChunk, 1)
	ch <- &StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) ListModels(context.Context) ([]Model, error) { return nil, nil }
func (f *fakeProvider) HealthCheck(context.Context) error           { return f.err }

func TestRouteUsesRoleBinding(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "alpha"})
	r.Register(&fakeProvider{id: "beta"})
	r.Bind("vision", "beta")

	resp, err := r.Route(context.Background(), "vision", &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "beta" {
		t.Errorf("served by %q, want beta", resp.Content)
	}
}

func TestRouteFallsBackToDefault(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "alpha"})

	resp, err := r.Route(context.Background(), "unbound-role", &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "alpha" {
		t.Errorf("served by %q, want default alpha", resp.Content)
	}
}

func TestRouteWalksFallbackChain(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "primary", err: errors.New("down")})
	r.Register(&fakeProvider{id: "backup"})
	r.Bind("text", "primary")
	r.SetFallbacks("text", []string{"backup"})

	resp, err := r.Route(context.Background(), "text", &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "backup" {
		t.Errorf("served by %q, want backup", resp.Content)
	}
}

func TestRouteAllProvidersDown(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "primary", err: errors.New("down")})
	r.Register(&fakeProvider{id: "backup", err: errors.New("also down")})
	r.Bind("text", "primary")
	r.SetFallbacks("text", []string{"backup"})

	if _, err := r.Route(context.Background(), "text", &ChatRequest{}); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestRouteNoProviders(t *testing.T) {
	r := NewRouter(zap.NewNop())
	if _, err := r.Route(context.Background(), "text", &ChatRequest{}); err == nil {
		t.Fatal("expected error with no providers registered")
	}
}

func TestRouteImageRequiresImageGenerator(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "chat-only"})
	r.Bind("image", "chat-only")

	if _, err := r.RouteImage(context.Background(), "image", &ImageRequest{Prompt: "a cat"}); err == nil {
		t.Fatal("expected error for provider without image support")
	}
}

func TestFirstRegisteredBecomesDefault(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "alpha"})
	r.Register(&fakeProvider{id: "beta"})

	if got := r.DefaultID(); got != "alpha" {
		t.Errorf("default = %q, want alpha", got)
	}
	r.SetDefault("beta")
	if got := r.DefaultID(); got != "beta" {
		t.Errorf("default = %q, want beta", got)
	}
}
