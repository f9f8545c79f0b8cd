package capability

import (
	"context"
	"strings"
	"testing"

	"github.com/vantari/taskweave/internal/config"
	"github.com/vantari/taskweave/internal/provider"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// chatRecorder is a stub provider that records chat requests and answers
// with a canned reply.
type chatRecorder struct {
	id      string
	reply   string
	err     error
	lastReq *provider.ChatRequest
	chunks  []string
}

func (s *chatRecorder) ID() string   { return s.id }
func (s *chatRecorder) Name() string { return "stub" }

func (s *chatRecorder) Chat(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &provider.ChatResponse{Model: "stub-model", Content: s.reply}, nil
}

func (s *chatRecorder) ChatStream(_ context.Context, req *provider.ChatRequest) (<-chan *provider.StreamChunk, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *provider.StreamChunk, len(s.chunks)+1)
	for _, c := range s.chunks {
		ch <- &provider.StreamChunk{Content: c}
	}
	ch <- &provider.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (s *chatRecorder) ListModels(context.Context) ([]provider.Model, error) { return nil, nil }
func (s *chatRecorder) HealthCheck(context.Context) error                    { return s.err }

func routerWith(p provider.Provider) *provider.Router {
	r := provider.NewRouter(zap.NewNop())
	r.Register(p)
	return r
}

func TestTextGenerationNonStreaming(t *testing.T) {
	stub := &chatRecorder{id: "stub", reply: "generated text"}
	h := NewTextGeneration(routerWith(stub), config.CapabilityConfig{TextModel: "gpt-test"}, zap.NewNop())

	result, err := h.Invoke(context.Background(), &Request{
		Task: &task.Task{ID: "t1", Type: task.TypeTextGeneration,
			Input: task.Input{Text: "explain AI"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != task.ResultText || result.Content != "generated text" {
		t.Errorf("result = %+v", result)
	}
	if stub.lastReq.Model != "gpt-test" {
		t.Errorf("model = %q", stub.lastReq.Model)
	}
}

func TestTextGenerationStreamsWithFlushes(t *testing.T) {
	big := strings.Repeat("x", streamFlushThreshold)
	stub := &chatRecorder{id: "stub", chunks: []string{big, "tail"}}
	h := NewTextGeneration(routerWith(stub), config.CapabilityConfig{}, zap.NewNop())

	var flushes []string
	result, err := h.Invoke(context.Background(), &Request{
		Task:     &task.Task{ID: "t1", Type: task.TypeTextGeneration, Input: task.Input{Text: "go"}},
		Progress: func(text string) { flushes = append(flushes, text) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != big+"tail" {
		t.Errorf("content length = %d, want %d", len(result.Content), len(big)+4)
	}
	if len(flushes) != 1 {
		t.Fatalf("flushes = %d, want 1 (threshold crossed once)", len(flushes))
	}
	if flushes[0] != big {
		t.Errorf("flush content length = %d, want %d", len(flushes[0]), len(big))
	}
}

func TestBuildMessagesIncludesHistoryAndDependencyOutputs(t *testing.T) {
	req := &Request{
		Task: &task.Task{ID: "t1", Input: task.Input{
			Text:              "write a poem about it",
			DependencyOutputs: map[string]string{"research": "cats sleep 16 hours a day"},
		}},
		Conversation: &task.Conversation{Messages: []task.ContextMessage{
			{Role: "user", Author: "dana", Text: "tell me about cats"},
			{Role: "assistant", Text: "sure"},
		}},
	}

	msgs := buildMessages(req)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want history + input", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, "dana") {
		t.Errorf("user history lost author: %q", msgs[0].Content)
	}
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Content, "cats sleep 16 hours a day") {
		t.Errorf("dependency output missing from input: %q", last.Content)
	}
	if !strings.Contains(last.Content, "write a poem about it") {
		t.Errorf("task input missing: %q", last.Content)
	}
}

func TestPromptLanguageName(t *testing.T) {
	cases := []struct {
		lang string
		want string
	}{
		{"", "English"},
		{"en", "English"},
		{"EN", "English"},
		{"ko", "Korean"},
		{"English", "English"},
		{"Portuguese", "Portuguese"},
	}
	for _, tc := range cases {
		if got := promptLanguageName(tc.lang); got != tc.want {
			t.Errorf("promptLanguageName(%q) = %q, want %q", tc.lang, got, tc.want)
		}
	}
}

func TestNeedsTranslation(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"a red fox jumping over a fence", false},
		{"고양이 그려줘", true},
		{"draw a 猫 please in watercolor style", false},
		{"", false},
		{"1234 !!", false},
	}
	for _, tc := range cases {
		if got := needsTranslation(tc.text); got != tc.want {
			t.Errorf("needsTranslation(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestImageGenerationRejectsEmptyPrompt(t *testing.T) {
	h := NewImageGeneration(routerWith(&chatRecorder{id: "stub"}), config.CapabilityConfig{}, zap.NewNop())

	_, err := h.Invoke(context.Background(), &Request{
		Task: &task.Task{ID: "t1", Type: task.TypeImageGeneration, Input: task.Input{Text: "   "}},
	})
	if task.KindOf(err) != task.ErrPermanentBackend {
		t.Errorf("kind = %s, want permanent_backend", task.KindOf(err))
	}
}

func TestImageAnalysisFallsBackToConversationImage(t *testing.T) {
	stub := &chatRecorder{id: "stub", reply: "a tabby cat on a sofa"}
	h := NewImageAnalysis(routerWith(stub), config.CapabilityConfig{VisionModel: "vision-test"}, zap.NewNop())

	result, err := h.Invoke(context.Background(), &Request{
		Task: &task.Task{ID: "t1", Type: task.TypeImageAnalysis},
		Conversation: &task.Conversation{
			Image: &task.ImageRef{URL: "https://example.com/cat.png"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != task.ResultAnalysis {
		t.Errorf("kind = %s", result.Kind)
	}
	if stub.lastReq.Messages[0].ImageURL != "https://example.com/cat.png" {
		t.Errorf("image url = %q", stub.lastReq.Messages[0].ImageURL)
	}
}

func TestImageAnalysisRequiresImage(t *testing.T) {
	h := NewImageAnalysis(routerWith(&chatRecorder{id: "stub"}), config.CapabilityConfig{}, zap.NewNop())

	_, err := h.Invoke(context.Background(), &Request{
		Task:         &task.Task{ID: "t1", Type: task.TypeImageAnalysis},
		Conversation: &task.Conversation{},
	})
	if task.KindOf(err) != task.ErrPermanentBackend {
		t.Errorf("kind = %s, want permanent_backend", task.KindOf(err))
	}
}

func TestImageURLPrefersInlineBytes(t *testing.T) {
	ref := &task.ImageRef{URL: "https://example.com/a.png", MimeType: "image/jpeg", Base64: "aGVsbG8="}
	got := imageURL(ref)
	if !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Errorf("imageURL = %q, want data URL", got)
	}

	remote := &task.ImageRef{URL: "https://example.com/a.png"}
	if imageURL(remote) != remote.URL {
		t.Errorf("imageURL = %q, want passthrough", imageURL(remote))
	}
}

func TestSummarizationRequiresThread(t *testing.T) {
	h := NewSummarization(routerWith(&chatRecorder{id: "stub"}), config.CapabilityConfig{}, zap.NewNop())

	_, err := h.Invoke(context.Background(), &Request{
		Task:         &task.Task{ID: "t1", Type: task.TypeSummarization},
		Conversation: &task.Conversation{},
	})
	if task.KindOf(err) != task.ErrPermanentBackend {
		t.Errorf("kind = %s, want permanent_backend", task.KindOf(err))
	}
}

func TestSummarizationBuildsTranscript(t *testing.T) {
	stub := &chatRecorder{id: "stub", reply: "they discussed cats"}
	h := NewSummarization(routerWith(stub), config.CapabilityConfig{}, zap.NewNop())

	result, err := h.Invoke(context.Background(), &Request{
		Task: &task.Task{ID: "t1", Type: task.TypeSummarization},
		Conversation: &task.Conversation{Messages: []task.ContextMessage{
			{Role: "user", Author: "dana", Text: "I love cats"},
			{Role: "assistant", Text: "noted"},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "they discussed cats" {
		t.Errorf("content = %q", result.Content)
	}
	prompt := stub.lastReq.Messages[0].Content
	if !strings.Contains(prompt, "dana: I love cats") {
		t.Errorf("transcript missing attributed line: %q", prompt)
	}
	if !strings.Contains(prompt, "assistant: noted") {
		t.Errorf("transcript should fall back to role for author: %q", prompt)
	}
}
