package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/vantari/taskweave/internal/config"
	"github.com/vantari/taskweave/internal/provider"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// stubProvider answers every chat with a canned reply (or error).
type stubProvider struct {
	id    string
	reply string
	err   error
}

func (s *stubProvider) ID() string   { return s.id }
func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Chat(_ context.Context, _ *provider.ChatRequest) (*provider.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &provider.ChatResponse{Model: "stub-model", Content: s.reply}, nil
}

func (s *stubProvider) ChatStream(_ context.Context, _ *provider.ChatRequest) (<-chan *provider.StreamChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *provider.StreamChunk, 2)
	ch <- &provider.StreamChunk{Content: s.reply}
	ch <- &provider.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (s *stubProvider) ListModels(_ context.Context) ([]provider.Model, error) { return nil, nil }
func (s *stubProvider) HealthCheck(_ context.Context) error                    { return s.err }

func newStubRouter(reply string, err error) *provider.Router {
	r := provider.NewRouter(zap.NewNop())
	r.Register(&stubProvider{id: "stub", reply: reply, err: err})
	return r
}

func newPlanner(reply string, err error) *Planner {
	return NewPlanner(newStubRouter(reply, err), config.OrchestratorConfig{MaxTasks: 8}, zap.NewNop())
}

const twoTaskPlanJSON = `{
  "intent_summary": "explain AI and draw a robot",
  "required_tasks": [
    {"task_id": "explain", "task_type": "text_generation", "description": "explain AI", "input_data": "explain AI", "priority": 1, "depends_on": []},
    {"task_id": "robot", "task_type": "image_generation", "description": "draw a robot", "input_data": "a robot", "priority": 2, "depends_on": ["explain"]}
  ],
  "execution_strategy": "sequential"
}`

func TestPlanParsesInferredTasks(t *testing.T) {
	p := newPlanner(twoTaskPlanJSON, nil)
	plan := p.Plan(context.Background(), "explain AI and draw a robot", &task.Conversation{})

	if plan.Degraded {
		t.Error("well-formed plan marked degraded")
	}
	if plan.IntentSummary != "explain AI and draw a robot" {
		t.Errorf("intent = %q", plan.IntentSummary)
	}
	if len(plan.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(plan.Tasks))
	}
	if plan.Tasks[0].Type != task.TypeTextGeneration || plan.Tasks[1].Type != task.TypeImageGeneration {
		t.Errorf("task types = %s, %s", plan.Tasks[0].Type, plan.Tasks[1].Type)
	}
	if len(plan.Tasks[1].Dependencies) != 1 || plan.Tasks[1].Dependencies[0] != "explain" {
		t.Errorf("dependencies = %v", plan.Tasks[1].Dependencies)
	}
	for _, tk := range plan.Tasks {
		if tk.Status != task.StatusPending {
			t.Errorf("task %s status = %s, want pending", tk.ID, tk.Status)
		}
	}
}

func TestPlanStripsCodeFences(t *testing.T) {
	p := newPlanner("```json\n"+twoTaskPlanJSON+"\n```", nil)
	plan := p.Plan(context.Background(), "explain AI and draw a robot", &task.Conversation{})

	if plan.Degraded {
		t.Error("fenced JSON should still parse")
	}
	if len(plan.Tasks) != 2 {
		t.Errorf("got %d tasks, want 2", len(plan.Tasks))
	}
}

func TestPlanFallsBackOnMalformedJSON(t *testing.T) {
	p := newPlanner("I think you want two things done!", nil)
	plan := p.Plan(context.Background(), "explain quantum computing", &task.Conversation{})

	if !plan.Degraded {
		t.Error("malformed response should degrade")
	}
	if len(plan.Tasks) != 1 {
		t.Fatalf("fallback plan has %d tasks, want 1", len(plan.Tasks))
	}
	if plan.Tasks[0].Type != task.TypeTextGeneration {
		t.Errorf("fallback type = %s, want text_generation", plan.Tasks[0].Type)
	}
	if plan.Tasks[0].Input.Text != "explain quantum computing" {
		t.Errorf("fallback input = %q", plan.Tasks[0].Input.Text)
	}
}

func TestPlanFallsBackOnProviderError(t *testing.T) {
	p := newPlanner("", errors.New("connection refused"))
	plan := p.Plan(context.Background(), "draw a picture of a sunset", &task.Conversation{})

	if !plan.Degraded {
		t.Error("provider error should degrade")
	}
	if plan.Tasks[0].Type != task.TypeImageGeneration {
		t.Errorf("keyword fallback type = %s, want image_generation", plan.Tasks[0].Type)
	}
}

func TestPlanFallbackPrefersAttachedImage(t *testing.T) {
	p := newPlanner("garbage", nil)
	conv := &task.Conversation{Image: &task.ImageRef{URL: "https://example.com/cat.png"}}
	plan := p.Plan(context.Background(), "what is this", conv)

	if plan.Tasks[0].Type != task.TypeImageAnalysis {
		t.Errorf("fallback type = %s, want image_analysis", plan.Tasks[0].Type)
	}
	if plan.Tasks[0].Input.Image == nil {
		t.Error("fallback analysis task missing image ref")
	}
}

func TestPlanFallbackSummarizationNeedsThread(t *testing.T) {
	p := newPlanner("garbage", nil)

	// With thread history the summary keyword wins.
	conv := &task.Conversation{Messages: []task.ContextMessage{{Role: "user", Text: "hi"}}}
	plan := p.Plan(context.Background(), "summarize this thread", conv)
	if plan.Tasks[0].Type != task.TypeSummarization {
		t.Errorf("type = %s, want summarization", plan.Tasks[0].Type)
	}

	// An empty thread has nothing to summarize.
	plan = p.Plan(context.Background(), "summarize this thread", &task.Conversation{})
	if plan.Tasks[0].Type != task.TypeTextGeneration {
		t.Errorf("type = %s, want text_generation for empty thread", plan.Tasks[0].Type)
	}
}

func TestPlanTruncatesToMaxTasks(t *testing.T) {
	router := newStubRouter(`{
	  "intent_summary": "many things",
	  "required_tasks": [
	    {"task_id": "t1", "task_type": "text_generation", "description": "one", "input_data": "a", "priority": 1},
	    {"task_id": "t2", "task_type": "text_generation", "description": "two", "input_data": "b", "priority": 2},
	    {"task_id": "t3", "task_type": "text_generation", "description": "three", "input_data": "c", "priority": 3}
	  ],
	  "execution_strategy": "sequential"
	}`, nil)
	p := NewPlanner(router, config.OrchestratorConfig{MaxTasks: 2}, zap.NewNop())

	plan := p.Plan(context.Background(), "do many things", &task.Conversation{})
	if len(plan.Tasks) != 2 {
		t.Errorf("got %d tasks, want MaxTasks cap of 2", len(plan.Tasks))
	}
}

func TestPlanAttachesImageToAnalysisTasks(t *testing.T) {
	router := newStubRouter(`{
	  "intent_summary": "describe the image",
	  "required_tasks": [
	    {"task_id": "look", "task_type": "image_analysis", "description": "describe it", "input_data": "describe", "priority": 1}
	  ],
	  "execution_strategy": "sequential"
	}`, nil)
	p := NewPlanner(router, config.OrchestratorConfig{}, zap.NewNop())

	conv := &task.Conversation{Image: &task.ImageRef{URL: "https://example.com/dog.jpg"}}
	plan := p.Plan(context.Background(), "what breed is this", conv)

	if plan.Tasks[0].Input.Image == nil || plan.Tasks[0].Input.Image.URL != conv.Image.URL {
		t.Error("analysis task not pointed at the attached image")
	}
}
