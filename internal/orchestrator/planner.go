package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vantari/taskweave/internal/config"
	"github.com/vantari/taskweave/internal/provider"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// capabilityCatalog is the static capability description embedded in the
// planning prompt.
const capabilityCatalog = `1. text_generation — answer questions, explain, translate, write code or prose
2. image_generation — render an image from a description
3. image_analysis — describe or interpret an attached image
4. summarization — condense the current thread into a summary`

// Planner turns a raw user request into an executable plan with a single
// inference call. Planning never fails: any malformed or unavailable
// inference degrades to a keyword-derived single-task plan.
type Planner struct {
	router *provider.Router
	cfg    config.OrchestratorConfig
	logger *zap.Logger
}

// NewPlanner creates a planner over the given provider router.
func NewPlanner(router *provider.Router, cfg config.OrchestratorConfig, logger *zap.Logger) *Planner {
	return &Planner{router: router, cfg: cfg, logger: logger}
}

// planResponse is the structured output expected from the planning model.
type planResponse struct {
	IntentSummary     string             `json:"intent_summary"`
	RequiredTasks     []planTaskResponse `json:"required_tasks"`
	ExecutionStrategy string             `json:"execution_strategy"`
}

type planTaskResponse struct {
	TaskID      string   `json:"task_id"`
	TaskType    string   `json:"task_type"`
	Description string   `json:"description"`
	InputData   string   `json:"input_data"`
	Priority    int      `json:"priority"`
	DependsOn   []string `json:"depends_on"`
}

// Plan infers the task list for a request. The returned plan always has at
// least one task.
func (p *Planner) Plan(ctx context.Context, request string, conv *task.Conversation) *task.Plan {
	resp, err := p.router.Route(ctx, "planner", &provider.ChatRequest{
		Model:       p.cfg.PlannerModel,
		Messages:    []provider.Message{{Role: "user", Content: p.buildPrompt(request, conv)}},
		Temperature: 0.1,
		MaxTokens:   2048,
	})
	if err != nil {
		p.logger.Warn("planning inference failed, using keyword fallback", zap.Error(err))
		return p.fallbackPlan(request, conv)
	}

	plan, err := p.parsePlan(resp.Content)
	if err != nil {
		p.logger.Warn("planning response malformed, using keyword fallback",
			zap.Error(err),
			zap.String("content", truncate(resp.Content, 200)))
		return p.fallbackPlan(request, conv)
	}

	p.attachContext(plan, conv)
	p.logger.Info("plan inferred",
		zap.String("intent", plan.IntentSummary),
		zap.Int("tasks", len(plan.Tasks)))
	return plan
}

func (p *Planner) buildPrompt(request string, conv *task.Conversation) string {
	hasImage := "no"
	if conv.HasImage() {
		hasImage = "yes"
	}
	return fmt.Sprintf(`User request: %q

Conversation context:
- user: %s
- thread length: %d messages
- attached image: %s

Assistant capabilities:
%s

Analyze the request and respond with the tasks needed to satisfy it, as JSON:

{
  "intent_summary": "one-line summary of what the user wants",
  "required_tasks": [
    {
      "task_id": "unique_id",
      "task_type": "text_generation|image_generation|image_analysis|summarization",
      "description": "short task label",
      "input_data": "task input",
      "priority": 1,
      "depends_on": []
    }
  ],
  "execution_strategy": "sequential|parallel"
}

Examples:
- "explain python" → one text_generation task
- "draw a cat" → one image_generation task
- "explain AI and draw a robot" → one text_generation plus one image_generation task
- "summarize this thread" → one summarization task

Respond with JSON only.`,
		request, conv.UserName, conv.ThreadLength(), hasImage, capabilityCatalog)
}

// codeFenceRe strips markdown code fences some models wrap JSON in.
var codeFenceRe = regexp.MustCompile("```(?:json)?\n?|```")

// parsePlan validates the inference output and converts it to a plan.
func (p *Planner) parsePlan(content string) (*task.Plan, error) {
	cleaned := strings.TrimSpace(codeFenceRe.ReplaceAllString(content, ""))

	var parsed planResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("parse plan JSON: %w", err)
	}
	if parsed.IntentSummary == "" {
		return nil, fmt.Errorf("missing intent_summary")
	}
	if len(parsed.RequiredTasks) == 0 {
		return nil, fmt.Errorf("empty required_tasks")
	}
	for i, t := range parsed.RequiredTasks {
		if t.TaskID == "" || t.TaskType == "" || t.Description == "" {
			return nil, fmt.Errorf("task %d missing required fields", i)
		}
	}

	if p.cfg.MaxTasks > 0 && len(parsed.RequiredTasks) > p.cfg.MaxTasks {
		parsed.RequiredTasks = parsed.RequiredTasks[:p.cfg.MaxTasks]
	}

	plan := task.NewPlan(parsed.IntentSummary, task.ExecutionStrategy(parsed.ExecutionStrategy))
	for _, t := range parsed.RequiredTasks {
		plan.Tasks = append(plan.Tasks, &task.Task{
			ID:           t.TaskID,
			Type:         task.Type(t.TaskType),
			Description:  t.Description,
			Input:        task.Input{Text: t.InputData},
			Priority:     t.Priority,
			Dependencies: t.DependsOn,
		})
	}
	plan.Normalize()
	return plan, nil
}

// attachContext points image tasks at the request's attached image.
func (p *Planner) attachContext(plan *task.Plan, conv *task.Conversation) {
	if !conv.HasImage() {
		return
	}
	for _, t := range plan.Tasks {
		if t.Type == task.TypeImageAnalysis && t.Input.Image == nil {
			t.Input.Image = conv.Image
		}
	}
}

// fallbackPlan is the terminal safety net: a single task derived from
// keywords and attachment presence. It cannot fail.
func (p *Planner) fallbackPlan(request string, conv *task.Conversation) *task.Plan {
	taskType := task.TypeTextGeneration
	description := "generate a text reply"
	intent := "text response request"

	switch {
	case conv.HasImage():
		taskType = task.TypeImageAnalysis
		description = "analyze the attached image"
		intent = "image analysis request"
	case containsAny(request, p.summaryKeywords()) && conv.ThreadLength() > 0:
		taskType = task.TypeSummarization
		description = "summarize the thread"
		intent = "thread summary request"
	case containsAny(request, p.imageKeywords()):
		taskType = task.TypeImageGeneration
		description = "generate an image"
		intent = "image generation request"
	}

	plan := task.NewPlan(intent, task.StrategySequential)
	plan.Degraded = true
	t := &task.Task{
		Type:        taskType,
		Description: description,
		Input:       task.Input{Text: request},
		Priority:    1,
	}
	if taskType == task.TypeImageAnalysis {
		t.Input.Image = conv.Image
	}
	plan.Tasks = append(plan.Tasks, t)
	plan.Normalize()
	return plan
}

func (p *Planner) imageKeywords() []string {
	if len(p.cfg.ImageKeywords) > 0 {
		return p.cfg.ImageKeywords
	}
	return []string{"draw", "picture", "image", "illustration"}
}

func (p *Planner) summaryKeywords() []string {
	if len(p.cfg.SummaryKeywords) > 0 {
		return p.cfg.SummaryKeywords
	}
	return []string{"summarize", "summary", "recap"}
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
