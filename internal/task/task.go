package task

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies the capability a task runs against. The set is open:
// registering a new capability handler makes a new type executable.
type Type string

const (
	TypeTextGeneration  Type = "text_generation"
	TypeImageGeneration Type = "image_generation"
	TypeImageAnalysis   Type = "image_analysis"
	TypeSummarization   Type = "summarization"
)

// Status tracks execution state. Transitions are monotonic: once a task
// reaches completed or failed it never moves again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusReady, StatusFailed},
	StatusReady:   {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// Transition validates and returns nil if from→to is a legal transition.
func Transition(from, to Status) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("no transitions from %q", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %q → %q", from, to)
}

// Terminal reports whether a status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ImageRef points at an image attached to the request.
type ImageRef struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Base64   string `json:"base64,omitempty"`
}

// NewImageRef wraps raw image bytes as an inline reference.
func NewImageRef(data []byte, mimeType string) *ImageRef {
	return &ImageRef{
		MimeType: mimeType,
		Base64:   base64.StdEncoding.EncodeToString(data),
	}
}

// Input is the capability-specific payload for one task.
type Input struct {
	Text       string    `json:"text"`
	Image      *ImageRef `json:"image,omitempty"`
	// DependencyOutputs carries the text results of completed dependencies,
	// keyed by task ID. Filled by the scheduler before the task runs.
	DependencyOutputs map[string]string `json:"dependency_outputs,omitempty"`
}

// ResultKind tags the payload of a completed task.
type ResultKind string

const (
	ResultText     ResultKind = "text"
	ResultImage    ResultKind = "image"
	ResultAnalysis ResultKind = "analysis"
)

// Result is the output payload of a completed task.
type Result struct {
	Kind          ResultKind `json:"kind"`
	Content       string     `json:"content,omitempty"`
	ImageData     []byte     `json:"-"`
	ImageURL      string     `json:"image_url,omitempty"`
	MimeType      string     `json:"mime_type,omitempty"`
	RevisedPrompt string     `json:"revised_prompt,omitempty"`
	Model         string     `json:"model,omitempty"`
}

// Task is one unit of capability invocation with declared dependencies
// and priority. Created by the planner, mutated only by the scheduler.
type Task struct {
	ID           string     `json:"id"`
	Type         Type       `json:"type"`
	Description  string     `json:"description"`
	Input        Input      `json:"input"`
	Priority     int        `json:"priority"` // 1 (highest) .. 10 (lowest)
	Dependencies []string   `json:"dependencies,omitempty"`
	Status       Status     `json:"status"`
	Result       *Result    `json:"result,omitempty"`
	Error        *Error     `json:"error,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// SetStatus applies a status change, enforcing the transition table.
func (t *Task) SetStatus(to Status) error {
	if err := Transition(t.Status, to); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	t.Status = to
	return nil
}

// Duration returns wall-clock execution time, zero if the task never ran.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// ExecutionStrategy is an advisory hint from the planner; the scheduler is
// authoritative on actual concurrency.
type ExecutionStrategy string

const (
	StrategySequential ExecutionStrategy = "sequential"
	StrategyParallel   ExecutionStrategy = "parallel"
)

// Plan is the set of tasks derived from one user request. Plans are created
// fresh per request and discarded after aggregation.
type Plan struct {
	ID            string            `json:"id"`
	IntentSummary string            `json:"intent_summary"`
	Strategy      ExecutionStrategy `json:"execution_strategy"`
	Tasks         []*Task           `json:"tasks"`
	Degraded      bool              `json:"degraded"` // true when the keyword fallback produced the plan
	CreatedAt     time.Time         `json:"created_at"`
}

// NewPlan creates an empty plan with a fresh ID.
func NewPlan(intent string, strategy ExecutionStrategy) *Plan {
	if strategy != StrategyParallel {
		strategy = StrategySequential
	}
	return &Plan{
		ID:            uuid.New().String(),
		IntentSummary: intent,
		Strategy:      strategy,
		CreatedAt:     time.Now(),
	}
}

// Normalize assigns IDs to tasks missing one, deduplicates colliding IDs,
// strips self-references from dependency lists, and clamps priorities to
// the 1..10 range. Pending status is forced on every task.
func (p *Plan) Normalize() {
	seen := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.ID == "" || seen[t.ID] {
			t.ID = uuid.New().String()
		}
		seen[t.ID] = true

		if t.Priority < 1 {
			t.Priority = 5
		} else if t.Priority > 10 {
			t.Priority = 10
		}

		deps := t.Dependencies[:0]
		for _, d := range t.Dependencies {
			if d != t.ID && d != "" {
				deps = append(deps, d)
			}
		}
		t.Dependencies = deps
		t.Status = StatusPending
	}
}

// Lookup returns the task with the given ID, or nil.
func (p *Plan) Lookup(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}
