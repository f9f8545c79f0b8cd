package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vantari/taskweave/internal/config"
	"github.com/vantari/taskweave/internal/provider"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// Summary is the final record of one orchestration.
type Summary struct {
	PlanID        string                  `json:"plan_id"`
	IntentSummary string                  `json:"intent_summary"`
	Total         int                     `json:"total"`
	Succeeded     int                     `json:"succeeded"`
	Failed        int                     `json:"failed"`
	ByKind        map[task.ResultKind]int `json:"by_kind"`
	FailedTasks   []FailedTask            `json:"failed_tasks,omitempty"`
	Duration      time.Duration           `json:"duration"`
	ClosingNote   string                  `json:"closing_note"`
}

// FailedTask is the user-facing record of one failure.
type FailedTask struct {
	Description string         `json:"description"`
	Kind        task.ErrorKind `json:"kind"`
	Message     string         `json:"message"`
}

// Aggregator collects terminal tasks into a Summary and a closing
// notification. The closing note prefers a generated phrasing but always
// has a deterministic template to fall back on, so aggregation cannot fail.
type Aggregator struct {
	router *provider.Router
	cfg    config.OrchestratorConfig
	logger *zap.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(router *provider.Router, cfg config.OrchestratorConfig, logger *zap.Logger) *Aggregator {
	return &Aggregator{router: router, cfg: cfg, logger: logger}
}

// Aggregate partitions the plan's tasks by outcome and produces the final
// summary. Aggregating the same terminal set twice yields identical counts
// and partitions.
func (a *Aggregator) Aggregate(ctx context.Context, plan *task.Plan) *Summary {
	s := &Summary{
		PlanID:        plan.ID,
		IntentSummary: plan.IntentSummary,
		Total:         len(plan.Tasks),
		ByKind:        make(map[task.ResultKind]int),
	}

	for _, t := range plan.Tasks {
		s.Duration += t.Duration()
		switch t.Status {
		case task.StatusCompleted:
			s.Succeeded++
			if t.Result != nil {
				s.ByKind[t.Result.Kind]++
			}
		case task.StatusFailed:
			s.Failed++
			ft := FailedTask{Description: t.Description}
			if t.Error != nil {
				ft.Kind = t.Error.Kind
				ft.Message = t.Error.Message
			}
			s.FailedTasks = append(s.FailedTasks, ft)
		}
	}

	s.ClosingNote = a.closingNote(ctx, s)
	return s
}

// closingNote asks the model for a short wrap-up and falls back to the
// deterministic template when inference is unavailable.
func (a *Aggregator) closingNote(ctx context.Context, s *Summary) string {
	prompt := fmt.Sprintf(
		"Write one short, friendly closing line for a chat assistant that just finished a request.\nIntent: %s\nTasks succeeded: %d of %d.\n",
		s.IntentSummary, s.Succeeded, s.Total)
	if s.Failed > 0 {
		var failures []string
		for _, f := range s.FailedTasks {
			failures = append(failures, f.Description)
		}
		prompt += fmt.Sprintf("Failed tasks: %s. Mention them briefly.\n", strings.Join(failures, "; "))
	}
	prompt += "Reply with the line only."

	resp, err := a.router.Route(ctx, "closing", &provider.ChatRequest{
		Model:     a.cfg.ClosingModel,
		Messages:  []provider.Message{{Role: "user", Content: prompt}},
		MaxTokens: 256,
	})
	if err == nil && strings.TrimSpace(resp.Content) != "" {
		return strings.TrimSpace(resp.Content)
	}
	if err != nil {
		a.logger.Warn("closing note inference failed, using template", zap.Error(err))
	}
	return TemplateClosingNote(s)
}

// TemplateClosingNote is the deterministic fallback notification. It is a
// pure function of the summary and always returns non-empty text.
func TemplateClosingNote(s *Summary) string {
	if s.Failed == 0 {
		return fmt.Sprintf("All done — %d task(s) completed.", s.Succeeded)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Finished: %d of %d task(s) completed.", s.Succeeded, s.Total)
	for _, f := range s.FailedTasks {
		msg := f.Message
		if msg == "" {
			msg = string(f.Kind)
		}
		fmt.Fprintf(&b, "\n- %s failed: %s", f.Description, msg)
	}
	return b.String()
}
