package orchestrator

import (
	"sort"

	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// Order produces the execution sequence for a set of tasks. It repeatedly
// picks, among tasks whose dependencies are all already ordered, the one
// with the numerically lowest priority value. When no task is eligible but
// tasks remain (a cycle or a dangling dependency), the lowest-priority
// remaining task is scheduled anyway and its unmet dependencies are marked
// satisfied by fiat and logged as a degraded path. The result always has
// exactly len(tasks) entries.
//
// The second return value maps task ID to the dependency IDs that were
// forced; the scheduler skips gating on those.
func Order(tasks []*task.Task, logger *zap.Logger) ([]*task.Task, map[string][]string) {
	ordered := make([]*task.Task, 0, len(tasks))
	placed := make(map[string]bool, len(tasks))
	forced := make(map[string][]string)

	remaining := make([]*task.Task, len(tasks))
	copy(remaining, tasks)

	for len(remaining) > 0 {
		// Stable sort keeps planner order among equal priorities.
		sort.SliceStable(remaining, func(i, j int) bool {
			return remaining[i].Priority < remaining[j].Priority
		})

		pick := -1
		for i, t := range remaining {
			if depsPlaced(t, placed) {
				pick = i
				break
			}
		}

		if pick < 0 {
			// Deadlock: cycle or dangling dependency. Take the most urgent
			// remaining task and force its unmet deps satisfied.
			pick = 0
			t := remaining[0]
			var unmet []string
			for _, d := range t.Dependencies {
				if !placed[d] {
					unmet = append(unmet, d)
				}
			}
			forced[t.ID] = unmet
			logger.Warn("dependency deadlock, forcing task schedulable",
				zap.String("task", t.ID),
				zap.Strings("unmet", unmet))
		}

		t := remaining[pick]
		ordered = append(ordered, t)
		placed[t.ID] = true
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}

	return ordered, forced
}

func depsPlaced(t *task.Task, placed map[string]bool) bool {
	for _, d := range t.Dependencies {
		if !placed[d] {
			return false
		}
	}
	return true
}
