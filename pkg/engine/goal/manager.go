package goal

import (
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/pkg/store"
)

// Manager enforces the goal transitions: at most one goal is in progress
// per context, and starting a goal of a different type abandons any
// other in-progress goal (hard transition, no completion side effects).
// Step index and collected data stay opaque here; only the external flow
// controller moves them.
type Manager struct {
	logger logger.ILogger
}

func NewManager(log logger.ILogger) *Manager {
	return &Manager{logger: log}
}

// AddGoal starts a new goal. A differing in-progress goal is marked
// abandoned, keeping its interrupted step for analytics; an in-progress
// goal of the same type is replaced in place.
func (m *Manager) AddGoal(ctx *store.ChatContext, g store.Goal) {
	g.Status = store.GoalStatusInProgress

	for i := range ctx.Goals {
		existing := &ctx.Goals[i]
		if existing.Status != store.GoalStatusInProgress {
			continue
		}
		if existing.Type == g.Type {
			*existing = g
			return
		}
		existing.Status = store.GoalStatusAbandoned
		m.logger.Info("GoalManager", "Abandoned in-progress goal", map[string]interface{}{
			"type": existing.Type,
			"step": existing.Step,
			"next": g.Type,
		})
	}

	ctx.Goals = append(ctx.Goals, g)
}

// UpdateGoal applies fn to the single in-progress goal. When none is in
// progress this is a no-op, never an error; the caller owns starting a
// goal first.
func (m *Manager) UpdateGoal(ctx *store.ChatContext, fn func(*store.Goal)) {
	for i := range ctx.Goals {
		if ctx.Goals[i].Status == store.GoalStatusInProgress {
			fn(&ctx.Goals[i])
			return
		}
	}
}

// Complete marks the in-progress goal completed and returns it, or nil
// when nothing was in progress.
func (m *Manager) Complete(ctx *store.ChatContext) *store.Goal {
	for i := range ctx.Goals {
		if ctx.Goals[i].Status == store.GoalStatusInProgress {
			ctx.Goals[i].Status = store.GoalStatusCompleted
			m.logger.Info("GoalManager", "Goal completed", map[string]interface{}{
				"type": ctx.Goals[i].Type,
				"step": ctx.Goals[i].Step,
			})
			return &ctx.Goals[i]
		}
	}
	return nil
}

// Active returns the in-progress goal, or nil.
func (m *Manager) Active(ctx *store.ChatContext) *store.Goal {
	for i := range ctx.Goals {
		if ctx.Goals[i].Status == store.GoalStatusInProgress {
			return &ctx.Goals[i]
		}
	}
	return nil
}
