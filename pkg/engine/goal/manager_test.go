package goal

import (
	"testing"

	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/pkg/store"
)

func TestAddGoalSingleActive(t *testing.T) {
	m := NewManager(logger.NewNopLogger())
	ctx := &store.ChatContext{}

	m.AddGoal(ctx, store.Goal{Type: "booking", Step: 2})
	m.AddGoal(ctx, store.Goal{Type: "cancellation"})

	active := 0
	for _, g := range ctx.Goals {
		if g.Status == store.GoalStatusInProgress {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active goals = %d, want 1", active)
	}
}

func TestAddGoalAbandonsDifferingType(t *testing.T) {
	m := NewManager(logger.NewNopLogger())
	ctx := &store.ChatContext{}

	m.AddGoal(ctx, store.Goal{Type: "booking", Step: 2})
	m.AddGoal(ctx, store.Goal{Type: "cancellation"})

	if len(ctx.Goals) != 2 {
		t.Fatalf("goals = %d, want 2", len(ctx.Goals))
	}
	old := ctx.Goals[0]
	if old.Status != store.GoalStatusAbandoned {
		t.Fatalf("interrupted goal status = %q, want abandoned", old.Status)
	}
	if old.Step != 2 {
		t.Fatalf("interrupted step = %d, want 2 preserved", old.Step)
	}
}

func TestAddGoalSameTypeReplacesInPlace(t *testing.T) {
	m := NewManager(logger.NewNopLogger())
	ctx := &store.ChatContext{}

	m.AddGoal(ctx, store.Goal{Type: "booking", Step: 1})
	m.AddGoal(ctx, store.Goal{Type: "booking", Step: 0, Action: "restart"})

	if len(ctx.Goals) != 1 {
		t.Fatalf("goals = %d, want 1", len(ctx.Goals))
	}
	if ctx.Goals[0].Action != "restart" || ctx.Goals[0].Step != 0 {
		t.Fatal("same-type goal was not replaced in place")
	}
}

func TestUpdateGoalNoActiveIsNoop(t *testing.T) {
	m := NewManager(logger.NewNopLogger())
	ctx := &store.ChatContext{
		Goals: []store.Goal{{Type: "booking", Status: store.GoalStatusCompleted}},
	}

	called := false
	m.UpdateGoal(ctx, func(g *store.Goal) { called = true })
	if called {
		t.Fatal("UpdateGoal ran against a non-active goal")
	}
}

func TestComplete(t *testing.T) {
	m := NewManager(logger.NewNopLogger())
	ctx := &store.ChatContext{}
	m.AddGoal(ctx, store.Goal{Type: "booking"})

	done := m.Complete(ctx)
	if done == nil || done.Status != store.GoalStatusCompleted {
		t.Fatal("Complete did not mark the active goal")
	}
	if m.Active(ctx) != nil {
		t.Fatal("a goal is still active after Complete")
	}
	if m.Complete(ctx) != nil {
		t.Fatal("Complete found a goal where none is active")
	}
}
