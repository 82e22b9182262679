package flow

import (
	"context"
	"time"

	"ai-bookingchat-be/pkg/store"
)

// ScriptStep is one prompt in a linear flow. The user's answer is stored
// under Key in the goal data.
type ScriptStep struct {
	Key    string
	Prompt string
}

// ScriptedHandler walks a goal through a fixed prompt sequence. Step
// counts issued prompts: 0 means the goal was just activated and no
// question has been asked yet. It is the simplest useful StepHandler;
// real flows replace it through the registry.
type ScriptedHandler struct {
	Type       GoalType
	Steps      []ScriptStep
	Completion string
}

func NewScriptedHandler(goalType GoalType, steps []ScriptStep, completion string) *ScriptedHandler {
	return &ScriptedHandler{
		Type:       goalType,
		Steps:      steps,
		Completion: completion,
	}
}

func (h *ScriptedHandler) GoalType() GoalType {
	return h.Type
}

func (h *ScriptedHandler) Handle(ctx context.Context, turn Turn, g *store.Goal) (Result, error) {
	if g.Data == nil {
		g.Data = map[string]interface{}{}
	}

	// The activation message is not an answer; answers start once a
	// prompt has been issued.
	if g.Step > 0 && g.Step <= len(h.Steps) && turn.Inbound.Content != "" {
		g.Data[h.Steps[g.Step-1].Key] = turn.Inbound.Content
	}

	if g.Step >= len(h.Steps) {
		g.Status = store.GoalStatusCompleted
		g.Messages = append(g.Messages, turn.Inbound, botMessage(h.Completion))
		return Result{Reply: h.Completion, Goal: g}, nil
	}

	prompt := h.Steps[g.Step].Prompt
	g.Step++
	g.Messages = append(g.Messages, turn.Inbound, botMessage(prompt))
	return Result{Reply: prompt, Goal: g}, nil
}

func botMessage(content string) store.Message {
	return store.Message{
		Role:      store.RoleBot,
		Content:   content,
		Timestamp: time.Now(),
	}
}
