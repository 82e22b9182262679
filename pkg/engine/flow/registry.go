package flow

import (
	"context"
	"fmt"

	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/pkg/store"
)

// GoalType is the closed set of multi-step intents the engine routes.
// Adding a goal type means adding a constant here and registering a
// handler for it; unknown strings never dispatch.
type GoalType string

const (
	GoalTypeBooking      GoalType = "booking"
	GoalTypeReschedule   GoalType = "reschedule"
	GoalTypeCancellation GoalType = "cancellation"
	GoalTypeFAQ          GoalType = "faq"
)

// Turn is everything a step handler may look at for one exchange.
type Turn struct {
	Inbound     store.Message
	History     []store.Message
	ChatContext *store.ChatContext
}

// Result is what a handler decided: the outbound reply (may be empty for
// a silent turn) and the goal snapshot after the step ran.
type Result struct {
	Reply string
	Goal  *store.Goal
}

// StepHandler advances one goal type through its step sequence. The
// actual flow logic (prompts, pricing, availability) lives outside the
// engine; handlers are the seam it plugs into.
type StepHandler interface {
	GoalType() GoalType
	Handle(ctx context.Context, turn Turn, g *store.Goal) (Result, error)
}

// Registry dispatches a turn to the handler owning the active goal's
// type. It backs the conversation service's FlowController port.
type Registry struct {
	handlers map[GoalType]StepHandler
	logger   logger.ILogger
}

func NewRegistry(log logger.ILogger, handlers ...StepHandler) (*Registry, error) {
	r := &Registry{
		handlers: make(map[GoalType]StepHandler, len(handlers)),
		logger:   log,
	}
	for _, h := range handlers {
		if _, dup := r.handlers[h.GoalType()]; dup {
			return nil, fmt.Errorf("flow: duplicate handler for goal type %q", h.GoalType())
		}
		r.handlers[h.GoalType()] = h
	}
	return r, nil
}

// Process runs the active goal's handler. With no active goal, or no
// handler registered for its type, the turn is a silent one: the
// persister still records the user message, the bot just says nothing.
func (r *Registry) Process(ctx context.Context, turn Turn) (Result, error) {
	var active *store.Goal
	if turn.ChatContext != nil {
		for i := range turn.ChatContext.Goals {
			if turn.ChatContext.Goals[i].Status == store.GoalStatusInProgress {
				active = &turn.ChatContext.Goals[i]
				break
			}
		}
	}
	if active == nil {
		return Result{}, nil
	}

	handler, ok := r.handlers[GoalType(active.Type)]
	if !ok {
		r.logger.Warn("FlowRegistry", "No handler for goal type", map[string]interface{}{"type": active.Type})
		return Result{Goal: active}, nil
	}

	return handler.Handle(ctx, turn, active)
}
