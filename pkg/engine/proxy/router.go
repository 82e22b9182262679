package proxy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-bookingchat-be/internal/constant"
	"ai-bookingchat-be/internal/pkg/logger"
	enginecache "ai-bookingchat-be/pkg/engine/cache"
	"ai-bookingchat-be/pkg/engine/escalation"
	"ai-bookingchat-be/pkg/store"
)

// Sender delivers a payload to a channel address. Implemented outside
// the engine by the concrete channel integration.
type Sender interface {
	Send(ctx context.Context, destination, payload, origin string) (string, error)
}

// ErrNotProxied reports an operator action against a session that is not
// operator-controlled.
var ErrNotProxied = errors.New("proxy: session is not operator-controlled")

// Router owns the operator-controlled flag: it is the only component
// that reads or writes it, which is what keeps the bot and a human from
// both answering the same inbound message. While proxy mode is active
// the flow controller never sees customer messages; the router relays
// operator text outbound and hands both directions to the persister.
type Router struct {
	cache        *enginecache.SessionCache
	sender       Sender
	orchestrator *escalation.Orchestrator
	logger       logger.ILogger
}

func NewRouter(cache *enginecache.SessionCache, sender Sender, orchestrator *escalation.Orchestrator, log logger.ILogger) *Router {
	return &Router{
		cache:        cache,
		sender:       sender,
		orchestrator: orchestrator,
		logger:       log,
	}
}

// Active reports whether the session is currently human-controlled.
func (r *Router) Active(ctx context.Context, cacheKey string) bool {
	session, found := r.cache.Get(ctx, cacheKey)
	return found && session.OperatorControlled
}

// Enter switches the session to operator control after an escalation was
// recorded. Conflicts retry against fresh state; the flag write must not
// be lost.
func (r *Router) Enter(ctx context.Context, cacheKey, notificationID string) error {
	return r.updateFlag(ctx, cacheKey, func(s *store.CachedSession) {
		s.OperatorControlled = true
		s.NotificationID = notificationID
	})
}

// IsTakeBack recognizes the operator control value that returns the
// conversation to the bot.
func (r *Router) IsTakeBack(text string) bool {
	return strings.TrimSpace(text) == constant.OperatorTakeBackValue
}

// TakeBack ends proxy mode: subsequent turns resume from whatever goal
// state was durably persisted before the escalation. The notification
// stays attending until the operator resolves it explicitly.
func (r *Router) TakeBack(ctx context.Context, cacheKey string) error {
	session, found := r.cache.Get(ctx, cacheKey)
	if !found || !session.OperatorControlled {
		return ErrNotProxied
	}
	return r.updateFlag(ctx, cacheKey, func(s *store.CachedSession) {
		s.OperatorControlled = false
		s.NotificationID = ""
	})
}

// RelayOperatorMessage sends operator text to the customer and returns
// the operator-tagged message for the durable log. The first relayed
// message flips the escalation notification to attending.
func (r *Router) RelayOperatorMessage(ctx context.Context, cacheKey, customerAddress, originAddress, text string) (store.Message, error) {
	session, found := r.cache.Get(ctx, cacheKey)
	if !found || !session.OperatorControlled {
		return store.Message{}, ErrNotProxied
	}

	if session.NotificationID != "" {
		if id, err := uuid.Parse(session.NotificationID); err == nil {
			if _, err := r.orchestrator.Attend(ctx, id); err != nil {
				r.logger.Warn("ProxyRouter", "Attend transition failed", map[string]interface{}{
					"notification_id": session.NotificationID,
					"error":           err.Error(),
				})
			}
		}
	}

	messageID, err := r.sender.Send(ctx, customerAddress, text, originAddress)
	if err != nil {
		return store.Message{}, fmt.Errorf("proxy: outbound delivery failed: %w", err)
	}

	return store.Message{
		Role:      store.RoleOperator,
		Content:   text,
		MessageID: messageID,
		Timestamp: time.Now(),
	}, nil
}

func (r *Router) updateFlag(ctx context.Context, cacheKey string, apply func(*store.CachedSession)) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = r.cache.Update(ctx, cacheKey, func(s *store.CachedSession) error {
			apply(s)
			return nil
		})
		if err == nil || !errors.Is(err, enginecache.ErrVersionConflict) {
			return err
		}
	}
	return err
}
