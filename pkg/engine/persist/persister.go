package persist

import (
	"context"
	"errors"
	"time"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	enginecache "ai-bookingchat-be/pkg/engine/cache"
	"ai-bookingchat-be/pkg/store"
)

// Request carries one reconciled turn: the inbound user message, the bot
// or operator response, and the state it should be merged into.
// FullHistory, when set, overrides the message base entirely (used while
// reconciling an escalation handoff).
type Request struct {
	CacheKey    string
	Session     *entity.ChatSession
	UserContext *entity.UserContext
	CurrentGoal *store.Goal
	UserMessage store.Message
	Response    store.Message
	FullHistory []store.Message
}

// Persister merges a turn into the durable log and writes back the goal
// snapshot. The cache write is synchronous so the next turn sees fresh
// state; the durable write goes through the outbox and never blocks the
// reply. Persist is best-effort by contract: failures are logged, the
// synchronous request path is never failed from here.
type Persister struct {
	cache       *enginecache.SessionCache
	outbox      *Outbox
	dedupWindow time.Duration
	logger      logger.ILogger
}

func NewPersister(cache *enginecache.SessionCache, outbox *Outbox, dedupWindowSeconds int, log logger.ILogger) *Persister {
	return &Persister{
		cache:       cache,
		outbox:      outbox,
		dedupWindow: time.Duration(dedupWindowSeconds) * time.Second,
		logger:      log,
	}
}

func (p *Persister) Persist(ctx context.Context, req Request) {
	// Goal snapshot: a just-completed goal is archived into the
	// previous slot and cleared; anything else persists as-is.
	if req.CurrentGoal != nil {
		switch req.CurrentGoal.Status {
		case store.GoalStatusCompleted, store.GoalStatusAbandoned:
			req.UserContext.PreviousGoal = req.CurrentGoal
			req.UserContext.CurrentGoal = nil
		default:
			req.UserContext.CurrentGoal = req.CurrentGoal
		}
	}

	messages := p.messageBase(req)

	if isDuplicate(messages, req.UserMessage, p.dedupWindow) {
		p.logger.Debug("StatePersister", "Duplicate user message absorbed", map[string]interface{}{
			"session_id": req.Session.Id.String(),
		})
	} else {
		messages = append(messages, req.UserMessage)
		// A silent turn stores the user message alone; no ghost
		// empty bubbles in history.
		if req.Response.Content != "" {
			messages = append(messages, req.Response)
		}
	}

	req.Session.Messages = messages
	now := time.Now()
	req.Session.UpdatedAt = &now
	req.UserContext.UpdatedAt = &now

	p.updateCache(ctx, req)

	p.outbox.Enqueue(req.Session, req.UserContext)
}

// PersistRelay appends one already-delivered message (an operator relay
// or a customer message arriving during proxy mode) without running the
// goal-merge rules. Customer messages still pass the duplicate check:
// provider retries happen in proxy mode too.
func (p *Persister) PersistRelay(ctx context.Context, cacheKey string, session *entity.ChatSession, userContext *entity.UserContext, msg store.Message) {
	if msg.Role == store.RoleUser && isDuplicate(session.Messages, msg, p.dedupWindow) {
		p.logger.Debug("StatePersister", "Duplicate relayed message absorbed", map[string]interface{}{
			"session_id": session.Id.String(),
		})
		return
	}
	session.Messages = append(session.Messages, msg)
	now := time.Now()
	session.UpdatedAt = &now

	if err := p.cache.Update(ctx, cacheKey, func(s *store.CachedSession) error {
		return nil // version bump refreshes LastActivity only
	}); err != nil {
		p.logger.Warn("StatePersister", "Relay cache touch failed", map[string]interface{}{"error": err.Error()})
	}

	p.outbox.Enqueue(session, userContext)
}

// messageBase picks the log to merge into: an explicit full history
// wins, then the active goal's slice, then whatever the session already
// holds (the no-goal FAQ case).
func (p *Persister) messageBase(req Request) []store.Message {
	if req.FullHistory != nil {
		return req.FullHistory
	}
	if req.CurrentGoal != nil && len(req.CurrentGoal.Messages) > 0 {
		return req.CurrentGoal.Messages
	}
	return req.Session.Messages
}

func (p *Persister) updateCache(ctx context.Context, req Request) {
	for attempt := 0; attempt < 3; attempt++ {
		err := p.cache.Update(ctx, req.CacheKey, func(s *store.CachedSession) error {
			s.SessionData = req.UserContext.SessionData
			s.Context.Preferences = req.UserContext.Preferences
			s.Context.Goals = nil
			if req.UserContext.CurrentGoal != nil {
				s.Context.Goals = []store.Goal{*req.UserContext.CurrentGoal}
			}
			return nil
		})
		if err == nil {
			return
		}
		if !errors.Is(err, enginecache.ErrVersionConflict) {
			p.logger.Warn("StatePersister", "Cache write-back failed", map[string]interface{}{"error": err.Error()})
			return
		}
		// conflict: Update re-reads on the next attempt
	}
	p.logger.Warn("StatePersister", "Cache write-back lost the version race", map[string]interface{}{
		"key": req.CacheKey,
	})
}

// isDuplicate applies the content+timing rule against the immediately
// preceding stored user message. Media-bearing messages additionally
// require the same provider id: two different photos can legitimately
// share an empty caption.
func isDuplicate(messages []store.Message, incoming store.Message, window time.Duration) bool {
	var last *store.Message
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == store.RoleUser {
			last = &messages[i]
			break
		}
	}
	if last == nil {
		return false
	}
	if last.Content != incoming.Content {
		return false
	}
	if incoming.Timestamp.Sub(last.Timestamp) >= window {
		return false
	}
	if len(incoming.Payload) > 0 || len(last.Payload) > 0 {
		return incoming.MessageID != "" && incoming.MessageID == last.MessageID
	}
	return true
}
