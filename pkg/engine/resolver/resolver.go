package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/repository/specification"
	"ai-bookingchat-be/internal/repository/unitofwork"
	enginecache "ai-bookingchat-be/pkg/engine/cache"
	"ai-bookingchat-be/pkg/store"
)

// Resolution is the hydrated state for one inbound turn.
type Resolution struct {
	Session     *entity.ChatSession
	IsNew       bool
	UserContext *entity.UserContext
	History     []store.Message // oldest-first, carried tail included
	Cached      *store.CachedSession
	CacheKey    string
}

// PendingWrites exposes state queued for durable write but not yet
// flushed. The persist outbox implements it.
type PendingWrites interface {
	Snapshot(sessionID uuid.UUID) (*entity.ChatSession, *entity.UserContext, bool)
}

// Resolver finds or creates the active chat session for a conversation
// identity and hydrates its cached projection. A session is active while
// updated_at is inside the inactivity timeout; there is no explicit
// close.
type Resolver struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *enginecache.SessionCache
	pending    PendingWrites
	timeout    time.Duration
	carryLimit int
	logger     logger.ILogger
}

func NewResolver(uowFactory unitofwork.RepositoryFactory, cache *enginecache.SessionCache, pending PendingWrites, timeoutHours, carryLimit int, log logger.ILogger) *Resolver {
	return &Resolver{
		uowFactory: uowFactory,
		cache:      cache,
		pending:    pending,
		timeout:    time.Duration(timeoutHours) * time.Hour,
		carryLimit: carryLimit,
		logger:     log,
	}
}

// Resolve returns the active session, creating one seeded with the tail
// of the previous session when none is active. Creation failure fails
// the whole turn: no context object is ever invented, a null session
// would orphan its goals.
func (r *Resolver) Resolve(ctx context.Context, channel, channelUserID string, businessID uuid.UUID) (*Resolution, error) {
	uow := r.uowFactory.NewUnitOfWork(ctx)
	sessions := uow.ChatSessionRepository()

	identity := specification.ByChannelUser{
		Channel:       channel,
		ChannelUserID: channelUserID,
		BusinessID:    businessID,
	}

	active, err := sessions.FindOne(ctx,
		identity,
		specification.UpdatedSince{Since: time.Now().Add(-r.timeout)},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, fmt.Errorf("resolver: session lookup failed: %w", err)
	}

	isNew := false
	if active == nil {
		prior, err := sessions.FindOne(ctx,
			identity,
			specification.OrderBy{Field: "updated_at", Desc: true},
		)
		if err != nil {
			return nil, fmt.Errorf("resolver: prior session lookup failed: %w", err)
		}

		// Best-effort: flag superseded sessions in the background.
		// Correctness never depends on this, activity is time-derived.
		go r.markStaleEnded(channel, channelUserID, businessID)

		var seed []store.Message
		if prior != nil {
			seed = tail(prior.Messages, r.carryLimit)
		}

		created := &entity.ChatSession{
			Id:            uuid.New(),
			Channel:       channel,
			ChannelUserId: channelUserID,
			BusinessId:    businessID,
			Messages:      seed,
			CreatedAt:     time.Now(),
		}
		if err := sessions.Create(ctx, created); err != nil {
			return nil, fmt.Errorf("resolver: session creation failed: %w", err)
		}
		active = created
		isNew = true
	}

	userContext, err := r.loadOrCreateContext(ctx, uow, channel, channelUserID, businessID)
	if err != nil {
		return nil, err
	}

	// A turn still waiting in the outbox is newer than the durable row;
	// building on the row would drop its messages on the next flush.
	if r.pending != nil {
		if pendingSession, pendingContext, ok := r.pending.Snapshot(active.Id); ok {
			active = pendingSession
			if pendingContext != nil {
				userContext = pendingContext
			}
		}
	}

	key := enginecache.Key(channel, channelUserID, businessID.String())
	cached, found := r.cache.Get(ctx, key)
	if !found || cached.ID != active.Id.String() {
		cached = hydrate(active, userContext)
		r.cache.Set(ctx, key, cached)
	}

	return &Resolution{
		Session:     active,
		IsNew:       isNew,
		UserContext: userContext,
		History:     active.Messages,
		Cached:      cached,
		CacheKey:    key,
	}, nil
}

func (r *Resolver) loadOrCreateContext(ctx context.Context, uow unitofwork.UnitOfWork, channel, channelUserID string, businessID uuid.UUID) (*entity.UserContext, error) {
	contexts := uow.UserContextRepository()

	userContext, err := contexts.FindOne(ctx, specification.ByChannelUser{
		Channel:       channel,
		ChannelUserID: channelUserID,
		BusinessID:    businessID,
	})
	if err != nil {
		return nil, fmt.Errorf("resolver: context lookup failed: %w", err)
	}
	if userContext != nil {
		return userContext, nil
	}

	userContext = &entity.UserContext{
		Id:            uuid.New(),
		Channel:       channel,
		ChannelUserId: channelUserID,
		BusinessId:    businessID,
		Preferences:   store.Preferences{Notifications: true},
		CreatedAt:     time.Now(),
	}
	if err := contexts.Create(ctx, userContext); err != nil {
		return nil, fmt.Errorf("resolver: context creation failed: %w", err)
	}
	return userContext, nil
}

func (r *Resolver) markStaleEnded(channel, channelUserID string, businessID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uow := r.uowFactory.NewUnitOfWork(ctx)
	stale, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.ByChannelUser{Channel: channel, ChannelUserID: channelUserID, BusinessID: businessID},
		specification.UpdatedBefore{Before: time.Now().Add(-r.timeout)},
		specification.NotEnded{},
	)
	if err != nil {
		r.logger.Warn("Resolver", "Stale session sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	ids := make([]uuid.UUID, 0, len(stale))
	for _, s := range stale {
		ids = append(ids, s.Id)
	}
	if err := uow.ChatSessionRepository().MarkEnded(ctx, ids); err != nil {
		r.logger.Warn("Resolver", "Stale session flagging failed", map[string]interface{}{"error": err.Error()})
	}
}

// hydrate builds the cache projection from durable state on a cache miss
// or a session boundary.
func hydrate(session *entity.ChatSession, userContext *entity.UserContext) *store.CachedSession {
	chatContext := store.ChatContext{
		Participant: session.ChannelUserId,
		Preferences: userContext.Preferences,
	}
	if userContext.CurrentGoal != nil {
		chatContext.Goals = []store.Goal{*userContext.CurrentGoal}
	}

	return &store.CachedSession{
		ID:            session.Id.String(),
		Channel:       session.Channel,
		ChannelUserID: session.ChannelUserId,
		BusinessID:    session.BusinessId.String(),
		Context:       chatContext,
		SessionData:   userContext.SessionData,
		LastActivity:  time.Now(),
		Version:       1,
	}
}

func tail(messages []store.Message, limit int) []store.Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}
