package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/repository/memory"
	enginecache "ai-bookingchat-be/pkg/engine/cache"
	"ai-bookingchat-be/pkg/store"
)

func newResolverFixture() (*Resolver, *memory.Store, *enginecache.SessionCache) {
	memStore := memory.NewStore()
	cache := enginecache.NewSessionCache(nil, 100, 12*time.Hour, logger.NewNopLogger())
	r := NewResolver(memStore, cache, nil, 12, 20, logger.NewNopLogger())
	return r, memStore, cache
}

// pendingQueue is a PendingWrites stand-in holding one unflushed turn.
type pendingQueue struct {
	session     *entity.ChatSession
	userContext *entity.UserContext
}

func (q *pendingQueue) Snapshot(sessionID uuid.UUID) (*entity.ChatSession, *entity.UserContext, bool) {
	if q.session != nil && q.session.Id == sessionID {
		return q.session, q.userContext, true
	}
	return nil, nil, false
}

func TestResolveCreatesFirstSession(t *testing.T) {
	r, memStore, _ := newResolverFixture()
	businessID := uuid.New()

	res, err := r.Resolve(context.Background(), "whatsapp", "5215550001", businessID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.IsNew {
		t.Fatal("expected a new session")
	}
	if len(res.History) != 0 {
		t.Fatalf("history = %d messages, want empty", len(res.History))
	}
	if res.UserContext == nil || res.UserContext.ChannelUserId != "5215550001" {
		t.Fatal("user context not created")
	}
	if len(memStore.Sessions) != 1 || len(memStore.Contexts) != 1 {
		t.Fatalf("durable rows = %d sessions / %d contexts", len(memStore.Sessions), len(memStore.Contexts))
	}
	if res.Cached == nil || res.Cached.Version != 1 {
		t.Fatal("cache projection missing or wrong version")
	}
}

func TestResolveReusesActiveSession(t *testing.T) {
	r, memStore, _ := newResolverFixture()
	businessID := uuid.New()

	recent := time.Now().Add(-time.Hour)
	existing := &entity.ChatSession{
		Id:            uuid.New(),
		Channel:       "whatsapp",
		ChannelUserId: "5215550001",
		BusinessId:    businessID,
		Messages:      []store.Message{{Role: store.RoleUser, Content: "hola", Timestamp: recent}},
		CreatedAt:     recent,
		UpdatedAt:     &recent,
	}
	memStore.Sessions = append(memStore.Sessions, existing)

	res, err := r.Resolve(context.Background(), "whatsapp", "5215550001", businessID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.IsNew {
		t.Fatal("active session replaced instead of reused")
	}
	if res.Session.Id != existing.Id {
		t.Fatal("wrong session resolved")
	}
	if len(res.History) != 1 {
		t.Fatalf("history = %d, want the stored log", len(res.History))
	}
}

func TestResolvePrefersPendingWrites(t *testing.T) {
	memStore := memory.NewStore()
	cache := enginecache.NewSessionCache(nil, 100, 12*time.Hour, logger.NewNopLogger())
	businessID := uuid.New()
	sessionID := uuid.New()
	recent := time.Now().Add(-time.Minute)

	// The durable row still holds only the first turn; the second turn
	// is queued but not flushed yet.
	memStore.Sessions = append(memStore.Sessions, &entity.ChatSession{
		Id:            sessionID,
		Channel:       "whatsapp",
		ChannelUserId: "5215550001",
		BusinessId:    businessID,
		Messages:      []store.Message{{Role: store.RoleUser, Content: "hola", Timestamp: recent}},
		CreatedAt:     recent,
		UpdatedAt:     &recent,
	})
	queued := &entity.ChatSession{
		Id:            sessionID,
		Channel:       "whatsapp",
		ChannelUserId: "5215550001",
		BusinessId:    businessID,
		Messages: []store.Message{
			{Role: store.RoleUser, Content: "hola", Timestamp: recent},
			{Role: store.RoleUser, Content: "algo más", Timestamp: time.Now()},
		},
		CreatedAt: recent,
		UpdatedAt: &recent,
	}

	r := NewResolver(memStore, cache, &pendingQueue{session: queued}, 12, 20, logger.NewNopLogger())

	res, err := r.Resolve(context.Background(), "whatsapp", "5215550001", businessID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.History) != 2 {
		t.Fatalf("history = %d messages, resolution built on the stale durable row", len(res.History))
	}
	if res.Session != queued {
		t.Fatal("resolution did not adopt the queued session state")
	}
}

func TestResolveCarriesCappedTail(t *testing.T) {
	r, memStore, _ := newResolverFixture()
	businessID := uuid.New()

	stale := time.Now().Add(-48 * time.Hour)
	var old []store.Message
	for i := 0; i < 30; i++ {
		old = append(old, store.Message{Role: store.RoleUser, Content: fmt.Sprintf("msg-%d", i), Timestamp: stale})
	}
	memStore.Sessions = append(memStore.Sessions, &entity.ChatSession{
		Id:            uuid.New(),
		Channel:       "whatsapp",
		ChannelUserId: "5215550001",
		BusinessId:    businessID,
		Messages:      old,
		CreatedAt:     stale,
		UpdatedAt:     &stale,
	})

	res, err := r.Resolve(context.Background(), "whatsapp", "5215550001", businessID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.IsNew {
		t.Fatal("stale session treated as active")
	}
	if len(res.History) != 20 {
		t.Fatalf("carried tail = %d messages, want the cap of 20", len(res.History))
	}
	if res.History[0].Content != "msg-10" {
		t.Fatalf("tail starts at %q, want msg-10", res.History[0].Content)
	}
}

func TestResolveCreationFailureFailsTurn(t *testing.T) {
	r, memStore, _ := newResolverFixture()
	memStore.FailSessionCreate = true

	_, err := r.Resolve(context.Background(), "whatsapp", "5215550001", uuid.New())
	if err == nil {
		t.Fatal("expected the turn to fail when the session cannot be created")
	}
}

func TestResolveSessionBoundaryRehydratesCache(t *testing.T) {
	r, memStore, cache := newResolverFixture()
	businessID := uuid.New()
	ctx := context.Background()

	key := enginecache.Key("whatsapp", "5215550001", businessID.String())
	cache.Set(ctx, key, &store.CachedSession{ID: "old-session", OperatorControlled: true, Version: 7})

	stale := time.Now().Add(-48 * time.Hour)
	memStore.Sessions = append(memStore.Sessions, &entity.ChatSession{
		Id:            uuid.New(),
		Channel:       "whatsapp",
		ChannelUserId: "5215550001",
		BusinessId:    businessID,
		CreatedAt:     stale,
		UpdatedAt:     &stale,
	})

	res, err := r.Resolve(ctx, "whatsapp", "5215550001", businessID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Cached.ID == "old-session" {
		t.Fatal("stale cache entry survived the session boundary")
	}
	if res.Cached.OperatorControlled {
		t.Fatal("operator flag leaked across the session boundary")
	}
	if res.Cached.Version != 1 {
		t.Fatalf("rehydrated version = %d, want 1", res.Cached.Version)
	}
}
