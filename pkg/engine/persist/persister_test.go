package persist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/repository/memory"
	enginecache "ai-bookingchat-be/pkg/engine/cache"
	"ai-bookingchat-be/pkg/store"
)

func newPersistFixture(t *testing.T) (*Persister, *Outbox, *memory.Store, string) {
	t.Helper()
	memStore := memory.NewStore()
	cache := enginecache.NewSessionCache(nil, 100, 12*time.Hour, logger.NewNopLogger())
	outbox := NewOutbox(memStore, time.Minute, 3, logger.NewNopLogger())
	persister := NewPersister(cache, outbox, 5, logger.NewNopLogger())

	key := enginecache.Key("whatsapp", "5215550001", "biz")
	cache.Set(context.Background(), key, &store.CachedSession{ID: "s1", Version: 1})

	return persister, outbox, memStore, key
}

func userMsg(content string, at time.Time) store.Message {
	return store.Message{Role: store.RoleUser, Content: content, Timestamp: at}
}

func botMsg(content string) store.Message {
	return store.Message{Role: store.RoleBot, Content: content, Timestamp: time.Now()}
}

func newTurn(session *entity.ChatSession, key string, user store.Message, reply string) Request {
	return Request{
		CacheKey:    key,
		Session:     session,
		UserContext: &entity.UserContext{Id: uuid.New()},
		UserMessage: user,
		Response:    botMsg(reply),
	}
}

func TestPersistAppendsTurn(t *testing.T) {
	persister, outbox, _, key := newPersistFixture(t)
	session := &entity.ChatSession{Id: uuid.New()}

	persister.Persist(context.Background(), newTurn(session, key, userMsg("hola", time.Now()), "¡Hola! ¿En qué puedo ayudarte?"))

	if len(session.Messages) != 2 {
		t.Fatalf("messages = %d, want user+bot", len(session.Messages))
	}
	if session.Messages[0].Role != store.RoleUser || session.Messages[1].Role != store.RoleBot {
		t.Fatal("turn order wrong")
	}
	if outbox.Pending() != 1 {
		t.Fatalf("outbox pending = %d, want 1", outbox.Pending())
	}
}

func TestPersistDedupWindow(t *testing.T) {
	persister, _, _, key := newPersistFixture(t)
	session := &entity.ChatSession{Id: uuid.New()}
	ctx := context.Background()

	base := time.Now()
	persister.Persist(ctx, newTurn(session, key, userMsg("quiero reservar", base), "ok"))
	// Same content 2 seconds later: provider retry, absorbed.
	persister.Persist(ctx, newTurn(session, key, userMsg("quiero reservar", base.Add(2*time.Second)), "ok"))

	if len(session.Messages) != 2 {
		t.Fatalf("messages = %d, duplicate was stored", len(session.Messages))
	}

	// Same content 30 seconds later: the user repeating themselves.
	persister.Persist(ctx, newTurn(session, key, userMsg("quiero reservar", base.Add(30*time.Second)), "ok"))
	if len(session.Messages) != 4 {
		t.Fatalf("messages = %d, legitimate repeat was absorbed", len(session.Messages))
	}
}

func TestPersistMediaDedupRequiresMessageID(t *testing.T) {
	persister, _, _, key := newPersistFixture(t)
	session := &entity.ChatSession{Id: uuid.New()}
	ctx := context.Background()
	base := time.Now()

	photo := func(id string, at time.Time) store.Message {
		return store.Message{
			Role:      store.RoleUser,
			Content:   "",
			MessageID: id,
			Payload:   map[string]interface{}{"attachments": []interface{}{map[string]interface{}{"type": "image"}}},
			Timestamp: at,
		}
	}

	persister.Persist(ctx, newTurn(session, key, photo("m1", base), "got it"))
	// Different photo, same empty caption, inside the window: distinct.
	persister.Persist(ctx, newTurn(session, key, photo("m2", base.Add(time.Second)), "got it"))
	if len(session.Messages) != 4 {
		t.Fatalf("messages = %d, distinct media was absorbed", len(session.Messages))
	}

	// Same provider id redelivered: duplicate.
	persister.Persist(ctx, newTurn(session, key, photo("m2", base.Add(2*time.Second)), "got it"))
	if len(session.Messages) != 4 {
		t.Fatalf("messages = %d, redelivered media was stored", len(session.Messages))
	}
}

func TestPersistSilentTurn(t *testing.T) {
	persister, _, _, key := newPersistFixture(t)
	session := &entity.ChatSession{Id: uuid.New()}

	persister.Persist(context.Background(), newTurn(session, key, userMsg("...", time.Now()), ""))

	if len(session.Messages) != 1 {
		t.Fatalf("messages = %d, want only the user message", len(session.Messages))
	}
	if session.Messages[0].Role != store.RoleUser {
		t.Fatal("stored message is not the user's")
	}
}

func TestPersistRelayDedupsCustomerMessages(t *testing.T) {
	persister, _, _, key := newPersistFixture(t)
	session := &entity.ChatSession{Id: uuid.New()}
	userContext := &entity.UserContext{Id: uuid.New()}
	ctx := context.Background()
	base := time.Now()

	persister.PersistRelay(ctx, key, session, userContext, userMsg("sigo esperando", base))
	// Provider retry without a message id, inside the window: absorbed.
	persister.PersistRelay(ctx, key, session, userContext, userMsg("sigo esperando", base.Add(2*time.Second)))
	if len(session.Messages) != 1 {
		t.Fatalf("messages = %d, duplicate relay was stored", len(session.Messages))
	}

	// An operator echoing the same words is not a retry.
	persister.PersistRelay(ctx, key, session, userContext, store.Message{
		Role: store.RoleOperator, Content: "sigo esperando", Timestamp: base.Add(3 * time.Second),
	})
	if len(session.Messages) != 2 {
		t.Fatalf("messages = %d, operator relay was absorbed", len(session.Messages))
	}
}

func TestPersistArchivesCompletedGoal(t *testing.T) {
	persister, _, _, key := newPersistFixture(t)
	session := &entity.ChatSession{Id: uuid.New()}
	userContext := &entity.UserContext{Id: uuid.New()}

	req := newTurn(session, key, userMsg("si, a las 3", time.Now()), "Listo, reservado.")
	req.UserContext = userContext
	req.CurrentGoal = &store.Goal{Type: "booking", Status: store.GoalStatusCompleted}

	persister.Persist(context.Background(), req)

	if userContext.CurrentGoal != nil {
		t.Fatal("completed goal still current")
	}
	if userContext.PreviousGoal == nil || userContext.PreviousGoal.Type != "booking" {
		t.Fatal("completed goal not archived")
	}
}

func TestOutboxFlushWritesDurably(t *testing.T) {
	_, outbox, memStore, _ := newPersistFixture(t)
	session := &entity.ChatSession{Id: uuid.New()}
	userContext := &entity.UserContext{Id: uuid.New()}

	outbox.Enqueue(session, userContext)
	outbox.Flush(context.Background())

	if outbox.Pending() != 0 {
		t.Fatalf("pending = %d after flush", outbox.Pending())
	}
	if memStore.SessionUpdates != 1 || memStore.ContextUpdates != 1 {
		t.Fatalf("durable writes = %d/%d, want 1/1", memStore.SessionUpdates, memStore.ContextUpdates)
	}
}

func TestOutboxCoalescesPerSession(t *testing.T) {
	_, outbox, memStore, _ := newPersistFixture(t)
	session := &entity.ChatSession{Id: uuid.New()}
	other := &entity.ChatSession{Id: uuid.New()}
	userContext := &entity.UserContext{Id: uuid.New()}

	// Two turns for one session inside the flush window must not leave
	// two rows racing to overwrite each other.
	outbox.Enqueue(session, userContext)
	outbox.Enqueue(session, userContext)
	outbox.Enqueue(other, userContext)

	if outbox.Pending() != 2 {
		t.Fatalf("pending = %d, want one entry per session", outbox.Pending())
	}

	outbox.Flush(context.Background())
	if memStore.SessionUpdates != 2 {
		t.Fatalf("durable session writes = %d, want 2", memStore.SessionUpdates)
	}
}

func TestOutboxSnapshotExposesQueuedState(t *testing.T) {
	_, outbox, _, _ := newPersistFixture(t)
	session := &entity.ChatSession{
		Id:       uuid.New(),
		Messages: []store.Message{userMsg("hola", time.Now())},
	}
	outbox.Enqueue(session, &entity.UserContext{Id: uuid.New()})

	queued, _, ok := outbox.Snapshot(session.Id)
	if !ok || len(queued.Messages) != 1 {
		t.Fatal("queued session not visible through Snapshot")
	}
	if _, _, ok := outbox.Snapshot(uuid.New()); ok {
		t.Fatal("Snapshot matched a session it does not hold")
	}

	outbox.Flush(context.Background())
	if _, _, ok := outbox.Snapshot(session.Id); ok {
		t.Fatal("flushed entry still visible through Snapshot")
	}
}

func TestOutboxDropsAfterRetryBudget(t *testing.T) {
	memStore := memory.NewStore()
	memStore.FailUpdates = true
	outbox := NewOutbox(memStore, time.Minute, 3, logger.NewNopLogger())

	outbox.Enqueue(&entity.ChatSession{Id: uuid.New()}, &entity.UserContext{Id: uuid.New()})

	ctx := context.Background()
	outbox.Flush(ctx)
	outbox.Flush(ctx)
	if outbox.Pending() != 1 {
		t.Fatalf("pending = %d, entry dropped before budget ran out", outbox.Pending())
	}
	outbox.Flush(ctx)
	if outbox.Pending() != 0 {
		t.Fatalf("pending = %d, entry survived its retry budget", outbox.Pending())
	}
}
