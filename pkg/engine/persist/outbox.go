package persist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/repository/unitofwork"
)

// Outbox decouples durable writes from the response path. Entries are
// flushed on a timer with bounded retries; a write that keeps failing is
// dropped with an error log, the cache copy stays authoritative for the
// next turns while it is warm.
type Outbox struct {
	uowFactory    unitofwork.RepositoryFactory
	logger        logger.ILogger
	flushInterval time.Duration
	maxAttempts   int

	mu      sync.Mutex
	entries []*outboxEntry
}

type outboxEntry struct {
	session     *entity.ChatSession
	userContext *entity.UserContext
	attempts    int
}

func NewOutbox(uowFactory unitofwork.RepositoryFactory, flushInterval time.Duration, maxAttempts int, log logger.ILogger) *Outbox {
	return &Outbox{
		uowFactory:    uowFactory,
		logger:        log,
		flushInterval: flushInterval,
		maxAttempts:   maxAttempts,
	}
}

// Enqueue coalesces per session: a later turn carries the full message
// log, so it supersedes any entry still waiting for the same session.
func (o *Outbox) Enqueue(session *entity.ChatSession, userContext *entity.UserContext) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.session.Id == session.Id {
			e.session = session
			e.userContext = userContext
			e.attempts = 0
			return
		}
	}
	o.entries = append(o.entries, &outboxEntry{session: session, userContext: userContext})
}

// Snapshot returns the queued-but-not-yet-durable state for a session.
// Readers rebuilding from the durable row must prefer this: the row is
// stale until the entry flushes.
func (o *Outbox) Snapshot(sessionID uuid.UUID) (*entity.ChatSession, *entity.UserContext, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.session.Id == sessionID {
			return e.session, e.userContext, true
		}
	}
	return nil, nil, false
}

// Start flushes on a timer until ctx is done, then drains once more.
func (o *Outbox) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(o.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				o.Flush(context.Background())
				return
			case <-ticker.C:
				o.Flush(ctx)
			}
		}
	}()
}

// Flush attempts every queued entry. Failures are requeued until the
// attempt budget runs out.
func (o *Outbox) Flush(ctx context.Context) {
	o.mu.Lock()
	pending := o.entries
	o.entries = nil
	o.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	var retry []*outboxEntry
	for _, e := range pending {
		if err := o.write(ctx, e); err != nil {
			e.attempts++
			if e.attempts >= o.maxAttempts {
				o.logger.Error("Outbox", "Dropping durable write after retries", map[string]interface{}{
					"session_id": e.session.Id.String(),
					"attempts":   e.attempts,
					"error":      err.Error(),
				})
				continue
			}
			o.logger.Warn("Outbox", "Durable write failed, will retry", map[string]interface{}{
				"session_id": e.session.Id.String(),
				"attempts":   e.attempts,
				"error":      err.Error(),
			})
			retry = append(retry, e)
		}
	}

	if len(retry) > 0 {
		o.mu.Lock()
		for _, e := range retry {
			if o.hasEntry(e.session.Id) {
				// superseded by a newer turn while flushing
				continue
			}
			o.entries = append(o.entries, e)
		}
		o.mu.Unlock()
	}
}

// hasEntry expects o.mu held.
func (o *Outbox) hasEntry(sessionID uuid.UUID) bool {
	for _, e := range o.entries {
		if e.session.Id == sessionID {
			return true
		}
	}
	return false
}

func (o *Outbox) write(ctx context.Context, e *outboxEntry) error {
	uow := o.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatSessionRepository().Update(ctx, e.session); err != nil {
		return err
	}
	if err := uow.UserContextRepository().Update(ctx, e.userContext); err != nil {
		return err
	}

	return uow.Commit()
}

// Pending reports queue depth. Used by tests and health checks.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
