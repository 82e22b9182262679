// Package memory holds an in-memory rendition of the repository
// contracts. It backs engine tests and local experiments; the GORM
// implementation is the production path.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/repository/contract"
	"ai-bookingchat-be/internal/repository/specification"
	"ai-bookingchat-be/internal/repository/unitofwork"
)

// ErrWriteFailure is returned when failure injection is armed.
var ErrWriteFailure = errors.New("memory: injected write failure")

// Store is the shared backing state. Failure flags let tests exercise
// the abort paths without a real database.
type Store struct {
	mu sync.Mutex

	Sessions      []*entity.ChatSession
	Contexts      []*entity.UserContext
	Notifications []*entity.Notification
	Businesses    []*entity.Business

	FailSessionCreate      bool
	FailNotificationCreate bool
	FailUpdates            bool

	SessionUpdates int
	ContextUpdates int
}

func NewStore() *Store {
	return &Store{}
}

// NewUnitOfWork implements unitofwork.RepositoryFactory.
func (s *Store) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memoryUow{store: s}
}

var _ unitofwork.RepositoryFactory = (*Store)(nil)

type memoryUow struct {
	store *Store
}

func (u *memoryUow) Begin(ctx context.Context) error { return nil }
func (u *memoryUow) Commit() error                   { return nil }
func (u *memoryUow) Rollback() error                 { return nil }

func (u *memoryUow) ChatSessionRepository() contract.ChatSessionRepository {
	return &sessionRepo{store: u.store}
}

func (u *memoryUow) UserContextRepository() contract.UserContextRepository {
	return &contextRepo{store: u.store}
}

func (u *memoryUow) NotificationRepository() contract.NotificationRepository {
	return &notificationRepo{store: u.store}
}

func (u *memoryUow) BusinessRepository() contract.BusinessRepository {
	return &businessRepo{store: u.store}
}

// sessionQuery is the interpreted form of a spec list.
type sessionQuery struct {
	identity      *specification.ByChannelUser
	updatedSince  *time.Time
	updatedBefore *time.Time
	notEnded      bool
	orderField    string
	orderDesc     bool
	limit         int
}

func parseQuery(specs []specification.Specification) sessionQuery {
	q := sessionQuery{}
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByChannelUser:
			identity := s
			q.identity = &identity
		case specification.UpdatedSince:
			since := s.Since
			q.updatedSince = &since
		case specification.UpdatedBefore:
			before := s.Before
			q.updatedBefore = &before
		case specification.NotEnded:
			q.notEnded = true
		case specification.OrderBy:
			q.orderField = s.Field
			q.orderDesc = s.Desc
		case specification.Limit:
			q.limit = s.N
		}
	}
	return q
}

func sessionUpdatedAt(s *entity.ChatSession) time.Time {
	if s.UpdatedAt != nil {
		return *s.UpdatedAt
	}
	return s.CreatedAt
}

type sessionRepo struct {
	store *Store
}

func (r *sessionRepo) Create(ctx context.Context, session *entity.ChatSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.FailSessionCreate {
		return ErrWriteFailure
	}
	r.store.Sessions = append(r.store.Sessions, session)
	return nil
}

func (r *sessionRepo) Update(ctx context.Context, session *entity.ChatSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.FailUpdates {
		return ErrWriteFailure
	}
	r.store.SessionUpdates++
	for i, existing := range r.store.Sessions {
		if existing.Id == session.Id {
			r.store.Sessions[i] = session
			return nil
		}
	}
	r.store.Sessions = append(r.store.Sessions, session)
	return nil
}

func (r *sessionRepo) MarkEnded(ctx context.Context, ids []uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, session := range r.store.Sessions {
		for _, id := range ids {
			if session.Id == id {
				session.Ended = true
			}
		}
	}
	return nil
}

func (r *sessionRepo) match(specs []specification.Specification) []*entity.ChatSession {
	q := parseQuery(specs)

	var out []*entity.ChatSession
	for _, session := range r.store.Sessions {
		if q.identity != nil {
			if session.Channel != q.identity.Channel ||
				session.ChannelUserId != q.identity.ChannelUserID ||
				session.BusinessId != q.identity.BusinessID {
				continue
			}
		}
		updated := sessionUpdatedAt(session)
		if q.updatedSince != nil && updated.Before(*q.updatedSince) {
			continue
		}
		if q.updatedBefore != nil && !updated.Before(*q.updatedBefore) {
			continue
		}
		if q.notEnded && session.Ended {
			continue
		}
		out = append(out, session)
	}

	if q.orderField != "" {
		sort.SliceStable(out, func(i, j int) bool {
			var a, b time.Time
			if q.orderField == "created_at" {
				a, b = out[i].CreatedAt, out[j].CreatedAt
			} else {
				a, b = sessionUpdatedAt(out[i]), sessionUpdatedAt(out[j])
			}
			if q.orderDesc {
				return a.After(b)
			}
			return a.Before(b)
		})
	}
	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out
}

func (r *sessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	matches := r.match(specs)
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (r *sessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.match(specs), nil
}

func (r *sessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.match(specs))), nil
}

type contextRepo struct {
	store *Store
}

func (r *contextRepo) Create(ctx context.Context, userContext *entity.UserContext) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.Contexts = append(r.store.Contexts, userContext)
	return nil
}

func (r *contextRepo) Update(ctx context.Context, userContext *entity.UserContext) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.FailUpdates {
		return ErrWriteFailure
	}
	r.store.ContextUpdates++
	for i, existing := range r.store.Contexts {
		if existing.Id == userContext.Id {
			r.store.Contexts[i] = userContext
			return nil
		}
	}
	r.store.Contexts = append(r.store.Contexts, userContext)
	return nil
}

func (r *contextRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.UserContext, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	q := parseQuery(specs)
	for _, userContext := range r.store.Contexts {
		if q.identity != nil {
			if userContext.Channel != q.identity.Channel ||
				userContext.ChannelUserId != q.identity.ChannelUserID ||
				userContext.BusinessId != q.identity.BusinessID {
				continue
			}
		}
		return userContext, nil
	}
	return nil, nil
}

type notificationRepo struct {
	store *Store
}

func (r *notificationRepo) Create(ctx context.Context, notification *entity.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.FailNotificationCreate {
		return ErrWriteFailure
	}
	r.store.Notifications = append(r.store.Notifications, notification)
	return nil
}

func (r *notificationRepo) Update(ctx context.Context, notification *entity.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.FailUpdates {
		return ErrWriteFailure
	}
	for i, existing := range r.store.Notifications {
		if existing.Id == notification.Id {
			r.store.Notifications[i] = notification
			return nil
		}
	}
	r.store.Notifications = append(r.store.Notifications, notification)
	return nil
}

func (r *notificationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Notification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	matches := r.match(specs)
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (r *notificationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Notification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.match(specs), nil
}

func (r *notificationRepo) match(specs []specification.Specification) []*entity.Notification {
	var byID *uuid.UUID
	var byBusiness *uuid.UUID
	status := ""
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			id := s.ID
			byID = &id
		case specification.ByBusinessID:
			id := s.BusinessID
			byBusiness = &id
		case specification.ByStatus:
			status = s.Status
		}
	}

	var out []*entity.Notification
	for _, notification := range r.store.Notifications {
		if byID != nil && notification.Id != *byID {
			continue
		}
		if byBusiness != nil && notification.BusinessId != *byBusiness {
			continue
		}
		if status != "" && notification.Status != status {
			continue
		}
		out = append(out, notification)
	}
	return out
}

type businessRepo struct {
	store *Store
}

func (r *businessRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Business, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var byID *uuid.UUID
	var byAddress *specification.ByChannelAddress
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			id := s.ID
			byID = &id
		case specification.ByChannelAddress:
			addr := s
			byAddress = &addr
		}
	}

	for _, business := range r.store.Businesses {
		if byID != nil && business.Id != *byID {
			continue
		}
		if byAddress != nil {
			if business.Channel != byAddress.Channel || business.ChannelAddress != byAddress.Address {
				continue
			}
		}
		return business, nil
	}
	return nil, nil
}
