package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ai-bookingchat-be/internal/constant"
	"ai-bookingchat-be/internal/dto"
	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/repository/specification"
	"ai-bookingchat-be/internal/repository/unitofwork"
	enginecache "ai-bookingchat-be/pkg/engine/cache"
	"ai-bookingchat-be/pkg/engine/dedup"
	"ai-bookingchat-be/pkg/engine/escalation"
	"ai-bookingchat-be/pkg/engine/flow"
	"ai-bookingchat-be/pkg/engine/goal"
	"ai-bookingchat-be/pkg/engine/persist"
	"ai-bookingchat-be/pkg/engine/proxy"
	"ai-bookingchat-be/pkg/engine/resolver"
	"ai-bookingchat-be/pkg/store"
)

// ErrBusinessNotFound is the fatal tenant error: no processing without a
// resolvable business.
var ErrBusinessNotFound = errors.New("no business resolved for inbound address")

// IConversationService is the single idempotent inbound entry point.
type IConversationService interface {
	HandleInbound(ctx context.Context, request *dto.InboundMessageRequest) (*dto.InboundMessageResponse, error)
}

// conversationService wires the engine components into one turn:
// idempotency check, session resolution, escalation evaluation, proxy
// routing or flow processing, then persistence.
type conversationService struct {
	uowFactory          unitofwork.RepositoryFactory
	idempotency         *dedup.IdempotencyCache
	resolver            *resolver.Resolver
	cache               *enginecache.SessionCache
	goals               *goal.Manager
	persister           *persist.Persister
	escalations         *escalation.Orchestrator
	proxyRouter         *proxy.Router
	flowController      FlowController
	sender              ChannelSender
	validate            *validator.Validate
	logger              logger.ILogger
	conflictRetryBudget int
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	idempotency *dedup.IdempotencyCache,
	sessionResolver *resolver.Resolver,
	sessionCache *enginecache.SessionCache,
	goals *goal.Manager,
	persister *persist.Persister,
	escalations *escalation.Orchestrator,
	proxyRouter *proxy.Router,
	flowController FlowController,
	sender ChannelSender,
	conflictRetryBudget int,
	log logger.ILogger,
) IConversationService {
	return &conversationService{
		uowFactory:          uowFactory,
		idempotency:         idempotency,
		resolver:            sessionResolver,
		cache:               sessionCache,
		goals:               goals,
		persister:           persister,
		escalations:         escalations,
		proxyRouter:         proxyRouter,
		flowController:      flowController,
		sender:              sender,
		validate:            validator.New(),
		logger:              log,
		conflictRetryBudget: conflictRetryBudget,
	}
}

func (cs *conversationService) HandleInbound(ctx context.Context, request *dto.InboundMessageRequest) (*dto.InboundMessageResponse, error) {
	if err := cs.validate.Struct(request); err != nil {
		return nil, fmt.Errorf("unreadable payload: %w", err)
	}
	if request.Timestamp.IsZero() {
		request.Timestamp = time.Now()
	}

	// Exact duplicate deliveries are absorbed before any state read and
	// acknowledged exactly like a first delivery.
	if request.MessageId != "" && cs.idempotency.SeenAndMark(ctx, request.MessageId) {
		cs.logger.Debug("ConversationService", "Duplicate delivery dropped", map[string]interface{}{
			"message_id": request.MessageId,
		})
		return &dto.InboundMessageResponse{Handled: true, Duplicate: true}, nil
	}

	business, err := cs.resolveBusiness(ctx, request)
	if err != nil {
		return nil, err
	}

	if request.OperatorTo != "" {
		return cs.handleOperatorMessage(ctx, request, business)
	}
	return cs.handleCustomerMessage(ctx, request, business)
}

// resolveBusiness derives the tenant from an explicit id or from the
// owned channel address; failure is fatal for the turn.
func (cs *conversationService) resolveBusiness(ctx context.Context, request *dto.InboundMessageRequest) (*entity.Business, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if request.BusinessId != "" {
		id, err := uuid.Parse(request.BusinessId)
		if err != nil {
			return nil, fmt.Errorf("unreadable payload: bad business id: %w", err)
		}
		business, err := uow.BusinessRepository().FindOne(ctx, specification.ByID{ID: id})
		if err != nil {
			return nil, err
		}
		if business == nil {
			return nil, ErrBusinessNotFound
		}
		return business, nil
	}

	if request.ChannelAddress == "" {
		return nil, ErrBusinessNotFound
	}
	business, err := uow.BusinessRepository().FindOne(ctx, specification.ByChannelAddress{
		Channel: request.Channel,
		Address: request.ChannelAddress,
	})
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}
	return business, nil
}

func (cs *conversationService) handleCustomerMessage(ctx context.Context, request *dto.InboundMessageRequest, business *entity.Business) (*dto.InboundMessageResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= cs.conflictRetryBudget; attempt++ {
		response, err := cs.customerTurn(ctx, request, business)
		if err == nil {
			return response, nil
		}
		if !errors.Is(err, enginecache.ErrVersionConflict) {
			return nil, err
		}
		// Lost the version race: re-resolve and re-apply from the top.
		lastErr = err
	}
	return nil, lastErr
}

func (cs *conversationService) customerTurn(ctx context.Context, request *dto.InboundMessageRequest, business *entity.Business) (*dto.InboundMessageResponse, error) {
	res, err := cs.resolver.Resolve(ctx, request.Channel, request.From, business.Id)
	if err != nil {
		return nil, err
	}

	userMessage := inboundToMessage(request)
	lang := language(res.UserContext, business)

	// Proxy mode: record the customer message, never consult the flow
	// controller, never reply automatically.
	if cs.proxyRouter.Active(ctx, res.CacheKey) {
		cs.persister.PersistRelay(ctx, res.CacheKey, res.Session, res.UserContext, userMessage)
		return &dto.InboundMessageResponse{Handled: true, SessionId: res.Session.Id.String()}, nil
	}

	if reason, triggered := cs.escalations.Evaluate(request.Text, attachmentTypes(request), res.History, lang); triggered {
		if response, ok := cs.escalate(ctx, request, business, res, userMessage, reason, lang); ok {
			return response, nil
		}
		// Escalation aborted (storage down): fall through as a normal
		// turn rather than pretending help is on the way.
	}

	turn := flow.Turn{
		Inbound:     userMessage,
		History:     append(res.History, userMessage),
		ChatContext: &res.Cached.Context,
	}
	result, err := cs.flowController.Process(ctx, turn)
	if err != nil {
		// Internal errors never become bot text. The silent turn is
		// still recorded below.
		cs.logger.Error("ConversationService", "Flow processing failed", map[string]interface{}{"error": err.Error()})
		result = flow.Result{}
	}

	currentGoal := result.Goal
	if currentGoal != nil {
		// Goal mutations go through the optimistic lock like every
		// other write; a conflict bubbles up to the retry loop.
		if err := cs.cache.Update(ctx, res.CacheKey, func(s *store.CachedSession) error {
			cs.applyGoal(&s.Context, currentGoal)
			return nil
		}); err != nil {
			return nil, err
		}
	}

	botMessage := store.Message{
		Role:      store.RoleBot,
		Content:   result.Reply,
		Timestamp: time.Now(),
	}
	cs.persister.Persist(ctx, persist.Request{
		CacheKey:    res.CacheKey,
		Session:     res.Session,
		UserContext: res.UserContext,
		CurrentGoal: currentGoal,
		UserMessage: userMessage,
		Response:    botMessage,
	})

	if result.Reply != "" {
		if _, err := cs.sender.Send(ctx, request.From, result.Reply, business.ChannelAddress); err != nil {
			cs.logger.Error("ConversationService", "Outbound delivery failed", map[string]interface{}{"error": err.Error()})
		}
	}

	return &dto.InboundMessageResponse{
		Handled:   true,
		Reply:     result.Reply,
		SessionId: res.Session.Id.String(),
	}, nil
}

// escalate records the notification, flips the session to operator
// control and acknowledges the customer. Returns ok=false when the
// escalation had to be aborted.
func (cs *conversationService) escalate(ctx context.Context, request *dto.InboundMessageRequest, business *entity.Business, res *resolver.Resolution, userMessage store.Message, reason, lang string) (*dto.InboundMessageResponse, bool) {
	summary := fmt.Sprintf("[%s] %s: %s", reason, request.From, request.Text)
	notification, ack, err := cs.escalations.Escalate(ctx, business.Id, res.Session.Id.String(), reason, summary, lang)
	if err != nil {
		cs.logger.Error("ConversationService", "Escalation aborted", map[string]interface{}{"error": err.Error()})
		return nil, false
	}

	if err := cs.proxyRouter.Enter(ctx, res.CacheKey, notification.Id.String()); err != nil {
		cs.logger.Error("ConversationService", "Proxy handoff failed", map[string]interface{}{"error": err.Error()})
	}

	ackMessage := store.Message{
		Role:      store.RoleBot,
		Content:   ack,
		Timestamp: time.Now(),
	}
	cs.persister.Persist(ctx, persist.Request{
		CacheKey:    res.CacheKey,
		Session:     res.Session,
		UserContext: res.UserContext,
		UserMessage: userMessage,
		Response:    ackMessage,
		FullHistory: res.History,
	})

	if _, err := cs.sender.Send(ctx, request.From, ack, business.ChannelAddress); err != nil {
		cs.logger.Error("ConversationService", "Escalation ack delivery failed", map[string]interface{}{"error": err.Error()})
	}

	return &dto.InboundMessageResponse{
		Handled:   true,
		Escalated: true,
		Reply:     ack,
		SessionId: res.Session.Id.String(),
	}, true
}

// handleOperatorMessage routes the small operator vocabulary: terminal
// resolve commands, the take-back control value, and plain relayed text.
// Validation errors go back to the operator verbatim.
func (cs *conversationService) handleOperatorMessage(ctx context.Context, request *dto.InboundMessageRequest, business *entity.Business) (*dto.InboundMessageResponse, error) {
	if escalation.IsResolveCommand(request.Text) {
		cmd, err := escalation.ParseResolveCommand(request.Text)
		if err != nil {
			return &dto.InboundMessageResponse{Handled: true, OperatorFeedback: err.Error()}, nil
		}
		if _, err := cs.escalations.Resolve(ctx, cmd); err != nil {
			return &dto.InboundMessageResponse{Handled: true, OperatorFeedback: err.Error()}, nil
		}
		return &dto.InboundMessageResponse{
			Handled:          true,
			OperatorFeedback: fmt.Sprintf("notification %s resolved as %s", cmd.NotificationID, cmd.Status),
		}, nil
	}

	res, err := cs.resolver.Resolve(ctx, request.Channel, request.OperatorTo, business.Id)
	if err != nil {
		return nil, err
	}

	if cs.proxyRouter.IsTakeBack(request.Text) {
		if err := cs.proxyRouter.TakeBack(ctx, res.CacheKey); err != nil {
			return &dto.InboundMessageResponse{Handled: true, OperatorFeedback: err.Error()}, nil
		}
		return &dto.InboundMessageResponse{Handled: true, OperatorFeedback: "conversation returned to the bot"}, nil
	}

	relayed, err := cs.proxyRouter.RelayOperatorMessage(ctx, res.CacheKey, request.OperatorTo, business.ChannelAddress, request.Text)
	if err != nil {
		if errors.Is(err, proxy.ErrNotProxied) {
			return &dto.InboundMessageResponse{Handled: true, OperatorFeedback: err.Error()}, nil
		}
		return nil, err
	}
	cs.persister.PersistRelay(ctx, res.CacheKey, res.Session, res.UserContext, relayed)

	return &dto.InboundMessageResponse{Handled: true, SessionId: res.Session.Id.String()}, nil
}

// applyGoal writes the flow's goal snapshot into the cached context. An
// in-progress goal goes through the manager's single-active-goal rules;
// a terminal snapshot replaces its counterpart in place so AddGoal does
// not resurrect it.
func (cs *conversationService) applyGoal(chatContext *store.ChatContext, g *store.Goal) {
	if g.InProgress() {
		cs.goals.AddGoal(chatContext, *g)
		return
	}
	for i := range chatContext.Goals {
		if chatContext.Goals[i].Type == g.Type {
			chatContext.Goals[i] = *g
			return
		}
	}
	chatContext.Goals = append(chatContext.Goals, *g)
}

func inboundToMessage(request *dto.InboundMessageRequest) store.Message {
	msg := store.Message{
		Role:      store.RoleUser,
		Content:   request.Text,
		MessageID: request.MessageId,
		Timestamp: request.Timestamp,
	}
	if len(request.Attachments) > 0 {
		attachments := make([]interface{}, 0, len(request.Attachments))
		for _, a := range request.Attachments {
			attachments = append(attachments, map[string]interface{}{
				"type":    a.Type,
				"url":     a.URL,
				"caption": a.Caption,
			})
		}
		msg.Payload = map[string]interface{}{"attachments": attachments}
	}
	return msg
}

func attachmentTypes(request *dto.InboundMessageRequest) []string {
	if len(request.Attachments) == 0 {
		return nil
	}
	types := make([]string, 0, len(request.Attachments))
	for _, a := range request.Attachments {
		types = append(types, a.Type)
	}
	return types
}

func language(userContext *entity.UserContext, business *entity.Business) string {
	if userContext.Preferences.Language != "" {
		return userContext.Preferences.Language
	}
	if business.Language != "" {
		return business.Language
	}
	return constant.DefaultLanguage
}
