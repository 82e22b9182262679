package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-bookingchat-be/internal/constant"
	"ai-bookingchat-be/internal/dto"
	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/repository/memory"
	enginecache "ai-bookingchat-be/pkg/engine/cache"
	"ai-bookingchat-be/pkg/engine/dedup"
	"ai-bookingchat-be/pkg/engine/escalation"
	"ai-bookingchat-be/pkg/engine/flow"
	"ai-bookingchat-be/pkg/engine/goal"
	"ai-bookingchat-be/pkg/engine/persist"
	"ai-bookingchat-be/pkg/engine/proxy"
	"ai-bookingchat-be/pkg/engine/resolver"
)

type recordingSender struct {
	sent []sentMessage
}

type sentMessage struct {
	To   string
	Text string
}

func (r *recordingSender) Send(ctx context.Context, destination, payload, origin string) (string, error) {
	r.sent = append(r.sent, sentMessage{To: destination, Text: payload})
	return uuid.NewString(), nil
}

type fixture struct {
	service  IConversationService
	store    *memory.Store
	sender   *recordingSender
	cache    *enginecache.SessionCache
	business *entity.Business
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	memStore := memory.NewStore()
	business := &entity.Business{
		Id:             uuid.New(),
		Name:           "Salon Aurora",
		Channel:        "whatsapp",
		ChannelAddress: "5215559999",
		Language:       "es",
		AdminEmail:     "owner@salonaurora.mx",
		CreatedAt:      time.Now(),
	}
	memStore.Businesses = append(memStore.Businesses, business)

	log := logger.NewNopLogger()
	cache := enginecache.NewSessionCache(nil, 100, 12*time.Hour, log)
	idempotency := dedup.NewIdempotencyCache(nil, 5*time.Minute, log)
	outbox := persist.NewOutbox(memStore, time.Minute, 3, log)
	persister := persist.NewPersister(cache, outbox, 5, log)
	sessionResolver := resolver.NewResolver(memStore, cache, outbox, 12, 20, log)
	goalManager := goal.NewManager(log)
	orchestrator := escalation.NewOrchestrator(memStore, nil, 2, 6, log)
	sender := &recordingSender{}
	router := proxy.NewRouter(cache, sender, orchestrator, log)
	registry, err := flow.NewRegistry(log)
	require.NoError(t, err)

	svc := NewConversationService(
		memStore, idempotency, sessionResolver, cache, goalManager,
		persister, orchestrator, router, registry, sender, 3, log,
	)

	return &fixture{service: svc, store: memStore, sender: sender, cache: cache, business: business}
}

func customerMessage(f *fixture, text string) *dto.InboundMessageRequest {
	return &dto.InboundMessageRequest{
		Channel:        "whatsapp",
		ChannelAddress: f.business.ChannelAddress,
		From:           "5215550001",
		MessageId:      uuid.NewString(),
		Text:           text,
		Timestamp:      time.Now(),
	}
}

func operatorMessage(f *fixture, text string) *dto.InboundMessageRequest {
	return &dto.InboundMessageRequest{
		Channel:        "whatsapp",
		ChannelAddress: f.business.ChannelAddress,
		From:           f.business.ChannelAddress,
		OperatorTo:     "5215550001",
		MessageId:      uuid.NewString(),
		Text:           text,
		Timestamp:      time.Now(),
	}
}

func TestHandleInboundDuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := customerMessage(f, "hola")
	first, err := f.service.HandleInbound(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := f.service.HandleInbound(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Handled)
	assert.True(t, second.Duplicate)

	// The retry never touched state: still one session, one message log.
	require.Len(t, f.store.Sessions, 1)
	assert.Len(t, f.store.Sessions[0].Messages, 1)
}

func TestHandleInboundUnknownBusiness(t *testing.T) {
	f := newFixture(t)

	req := customerMessage(f, "hola")
	req.ChannelAddress = "0000000000"

	_, err := f.service.HandleInbound(context.Background(), req)
	assert.True(t, errors.Is(err, ErrBusinessNotFound))
}

func TestHandleInboundSilentTurnStoresMessage(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.HandleInbound(context.Background(), customerMessage(f, "hola"))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Empty(t, res.Reply)

	require.Len(t, f.store.Sessions, 1)
	require.Len(t, f.store.Sessions[0].Messages, 1)
	assert.Equal(t, "hola", f.store.Sessions[0].Messages[0].Content)
	assert.Empty(t, f.sender.sent)
}

func TestHandleInboundHumanRequestEscalates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.HandleInbound(ctx, customerMessage(f, "quiero hablar con una persona"))
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	assert.Equal(t, constant.EscalationAck["es"], res.Reply)

	require.Len(t, f.store.Notifications, 1)
	assert.Equal(t, constant.NotificationStatusPending, f.store.Notifications[0].Status)
	assert.Equal(t, constant.EscalationReasonHumanRequest, f.store.Notifications[0].Reason)

	key := enginecache.Key("whatsapp", "5215550001", f.business.Id.String())
	cached, found := f.cache.Get(ctx, key)
	require.True(t, found)
	assert.True(t, cached.OperatorControlled)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "5215550001", f.sender.sent[0].To)
}

func TestHandleInboundProxyModeSuppressesBot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.HandleInbound(ctx, customerMessage(f, "quiero hablar con una persona"))
	require.NoError(t, err)
	ackSends := len(f.sender.sent)

	res, err := f.service.HandleInbound(ctx, customerMessage(f, "mi reserva es para el viernes"))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Empty(t, res.Reply)
	assert.Len(t, f.sender.sent, ackSends, "no bot reply may be sent during proxy mode")

	// The customer message still landed in the durable log.
	messages := f.store.Sessions[0].Messages
	assert.Equal(t, "mi reserva es para el viernes", messages[len(messages)-1].Content)
}

func TestHandleInboundOperatorRelayAndTakeBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.HandleInbound(ctx, customerMessage(f, "quiero hablar con una persona"))
	require.NoError(t, err)

	res, err := f.service.HandleInbound(ctx, operatorMessage(f, "hola, soy Ana, ¿en qué te ayudo?"))
	require.NoError(t, err)
	assert.True(t, res.Handled)

	// First relay flips the notification to attending.
	assert.Equal(t, constant.NotificationStatusAttending, f.store.Notifications[0].Status)

	relayed := f.sender.sent[len(f.sender.sent)-1]
	assert.Equal(t, "5215550001", relayed.To)
	assert.Equal(t, "hola, soy Ana, ¿en qué te ayudo?", relayed.Text)

	res, err = f.service.HandleInbound(ctx, operatorMessage(f, constant.OperatorTakeBackValue))
	require.NoError(t, err)
	assert.NotEmpty(t, res.OperatorFeedback)

	key := enginecache.Key("whatsapp", "5215550001", f.business.Id.String())
	cached, _ := f.cache.Get(ctx, key)
	assert.False(t, cached.OperatorControlled)
	// Take-back never resolves; that needs an explicit command.
	assert.Equal(t, constant.NotificationStatusAttending, f.store.Notifications[0].Status)
}

func TestHandleInboundResolveCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.HandleInbound(ctx, customerMessage(f, "quiero hablar con una persona"))
	require.NoError(t, err)
	notificationID := f.store.Notifications[0].Id

	res, err := f.service.HandleInbound(ctx, operatorMessage(f, "resolve_provided_help_"+notificationID.String()))
	require.NoError(t, err)
	assert.Contains(t, res.OperatorFeedback, "resolved")
	assert.Equal(t, constant.NotificationStatusProvidedHelp, f.store.Notifications[0].Status)

	// Resolving again surfaces the error to the operator verbatim.
	res, err = f.service.HandleInbound(ctx, operatorMessage(f, "resolve_ignored_"+notificationID.String()))
	require.NoError(t, err)
	assert.Equal(t, escalation.ErrAlreadyResolved.Error(), res.OperatorFeedback)
	assert.Equal(t, constant.NotificationStatusProvidedHelp, f.store.Notifications[0].Status)
}

func TestHandleInboundMalformedResolveCommand(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.HandleInbound(context.Background(), operatorMessage(f, "resolve_done_123"))
	require.NoError(t, err)
	assert.Equal(t, escalation.ErrInvalidStatus.Error(), res.OperatorFeedback)
	assert.Empty(t, f.store.Notifications)
}

func TestHandleInboundStickerOnlyNeverEscalates(t *testing.T) {
	f := newFixture(t)

	req := customerMessage(f, "")
	req.Attachments = []dto.AttachmentPayload{{Type: "sticker"}}

	res, err := f.service.HandleInbound(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Escalated)
	assert.Empty(t, f.store.Notifications)
}

func TestHandleInboundMediaRedirect(t *testing.T) {
	f := newFixture(t)

	req := customerMessage(f, "")
	req.Attachments = []dto.AttachmentPayload{{Type: "image", URL: "https://cdn.example/photo.jpg"}}

	res, err := f.service.HandleInbound(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	require.Len(t, f.store.Notifications, 1)
	assert.Equal(t, constant.EscalationReasonMediaRedirect, f.store.Notifications[0].Reason)
}
