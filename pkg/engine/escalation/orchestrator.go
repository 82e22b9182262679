package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"ai-bookingchat-be/internal/constant"
	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/repository/unitofwork"
	"ai-bookingchat-be/pkg/store"
)

// EscalationCreatedTopic is published on the in-process bus whenever a
// notification is recorded; the notifier service fans it out.
const EscalationCreatedTopic = "escalation.created"

// EscalationEvent is the bus payload.
type EscalationEvent struct {
	NotificationID string    `json:"notification_id"`
	BusinessID     string    `json:"business_id"`
	ChatSessionID  string    `json:"chat_session_id"`
	Reason         string    `json:"reason"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// Orchestrator decides when a turn leaves bot control and records the
// escalation. Trigger evaluation runs cheapest-first and the first match
// wins.
type Orchestrator struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  message.Publisher
	logger     logger.ILogger

	frustrationMinCount int
	frustrationLookback int
}

func NewOrchestrator(uowFactory unitofwork.RepositoryFactory, publisher message.Publisher, minCount, lookback int, log logger.ILogger) *Orchestrator {
	return &Orchestrator{
		uowFactory:          uowFactory,
		publisher:           publisher,
		logger:              log,
		frustrationMinCount: minCount,
		frustrationLookback: lookback,
	}
}

// Evaluate inspects one inbound turn. It returns the trigger reason and
// whether the turn should escalate. A message consisting solely of
// ignorable content (a sticker, a reaction) never escalates; it is
// simply not this component's problem.
func (o *Orchestrator) Evaluate(text string, attachmentTypes []string, history []store.Message, lang string) (string, bool) {
	if len(attachmentTypes) > 0 {
		redirect := false
		ignorableOnly := true
		for _, at := range attachmentTypes {
			if containsFold(constant.RedirectMediaTypes, at) {
				redirect = true
			}
			if !containsFold(constant.IgnorableMediaTypes, at) {
				ignorableOnly = false
			}
		}
		if redirect {
			return constant.EscalationReasonMediaRedirect, true
		}
		if ignorableOnly && strings.TrimSpace(text) == "" {
			return "", false
		}
	}

	lowered := strings.ToLower(text)

	for _, kw := range keywordsFor(constant.HumanRequestKeywords, lang) {
		if strings.Contains(lowered, kw) {
			return constant.EscalationReasonHumanRequest, true
		}
	}

	if o.frustrated(lowered, history, lang) {
		return constant.EscalationReasonFrustration, true
	}

	return "", false
}

// frustrated requires a minimum number of frustrated user turns inside
// the lookback window, the current message included. Both knobs are
// configuration, not inference.
func (o *Orchestrator) frustrated(currentLowered string, history []store.Message, lang string) bool {
	keywords := keywordsFor(constant.FrustrationKeywords, lang)

	count := 0
	if matchesAny(currentLowered, keywords) {
		count++
	}

	seen := 0
	for i := len(history) - 1; i >= 0 && seen < o.frustrationLookback; i-- {
		if history[i].Role != store.RoleUser {
			continue
		}
		seen++
		if matchesAny(strings.ToLower(history[i].Content), keywords) {
			count++
		}
	}

	return count >= o.frustrationMinCount
}

// Escalate records the notification and returns it together with the
// localized customer acknowledgement. Storage failure aborts the
// escalation entirely: nobody gets told help is on the way without a
// record of the request.
func (o *Orchestrator) Escalate(ctx context.Context, businessID uuid.UUID, chatSessionID, reason, summary, lang string) (*entity.Notification, string, error) {
	notification := &entity.Notification{
		Id:            uuid.New(),
		BusinessId:    businessID,
		ChatSessionId: chatSessionID,
		Reason:        reason,
		Message:       summary,
		Status:        constant.NotificationStatusPending,
		CreatedAt:     time.Now(),
	}

	uow := o.uowFactory.NewUnitOfWork(ctx)
	if err := uow.NotificationRepository().Create(ctx, notification); err != nil {
		return nil, "", fmt.Errorf("escalation: notification creation failed: %w", err)
	}

	o.publishCreated(notification)

	ack, ok := constant.EscalationAck[lang]
	if !ok {
		ack = constant.EscalationAck[constant.DefaultLanguage]
	}
	return notification, ack, nil
}

func (o *Orchestrator) publishCreated(n *entity.Notification) {
	if o.publisher == nil {
		return
	}
	payload, err := json.Marshal(EscalationEvent{
		NotificationID: n.Id.String(),
		BusinessID:     n.BusinessId.String(),
		ChatSessionID:  n.ChatSessionId,
		Reason:         n.Reason,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := o.publisher.Publish(EscalationCreatedTopic, msg); err != nil {
		o.logger.Warn("Escalation", "Event publish failed", map[string]interface{}{"error": err.Error()})
	}
}

func keywordsFor(table map[string][]string, lang string) []string {
	if kws, ok := table[lang]; ok {
		return kws
	}
	return table[constant.DefaultLanguage]
}

func matchesAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
