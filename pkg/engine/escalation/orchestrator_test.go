package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"ai-bookingchat-be/internal/constant"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/repository/memory"
	"ai-bookingchat-be/pkg/store"
)

func newOrchestrator(memStore *memory.Store) *Orchestrator {
	return NewOrchestrator(memStore, nil, 2, 6, logger.NewNopLogger())
}

func userTurns(contents ...string) []store.Message {
	msgs := make([]store.Message, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, store.Message{Role: store.RoleUser, Content: c, Timestamp: time.Now()})
	}
	return msgs
}

func TestEvaluateTriggers(t *testing.T) {
	o := newOrchestrator(memory.NewStore())

	tests := []struct {
		name        string
		text        string
		attachments []string
		history     []store.Message
		lang        string
		wantReason  string
		wantTrigger bool
	}{
		{
			name:        "plain text never escalates",
			text:        "quiero reservar una mesa",
			lang:        "es",
			wantTrigger: false,
		},
		{
			name:        "image redirects",
			text:        "",
			attachments: []string{"image"},
			lang:        "es",
			wantReason:  constant.EscalationReasonMediaRedirect,
			wantTrigger: true,
		},
		{
			name:        "sticker only never escalates",
			text:        "",
			attachments: []string{"sticker"},
			lang:        "es",
			wantTrigger: false,
		},
		{
			name:        "human request spanish",
			text:        "Quiero hablar con una persona por favor",
			lang:        "es",
			wantReason:  constant.EscalationReasonHumanRequest,
			wantTrigger: true,
		},
		{
			name:        "human request english",
			text:        "Can I talk to a human?",
			lang:        "en",
			wantReason:  constant.EscalationReasonHumanRequest,
			wantTrigger: true,
		},
		{
			name:        "single frustrated turn below threshold",
			text:        "esto no funciona",
			lang:        "es",
			history:     userTurns("hola", "quiero reservar"),
			wantTrigger: false,
		},
		{
			name:        "repeated frustration reaches threshold",
			text:        "esto no funciona",
			lang:        "es",
			history:     userTurns("hola", "esto no sirve", "quiero reservar"),
			wantReason:  constant.EscalationReasonFrustration,
			wantTrigger: true,
		},
		{
			name:        "frustration outside lookback ignored",
			text:        "esto no funciona",
			lang:        "es",
			history:     userTurns("no sirve", "a", "b", "c", "d", "e", "f"),
			wantTrigger: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, triggered := o.Evaluate(tt.text, tt.attachments, tt.history, tt.lang)
			if triggered != tt.wantTrigger {
				t.Fatalf("triggered = %v, want %v", triggered, tt.wantTrigger)
			}
			if triggered && reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestEscalateRecordsPendingNotification(t *testing.T) {
	memStore := memory.NewStore()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	o := NewOrchestrator(memStore, pubSub, 2, 6, logger.NewNopLogger())

	ctx := context.Background()
	events, err := pubSub.Subscribe(ctx, EscalationCreatedTopic)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	businessID := uuid.New()
	notification, ack, err := o.Escalate(ctx, businessID, "session-1", constant.EscalationReasonHumanRequest, "quiero hablar con una persona", "es")
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if notification.Status != constant.NotificationStatusPending {
		t.Fatalf("status = %q, want pending", notification.Status)
	}
	if ack != constant.EscalationAck["es"] {
		t.Fatalf("ack = %q, want the spanish acknowledgement", ack)
	}
	if len(memStore.Notifications) != 1 {
		t.Fatalf("stored notifications = %d", len(memStore.Notifications))
	}

	select {
	case msg := <-events:
		var event EscalationEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		if event.NotificationID != notification.Id.String() {
			t.Fatal("event references the wrong notification")
		}
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no escalation event published")
	}
}

func TestEscalateStorageFailureAborts(t *testing.T) {
	memStore := memory.NewStore()
	memStore.FailNotificationCreate = true
	o := newOrchestrator(memStore)

	_, _, err := o.Escalate(context.Background(), uuid.New(), "session-1", constant.EscalationReasonHumanRequest, "help", "en")
	if err == nil {
		t.Fatal("expected the escalation to abort")
	}
	if len(memStore.Notifications) != 0 {
		t.Fatal("a notification was stored despite the failure")
	}
}

func TestEscalateUnknownLanguageFallsBack(t *testing.T) {
	o := newOrchestrator(memory.NewStore())

	_, ack, err := o.Escalate(context.Background(), uuid.New(), "session-1", constant.EscalationReasonHumanRequest, "help", "de")
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if ack != constant.EscalationAck[constant.DefaultLanguage] {
		t.Fatalf("ack = %q, want the default-language acknowledgement", ack)
	}
}

func TestParseResolveCommand(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		text       string
		wantStatus string
		wantErr    error
	}{
		{"provided help", "resolve_provided_help_" + id.String(), constant.NotificationStatusProvidedHelp, nil},
		{"ignored", "resolve_ignored_" + id.String(), constant.NotificationStatusIgnored, nil},
		{"wrong activation", "resolve_wrong_activation_" + id.String(), constant.NotificationStatusWrongActivation, nil},
		{"surrounding whitespace", "  resolve_ignored_" + id.String() + "  ", constant.NotificationStatusIgnored, nil},
		{"unknown status", "resolve_done_" + id.String(), "", ErrInvalidStatus},
		{"bad id", "resolve_ignored_not-a-uuid", "", ErrMalformedCommand},
		{"not a command", "hola", "", ErrMalformedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseResolveCommand(tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseResolveCommand: %v", err)
			}
			if cmd.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", cmd.Status, tt.wantStatus)
			}
			if cmd.NotificationID != id {
				t.Fatal("parsed the wrong notification id")
			}
		})
	}
}

func TestResolveLifecycle(t *testing.T) {
	memStore := memory.NewStore()
	o := newOrchestrator(memStore)
	ctx := context.Background()

	notification, _, err := o.Escalate(ctx, uuid.New(), "session-1", constant.EscalationReasonHumanRequest, "help", "en")
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}

	attended, err := o.Attend(ctx, notification.Id)
	if err != nil {
		t.Fatalf("Attend: %v", err)
	}
	if attended.Status != constant.NotificationStatusAttending {
		t.Fatalf("status = %q, want attending", attended.Status)
	}

	cmd := &ResolveCommand{Status: constant.NotificationStatusProvidedHelp, NotificationID: notification.Id}
	resolved, err := o.Resolve(ctx, cmd)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != constant.NotificationStatusProvidedHelp {
		t.Fatalf("status = %q", resolved.Status)
	}

	// Second resolution is an explicit failure, not a silent overwrite.
	if _, err := o.Resolve(ctx, cmd); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("err = %v, want ErrAlreadyResolved", err)
	}
}

func TestResolveMissingNotification(t *testing.T) {
	o := newOrchestrator(memory.NewStore())
	cmd := &ResolveCommand{Status: constant.NotificationStatusIgnored, NotificationID: uuid.New()}
	if _, err := o.Resolve(context.Background(), cmd); !errors.Is(err, ErrNotificationMissing) {
		t.Fatalf("err = %v, want ErrNotificationMissing", err)
	}
}
