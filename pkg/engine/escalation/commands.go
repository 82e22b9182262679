package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-bookingchat-be/internal/constant"
	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/repository/specification"
)

// Operator-facing command errors. These are the one place raw validation
// detail is surfaced verbatim: the operator is trusted and needs precise
// feedback.
var (
	ErrMalformedCommand    = errors.New("malformed resolve command, expected resolve_<status>_<notification-id>")
	ErrInvalidStatus       = errors.New("invalid resolution status, must be one of: provided_help, ignored, wrong_activation")
	ErrNotificationMissing = errors.New("notification not found")
	ErrAlreadyResolved     = errors.New("notification is already resolved")
)

var terminalStatuses = []string{
	constant.NotificationStatusProvidedHelp,
	constant.NotificationStatusIgnored,
	constant.NotificationStatusWrongActivation,
}

// ResolveCommand is a parsed operator resolution: a terminal status and
// the notification it applies to.
type ResolveCommand struct {
	Status         string
	NotificationID uuid.UUID
}

// IsTerminalStatus reports whether a status is one of the valid
// terminal resolutions.
func IsTerminalStatus(status string) bool {
	for _, terminal := range terminalStatuses {
		if status == terminal {
			return true
		}
	}
	return false
}

// IsResolveCommand is the cheap pre-check used while routing operator
// messages.
func IsResolveCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), constant.ResolveCommandPrefix)
}

// ParseResolveCommand parses `resolve_<status>_<id>`. Status values
// contain underscores themselves, so matching goes by the fixed status
// set rather than by splitting.
func ParseResolveCommand(text string) (*ResolveCommand, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, constant.ResolveCommandPrefix) {
		return nil, ErrMalformedCommand
	}
	rest := strings.TrimPrefix(trimmed, constant.ResolveCommandPrefix)

	for _, status := range terminalStatuses {
		prefix := status + "_"
		if !strings.HasPrefix(rest, prefix) {
			continue
		}
		id, err := uuid.Parse(strings.TrimPrefix(rest, prefix))
		if err != nil {
			return nil, fmt.Errorf("%w: bad notification id", ErrMalformedCommand)
		}
		return &ResolveCommand{Status: status, NotificationID: id}, nil
	}

	return nil, ErrInvalidStatus
}

// Resolve applies a parsed command. Resolving an already-resolved
// notification fails explicitly instead of silently double-counting.
func (o *Orchestrator) Resolve(ctx context.Context, cmd *ResolveCommand) (*entity.Notification, error) {
	uow := o.uowFactory.NewUnitOfWork(ctx)
	repo := uow.NotificationRepository()

	notification, err := repo.FindOne(ctx, specification.ByID{ID: cmd.NotificationID})
	if err != nil {
		return nil, fmt.Errorf("escalation: notification lookup failed: %w", err)
	}
	if notification == nil {
		return nil, ErrNotificationMissing
	}
	for _, terminal := range terminalStatuses {
		if notification.Status == terminal {
			return nil, ErrAlreadyResolved
		}
	}

	notification.Status = cmd.Status
	now := time.Now()
	notification.UpdatedAt = &now
	if err := repo.Update(ctx, notification); err != nil {
		return nil, fmt.Errorf("escalation: notification update failed: %w", err)
	}

	o.logger.Info("Escalation", "Notification resolved", map[string]interface{}{
		"notification_id": notification.Id.String(),
		"status":          notification.Status,
	})
	return notification, nil
}

// Attend moves a pending notification to attending when an operator
// takes the conversation.
func (o *Orchestrator) Attend(ctx context.Context, notificationID uuid.UUID) (*entity.Notification, error) {
	uow := o.uowFactory.NewUnitOfWork(ctx)
	repo := uow.NotificationRepository()

	notification, err := repo.FindOne(ctx, specification.ByID{ID: notificationID})
	if err != nil {
		return nil, fmt.Errorf("escalation: notification lookup failed: %w", err)
	}
	if notification == nil {
		return nil, ErrNotificationMissing
	}
	if notification.Status != constant.NotificationStatusPending {
		return notification, nil
	}

	notification.Status = constant.NotificationStatusAttending
	now := time.Now()
	notification.UpdatedAt = &now
	if err := repo.Update(ctx, notification); err != nil {
		return nil, fmt.Errorf("escalation: notification update failed: %w", err)
	}
	return notification, nil
}
