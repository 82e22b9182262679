package mapper

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/model"
	"ai-bookingchat-be/pkg/store"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

// Session Mappers

func (m *SessionMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var messages []store.Message
	if len(s.Messages) > 0 {
		// A corrupt log entry should not make the whole session
		// unreadable; it hydrates as an empty log instead.
		_ = json.Unmarshal(s.Messages, &messages)
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:            s.Id,
		Channel:       s.Channel,
		ChannelUserId: s.ChannelUserId,
		BusinessId:    s.BusinessId,
		Messages:      messages,
		Ended:         s.Ended,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func (m *SessionMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	messages, _ := json.Marshal(s.Messages)

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.ChatSession{
		Id:            s.Id,
		Channel:       s.Channel,
		ChannelUserId: s.ChannelUserId,
		BusinessId:    s.BusinessId,
		Messages:      datatypes.JSON(messages),
		Ended:         s.Ended,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

// Context Mappers

func (m *SessionMapper) UserContextToEntity(c *model.UserContext) *entity.UserContext {
	if c == nil {
		return nil
	}

	var currentGoal, previousGoal *store.Goal
	if len(c.CurrentGoal) > 0 {
		currentGoal = &store.Goal{}
		if err := json.Unmarshal(c.CurrentGoal, currentGoal); err != nil {
			currentGoal = nil
		}
	}
	if len(c.PreviousGoal) > 0 {
		previousGoal = &store.Goal{}
		if err := json.Unmarshal(c.PreviousGoal, previousGoal); err != nil {
			previousGoal = nil
		}
	}

	var prefs store.Preferences
	if len(c.Preferences) > 0 {
		_ = json.Unmarshal(c.Preferences, &prefs)
	}

	var sessionData map[string]interface{}
	if len(c.SessionData) > 0 {
		_ = json.Unmarshal(c.SessionData, &sessionData)
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.UserContext{
		Id:            c.Id,
		Channel:       c.Channel,
		ChannelUserId: c.ChannelUserId,
		BusinessId:    c.BusinessId,
		CurrentGoal:   currentGoal,
		PreviousGoal:  previousGoal,
		Preferences:   prefs,
		SessionData:   sessionData,
		TopicSummary:  c.TopicSummary,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func (m *SessionMapper) UserContextToModel(c *entity.UserContext) *model.UserContext {
	if c == nil {
		return nil
	}

	var currentGoal, previousGoal []byte
	if c.CurrentGoal != nil {
		currentGoal, _ = json.Marshal(c.CurrentGoal)
	}
	if c.PreviousGoal != nil {
		previousGoal, _ = json.Marshal(c.PreviousGoal)
	}
	prefs, _ := json.Marshal(c.Preferences)
	sessionData, _ := json.Marshal(c.SessionData)

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.UserContext{
		Id:            c.Id,
		Channel:       c.Channel,
		ChannelUserId: c.ChannelUserId,
		BusinessId:    c.BusinessId,
		CurrentGoal:   datatypes.JSON(currentGoal),
		PreviousGoal:  datatypes.JSON(previousGoal),
		Preferences:   datatypes.JSON(prefs),
		SessionData:   datatypes.JSON(sessionData),
		TopicSummary:  c.TopicSummary,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}
