package store

import "time"

// Message is one entry of a session's ordered log. Payload carries
// provider attachments (media URLs, captions) verbatim.
type Message struct {
	Role      string                 `json:"role"` // "user" | "assistant" | "operator" | "system"
	Content   string                 `json:"content"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	MessageID string                 `json:"message_id,omitempty"` // provider-assigned, optional
	Timestamp time.Time              `json:"timestamp"`
}

// Goal tracks one multi-step user intent across turns.
type Goal struct {
	Type     string                 `json:"type"`
	Action   string                 `json:"action,omitempty"`
	Status   string                 `json:"status"`
	Step     int                    `json:"step"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Messages []Message              `json:"messages,omitempty"`
	FlowKey  string                 `json:"flow_key,omitempty"`
}

func (g *Goal) InProgress() bool {
	return g != nil && g.Status == GoalStatusInProgress
}

// Preferences is the free-form per-user preference block.
type Preferences struct {
	Language      string `json:"language,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
	Notifications bool   `json:"notifications"`
}

// ChatContext is the hydrated in-memory conversation state: who is
// talking and which goals are live.
type ChatContext struct {
	Participant string      `json:"participant"` // external channel user id
	Goals       []Goal      `json:"goals,omitempty"`
	Preferences Preferences `json:"preferences"`
}

// CachedSession is the cache projection of one active conversation.
// Version backs the optimistic-locking protocol: every committed write
// increments it, and a writer whose starting version no longer matches
// the stored one must retry from a fresh read.
type CachedSession struct {
	ID                 string                 `json:"id"` // ChatSessionID
	Channel            string                 `json:"channel"`
	ChannelUserID      string                 `json:"channel_user_id"`
	BusinessID         string                 `json:"business_id"`
	Context            ChatContext            `json:"context"`
	SessionData        map[string]interface{} `json:"session_data,omitempty"`
	OperatorControlled bool                   `json:"operator_controlled"`
	NotificationID     string                 `json:"notification_id,omitempty"` // attending escalation, if any
	LastActivity       time.Time              `json:"last_activity"`
	Version            int64                  `json:"version"`
}

// ActiveGoal returns the single in-progress goal, or nil.
func (s *CachedSession) ActiveGoal() *Goal {
	for i := range s.Context.Goals {
		if s.Context.Goals[i].Status == GoalStatusInProgress {
			return &s.Context.Goals[i]
		}
	}
	return nil
}

const (
	RoleUser     = "user"
	RoleBot      = "assistant"
	RoleOperator = "operator"
	RoleSystem   = "system"

	GoalStatusInProgress = "in_progress"
	GoalStatusCompleted  = "completed"
	GoalStatusAbandoned  = "abandoned"
)
