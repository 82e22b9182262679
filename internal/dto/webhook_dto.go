package dto

import "time"

// AttachmentPayload mirrors the provider attachment verbatim; the engine
// only inspects Type.
type AttachmentPayload struct {
	Type    string `json:"type" validate:"required"`
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// InboundMessageRequest is the single idempotent entry point payload.
// Either BusinessId or ChannelAddress must identify the tenant. When
// OperatorTo is set the message originates from the business operator
// and is addressed to that customer.
type InboundMessageRequest struct {
	Channel        string              `json:"channel" validate:"required"`
	BusinessId     string              `json:"business_id,omitempty"`
	ChannelAddress string              `json:"channel_address,omitempty"`
	From           string              `json:"from" validate:"required"`
	OperatorTo     string              `json:"operator_to,omitempty"`
	MessageId      string              `json:"message_id,omitempty"`
	Text           string              `json:"text,omitempty"`
	Attachments    []AttachmentPayload `json:"attachments,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

// InboundMessageResponse acknowledges a handled turn. Duplicate
// deliveries get the same acknowledgement as a first delivery.
type InboundMessageResponse struct {
	Handled          bool   `json:"handled"`
	Duplicate        bool   `json:"duplicate,omitempty"`
	Escalated        bool   `json:"escalated,omitempty"`
	Reply            string `json:"reply,omitempty"`
	OperatorFeedback string `json:"operator_feedback,omitempty"`
	SessionId        string `json:"session_id,omitempty"`
}
