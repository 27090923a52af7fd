package gateway

import (
	"context"
	"time"
)

// Operator-facing event kinds published to the operator transport.
const (
	NotifyAssignment = "assignment"
	NotifyHandoff    = "handoff"
	NotifyMessage    = "message"
	NotifyClosed     = "closed"
)

// OperatorNotification is the payload delivered to the operator transport
// (consumed out of process by the operator bot).
type OperatorNotification struct {
	Type             string    `json:"type"`
	OperatorUuid     string    `json:"operatorUuid"`
	WorkItemUuid     string    `json:"workItemUuid,omitempty"`
	WorkItemKind     string    `json:"workItemKind,omitempty"`
	ConversationUuid string    `json:"conversationUuid,omitempty"`
	SenderName       string    `json:"senderName,omitempty"`
	Text             string    `json:"text,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// OperatorGateway delivers notifications to the operator transport.
// Deliver is synchronous and bounded by ctx; callers that want
// fire-and-forget semantics wrap it (see infrastructure/notify).
type OperatorGateway interface {
	Deliver(ctx context.Context, n OperatorNotification) error
}

// ClientPayload is what the web side receives over the websocket.
type ClientPayload struct {
	Type             string `json:"type"`
	SessionID        string `json:"sessionId"`
	ConversationUuid string `json:"conversationUuid,omitempty"`
	Sender           string `json:"sender,omitempty"`
	Text             string `json:"text,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// ClientGateway delivers payloads to a web session.
type ClientGateway interface {
	Send(sessionID string, payload ClientPayload) error
	Connected(sessionID string) bool
}
