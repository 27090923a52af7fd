package respond

import "time"

type ConversationItem struct {
	Uuid         string    `json:"uuid"`
	WorkItemUuid string    `json:"workItemUuid,omitempty"`
	SessionID    string    `json:"sessionId"`
	ClientName   string    `json:"clientName,omitempty"`
	OperatorUuid string    `json:"operatorUuid,omitempty"`
	OperatorName string    `json:"operatorName,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

type MessageItem struct {
	Uuid       string    `json:"uuid"`
	SenderKind string    `json:"senderKind"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DeliveryResult reports a relayed message. Delivered=false with a stored
// uuid means the message is persisted but the counterpart was unreachable.
type DeliveryResult struct {
	MessageUuid string `json:"messageUuid"`
	Delivered   bool   `json:"delivered"`
}
