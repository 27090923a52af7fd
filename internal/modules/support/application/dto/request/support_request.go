package request

type TransferRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	ClientName  string `json:"clientName"`
	ClientPhone string `json:"clientPhone"`
}

type SendMessageRequest struct {
	ConversationUuid string `json:"conversationUuid" binding:"required"`
	SenderName       string `json:"senderName"`
	Text             string `json:"text" binding:"required"`
}

// OperatorActionRequest arrives over authed HTTP and over the Kafka events
// topic; both paths decode into this shape.
type OperatorActionRequest struct {
	Action           string `json:"action" binding:"required"`
	OperatorUuid     string `json:"operatorUuid"`
	WorkItemUuid     string `json:"workItemUuid"`
	ConversationUuid string `json:"conversationUuid"`
	Status           string `json:"status"`
	Text             string `json:"text"`
}
