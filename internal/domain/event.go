package domain

type EventType string

const (
	EventMessageInserted      EventType = "message-inserted"
	EventMessageUpdated       EventType = "message-updated"
	EventConversationInserted EventType = "conversation-inserted"
)

// Event 推送给参与者的变更通知
type Event struct {
	Type         EventType     `json:"type"`
	Message      *Message      `json:"message,omitempty"`
	Conversation *Conversation `json:"conversation,omitempty"`
}
