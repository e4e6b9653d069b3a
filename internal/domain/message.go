package domain

import (
	"context"
	"time"
)

// Conversation 参与者按字典序存放，(p1,p2) 唯一
type Conversation struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Participant1  string     `gorm:"column:participant1;size:36;not null;uniqueIndex:idx_pair,priority:1" json:"participant1"`
	Participant2  string     `gorm:"column:participant2;size:36;not null;uniqueIndex:idx_pair,priority:2;index" json:"participant2"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (c *Conversation) Has(userID string) bool {
	return c.Participant1 == userID || c.Participant2 == userID
}

// Other 返回对方 id
func (c *Conversation) Other(userID string) string {
	if c.Participant1 == userID {
		return c.Participant2
	}
	return c.Participant1
}

// OrderedPair 让同一对用户只有一个会话
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

type Message struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string     `gorm:"size:36;not null;index:idx_conv_created,priority:1" json:"conversationId"`
	SenderID       string     `gorm:"size:36;not null" json:"senderId"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time  `gorm:"index:idx_conv_created,priority:2" json:"createdAt"`
	ReadAt         *time.Time `json:"readAt"`
}

// ConversationSummary 会话列表的一行
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	OtherUserID  string       `json:"otherUserId"`
	Latest       *Message     `json:"latest"`
	Unread       int          `json:"unread"`
	// UnreadIDs 计入 Unread 的消息 id，推送合并时据此去重
	UnreadIDs []string `json:"-"`
}

type ConversationRepository interface {
	GetOrCreate(ctx context.Context, a, b string) (conv *Conversation, created bool, err error)
	FindByID(ctx context.Context, id string) (*Conversation, error)
	ListSummaries(ctx context.Context, userID string) ([]ConversationSummary, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]Message, error)
	// MarkRead 把对方发来的未读消息标记已读，返回被更新的消息
	MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]Message, error)
}
