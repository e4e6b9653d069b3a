package repo

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"takas-go/internal/domain"
	"takas-go/pkg/utils"
)

type ConversationRepo struct{ db *gorm.DB }

func NewConversationRepo(db *gorm.DB) *ConversationRepo { return &ConversationRepo{db: db} }

// GetOrCreate 同一对用户只会有一个会话；并发创建撞唯一索引时回查
func (r *ConversationRepo) GetOrCreate(ctx context.Context, a, b string) (*domain.Conversation, bool, error) {
	p1, p2 := domain.OrderedPair(a, b)
	var conv domain.Conversation
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&conv, "participant1 = ? AND participant2 = ?", p1, p2).Error
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		conv = domain.Conversation{ID: utils.NewID(), Participant1: p1, Participant2: p2}
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil && isDupKey(err) {
		created = false
		err = r.db.WithContext(ctx).First(&conv, "participant1 = ? AND participant2 = ?", p1, p2).Error
	}
	if err != nil {
		return nil, false, err
	}
	return &conv, created, nil
}

func (r *ConversationRepo) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) ListSummaries(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	db := r.db.WithContext(ctx)
	var convs []domain.Conversation
	if err := db.Where("participant1 = ? OR participant2 = ?", userID, userID).Find(&convs).Error; err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []domain.ConversationSummary{}, nil
	}
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}

	type unreadRow struct {
		ID             string
		ConversationID string
	}
	var rows []unreadRow
	err := db.Model(&domain.Message{}).
		Select("id, conversation_id").
		Where("conversation_id IN ? AND sender_id <> ? AND read_at IS NULL", ids, userID).
		Order("created_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	unread := make(map[string][]string, len(rows))
	for _, row := range rows {
		unread[row.ConversationID] = append(unread[row.ConversationID], row.ID)
	}

	out := make([]domain.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		s := domain.ConversationSummary{
			Conversation: c,
			OtherUserID:  c.Other(userID),
			Unread:       len(unread[c.ID]),
			UnreadIDs:    unread[c.ID],
		}
		var latest domain.Message
		err := db.Where("conversation_id = ?", c.ID).Order("created_at DESC").Order("id DESC").Limit(1).Find(&latest).Error
		if err != nil {
			return nil, err
		}
		if latest.ID != "" {
			s.Latest = &latest
		}
		out = append(out, s)
	}
	// 最近活跃在前；NULL 排序各库不一致，放到内存里排
	sort.SliceStable(out, func(i, j int) bool {
		return activity(out[i].Conversation).After(activity(out[j].Conversation))
	})
	return out, nil
}

func activity(c domain.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

type MessageRepo struct{ db *gorm.DB }

func NewMessageRepo(db *gorm.DB) *MessageRepo { return &MessageRepo{db: db} }

// Create 写消息并刷新会话的 last_message_at
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Conversation{}).
			Where("id = ?", m.ConversationID).
			Update("last_message_at", m.CreatedAt).Error
	})
}

// ListByConversation 取最近 limit 条，按时间正序返回
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	limit = clampLimit(limit, 100, 500)
	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, readerID).
			Order("created_at").
			Find(&msgs).Error
		if err != nil || len(msgs) == 0 {
			return err
		}
		ids := make([]string, 0, len(msgs))
		for i := range msgs {
			ids = append(ids, msgs[i].ID)
			msgs[i].ReadAt = &at
		}
		return tx.Model(&domain.Message{}).Where("id IN ?", ids).Update("read_at", at).Error
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
