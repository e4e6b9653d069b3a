package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"takas-go/internal/core/security"
	"takas-go/internal/domain"
	"takas-go/pkg/utils"
)

const threadLimit = 200

// Publisher 推送事件到用户频道（实现见 realtime.Broker）
type Publisher interface {
	Publish(ctx context.Context, userIDs []string, ev domain.Event) error
}

type Thread struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []domain.Message     `json:"messages"`
}

type MessageService struct {
	convs domain.ConversationRepository
	msgs  domain.MessageRepository
	users domain.UserRepository
	pub   Publisher
	clean *security.Sanitizer
	log   *zap.Logger
	now   func() time.Time
}

func NewMessageService(convs domain.ConversationRepository, msgs domain.MessageRepository,
	users domain.UserRepository, pub Publisher, clean *security.Sanitizer, l *zap.Logger) *MessageService {
	return &MessageService{
		convs: convs,
		msgs:  msgs,
		users: users,
		pub:   pub,
		clean: clean,
		log:   l.Named("messages"),
		now:   time.Now,
	}
}

// Start 找到或新建与 other 的会话；新建时通知双方
func (s *MessageService) Start(ctx context.Context, me, other string) (*domain.Conversation, error) {
	const op = "message.start"
	if other == "" || other == me {
		return nil, domain.E(domain.KindInvalid, op, "cannot start a conversation with yourself")
	}
	u, err := s.users.FindByID(ctx, other)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if u == nil {
		return nil, domain.E(domain.KindNotFound, op, "user not found")
	}
	conv, created, err := s.convs.GetOrCreate(ctx, me, other)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if created {
		s.publish(ctx, conv, domain.Event{Type: domain.EventConversationInserted, Conversation: conv})
	}
	return conv, nil
}

func (s *MessageService) Conversations(ctx context.Context, me string) ([]domain.ConversationSummary, error) {
	out, err := s.convs.ListSummaries(ctx, me)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "message.conversations", err)
	}
	return out, nil
}

func (s *MessageService) Thread(ctx context.Context, me, convID string) (*Thread, error) {
	const op = "message.thread"
	conv, err := s.participant(ctx, op, me, convID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.msgs.ListByConversation(ctx, conv.ID, threadLimit)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	return &Thread{Conversation: conv, Messages: msgs}, nil
}

func (s *MessageService) Send(ctx context.Context, me, convID, content string) (*domain.Message, error) {
	const op = "message.send"
	conv, err := s.participant(ctx, op, me, convID)
	if err != nil {
		return nil, err
	}
	text := s.clean.Text(content)
	if text == "" {
		return nil, domain.E(domain.KindInvalid, op, "message is empty")
	}
	if security.Len(text) > MaxMessageLength {
		return nil, domain.E(domain.KindInvalid, op, "message too long")
	}
	m := &domain.Message{
		ID:             utils.NewID(),
		ConversationID: conv.ID,
		SenderID:       me,
		Content:        text,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.msgs.Create(ctx, m); err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	s.publish(ctx, conv, domain.Event{Type: domain.EventMessageInserted, Message: m})
	return m, nil
}

// MarkRead 把对方发来的未读消息标为已读，逐条推送 message-updated
func (s *MessageService) MarkRead(ctx context.Context, me, convID string) (int, error) {
	const op = "message.mark_read"
	conv, err := s.participant(ctx, op, me, convID)
	if err != nil {
		return 0, err
	}
	updated, err := s.msgs.MarkRead(ctx, conv.ID, me, s.now().UTC())
	if err != nil {
		return 0, domain.Wrap(domain.KindInternal, op, err)
	}
	for i := range updated {
		s.publish(ctx, conv, domain.Event{Type: domain.EventMessageUpdated, Message: &updated[i]})
	}
	return len(updated), nil
}

// participant 非参与者一律按不存在处理，不暴露会话是否存在
func (s *MessageService) participant(ctx context.Context, op, me, convID string) (*domain.Conversation, error) {
	conv, err := s.convs.FindByID(ctx, convID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if conv == nil || !conv.Has(me) {
		return nil, domain.E(domain.KindNotFound, op, "conversation not found")
	}
	return conv, nil
}

// publish 推送失败不影响写库结果，客户端重连时会全量刷新
func (s *MessageService) publish(ctx context.Context, conv *domain.Conversation, ev domain.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, []string{conv.Participant1, conv.Participant2}, ev); err != nil {
		s.log.Warn("publish event", zap.String("type", string(ev.Type)), zap.String("conv", conv.ID), zap.Error(err))
	}
}
