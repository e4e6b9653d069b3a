// Package inbox 把推送事件增量合并进会话列表和当前会话的消息列表，
// 避免每个事件都整表重拉。事件可能重复、乱序，合并必须幂等。
package inbox

import (
	"takas-go/internal/domain"
)

type Effect uint8

const (
	EffectNone Effect = iota
	EffectChanged
	// EffectReload 需要整表重拉会话列表
	EffectReload
)

// State 由单个 goroutine 持有，不加锁
type State struct {
	Me            string
	Conversations []domain.ConversationSummary
	OpenID        string
	Thread        []domain.Message

	counted map[string]struct{} // 已计入未读的消息（含加载时就在 Unread 里的）
	read    map[string]struct{} // 已读的消息，之后的重复插入不再计数
}

func New(me string, convs []domain.ConversationSummary) *State {
	s := &State{Me: me}
	s.Reset(convs)
	return s
}

// Reset 整表重拉后替换会话列表。加载结果里已计入 Unread 的消息记为已计数，
// 订阅先于加载建立，同一条消息随后还会以推送到达
func (s *State) Reset(convs []domain.ConversationSummary) {
	s.Conversations = append(s.Conversations[:0:0], convs...)
	if s.counted == nil {
		s.counted = make(map[string]struct{})
	}
	for _, c := range s.Conversations {
		for _, id := range c.UnreadIDs {
			s.counted[id] = struct{}{}
		}
		// 没带 id 明细时，至少最新一条未读可以确定
		if l := c.Latest; len(c.UnreadIDs) == 0 && c.Unread > 0 && l != nil && l.SenderID != s.Me && l.ReadAt == nil {
			s.counted[l.ID] = struct{}{}
		}
	}
}

// Open 切换当前会话并载入初始消息（按 id 去重）
func (s *State) Open(conversationID string, msgs []domain.Message) {
	s.OpenID = conversationID
	s.Thread = s.Thread[:0:0]
	for _, m := range msgs {
		s.appendThread(m)
	}
}

func (s *State) Unread(conversationID string) int {
	if i := s.indexOf(conversationID); i >= 0 {
		return s.Conversations[i].Unread
	}
	return 0
}

func (s *State) Apply(ev domain.Event) Effect {
	switch ev.Type {
	case domain.EventMessageInserted:
		if ev.Message == nil {
			return EffectNone
		}
		return s.messageInserted(*ev.Message)
	case domain.EventMessageUpdated:
		if ev.Message == nil {
			return EffectNone
		}
		return s.messageUpdated(*ev.Message)
	case domain.EventConversationInserted:
		if c := ev.Conversation; c != nil && c.Has(s.Me) {
			return EffectReload
		}
	}
	return EffectNone
}

func (s *State) messageInserted(m domain.Message) Effect {
	changed := false
	if m.ConversationID == s.OpenID && s.appendThread(m) {
		changed = true
	}

	i := s.indexOf(m.ConversationID)
	if i < 0 {
		// 会话还没进列表（conversation-inserted 可能晚到）；重拉结果已含这条，先记为已计数
		if m.SenderID != s.Me && m.ReadAt == nil {
			s.markCounted(m.ID)
		}
		return EffectReload
	}
	conv := &s.Conversations[i]
	if conv.Latest == nil || conv.Latest.ID == m.ID || !m.CreatedAt.Before(conv.Latest.CreatedAt) {
		msg := m
		conv.Latest = &msg
		changed = true
	}
	if m.SenderID != s.Me && m.ReadAt == nil && s.markCounted(m.ID) {
		conv.Unread++
		changed = true
	}
	if i > 0 {
		s.moveToFront(i)
	}
	if changed {
		return EffectChanged
	}
	return EffectNone
}

func (s *State) messageUpdated(m domain.Message) Effect {
	changed := false
	for i := range s.Thread {
		if s.Thread[i].ID == m.ID {
			s.Thread[i].ReadAt = m.ReadAt
			changed = true
			break
		}
	}
	if m.ReadAt == nil || m.SenderID == s.Me {
		return effectOf(changed)
	}
	if _, done := s.read[m.ID]; done {
		return effectOf(changed)
	}
	if s.read == nil {
		s.read = make(map[string]struct{})
	}
	s.read[m.ID] = struct{}{}
	_, wasCounted := s.counted[m.ID]
	delete(s.counted, m.ID)

	if i := s.indexOf(m.ConversationID); i >= 0 {
		conv := &s.Conversations[i]
		// 只扣减确实计入过的；加载时已是已读的消息再收到已读通知不动计数
		if wasCounted && conv.Unread > 0 {
			conv.Unread--
			changed = true
		}
		if conv.Latest != nil && conv.Latest.ID == m.ID {
			conv.Latest.ReadAt = m.ReadAt
		}
	}
	return effectOf(changed)
}

// markCounted 已读过或已计数的消息不再计入未读
func (s *State) markCounted(id string) bool {
	if _, done := s.read[id]; done {
		return false
	}
	if _, done := s.counted[id]; done {
		return false
	}
	if s.counted == nil {
		s.counted = make(map[string]struct{})
	}
	s.counted[id] = struct{}{}
	return true
}

func (s *State) appendThread(m domain.Message) bool {
	for _, x := range s.Thread {
		if x.ID == m.ID {
			return false
		}
	}
	s.Thread = append(s.Thread, m)
	return true
}

func (s *State) indexOf(conversationID string) int {
	for i := range s.Conversations {
		if s.Conversations[i].Conversation.ID == conversationID {
			return i
		}
	}
	return -1
}

func (s *State) moveToFront(i int) {
	c := s.Conversations[i]
	copy(s.Conversations[1:i+1], s.Conversations[:i])
	s.Conversations[0] = c
}

func effectOf(changed bool) Effect {
	if changed {
		return EffectChanged
	}
	return EffectNone
}
