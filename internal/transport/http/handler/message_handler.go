package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"takas-go/internal/core/realtime"
	"takas-go/internal/domain"
	"takas-go/internal/feature/inbox"
	"takas-go/internal/service"
	"takas-go/internal/transport/http/ez"
	mdw "takas-go/internal/transport/http/middleware"
)

// MessageStreamPath SSE 推送路由，挂到 router.Deps.Streams
const MessageStreamPath = "/messages/stream"

// streamHeartbeat 空闲时发 SSE 注释行，防代理按空闲超时掐断
const streamHeartbeat = 25 * time.Second

// Subscriber 用户频道订阅（实现见 realtime.Broker）
type Subscriber interface {
	Subscribe(ctx context.Context, userID string) (*realtime.Subscription, error)
}

type MessageHandler struct {
	messages *service.MessageService
	sub      Subscriber
	log      *zap.Logger
}

func NewMessageHandler(messages *service.MessageService, sub Subscriber, l *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, sub: sub, log: l.Named("messages")}
}

type sendIn struct {
	Content string `json:"content" form:"content"`
}

type readOut struct {
	Updated int `json:"updated"`
}

// inboxSnapshot SSE 每次推送的完整视图
type inboxSnapshot struct {
	Conversations []domain.ConversationSummary `json:"conversations"`
	OpenID        string                       `json:"openId,omitempty"`
	Thread        []domain.Message             `json:"thread,omitempty"`
}

func (h *MessageHandler) Mount(r gin.IRouter) {
	e := ez.New(r)

	ez.RegisterAction(e, ez.Action[struct{}, []domain.ConversationSummary]{
		Method: http.MethodGet,
		Path:   "/messages",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) ([]domain.ConversationSummary, error) {
			return h.messages.Conversations(c.Request.Context(), id.UserID)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Conversation]{
		Method: http.MethodPost,
		Path:   "/messages/with/:userID",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) (*domain.Conversation, error) {
			return h.messages.Start(c.Request.Context(), id.UserID, c.Param("userID"))
		},
	})

	r.GET(MessageStreamPath, h.stream)

	ez.RegisterAction(e, ez.Action[struct{}, *service.Thread]{
		Method: http.MethodGet,
		Path:   "/messages/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) (*service.Thread, error) {
			return h.messages.Thread(c.Request.Context(), id.UserID, c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[sendIn, *domain.Message]{
		Method: http.MethodPost,
		Path:   "/messages/:id",
		Binder: ez.BindForm,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, in *sendIn) (*domain.Message, error) {
			return h.messages.Send(c.Request.Context(), id.UserID, c.Param("id"), in.Content)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, readOut]{
		Method: http.MethodPost,
		Path:   "/messages/:id/read",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) (readOut, error) {
			n, err := h.messages.MarkRead(c.Request.Context(), id.UserID, c.Param("id"))
			return readOut{Updated: n}, err
		},
	})
}

// stream 先订阅再拉初始数据，订阅建立前后的事件都能被合并（合并幂等）
func (h *MessageHandler) stream(c *gin.Context) {
	id, ok := mdw.CurrentIdentity(c)
	if !ok {
		ez.Fail(c, domain.ErrUnauthorized)
		return
	}
	ctx := c.Request.Context()
	sub, err := h.sub.Subscribe(ctx, id.UserID)
	if err != nil {
		ez.Fail(c, domain.Wrap(domain.KindUnavailable, "messages.stream", err))
		return
	}
	defer sub.Close()

	convs, err := h.messages.Conversations(ctx, id.UserID)
	if err != nil {
		ez.Fail(c, err)
		return
	}
	st := inbox.New(id.UserID, convs)
	if open := c.Query("open"); open != "" {
		th, err := h.messages.Thread(ctx, id.UserID, open)
		if err != nil {
			ez.Fail(c, err)
			return
		}
		st.Open(open, th.Messages)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	push := func(s *inbox.State) {
		c.SSEvent("inbox", inboxSnapshot{Conversations: s.Conversations, OpenID: s.OpenID, Thread: s.Thread})
		c.Writer.Flush()
	}
	push(st)

	reload := func(ctx context.Context) ([]domain.ConversationSummary, error) {
		return h.messages.Conversations(ctx, id.UserID)
	}
	tick := time.NewTicker(streamHeartbeat)
	defer tick.Stop()
	hb := inbox.Heartbeat{C: tick.C, Ping: func() error {
		if _, err := c.Writer.WriteString(": ping\n\n"); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}}
	err = inbox.Sync(ctx, sub.Events(), st, reload, push, hb)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.Warn("inbox stream ended", zap.String("uid", id.UserID), zap.Error(err))
	}
}
