package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"takas-go/internal/domain"
)

var (
	publishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "realtime_events_published_total", Help: "Events published to user channels"},
		[]string{"type"},
	)
	openSubs = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "realtime_subscriptions", Help: "Open user channel subscriptions"},
	)
)

func init() { prometheus.MustRegister(publishedTotal, openSubs) }

// Channel 每个用户一个频道，发布方按参与者投递，订阅方无需再拼 OR 条件
func Channel(userID string) string { return "takas:user:" + userID }

type Broker struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewBroker(rdb *redis.Client, l *zap.Logger) *Broker {
	return &Broker{rdb: rdb, log: l.Named("realtime")}
}

func (b *Broker) Publish(ctx context.Context, userIDs []string, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(userIDs))
	for _, uid := range userIDs {
		if uid == "" {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		if err := b.rdb.Publish(ctx, Channel(uid), payload).Err(); err != nil {
			return err
		}
	}
	publishedTotal.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

type Subscription struct {
	ps     *redis.PubSub
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

// Subscribe 订阅确认后才返回；ctx 结束或 Close 后 Events 关闭
func (b *Broker) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, Channel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	s := &Subscription{
		ps:     ps,
		events: make(chan domain.Event, 64),
		done:   make(chan struct{}),
	}
	openSubs.Inc()
	go s.pump(ctx, b.log.With(zap.String("uid", userID)))
	return s, nil
}

func (s *Subscription) Events() <-chan domain.Event { return s.events }

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		openSubs.Dec()
	})
	return err
}

func (s *Subscription) pump(ctx context.Context, l *zap.Logger) {
	defer close(s.events)
	in := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			var ev domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				l.Warn("drop malformed event", zap.Error(err))
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			case <-ctx.Done():
				_ = s.Close()
				return
			}
		}
	}
}
