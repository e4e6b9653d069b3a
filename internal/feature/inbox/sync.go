package inbox

import (
	"context"
	"time"

	"takas-go/internal/domain"
)

type Reloader func(ctx context.Context) ([]domain.ConversationSummary, error)

// Heartbeat 空闲保活，C 为 nil 时不触发。Ping 和 onChange 在同一个 goroutine 里调用
type Heartbeat struct {
	C    <-chan time.Time
	Ping func() error
}

// Sync 消费事件直到 ctx 结束或事件通道关闭。
// 重拉失败直接返回，不做重试；调用方断开后客户端重连会整表加载。Ping 失败同样返回
func Sync(ctx context.Context, events <-chan domain.Event, st *State, reload Reloader, onChange func(*State), hb Heartbeat) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hb.C:
			if err := hb.Ping(); err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch st.Apply(ev) {
			case EffectReload:
				convs, err := reload(ctx)
				if err != nil {
					return err
				}
				st.Reset(convs)
				onChange(st)
			case EffectChanged:
				onChange(st)
			}
		}
	}
}
