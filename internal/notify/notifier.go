package notify

import (
	"context"
	"strings"

	"bili_checkin/internal/config"
	"bili_checkin/internal/logbus"
)

type Message struct {
	Title   string
	Content string // markdown
}

type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher delivers a message to every configured channel. Delivery failures are
// logged and swallowed: a failed notification never fails the run.
type Dispatcher struct {
	notifiers []Notifier
	bus       *logbus.Bus
}

func NewDispatcher(bus *logbus.Bus, notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{bus: bus}
	for _, n := range notifiers {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
	return d
}

// FromConfig 根据配置启用推送渠道；token/邮箱为空的渠道直接跳过。
func FromConfig(cfg config.NotifyConfig, bus *logbus.Bus) *Dispatcher {
	var ns []Notifier
	if strings.TrimSpace(cfg.PushPlus.Token) != "" {
		ns = append(ns, NewPushPlus(cfg.PushPlus))
	}
	if cfg.Email.Enabled() {
		ns = append(ns, NewEmail(cfg.Email))
	}
	return NewDispatcher(bus, ns...)
}

func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.notifiers) > 0
}

// Notify returns the number of channels that accepted the message.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) int {
	if !d.Enabled() {
		d.log("info", "未配置推送渠道，跳过推送。", nil)
		return 0
	}
	d.log("info", "准备发送推送通知...", map[string]any{"channels": len(d.notifiers)})
	sent := 0
	for _, n := range d.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			d.log("error", n.Name()+" 推送失败", map[string]any{"error": err.Error()})
			continue
		}
		sent++
		d.log("info", n.Name()+" 推送成功！", nil)
	}
	return sent
}

func (d *Dispatcher) log(level, msg string, fields map[string]any) {
	if d != nil && d.bus != nil {
		d.bus.Log(level, msg, fields)
	}
}
