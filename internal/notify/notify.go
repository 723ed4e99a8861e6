// Package notify delivers the two user-facing alerts of the list: an item added by the partner,
// and an inbound push message. Both are fire-and-forget; failures are logged, never returned.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"listou/internal/logger"
)

// DefaultTitle is used for push messages that arrive without a title.
const DefaultTitle = "Nova lista!"

// Alert announces an item appended to the shared list by someone else.
type Alert struct {
	Attributor string `json:"attributor"`
	ItemName   string `json:"itemName"`
}

// Text renders the alert for a human.
func (a Alert) Text() string {
	return fmt.Sprintf("%s adicionou %s à lista", a.Attributor, a.ItemName)
}

// Message is an inbound push message.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WithDefaults fills in the title when it is missing.
func (m Message) WithDefaults() Message {
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	return m
}

// Notifier shows alerts to the user.
type Notifier interface {
	ForeignAddition(ctx context.Context, a Alert)
	PushMessage(ctx context.Context, m Message)
}

// LogNotifier writes alerts to the log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: logger.OrNop(log)}
}

func (n *LogNotifier) ForeignAddition(_ context.Context, a Alert) {
	n.log.Info(a.Text(), zap.String("attributor", a.Attributor), zap.String("item", a.ItemName))
}

func (n *LogNotifier) PushMessage(_ context.Context, m Message) {
	m = m.WithDefaults()
	n.log.Info(m.Title, zap.String("body", m.Body))
}

// Fanout forwards every alert to each notifier in order. Nil entries are skipped.
type Fanout []Notifier

func (f Fanout) ForeignAddition(ctx context.Context, a Alert) {
	for _, n := range f {
		if n != nil {
			n.ForeignAddition(ctx, a)
		}
	}
}

func (f Fanout) PushMessage(ctx context.Context, m Message) {
	for _, n := range f {
		if n != nil {
			n.PushMessage(ctx, m)
		}
	}
}

// Func adapts plain functions to Notifier. Nil fields are no-ops.
type Func struct {
	OnAlert   func(ctx context.Context, a Alert)
	OnMessage func(ctx context.Context, m Message)
}

func (f Func) ForeignAddition(ctx context.Context, a Alert) {
	if f.OnAlert != nil {
		f.OnAlert(ctx, a)
	}
}

func (f Func) PushMessage(ctx context.Context, m Message) {
	if f.OnMessage != nil {
		f.OnMessage(ctx, m)
	}
}
