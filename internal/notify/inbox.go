package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"listou/internal/logger"
)

// Inbox carries push messages over Redis pub/sub, one channel per scope.
type Inbox struct {
	client *redis.Client
	log    *zap.Logger
}

func NewInbox(client *redis.Client, log *zap.Logger) *Inbox {
	return &Inbox{client: client, log: logger.OrNop(log)}
}

func (i *Inbox) channel(scope string) string {
	return "push:" + scope
}

// Send publishes one message and returns how many listeners received it.
func (i *Inbox) Send(ctx context.Context, scope string, m Message) (int64, error) {
	data, err := json.Marshal(m.WithDefaults())
	if err != nil {
		return 0, fmt.Errorf("failed to marshal push message: %w", err)
	}
	n, err := i.client.Publish(ctx, i.channel(scope), data).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish push message: %w", err)
	}
	return n, nil
}

// Listen delivers messages sent to scope until ctx is cancelled. Messages sent while nobody is
// listening are lost.
func (i *Inbox) Listen(ctx context.Context, scope string, fn func(Message)) error {
	ps := i.client.Subscribe(ctx, i.channel(scope))
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to push messages: %w", err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				i.log.Warn("dropping malformed push message", zap.String("scope", scope), zap.Error(err))
				continue
			}
			fn(m.WithDefaults())
		}
	}
}
