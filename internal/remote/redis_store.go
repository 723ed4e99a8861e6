package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"listou/internal/logger"
	"listou/internal/shopping"
)

// RedisStore keeps one JSON document per pairing code and announces every new version on a
// pub/sub channel carrying the full document.
type RedisStore struct {
	client *redis.Client
	log    *zap.Logger
	now    func() time.Time
}

// NewRedisStore creates a RedisStore over an existing client.
func NewRedisStore(client *redis.Client, log *zap.Logger) *RedisStore {
	return &RedisStore{client: client, log: logger.OrNop(log), now: time.Now}
}

func (r *RedisStore) docKey(code string) string {
	return fmt.Sprintf("casal:%s:list", code)
}

func (r *RedisStore) channel(code string) string {
	return r.docKey(code) + ":changes"
}

// Put stores the document and publishes it atomically.
func (r *RedisStore) Put(ctx context.Context, code string, items []shopping.Item) error {
	if items == nil {
		items = []shopping.Item{}
	}
	data, err := json.Marshal(Document{Items: items, UpdatedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal shared list: %w", err)
	}

	// SET and PUBLISH run in one MULTI/EXEC so announcements follow write order.
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.docKey(code), data, 0)
		pipe.Publish(ctx, r.channel(code), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write shared list %s: %w", code, classify(err))
	}
	return nil
}

// Watch subscribes first and reads the current document second, so no version written in
// between is missed. A duplicate delivery is possible and harmless.
func (r *RedisStore) Watch(ctx context.Context, code string, fn func(Document, bool)) error {
	ps := r.client.Subscribe(ctx, r.channel(code))
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return classify(err)
	}
	ch := ps.Channel()

	doc, ok, err := r.get(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	fn(doc, ok)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, open := <-ch:
			if !open {
				return ErrSubscriptionClosed
			}
			var doc Document
			if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
				r.log.Warn("dropping malformed shared list update", zap.String("code", code), zap.Error(err))
				continue
			}
			fn(doc, true)
		}
	}
}

func (r *RedisStore) get(ctx context.Context, code string) (Document, bool, error) {
	data, err := r.client.Get(ctx, r.docKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, classify(err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		r.log.Warn("ignoring malformed shared list", zap.String("code", code), zap.Error(err))
		return Document{}, false, nil
	}
	return doc, true, nil
}

// classify maps Redis ACL refusals to ErrPermissionDenied.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "NOPERM") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
