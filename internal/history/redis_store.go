package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"listou/internal/logger"
)

// RedisStore keeps each entry as JSON under its own key and indexes it in one set per scope.
// Every change is announced on the scope's channel.
type RedisStore struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(client *redis.Client, log *zap.Logger) *RedisStore {
	return &RedisStore{client: client, log: logger.OrNop(log)}
}

func entryKey(id string) string {
	return "history:entry:" + id
}

func scopeSetKey(scopeKey string) string {
	return "history:scope:" + scopeKey
}

func scopeChannel(scopeKey string) string {
	return scopeSetKey(scopeKey) + ":changes"
}

// Append stores the entry and indexes it in the owner's and the pairing code's scope.
func (r *RedisStore) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	scopes := e.ScopeKeys()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entryKey(e.ID), data, 0)
		for _, key := range scopes {
			pipe.SAdd(ctx, scopeSetKey(key), e.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store history entry %s: %w", e.ID, err)
	}

	r.announce(ctx, scopes)
	return nil
}

// List retrieves the entries of a scope. Missing or malformed entries are skipped.
func (r *RedisStore) List(ctx context.Context, scope Scope) ([]Entry, error) {
	if scope.IsZero() {
		return nil, nil
	}
	ids, err := r.client.SMembers(ctx, scopeSetKey(scope.Key())).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history for %s: %w", scope.Key(), err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history entries: %w", err)
	}

	entries := make([]Entry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			r.log.Warn("skipping malformed history entry", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Get retrieves one entry by ID.
func (r *RedisStore) Get(ctx context.Context, id string) (Entry, error) {
	data, err := r.client.Get(ctx, entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get history entry %s: %w", id, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal history entry %s: %w", id, err)
	}
	return e, nil
}

// Delete removes one entry and its scope memberships.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	e, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	scopes := e.ScopeKeys()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, entryKey(id))
		for _, key := range scopes {
			pipe.SRem(ctx, scopeSetKey(key), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete history entry %s: %w", id, err)
	}

	r.announce(ctx, scopes)
	return nil
}

// announce is best effort: the write already happened, so a failed publish is only logged.
func (r *RedisStore) announce(ctx context.Context, scopes []string) {
	for _, key := range scopes {
		if err := r.client.Publish(ctx, scopeChannel(key), "changed").Err(); err != nil {
			r.log.Warn("failed to announce history change", zap.String("scope", key), zap.Error(err))
		}
	}
}

// Watch implements Store.
func (r *RedisStore) Watch(ctx context.Context, scope Scope, fn func()) error {
	ps := r.client.Subscribe(ctx, scopeChannel(scope.Key()))
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to history of %s: %w", scope.Key(), err)
	}
	ch := ps.Channel()

	fn()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return errors.New("history subscription closed by store")
			}
			fn()
		}
	}
}
