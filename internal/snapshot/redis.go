package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/normanking/cortex-emotion/internal/config"
	"github.com/normanking/cortex-emotion/internal/conversation"
)

const scanBatch = 100

// RedisStore keeps one JSON value per session under a key prefix.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb, prefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

// Backend implements Store.
func (s *RedisStore) Backend() string { return "redis" }

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	return keys, nil
}

// Save writes every state and removes keys of sessions no longer present.
// A zero TTL keeps keys until they are replaced or deleted.
func (s *RedisStore) Save(ctx context.Context, states []conversation.State) (err error) {
	defer func() { record(s.Backend(), "save", err) }()

	existing, err := s.keys(ctx)
	if err != nil {
		return err
	}

	live := make(map[string]bool, len(states))
	pipe := s.rdb.TxPipeline()
	for _, st := range states {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", st.SessionID, err)
		}
		k := s.key(st.SessionID)
		live[k] = true
		pipe.Set(ctx, k, data, s.ttl)
	}
	for _, k := range existing {
		if !live[k] {
			pipe.Del(ctx, k)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshots: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (_ []conversation.State, err error) {
	defer func() { record(s.Backend(), "load", err) }()

	keys, err := s.keys(ctx)
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget snapshots: %w", err)
	}

	out := make([]conversation.State, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		var st conversation.State
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, st)
	}
	sortByActivity(out)
	return out, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (conversation.State, error) {
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return conversation.State{}, ErrNotFound
	}
	if err != nil {
		return conversation.State{}, fmt.Errorf("get snapshot: %w", err)
	}
	var st conversation.State
	if err := json.Unmarshal(data, &st); err != nil {
		return conversation.State{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return st, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) (err error) {
	defer func() { record(s.Backend(), "delete", err) }()
	return s.rdb.Del(ctx, s.key(sessionID)).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
