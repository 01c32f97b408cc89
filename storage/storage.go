package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"sprintboard/domain"
)

// RedisStore keeps the board snapshot in two Redis keys: one document keyed
// by stage name holding the task buckets, and one array holding the member
// set.
type RedisStore struct {
	client     *redis.Client
	tasksKey   string
	membersKey string
}

// NewRedisStore creates a store writing under the given key prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		panic("storage.NewRedisStore: client is nil")
	}
	if prefix == "" {
		prefix = "board"
	}
	return &RedisStore{
		client:     client,
		tasksKey:   prefix + ":tasks",
		membersKey: prefix + ":members",
	}
}

// Save replaces both snapshot documents.
func (s *RedisStore) Save(ctx context.Context, snap domain.Snapshot) error {
	tasks, err := sonic.Marshal(snap.Tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	members, err := sonic.Marshal(snap.Members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tasksKey, tasks, 0)
		pipe.Set(ctx, s.membersKey, members, 0)
		return nil
	})
	return err
}

// Load reads both snapshot documents. A missing key behaves as an empty
// document; ok is false only when neither key is present. Malformed
// documents surface as an error so the caller can fall back to an empty
// board.
func (s *RedisStore) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	snap := domain.Snapshot{Tasks: make(map[domain.Stage][]domain.Task)}

	tasksRaw, tasksErr := s.client.Get(ctx, s.tasksKey).Bytes()
	if tasksErr != nil && !errors.Is(tasksErr, redis.Nil) {
		return domain.Snapshot{}, false, tasksErr
	}
	membersRaw, membersErr := s.client.Get(ctx, s.membersKey).Bytes()
	if membersErr != nil && !errors.Is(membersErr, redis.Nil) {
		return domain.Snapshot{}, false, membersErr
	}
	if errors.Is(tasksErr, redis.Nil) && errors.Is(membersErr, redis.Nil) {
		return domain.Snapshot{}, false, nil
	}

	if tasksErr == nil {
		if err := sonic.Unmarshal(tasksRaw, &snap.Tasks); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("decode tasks: %w", err)
		}
	}
	if membersErr == nil {
		if err := sonic.Unmarshal(membersRaw, &snap.Members); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("decode members: %w", err)
		}
	}
	return snap, true, nil
}
