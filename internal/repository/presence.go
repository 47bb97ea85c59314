package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceRepository присутствие пользователей в Redis
type PresenceRepository interface {
	AddConnection(ctx context.Context, userID, connID string) error
	RemoveConnection(ctx context.Context, userID, connID string) (int64, error)
	Refresh(ctx context.Context, userID string) error
	Online(ctx context.Context, userIDs []string) (map[string]bool, error)
}

type presenceRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPresenceRepository создает репозиторий присутствия с TTL ключей
func NewPresenceRepository(rdb *redis.Client, ttl time.Duration) PresenceRepository {
	return &presenceRepository{rdb: rdb, ttl: ttl}
}

func onlineKey(userID string) string {
	return fmt.Sprintf("user:%s:online", userID)
}

func (r *presenceRepository) AddConnection(ctx context.Context, userID, connID string) error {
	key := onlineKey(userID)
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, key, connID)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}
	return nil
}

// RemoveConnection удаляет соединение и возвращает число оставшихся
func (r *presenceRepository) RemoveConnection(ctx context.Context, userID, connID string) (int64, error) {
	key := onlineKey(userID)
	if err := r.rdb.SRem(ctx, key, connID).Err(); err != nil {
		return 0, fmt.Errorf("failed to remove connection: %w", err)
	}
	return r.rdb.SCard(ctx, key).Result()
}

func (r *presenceRepository) Refresh(ctx context.Context, userID string) error {
	return r.rdb.Expire(ctx, onlineKey(userID), r.ttl).Err()
}

// Online проверяет присутствие пачкой через pipeline
func (r *presenceRepository) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.SCard(ctx, onlineKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}

	for i, id := range userIDs {
		result[id] = cmds[i].Val() > 0
	}
	return result, nil
}
