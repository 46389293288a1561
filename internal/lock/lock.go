package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farm-sync/pkg"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLocked = errors.New("farm is busy")

// удаляем ключ только если он всё ещё наш
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

type FarmLocker interface {
	// Lock возвращает ErrLocked, если ферму держит другой запрос.
	Lock(ctx context.Context, farmID int64) (release func(), err error)
}

type farmLocker struct {
	rdb Client
	ttl time.Duration
	log pkg.Logger
}

func NewFarmLocker(rdb Client, ttl time.Duration, log pkg.Logger) FarmLocker {
	return &farmLocker{rdb: rdb, ttl: ttl, log: log}
}

func lockKey(farmID int64) string {
	return fmt.Sprintf("farm-sync:lock:%d", farmID)
}

func (l *farmLocker) Lock(ctx context.Context, farmID int64) (func(), error) {
	key := lockKey(farmID)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire farm lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	release := func() {
		// контекст запроса к этому моменту может быть уже отменён
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("failed to release farm lock", zap.Int64("farmID", farmID), zap.Error(err))
		}
	}
	return release, nil
}
