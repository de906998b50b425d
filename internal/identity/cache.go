package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// Cache - кэш идентичностей участников с ограниченным временем жизни записей.
type Cache interface {
	// Get возвращает участника и true, если запись есть и не истекла.
	Get(ctx context.Context, userID int64) (*models.Actor, bool, error)
	Put(ctx context.Context, actor *models.Actor, ttl time.Duration) error
	Invalidate(ctx context.Context, userID int64) error
}

const redisKeyPrefix = "docanchor:actor:"

// RedisCache хранит идентичности в Redis.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache создает кэш поверх клиента Redis.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

func (c *RedisCache) Get(ctx context.Context, userID int64) (*models.Actor, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ошибка чтения кэша идентичностей: %w", err)
	}
	var actor models.Actor
	if err = json.Unmarshal(raw, &actor); err != nil {
		return nil, false, fmt.Errorf("ошибка разбора записи кэша: %w", err)
	}
	return &actor, true, nil
}

func (c *RedisCache) Put(ctx context.Context, actor *models.Actor, ttl time.Duration) error {
	raw, err := json.Marshal(actor)
	if err != nil {
		return fmt.Errorf("ошибка сериализации идентичности: %w", err)
	}
	if err = c.client.Set(ctx, redisKey(actor.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи кэша идентичностей: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления записи кэша: %w", err)
	}
	return nil
}

// memoryCacheCapacity ограничивает число участников в кэше процесса.
const memoryCacheCapacity = 10000

// MemoryCache - кэш в памяти процесса, используется без Redis.
// Чтение не продлевает срок жизни записи: TTL отсчитывается от Put, как в Redis.
type MemoryCache struct {
	items *ttlcache.Cache[int64, models.Actor]
}

// NewMemoryCache создает кэш в памяти.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: ttlcache.New[int64, models.Actor](
		ttlcache.WithCapacity[int64, models.Actor](memoryCacheCapacity),
		ttlcache.WithDisableTouchOnHit[int64, models.Actor](),
	)}
}

func (c *MemoryCache) Get(_ context.Context, userID int64) (*models.Actor, bool, error) {
	item := c.items.Get(userID)
	if item == nil {
		return nil, false, nil
	}
	actor := item.Value()
	return &actor, true, nil
}

func (c *MemoryCache) Put(_ context.Context, actor *models.Actor, ttl time.Duration) error {
	c.items.Set(actor.ID, *actor, ttl)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID int64) error {
	c.items.Delete(userID)
	return nil
}
