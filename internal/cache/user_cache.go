package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	dom "github.com/tomdekan/react-auth/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyUser = "user:"

// UserCache caches user records by ID in Redis. Users are never updated or
// deleted, so there is no invalidation path; entries just age out.
type UserCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewUserCache returns a new UserCache.
func NewUserCache(rdb *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached user or nil if miss.
func (c *UserCache) Get(ctx context.Context, id int64) (*dom.User, error) {
	b, err := c.rdb.Get(ctx, keyUser+strconv.FormatInt(id, 10)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u dom.User
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Set stores the user in cache.
func (c *UserCache) Set(ctx context.Context, u dom.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyUser+strconv.FormatInt(u.ID, 10), b, c.ttl).Err()
}
