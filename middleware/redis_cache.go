package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/projectdb/conn"
	"github.com/shrek82/projectdb/logger"
)

// RedisCacheMiddleware caches query rows in Redis.
// Caching is opt-in per call, see WithCacheTTL.
type RedisCacheMiddleware struct {
	Client     *redis.Client
	DefaultTTL time.Duration
	log        logger.Logger
}

func NewRedisCache(opt *redis.Options) *RedisCacheMiddleware {
	return &RedisCacheMiddleware{
		Client:     redis.NewClient(opt),
		DefaultTTL: 5 * time.Minute,
	}
}

func (m *RedisCacheMiddleware) Name() string {
	return "RedisCache"
}

func (m *RedisCacheMiddleware) Init(mgr *conn.Manager) error {
	m.log = mgr.Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx).Err()
}

func (m *RedisCacheMiddleware) Shutdown() error {
	return m.Client.Close()
}

func (m *RedisCacheMiddleware) Process(ctx context.Context, req *conn.Request, next conn.QueryFunc) (int64, error) {
	ttl, ok := cacheTTL(ctx)
	if !ok {
		return next(ctx, req)
	}
	switch {
	case ttl == UseDefault:
		ttl = m.DefaultTTL
	case ttl < 0:
		// redis uses 0 for no expiration
		ttl = 0
	}
	return processCached(ctx, m, ttl, req, next)
}

func (m *RedisCacheMiddleware) load(ctx context.Context, key string) ([]byte, bool) {
	data, err := m.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && m.log != nil {
			m.log.Warn("redis get %s: %v", key, err)
		}
		return nil, false
	}
	return data, true
}

func (m *RedisCacheMiddleware) store(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := m.Client.Set(ctx, key, data, ttl).Err(); err != nil && m.log != nil {
		m.log.Warn("redis set %s: %v", key, err)
	}
}
