// Package session tracks the calls currently being relayed. Counts
// live in memory; when Redis is configured the registry mirrors
// membership there so a multi-pod deployment can see the fleet-wide
// picture.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/parakeetlabs/voice-bridge/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	activeCallsKey = "active_calls"
	callKeyPrefix  = "call:"
	callTTL        = 4 * time.Hour
	connectTimeout = 3 * time.Second
)

// Registry is safe for concurrent use across sessions.
type Registry struct {
	mu     sync.Mutex
	active map[string]time.Time

	rdb      *redis.Client
	instance string
}

// NewRegistry creates a call registry. addr may be empty; when it is,
// or when the initial ping fails, the registry runs memory-only.
func NewRegistry(addr, password string, db int, instance string) *Registry {
	r := &Registry{
		active:   make(map[string]time.Time),
		instance: instance,
	}

	if addr == "" {
		return r
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Base().Warn("redis unavailable, call registry is memory-only", zap.Error(err))
		_ = client.Close()
		return r
	}

	r.rdb = client
	logger.Base().Info("call registry mirrored to redis", zap.String("addr", addr))
	return r
}

// Add records a call as active.
func (r *Registry) Add(ctx context.Context, callID string) {
	r.mu.Lock()
	r.active[callID] = time.Now()
	r.mu.Unlock()

	if r.rdb != nil {
		key := callKeyPrefix + callID
		r.rdb.HSet(ctx, key, map[string]interface{}{
			"instance":   r.instance,
			"started_at": time.Now().Format(time.RFC3339),
		})
		r.rdb.Expire(ctx, key, callTTL)
		r.rdb.SAdd(ctx, activeCallsKey, callID)
	}
}

// Remove drops a call from the registry.
func (r *Registry) Remove(ctx context.Context, callID string) {
	r.mu.Lock()
	delete(r.active, callID)
	r.mu.Unlock()

	if r.rdb != nil {
		r.rdb.Del(ctx, callKeyPrefix+callID)
		r.rdb.SRem(ctx, activeCallsKey, callID)
	}
}

// Count returns the number of calls active on this instance.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Close releases the Redis connection if one was established.
func (r *Registry) Close() {
	if r.rdb != nil {
		_ = r.rdb.Close()
	}
}
