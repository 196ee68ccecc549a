package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

// ErrLockHeld is returned when another holder owns the lock
var ErrLockHeld = errors.New("lock held by another process")

// releaseScript deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Locker hands out named, expiring mutual-exclusion locks.
// Redis SET NX PX is used when enabled so replicas exclude each other;
// otherwise locks are only exclusive within this process.
type Locker struct {
	client *Client
	prefix string
	logger *logger.Logger

	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocker creates a new locker
func NewLocker(client *Client, prefix string, log *logger.Logger) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		logger: log,
		held:   make(map[string]time.Time),
	}
}

// Acquire takes the named lock for at most ttl. The returned release function
// is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := fmt.Sprintf("%s:lock:%s", l.prefix, name)

	if !l.client.Enabled() {
		return l.acquireLocal(key, ttl)
	}

	token := uuid.NewString()
	ok, err := l.client.Redis().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Release must outlive a cancelled caller context
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client.Redis(), []string{key}, token).Err(); err != nil {
				// The key stays until ttl expires
				l.logger.WithError(err).WithFields(map[string]interface{}{
					"lock": key,
					"ttl":  ttl.String(),
				}).Warn("Failed to release lock")
			}
		})
	}
	return release, nil
}

func (l *Locker) acquireLocal(key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, ErrLockHeld
	}
	exp := now.Add(ttl)
	l.held[key] = exp

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.held[key]; ok && cur.Equal(exp) {
				delete(l.held, key)
			}
		})
	}
	return release, nil
}
