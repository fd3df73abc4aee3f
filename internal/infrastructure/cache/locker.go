package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockTimeout is the cause of the transient error returned when a lock
// could not be obtained within the wait budget
var ErrLockTimeout = errors.New("lock wait timed out")

// DefaultLockPrefix namespaces lock keys in Redis
const DefaultLockPrefix = "faasbill:lock:"

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements shared.Locker with SET NX PX and a token checked on release.
// The TTL bounds how long a crashed holder can block others.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
	retry     time.Duration
}

// NewRedisLocker creates a locker on a shared client
func NewRedisLocker(client *redis.Client, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: DefaultLockPrefix,
		logger:    logger,
		retry:     25 * time.Millisecond,
	}
}

// Acquire polls SET NX until it wins, ctx is done, or wait elapses
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	backoff := l.retry

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, shared.NewTransientError("acquire lock "+key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, shared.NewTransientError("acquire lock "+key, ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, shared.NewTransientError("acquire lock "+key, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's ctx may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("Failed to release lock, it will expire on its own",
					zap.String("key", redisKey),
					zap.Error(err),
				)
			}
		})
	}
}

// InMemoryLocker implements shared.Locker for a single process.
// TTL is ignored since a holder cannot outlive the process.
type InMemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

// lockSlot is shared by the holder and the waiters of one key; refs counts
// them so the slot is dropped once the key goes idle
type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewInMemoryLocker creates an empty in-process locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{slots: make(map[string]*lockSlot)}
}

// Acquire blocks until the key is free, ctx is done, or wait elapses
func (l *InMemoryLocker) Acquire(ctx context.Context, key string, _, wait time.Duration) (func(), error) {
	slot := l.join(key)

	select {
	case slot.ch <- struct{}{}:
		return l.releaser(key, slot), nil
	default:
	}
	if wait <= 0 {
		l.leave(key, slot)
		return nil, shared.NewTransientError("acquire lock "+key, ErrLockTimeout)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		return l.releaser(key, slot), nil
	case <-ctx.Done():
		l.leave(key, slot)
		return nil, shared.NewTransientError("acquire lock "+key, ctx.Err())
	case <-timer.C:
		l.leave(key, slot)
		return nil, shared.NewTransientError("acquire lock "+key, ErrLockTimeout)
	}
}

func (l *InMemoryLocker) join(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *InMemoryLocker) leave(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *InMemoryLocker) releaser(key string, slot *lockSlot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.leave(key, slot)
		})
	}
}

// activeKeys reports how many keys still have a holder or a waiter
func (l *InMemoryLocker) activeKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

var (
	_ shared.Locker = (*RedisLocker)(nil)
	_ shared.Locker = (*InMemoryLocker)(nil)
)
