package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
)

// KeyedMutex is an in-process Locker with one mutex per shopper. Entries are
// reference counted and dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(_ context.Context, shopperID string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[shopperID]
	if !ok {
		entry = &keyedEntry{}
		k.locks[shopperID] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			k.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(k.locks, shopperID)
			}
			k.mu.Unlock()
		})
	}, nil
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) (bool, error)
	LockKey(scope, id string) string
}

const (
	defaultLockTTL  = 10 * time.Second
	defaultLockWait = 5 * time.Second
	lockPollEvery   = 25 * time.Millisecond
)

// RedisLocker serializes a shopper across API replicas with SET NX. It first
// takes the in-process mutex so local callers queue without polling Redis.
type RedisLocker struct {
	store lockStore
	local *KeyedMutex
	ttl   time.Duration
	wait  time.Duration
}

func NewRedisLocker(store lockStore, ttl, wait time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis store required for cart locker")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{store: store, local: NewKeyedMutex(), ttl: ttl, wait: wait}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, shopperID string) (func(), error) {
	unlockLocal, _ := l.local.Lock(ctx, shopperID)

	key := l.store.LockKey("cart", shopperID)
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			unlockLocal()
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lock")
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			unlockLocal()
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is busy, retry")
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-time.After(lockPollEvery):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			defer unlockLocal()
			_, _ = l.store.ReleaseLock(context.WithoutCancel(ctx), key, owner)
		})
	}, nil
}
