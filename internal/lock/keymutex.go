package lock

import (
	"context"
	"sync"
)

// KeyMutex is the in-process implementation of Locker. It serializes callers
// per key with plain mutexes, so a single binary gets the same critical
// sections the Redis locker provides across processes. Unlike the Redis
// locker it blocks instead of failing fast when the key is held.
type KeyMutex struct {
	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{
		mutexes: make(map[string]*sync.Mutex),
	}
}

func (k *KeyMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	m := k.mutexFor(key)
	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (k *KeyMutex) mutexFor(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.mutexes[key]
	if !ok {
		m = &sync.Mutex{}
		k.mutexes[key] = m
	}
	return m
}
