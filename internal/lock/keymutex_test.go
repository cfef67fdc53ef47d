package lock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMutexSerializesPerKey(t *testing.T) {
	km := NewKeyMutex()
	ctx := context.Background()

	const workers = 32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = km.WithLock(ctx, "shared", func(ctx context.Context) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyMutexIndependentKeys(t *testing.T) {
	km := NewKeyMutex()
	ctx := context.Background()

	// Holding one key must not block another.
	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = km.WithLock(ctx, "key-a", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held
	err := km.WithLock(ctx, "key-b", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	close(release)
}

func TestKeyMutexCancelledContext(t *testing.T) {
	km := NewKeyMutex()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := km.WithLock(ctx, "key", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
