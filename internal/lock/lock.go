package lock

import (
	"context"
	"errors"
)

var (
	ErrNotAcquired = errors.New("resource lock not acquired")
)

// Locker guards the critical sections of the booking, queue, and dispense
// paths. Keys name the contended resource, e.g. "lock:slot:2026-02-20:Dental:09:00",
// "lock:queue:walkin", "lock:medicine:paracetamol".
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
