package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEntryNotFound = errors.New("queue entry not found")
)

// Repository contains all DB interactions needed by the queue service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	Insert(ctx context.Context, entry *Entry) error

	// NextWaiting returns the Waiting entry with the lowest severity score,
	// ties broken by earliest arrival; ErrEntryNotFound when none wait.
	NextWaiting(ctx context.Context) (*Entry, error)

	// CurrentServing returns the entry with status Serving, if any.
	CurrentServing(ctx context.Context) (*Entry, error)

	// UpdateStatus performs a compare-and-set transition; servedAt is set
	// when non-nil. Returns ErrEntryNotFound when no row matches (id, from).
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to EntryStatus, servedAt *time.Time) (*Entry, error)

	CountWaitingBySeverity(ctx context.Context) (map[Severity]int, error)
}
