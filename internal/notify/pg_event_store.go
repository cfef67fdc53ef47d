package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgEventStore appends events to the event_logs audit table. It implements
// Dispatcher so the scheduler can fan out to the audit trail and the broker
// with the same hook.
type PgEventStore struct {
	pool *pgxpool.Pool
}

func NewPgEventStore(pool *pgxpool.Pool) *PgEventStore {
	return &PgEventStore{pool: pool}
}

func (s *PgEventStore) Dispatch(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, payload, created_at)
		VALUES ($1, $2, $3)
	`, ev.Type, payload, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}
