package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var servedAt *time.Time

	err := row.Scan(
		&e.ID,
		&e.PatientName,
		&e.Severity,
		&e.ArrivalTime,
		&e.Status,
		&servedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.ServedAt = servedAt
	return &e, nil
}

const entryColumns = `id, patient_name, severity_score, arrival_time, status, served_at, created_at, updated_at`

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (r *PgRepository) Insert(ctx context.Context, entry *Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO queue_entries (id, patient_name, severity_score, arrival_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, entry.ID, entry.PatientName, int(entry.Severity), entry.ArrivalTime, entry.Status)
	return err
}

func (r *PgRepository) NextWaiting(ctx context.Context) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE status = 'Waiting'
		ORDER BY severity_score ASC, arrival_time ASC
		LIMIT 1
	`)
	return scanEntry(row)
}

func (r *PgRepository) CurrentServing(ctx context.Context) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE status = 'Serving'
		LIMIT 1
	`)
	return scanEntry(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to EntryStatus, servedAt *time.Time) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = $2,
		    served_at = COALESCE($4, served_at),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+entryColumns+`
	`, id, to, from, servedAt)

	return scanEntry(row)
}

func (r *PgRepository) CountWaitingBySeverity(ctx context.Context) (map[Severity]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT severity_score, COUNT(*)
		FROM queue_entries
		WHERE status = 'Waiting'
		GROUP BY severity_score
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Severity]int)
	for rows.Next() {
		var sev, count int
		if err := rows.Scan(&sev, &count); err != nil {
			return nil, err
		}
		counts[Severity(sev)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
