package inventory

import (
	"context"
	"errors"
	"fmt"
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

func scanBatch(row pgx.Row) (*Batch, error) {
	var b Batch

	err := row.Scan(
		&b.ID,
		&b.MedicineName,
		&b.BatchID,
		&b.ExpiryDate,
		&b.QuantityOnHand,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}

	return &b, nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var res Reservation

	err := row.Scan(
		&res.ID,
		&res.PatientID,
		&res.MedicineName,
		&res.Quantity,
		&res.Status,
		&res.ReservedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	return &res, nil
}

const batchColumns = `id, medicine_name, batch_id, expiry_date, quantity_on_hand, created_at, updated_at`
const reservationColumns = `id, patient_id, medicine_name, quantity, status, reserved_at, updated_at`

func (r *PgRepository) BatchesByMedicine(ctx context.Context, medicineName string) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM inventory_batches
		WHERE medicine_name = $1
		  AND quantity_on_hand > 0
		ORDER BY expiry_date ASC
	`, medicineName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBatches(rows)
}

func (r *PgRepository) GetBatch(ctx context.Context, medicineName, batchID string) (*Batch, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+batchColumns+`
		FROM inventory_batches
		WHERE medicine_name = $1
		  AND batch_id = $2
	`, medicineName, batchID)
	return scanBatch(row)
}

func (r *PgRepository) InsertBatch(ctx context.Context, batch *Batch) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inventory_batches (id, medicine_name, batch_id, expiry_date, quantity_on_hand, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, batch.ID, batch.MedicineName, batch.BatchID, batch.ExpiryDate, batch.QuantityOnHand)
	return err
}

func (r *PgRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	var quantity int
	err := r.pool.QueryRow(ctx, `
		UPDATE inventory_batches
		SET quantity_on_hand = quantity_on_hand + $2,
		    updated_at = now()
		WHERE id = $1
		  AND quantity_on_hand + $2 >= 0
		RETURNING quantity_on_hand
	`, id, delta).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("batch %s: %w", id, ErrBatchNotFound)
		}
		return 0, err
	}
	return quantity, nil
}

// ApplyAdjustments runs every decrement in one transaction. An error on any
// batch rolls the whole walk back, so a connection drop mid-dispense cannot
// commit a partial consumption.
func (r *PgRepository) ApplyAdjustments(ctx context.Context, adjustments []BatchAdjustment) ([]int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	quantities := make([]int, 0, len(adjustments))
	for _, adj := range adjustments {
		var quantity int
		err := tx.QueryRow(ctx, `
			UPDATE inventory_batches
			SET quantity_on_hand = quantity_on_hand + $2,
			    updated_at = now()
			WHERE id = $1
			  AND quantity_on_hand + $2 >= 0
			RETURNING quantity_on_hand
		`, adj.BatchUUID, adj.Delta).Scan(&quantity)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("batch %s: %w", adj.BatchUUID, ErrBatchNotFound)
			}
			return nil, err
		}
		quantities = append(quantities, quantity)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return quantities, nil
}

func (r *PgRepository) TotalStock(ctx context.Context, medicineName string) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity_on_hand), 0)
		FROM inventory_batches
		WHERE medicine_name = $1
	`, medicineName).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PgRepository) ExpiringSoon(ctx context.Context, before time.Time) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM inventory_batches
		WHERE quantity_on_hand > 0
		  AND expiry_date < $1
		ORDER BY expiry_date ASC
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBatches(rows)
}

func (r *PgRepository) InsertReservation(ctx context.Context, res *Reservation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO medicine_reservations (id, patient_id, medicine_name, quantity, status, reserved_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, res.ID, res.PatientID, res.MedicineName, res.Quantity, res.Status, res.ReservedAt)
	return err
}

func (r *PgRepository) GetReservationByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM medicine_reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

func (r *PgRepository) UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to ReservationStatus) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE medicine_reservations
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+reservationColumns+`
	`, id, to, from)

	return scanReservation(row)
}

func (r *PgRepository) FindStaleReservations(ctx context.Context, before time.Time) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM medicine_reservations
		WHERE status = 'Reserved'
		  AND reserved_at < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReservations(rows)
}

func (r *PgRepository) ListReservationsByPatient(ctx context.Context, patientID uuid.UUID) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM medicine_reservations
		WHERE patient_id = $1
		ORDER BY reserved_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReservations(rows)
}

func collectBatches(rows pgx.Rows) ([]Batch, error) {
	var result []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func collectReservations(rows pgx.Rows) ([]Reservation, error) {
	var result []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *res)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
