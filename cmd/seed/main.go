package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carehub/clinic-ops/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPatients(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedInventory(context.Background(), pool); err != nil {
		log.Fatalf("seed inventory: %v", err)
	}

	log.Println("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, email)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedInventory(ctx context.Context, pool *pgxpool.Pool) error {
	medicines := []string{
		"Paracetamol",
		"Ibuprofen",
		"Amoxicillin",
		"Cetirizine",
		"Loperamide",
		"Mefenamic Acid",
		"Salbutamol",
		"Omeprazole",
	}

	log.Printf("seeding batches for %d medicines", len(medicines))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, name := range medicines {
		batches := gofakeit.Number(2, 4)
		for i := 0; i < batches; i++ {
			batchID := fmt.Sprintf("B-%s", gofakeit.DigitN(6))
			expiry := time.Now().AddDate(0, gofakeit.Number(1, 18), 0)
			quantity := gofakeit.Number(20, 200)

			_, err := tx.Exec(ctx, `
				INSERT INTO inventory_batches (id, medicine_name, batch_id, expiry_date, quantity_on_hand, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, uuid.New(), name, batchID, expiry, quantity)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}
