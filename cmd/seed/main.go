package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibook/appointment-booking/internal/db"
	"github.com/medibook/appointment-booking/internal/user"
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

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedAdmin(context.Background(), pool); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, name, email, role, is_active, created_at, updated_at)
		VALUES ($1, 'Platform Admin', 'admin@medibook.local', 'admin', true, now(), now())
		ON CONFLICT (email) DO NOTHING
	`, uuid.New())
	return err
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		email := gofakeit.Email()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		fee := float64(gofakeit.Number(40, 250))
		years := gofakeit.Number(1, 35)

		availability, err := json.Marshal(weeklyTemplate())
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO users (id, name, email, role, is_active,
				specialization, license_number, experience_years, consultation_fee,
				availability, bio, created_at, updated_at)
			VALUES ($1, $2, $3, 'doctor', true, $4, $5, $6, $7, $8, $9, now(), now())
		`, id, name, email, spec, gofakeit.UUID(), years, fee, availability, gofakeit.Sentence(12))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

// weeklyTemplate builds a plausible Monday-to-Friday schedule with a
// morning and an afternoon block, occasionally dropping a day.
func weeklyTemplate() []user.DayAvailability {
	days := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	template := make([]user.DayAvailability, 0, len(days))
	for _, day := range days {
		if gofakeit.Number(0, 9) == 0 {
			continue
		}
		template = append(template, user.DayAvailability{
			Day: day,
			Slots: []user.AvailabilitySlot{
				{StartTime: "09:00", EndTime: "12:00", IsAvailable: true},
				{StartTime: "14:00", EndTime: "17:00", IsAvailable: true},
			},
		})
	}
	return template
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			phone := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, role, phone, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, 'patient', $4, true, now(), now())
			`, id, name, email, phone)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
