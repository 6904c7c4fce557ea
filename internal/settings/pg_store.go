package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	db DB
}

func NewPgStore(db DB) *PgStore {
	return &PgStore{db: db}
}

const settingsColumns = `maintenance_mode, booking_enabled, auto_confirm_appointments, updated_at`

func (s *PgStore) Get(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.db.QueryRow(ctx, `
		SELECT `+settingsColumns+`
		FROM settings
		WHERE id = 1
	`).Scan(&out.MaintenanceMode, &out.BookingEnabled, &out.AutoConfirmAppointments, &out.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// First read creates the row with defaults, matching the
		// table's column defaults.
		row := s.db.QueryRow(ctx, `
			INSERT INTO settings (id) VALUES (1)
			ON CONFLICT (id) DO UPDATE SET id = 1
			RETURNING `+settingsColumns+`
		`)
		err = row.Scan(&out.MaintenanceMode, &out.BookingEnabled, &out.AutoConfirmAppointments, &out.UpdatedAt)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return out, nil
}

func (s *PgStore) Update(ctx context.Context, params UpdateParams) (Settings, error) {
	if _, err := s.Get(ctx); err != nil {
		return Settings{}, err
	}

	var out Settings
	err := s.db.QueryRow(ctx, `
		UPDATE settings
		SET maintenance_mode = COALESCE($1, maintenance_mode),
		    booking_enabled = COALESCE($2, booking_enabled),
		    auto_confirm_appointments = COALESCE($3, auto_confirm_appointments),
		    updated_at = now()
		WHERE id = 1
		RETURNING `+settingsColumns+`
	`, params.MaintenanceMode, params.BookingEnabled, params.AutoConfirmAppointments).
		Scan(&out.MaintenanceMode, &out.BookingEnabled, &out.AutoConfirmAppointments, &out.UpdatedAt)
	if err != nil {
		return Settings{}, fmt.Errorf("update settings: %w", err)
	}
	return out, nil
}
