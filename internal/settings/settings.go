// Package settings manages the single system-wide configuration row:
// maintenance mode, whether booking is open, and whether new
// appointments are auto-confirmed.
package settings

import (
	"context"
	"time"
)

type Settings struct {
	MaintenanceMode         bool      `json:"maintenanceMode"`
	BookingEnabled          bool      `json:"bookingEnabled"`
	AutoConfirmAppointments bool      `json:"autoConfirmAppointments"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// Defaults mirrors the values the row is created with.
func Defaults() Settings {
	return Settings{
		MaintenanceMode:         false,
		BookingEnabled:          true,
		AutoConfirmAppointments: false,
	}
}

// UpdateParams carries partial updates; nil fields are left unchanged.
type UpdateParams struct {
	MaintenanceMode         *bool `json:"maintenanceMode"`
	BookingEnabled          *bool `json:"bookingEnabled"`
	AutoConfirmAppointments *bool `json:"autoConfirmAppointments"`
}

// Store reads and writes the settings row. Get always succeeds once
// the schema exists: a missing row is created with defaults.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, params UpdateParams) (Settings, error)
}
