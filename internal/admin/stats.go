// Package admin serves aggregate dashboard statistics. Queries are
// simple counts and sums; nothing here is on the booking hot path.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type TopDoctor struct {
	DoctorID         uuid.UUID `json:"doctorId"`
	Name             string    `json:"name"`
	Specialization   *string   `json:"specialization,omitempty"`
	AppointmentCount int       `json:"appointmentCount"`
	Revenue          float64   `json:"revenue"`
}

type DashboardStats struct {
	TotalUsers    int `json:"totalUsers"`
	TotalPatients int `json:"totalPatients"`
	TotalDoctors  int `json:"totalDoctors"`

	TotalAppointments     int `json:"totalAppointments"`
	TodayAppointments     int `json:"todayAppointments"`
	CompletedAppointments int `json:"completedAppointments"`
	CancelledAppointments int `json:"cancelledAppointments"`

	TotalRevenue   float64     `json:"totalRevenue"`
	CompletionRate int         `json:"completionRate"`
	TopDoctors     []TopDoctor `json:"topDoctors"`
}

type StatsRepository struct {
	db DB
}

func NewStatsRepository(db DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetDashboardStats assembles the admin dashboard in one pass.
func (r *StatsRepository) GetDashboardStats(ctx context.Context, now time.Time) (*DashboardStats, error) {
	var stats DashboardStats
	var err error

	if stats.TotalUsers, err = r.count(ctx, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if stats.TotalPatients, err = r.count(ctx, `SELECT COUNT(*) FROM users WHERE role = 'patient'`); err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if stats.TotalDoctors, err = r.count(ctx, `SELECT COUNT(*) FROM users WHERE role = 'doctor'`); err != nil {
		return nil, fmt.Errorf("count doctors: %w", err)
	}

	if stats.TotalAppointments, err = r.count(ctx, `SELECT COUNT(*) FROM appointments`); err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	if stats.TodayAppointments, err = r.count(ctx, `SELECT COUNT(*) FROM appointments WHERE appointment_date = $1::date`, now); err != nil {
		return nil, fmt.Errorf("count today appointments: %w", err)
	}
	if stats.CompletedAppointments, err = r.count(ctx, `SELECT COUNT(*) FROM appointments WHERE status = 'completed'`); err != nil {
		return nil, fmt.Errorf("count completed appointments: %w", err)
	}
	if stats.CancelledAppointments, err = r.count(ctx, `SELECT COUNT(*) FROM appointments WHERE status = 'cancelled'`); err != nil {
		return nil, fmt.Errorf("count cancelled appointments: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(consultation_fee), 0)
		FROM appointments
		WHERE status = 'completed'
	`).Scan(&stats.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}

	if stats.TotalAppointments > 0 {
		stats.CompletionRate = int(float64(stats.CompletedAppointments) / float64(stats.TotalAppointments) * 100)
	}

	if stats.TopDoctors, err = r.topDoctors(ctx, 5); err != nil {
		return nil, fmt.Errorf("top doctors: %w", err)
	}

	return &stats, nil
}

func (r *StatsRepository) topDoctors(ctx context.Context, limit int) ([]TopDoctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.doctor_id, u.name, u.specialization, COUNT(*), COALESCE(SUM(a.consultation_fee), 0)
		FROM appointments a
		JOIN users u ON u.id = a.doctor_id
		WHERE a.status = 'completed'
		GROUP BY a.doctor_id, u.name, u.specialization
		ORDER BY COUNT(*) DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopDoctor
	for rows.Next() {
		var d TopDoctor
		if err := rows.Scan(&d.DoctorID, &d.Name, &d.Specialization, &d.AppointmentCount, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
