package admin

import (
	"context"
	"fmt"
	"time"
)

type DailyAppointments struct {
	Date      string  `json:"date"`
	Count     int     `json:"count"`
	Completed int     `json:"completed"`
	Cancelled int     `json:"cancelled"`
	Revenue   float64 `json:"revenue"`
}

type DailyRegistrations struct {
	Date     string `json:"date"`
	Total    int    `json:"total"`
	Patients int    `json:"patients"`
	Doctors  int    `json:"doctors"`
}

type SpecializationStat struct {
	Specialization string  `json:"specialization"`
	Count          int     `json:"count"`
	AvgRating      float64 `json:"avgRating"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type SystemAnalytics struct {
	PeriodDays          int                  `json:"periodDays"`
	DailyAppointments   []DailyAppointments  `json:"dailyAppointments"`
	DailyRegistrations  []DailyRegistrations `json:"dailyRegistrations"`
	StatusBreakdown     []StatusCount        `json:"statusBreakdown"`
	SpecializationStats []SpecializationStat `json:"specializationStats"`
}

// GetSystemAnalytics returns date-bucketed trends over the trailing
// period plus status and specialization distributions.
func (r *StatsRepository) GetSystemAnalytics(ctx context.Context, now time.Time, periodDays int) (*SystemAnalytics, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	since := now.AddDate(0, 0, -periodDays)

	analytics := SystemAnalytics{PeriodDays: periodDays}

	rows, err := r.db.Query(ctx, `
		SELECT appointment_date::text,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'cancelled'),
		       COALESCE(SUM(consultation_fee) FILTER (WHERE status = 'completed'), 0)
		FROM appointments
		WHERE appointment_date >= $1::date
		GROUP BY appointment_date
		ORDER BY appointment_date
	`, since)
	if err != nil {
		return nil, fmt.Errorf("daily appointments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DailyAppointments
		if err := rows.Scan(&d.Date, &d.Count, &d.Completed, &d.Cancelled, &d.Revenue); err != nil {
			return nil, err
		}
		analytics.DailyAppointments = append(analytics.DailyAppointments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT date_trunc('day', created_at)::date::text,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE role = 'patient'),
		       COUNT(*) FILTER (WHERE role = 'doctor')
		FROM users
		WHERE created_at >= $1
		GROUP BY date_trunc('day', created_at)
		ORDER BY date_trunc('day', created_at)
	`, since)
	if err != nil {
		return nil, fmt.Errorf("daily registrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DailyRegistrations
		if err := rows.Scan(&d.Date, &d.Total, &d.Patients, &d.Doctors); err != nil {
			return nil, err
		}
		analytics.DailyRegistrations = append(analytics.DailyRegistrations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT status, COUNT(*)
		FROM appointments
		GROUP BY status
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("status breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s StatusCount
		if err := rows.Scan(&s.Status, &s.Count); err != nil {
			return nil, err
		}
		analytics.StatusBreakdown = append(analytics.StatusBreakdown, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT COALESCE(specialization, 'unspecified'), COUNT(*), COALESCE(AVG(rating_avg), 0)
		FROM users
		WHERE role = 'doctor' AND is_active
		GROUP BY specialization
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("specialization stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s SpecializationStat
		if err := rows.Scan(&s.Specialization, &s.Count, &s.AvgRating); err != nil {
			return nil, err
		}
		analytics.SpecializationStats = append(analytics.SpecializationStats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &analytics, nil
}
