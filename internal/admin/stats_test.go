package admin

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countRows(n int) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"count"}).AddRow(n)
}

func TestGetDashboardStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	topDoc := uuid.New()
	spec := "Cardiology"

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users$`).WillReturnRows(countRows(120))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE role = 'patient'`).WillReturnRows(countRows(100))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE role = 'doctor'`).WillReturnRows(countRows(19))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointments$`).WillReturnRows(countRows(200))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointments WHERE appointment_date = \$1::date`).
		WithArgs(now).
		WillReturnRows(countRows(8))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointments WHERE status = 'completed'`).WillReturnRows(countRows(150))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointments WHERE status = 'cancelled'`).WillReturnRows(countRows(20))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(consultation_fee\), 0\) FROM appointments WHERE status = 'completed'`).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(22500.0))
	mock.ExpectQuery(`SELECT a\.doctor_id, u\.name, u\.specialization`).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "name", "specialization", "count", "sum"}).
			AddRow(topDoc, "Dr. Chen", &spec, 40, 6000.0))

	repo := NewStatsRepository(mock)
	stats, err := repo.GetDashboardStats(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 120, stats.TotalUsers)
	assert.Equal(t, 100, stats.TotalPatients)
	assert.Equal(t, 19, stats.TotalDoctors)
	assert.Equal(t, 200, stats.TotalAppointments)
	assert.Equal(t, 8, stats.TodayAppointments)
	assert.Equal(t, 150, stats.CompletedAppointments)
	assert.Equal(t, 20, stats.CancelledAppointments)
	assert.Equal(t, 22500.0, stats.TotalRevenue)
	assert.Equal(t, 75, stats.CompletionRate)
	require.Len(t, stats.TopDoctors, 1)
	assert.Equal(t, "Dr. Chen", stats.TopDoctors[0].Name)
	assert.Equal(t, 40, stats.TopDoctors[0].AppointmentCount)

	assert.NoError(t, mock.ExpectationsWereMet())
}
