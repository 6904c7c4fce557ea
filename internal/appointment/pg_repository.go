package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medibook/appointment-booking/internal/timeslot"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const apptColumns = `
	id, patient_id, doctor_id, appointment_date, start_time, end_time,
	status, type, reason, symptoms,
	patient_notes, doctor_notes, diagnosis, prescription,
	follow_up_required, follow_up_date,
	consultation_fee, payment_status,
	rating_score, rating_review, rated_at,
	reminder_sent,
	cancelled_by, cancellation_reason, cancelled_at,
	created_at, updated_at`

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var prescription []byte
	var ratingScore *int
	var ratingReview *string
	var ratedAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.AppointmentDate,
		&a.TimeSlot.StartTime,
		&a.TimeSlot.EndTime,
		&a.Status,
		&a.Type,
		&a.Reason,
		&a.Symptoms,
		&a.PatientNotes,
		&a.DoctorNotes,
		&a.Diagnosis,
		&prescription,
		&a.FollowUpRequired,
		&a.FollowUpDate,
		&a.ConsultationFee,
		&a.PaymentStatus,
		&ratingScore,
		&ratingReview,
		&ratedAt,
		&a.ReminderSent,
		&a.CancelledBy,
		&a.CancellationReason,
		&a.CancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if len(prescription) > 0 {
		if err := json.Unmarshal(prescription, &a.Prescription); err != nil {
			return nil, fmt.Errorf("decode prescription: %w", err)
		}
	}

	if ratingScore != nil {
		r := Rating{Score: *ratingScore}
		if ratingReview != nil {
			r.Review = *ratingReview
		}
		if ratedAt != nil {
			r.RatedAt = *ratedAt
		}
		a.Rating = &r
	}

	return &a, nil
}

func (r *PgRepository) Insert(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()

	prescription, err := json.Marshal(appt.Prescription)
	if err != nil {
		return nil, fmt.Errorf("encode prescription: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, appointment_date, start_time, end_time,
			status, type, reason, symptoms, prescription,
			consultation_fee, payment_status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'pending', now(), now())
		RETURNING `+apptColumns+`
	`, id, appt.PatientID, appt.DoctorID, appt.AppointmentDate,
		appt.TimeSlot.StartTime, appt.TimeSlot.EndTime,
		appt.Status, appt.Type, appt.Reason, appt.Symptoms, prescription,
		appt.ConsultationFee)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func statusList(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *PgRepository) ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time, statuses []Status) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2::date
		  AND status = ANY($3)
		ORDER BY start_time
	`, doctorID, date, statusList(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) FindConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, slot timeslot.TimeSlot) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2::date
		  AND status = ANY($3)
		  AND start_time < $4
		  AND end_time > $5
		LIMIT 1
	`, doctorID, date, statusList(ActiveStatuses), slot.EndTime, slot.StartTime)
	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, int, error) {
	where := []string{"true"}
	args := []any{}

	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		where = append(where, fmt.Sprintf("appointment_date = $%d::date", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE %s
		ORDER BY appointment_date DESC, start_time DESC
		LIMIT $%d OFFSET $%d
	`, apptColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) Cancel(ctx context.Context, id uuid.UUID, from Status, cancelledBy, reason string, at time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancelled_by = $3,
		    cancellation_reason = $4,
		    cancelled_at = $5,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+apptColumns+`
	`, id, from, cancelledBy, reason, at)
	return scanAppointment(row)
}

func (r *PgRepository) Complete(ctx context.Context, id uuid.UUID, diagnosis string, prescription []PrescriptionItem, doctorNotes string) (*Appointment, error) {
	encoded, err := json.Marshal(prescription)
	if err != nil {
		return nil, fmt.Errorf("encode prescription: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    diagnosis = $2,
		    prescription = $3,
		    doctor_notes = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'confirmed'
		RETURNING `+apptColumns+`
	`, id, diagnosis, encoded, doctorNotes)
	return scanAppointment(row)
}

func (r *PgRepository) SetRating(ctx context.Context, id uuid.UUID, rating Rating) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET rating_score = $2,
		    rating_review = $3,
		    rated_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND rating_score IS NULL
		RETURNING `+apptColumns+`
	`, id, rating.Score, rating.Review, rating.RatedAt)
	return scanAppointment(row)
}

func (r *PgRepository) UpdatePatientNotes(ctx context.Context, id uuid.UUID, notes *string, symptoms []string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET patient_notes = COALESCE($2, patient_notes),
		    symptoms = COALESCE($3, symptoms),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, notes, symptoms)
	return scanAppointment(row)
}

func (r *PgRepository) RatingSummary(ctx context.Context, doctorID uuid.UUID) (float64, int, error) {
	var avg float64
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating_score), 0), COUNT(rating_score)
		FROM appointments
		WHERE doctor_id = $1
		  AND rating_score IS NOT NULL
	`, doctorID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("rating summary: %w", err)
	}
	return avg, count, nil
}

func (r *PgRepository) FindReminderDue(ctx context.Context, window ReminderWindow) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = ANY($1)
		  AND reminder_sent = false
		  AND appointment_date >= $2::date
		  AND appointment_date <= $3::date
	`, statusList(ActiveStatuses), window.From, window.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
