package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/medibook/appointment-booking/internal/redis"
	"github.com/medibook/appointment-booking/internal/settings"
	"github.com/medibook/appointment-booking/internal/timeslot"
	"github.com/medibook/appointment-booking/internal/user"
	"github.com/medibook/appointment-booking/pkg/logging"
)

var (
	ErrInvalidDoctor           = errors.New("invalid or inactive doctor")
	ErrPastDate                = errors.New("appointment date must not be in the past")
	ErrSlotUnavailable         = errors.New("selected time slot is not available")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrBookingDisabled         = errors.New("booking is currently disabled")
	ErrReasonRequired          = errors.New("appointment reason is required")
	ErrAlreadyCancelled        = errors.New("appointment is already cancelled")
	ErrCannotCancelCompleted   = errors.New("cannot cancel a completed appointment")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotCompleted            = errors.New("can only rate completed appointments")
	ErrAlreadyRated            = errors.New("appointment already rated")
	ErrInvalidRating           = errors.New("rating score must be between 1 and 5")
)

type Service struct {
	repo     Repository
	users    user.Repository
	settings settings.Store
	locker   redisclient.Locker
	logger   *logging.Logger

	// now is replaceable in tests.
	now func() time.Time
}

func NewService(repo Repository, users user.Repository, settingsStore settings.Store, locker redisclient.Locker, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		users:    users,
		settings: settingsStore,
		locker:   locker,
		logger:   logger,
		now:      time.Now,
	}
}

// BookParams is a new appointment request, already shaped by the
// validation layer.
type BookParams struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	AppointmentDate time.Time
	TimeSlot        timeslot.TimeSlot
	Reason          string
	Type            Type
	Symptoms        []string
}

// Book validates and persists a new appointment. The conflict check
// and the insert run inside a per-slot distributed lock, and the
// partial unique index backs that up, so concurrent requests for the
// same doctor/date/slot cannot both succeed.
func (s *Service) Book(ctx context.Context, params BookParams) (*Appointment, error) {
	doctor, err := s.users.GetDoctorByID(ctx, params.DoctorID)
	if err != nil {
		if errors.Is(err, user.ErrDoctorNotFound) {
			return nil, ErrInvalidDoctor
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	sys, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !sys.BookingEnabled || sys.MaintenanceMode {
		return nil, ErrBookingDisabled
	}

	if timeslot.BeforeToday(params.AppointmentDate, s.now()) {
		return nil, ErrPastDate
	}

	if strings.TrimSpace(params.Reason) == "" {
		return nil, ErrReasonRequired
	}

	if err := params.TimeSlot.Validate(); err != nil {
		return nil, err
	}

	status := StatusScheduled
	if sys.AutoConfirmAppointments {
		status = StatusConfirmed
	}

	apptType := params.Type
	if apptType == "" {
		apptType = TypeConsultation
	}

	symptoms := params.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}

	var fee float64
	if doctor.ConsultationFee != nil {
		fee = *doctor.ConsultationFee
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, params.DoctorID, params.AppointmentDate, params.TimeSlot.StartTime, func(lockCtx context.Context) error {
		// Re-check inside the critical section.
		existing, err := s.repo.FindConflict(lockCtx, params.DoctorID, params.AppointmentDate, params.TimeSlot)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot conflict: %w", err)
		}
		if existing != nil {
			return ErrSlotUnavailable
		}

		appt, err := s.repo.Insert(lockCtx, &Appointment{
			PatientID:       params.PatientID,
			DoctorID:        params.DoctorID,
			AppointmentDate: params.AppointmentDate,
			TimeSlot:        params.TimeSlot,
			Status:          status,
			Type:            apptType,
			Reason:          params.Reason,
			Symptoms:        symptoms,
			ConsultationFee: fee,
		})
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"doctor_id", created.DoctorID,
		"patient_id", created.PatientID,
		"date", created.AppointmentDate.Format("2006-01-02"),
		"slot", created.TimeSlot.StartTime+"-"+created.TimeSlot.EndTime,
		"status", created.Status,
	)

	return created, nil
}

// Get retrieves an appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// List retrieves appointments matching the filter with a total for
// pagination.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Appointment, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	appts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return appts, total, nil
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusScheduled, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race against another transition.
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}
	return updated, nil
}

// Cancel marks an appointment cancelled and records who cancelled it
// and why. Authorization is the caller's concern; actorRole arrives
// already validated.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorRole, reason string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch appt.Status {
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	case StatusCompleted:
		return nil, ErrCannotCancelCompleted
	}

	updated, err := s.repo.Cancel(ctx, id, appt.Status, actorRole, reason, s.now())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logger.Info("appointment cancelled", "appointment_id", id, "cancelled_by", actorRole)
	return updated, nil
}

// Complete moves a confirmed appointment to completed and records the
// doctor's clinical outcome.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, diagnosis string, prescription []PrescriptionItem, doctorNotes string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.Complete(ctx, id, diagnosis, prescription, doctorNotes)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}
	return updated, nil
}

// MarkNoShow flags a scheduled or confirmed appointment the patient
// never turned up for. Administrative operation.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled && appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, StatusNoShow)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("mark no-show: %w", err)
	}
	return updated, nil
}

// Rate records the patient's rating for a completed appointment and
// recomputes the doctor's aggregate from scratch. The appointment and
// doctor writes are not atomic with each other; a stale aggregate
// self-heals on the next rating.
func (s *Service) Rate(ctx context.Context, id uuid.UUID, score int, review string) (*Appointment, error) {
	if score < 1 || score > 5 {
		return nil, ErrInvalidRating
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusCompleted {
		return nil, ErrNotCompleted
	}
	if appt.Rating != nil {
		return nil, ErrAlreadyRated
	}

	updated, err := s.repo.SetRating(ctx, id, Rating{
		Score:   score,
		Review:  review,
		RatedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyRated
		}
		return nil, fmt.Errorf("set rating: %w", err)
	}

	avg, count, err := s.repo.RatingSummary(ctx, appt.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("recompute doctor rating: %w", err)
	}
	if err := s.users.UpdateRating(ctx, appt.DoctorID, user.RatingAggregate{Average: avg, Count: count}); err != nil {
		return nil, fmt.Errorf("update doctor rating: %w", err)
	}

	s.logger.Info("appointment rated", "appointment_id", id, "score", score, "doctor_avg", avg, "doctor_count", count)
	return updated, nil
}

// UpdatePatientNotes lets the patient amend their own notes and
// symptom list after booking.
func (s *Service) UpdatePatientNotes(ctx context.Context, id uuid.UUID, notes *string, symptoms []string) (*Appointment, error) {
	updated, err := s.repo.UpdatePatientNotes(ctx, id, notes, symptoms)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update patient notes: %w", err)
	}
	return updated, nil
}

// SendDueReminders is called periodically by the reminder worker. It
// flags upcoming active appointments whose reminder has not gone out.
func (s *Service) SendDueReminders(ctx context.Context, lookahead time.Duration) (int, error) {
	now := s.now()
	due, err := s.repo.FindReminderDue(ctx, ReminderWindow{From: now, To: now.Add(lookahead)})
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for _, appt := range due {
		if err := s.repo.MarkReminderSent(ctx, appt.ID); err != nil {
			s.logger.Warn("failed to mark reminder sent", "appointment_id", appt.ID, "error", err)
			continue
		}
		s.logger.Info("reminder sent",
			"appointment_id", appt.ID,
			"patient_id", appt.PatientID,
			"date", appt.AppointmentDate.Format("2006-01-02"),
			"slot", appt.TimeSlot.StartTime,
		)
		sent++
	}
	return sent, nil
}
