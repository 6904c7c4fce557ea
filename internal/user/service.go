package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medibook/appointment-booking/internal/timeslot"
	"github.com/medibook/appointment-booking/pkg/logging"
)

var (
	ErrInvalidTemplate = errors.New("invalid availability template")
)

var weekdays = map[string]bool{
	"monday":    true,
	"tuesday":   true,
	"wednesday": true,
	"thursday":  true,
	"friday":    true,
	"saturday":  true,
	"sunday":    true,
}

type Service struct {
	repo   Repository
	logger *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*User, error) {
	doc, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return doc, nil
}

func (s *Service) ListDoctors(ctx context.Context, filter DoctorFilter) ([]User, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	doctors, total, err := s.repo.ListDoctors(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, total, nil
}

// UpdateAvailability replaces a doctor's weekly template wholesale
// after validating every entry.
func (s *Service) UpdateAvailability(ctx context.Context, doctorID uuid.UUID, template []DayAvailability) (*User, error) {
	if err := ValidateTemplate(template); err != nil {
		return nil, err
	}

	doc, err := s.repo.UpdateAvailability(ctx, doctorID, template)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update availability: %w", err)
	}

	s.logger.Info("availability template updated", "doctor_id", doctorID, "days", len(template))
	return doc, nil
}

// ValidateTemplate checks weekday names and that every range parses
// with start before end. Slots within a day may overlap in storage;
// the availability engine handles them independently.
func ValidateTemplate(template []DayAvailability) error {
	seen := map[string]bool{}
	for _, day := range template {
		if !weekdays[day.Day] {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidTemplate, day.Day)
		}
		if seen[day.Day] {
			return fmt.Errorf("%w: duplicate day %q", ErrInvalidTemplate, day.Day)
		}
		seen[day.Day] = true

		for _, slot := range day.Slots {
			ts := timeslot.TimeSlot{StartTime: slot.StartTime, EndTime: slot.EndTime}
			if err := ts.Validate(); err != nil {
				return fmt.Errorf("%w: %s %s-%s: %v", ErrInvalidTemplate, day.Day, slot.StartTime, slot.EndTime, err)
			}
		}
	}
	return nil
}
