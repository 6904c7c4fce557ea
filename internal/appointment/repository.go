package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/appointment-booking/internal/timeslot"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned by Insert when the partial unique index
	// on (doctor, date, start time) rejects a concurrent booking.
	ErrSlotTaken = errors.New("slot already booked for this doctor")
)

// ListFilter narrows List. Nil fields mean no filtering.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	Date      *time.Time
	Limit     int
	Offset    int
}

// ReminderWindow bounds the reminder worker's lookahead.
type ReminderWindow struct {
	From time.Time
	To   time.Time
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	Insert(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListForDoctorDay returns appointments for one doctor on one
	// calendar date, restricted to the given statuses.
	ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time, statuses []Status) ([]Appointment, error)

	// FindConflict returns an active appointment whose slot overlaps
	// the requested one under the half-open rule, or
	// ErrAppointmentNotFound when the slot is free.
	FindConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, slot timeslot.TimeSlot) (*Appointment, error)

	List(ctx context.Context, filter ListFilter) ([]Appointment, int, error)

	// UpdateStatus performs a conditional transition; it returns
	// ErrAppointmentNotFound when the row is not currently in the
	// `from` status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	Cancel(ctx context.Context, id uuid.UUID, from Status, cancelledBy, reason string, at time.Time) (*Appointment, error)
	Complete(ctx context.Context, id uuid.UUID, diagnosis string, prescription []PrescriptionItem, doctorNotes string) (*Appointment, error)
	SetRating(ctx context.Context, id uuid.UUID, rating Rating) (*Appointment, error)
	UpdatePatientNotes(ctx context.Context, id uuid.UUID, notes *string, symptoms []string) (*Appointment, error)

	// RatingSummary does a full re-scan over the doctor's rated
	// appointments; rating volume per doctor is small.
	RatingSummary(ctx context.Context, doctorID uuid.UUID) (average float64, count int, err error)

	// Reminder worker
	FindReminderDue(ctx context.Context, window ReminderWindow) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
}
