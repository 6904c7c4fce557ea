package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDoctorNotFound = errors.New("doctor not found")
)

// DoctorFilter narrows ListDoctors. Zero values mean no filtering.
type DoctorFilter struct {
	Specialization string
	Search         string
	Limit          int
	Offset         int
}

// Repository contains all DB interactions needed by the directory.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetDoctorByID resolves only active users with the doctor role.
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*User, error)

	ListDoctors(ctx context.Context, filter DoctorFilter) ([]User, int, error)

	UpdateAvailability(ctx context.Context, doctorID uuid.UUID, template []DayAvailability) (*User, error)

	// UpdateRating replaces the doctor's aggregate rating.
	UpdateRating(ctx context.Context, doctorID uuid.UUID, rating RatingAggregate) error
}
