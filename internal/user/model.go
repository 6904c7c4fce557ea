package user

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// AvailabilitySlot is one open range inside a weekly template day.
// Times are HH:MM wall-clock strings.
type AvailabilitySlot struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsAvailable bool   `json:"isAvailable"`
}

// DayAvailability is a doctor's recurring pattern for one weekday.
// Day is the lowercase English weekday name.
type DayAvailability struct {
	Day   string             `json:"day"`
	Slots []AvailabilitySlot `json:"slots"`
}

// RatingAggregate is the doctor's running average over rated
// appointments, recomputed whenever a patient submits a rating.
type RatingAggregate struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type User struct {
	ID       uuid.UUID
	Name     string
	Email    string
	Role     Role
	Phone    *string
	IsActive bool

	// Doctor fields, null for other roles.
	Specialization  *string
	LicenseNumber   *string
	ExperienceYears *int
	ConsultationFee *float64
	Availability    []DayAvailability
	Rating          RatingAggregate
	Bio             *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DayTemplate returns the availability entry for a weekday name, or
// false when the doctor has no template for that day.
func (u *User) DayTemplate(day string) (DayAvailability, bool) {
	for _, d := range u.Availability {
		if d.Day == day {
			return d, true
		}
	}
	return DayAvailability{}, false
}
