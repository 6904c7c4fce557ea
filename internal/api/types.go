package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibook/appointment-booking/internal/appointment"
	"github.com/medibook/appointment-booking/internal/user"
)

const dateLayout = "2006-01-02"

type TimeSlotPayload struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type BookAppointmentRequest struct {
	DoctorID        string          `json:"doctor_id"`
	AppointmentDate string          `json:"appointment_date"` // YYYY-MM-DD
	TimeSlot        TimeSlotPayload `json:"time_slot"`
	Reason          string          `json:"reason"`
	Type            string          `json:"type,omitempty"`
	Symptoms        []string        `json:"symptoms,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type CompleteRequest struct {
	Diagnosis    string                         `json:"diagnosis"`
	Prescription []appointment.PrescriptionItem `json:"prescription,omitempty"`
	Notes        string                         `json:"notes,omitempty"`
}

type RateRequest struct {
	Score  int    `json:"score"`
	Review string `json:"review,omitempty"`
}

type NotesRequest struct {
	Notes    *string  `json:"notes,omitempty"`
	Symptoms []string `json:"symptoms,omitempty"`
}

type RatingPayload struct {
	Score   int       `json:"score"`
	Review  string    `json:"review,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

type AppointmentResponse struct {
	ID              uuid.UUID       `json:"id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	DoctorID        uuid.UUID       `json:"doctor_id"`
	AppointmentDate string          `json:"appointment_date"`
	TimeSlot        TimeSlotPayload `json:"time_slot"`
	Status          string          `json:"status"`
	Type            string          `json:"type"`
	Reason          string          `json:"reason"`
	Symptoms        []string        `json:"symptoms,omitempty"`
	Diagnosis       *string         `json:"diagnosis,omitempty"`
	ConsultationFee float64         `json:"consultation_fee"`
	PaymentStatus   string          `json:"payment_status"`
	Rating          *RatingPayload  `json:"rating,omitempty"`
	CancelledBy     *string         `json:"cancelled_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		AppointmentDate: a.AppointmentDate.Format(dateLayout),
		TimeSlot: TimeSlotPayload{
			StartTime: a.TimeSlot.StartTime,
			EndTime:   a.TimeSlot.EndTime,
		},
		Status:          string(a.Status),
		Type:            string(a.Type),
		Reason:          a.Reason,
		Symptoms:        a.Symptoms,
		Diagnosis:       a.Diagnosis,
		ConsultationFee: a.ConsultationFee,
		PaymentStatus:   string(a.PaymentStatus),
		CancelledBy:     a.CancelledBy,
		CreatedAt:       a.CreatedAt,
	}
	if a.Rating != nil {
		resp.Rating = &RatingPayload{
			Score:   a.Rating.Score,
			Review:  a.Rating.Review,
			RatedAt: a.Rating.RatedAt,
		}
	}
	return resp
}

type ListResponse struct {
	Count int   `json:"count"`
	Total int   `json:"total"`
	Data  []any `json:"data"`
}

type SlotsResponse struct {
	Data    []appointment.SlotCandidate `json:"data"`
	Message string                      `json:"message,omitempty"`
}

type DoctorResponse struct {
	ID              uuid.UUID              `json:"id"`
	Name            string                 `json:"name"`
	Email           string                 `json:"email"`
	Specialization  *string                `json:"specialization,omitempty"`
	ExperienceYears *int                   `json:"experience_years,omitempty"`
	ConsultationFee *float64               `json:"consultation_fee,omitempty"`
	Availability    []user.DayAvailability `json:"availability,omitempty"`
	RatingAverage   float64                `json:"rating_average"`
	RatingCount     int                    `json:"rating_count"`
	Bio             *string                `json:"bio,omitempty"`
}

func toDoctorResponse(u *user.User) DoctorResponse {
	return DoctorResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Specialization:  u.Specialization,
		ExperienceYears: u.ExperienceYears,
		ConsultationFee: u.ConsultationFee,
		Availability:    u.Availability,
		RatingAverage:   u.Rating.Average,
		RatingCount:     u.Rating.Count,
		Bio:             u.Bio,
	}
}

type UpdateAvailabilityRequest struct {
	Availability []user.DayAvailability `json:"availability"`
}
