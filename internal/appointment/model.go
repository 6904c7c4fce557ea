package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibook/appointment-booking/internal/timeslot"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// ActiveStatuses are the statuses that occupy a slot. Cancelled,
// completed and no-show appointments do not block new bookings.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed}

type Type string

const (
	TypeConsultation   Type = "consultation"
	TypeFollowUp       Type = "follow-up"
	TypeEmergency      Type = "emergency"
	TypeRoutineCheckup Type = "routine-checkup"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type PrescriptionItem struct {
	Medication   string `json:"medication"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions,omitempty"`
}

// Rating is set once, by the patient, after completion.
type Rating struct {
	Score   int       `json:"score"`
	Review  string    `json:"review,omitempty"`
	RatedAt time.Time `json:"ratedAt"`
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID

	// AppointmentDate carries only a meaningful date portion; the
	// time of day lives in TimeSlot.
	AppointmentDate time.Time
	TimeSlot        timeslot.TimeSlot

	Status   Status
	Type     Type
	Reason   string
	Symptoms []string

	PatientNotes *string
	DoctorNotes  *string
	Diagnosis    *string
	Prescription []PrescriptionItem

	FollowUpRequired bool
	FollowUpDate     *time.Time

	// ConsultationFee is copied from the doctor at booking time and
	// never recomputed from later fee changes.
	ConsultationFee float64
	PaymentStatus   PaymentStatus

	Rating *Rating

	ReminderSent bool

	CancelledBy        *string
	CancellationReason *string
	CancelledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SlotCandidate is an ephemeral bookable window computed by the
// availability engine; it is never persisted.
type SlotCandidate struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsAvailable bool   `json:"isAvailable"`
}
