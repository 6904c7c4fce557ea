package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/medibook/appointment-booking/internal/redis"
	"github.com/medibook/appointment-booking/internal/settings"
	"github.com/medibook/appointment-booking/internal/timeslot"
	"github.com/medibook/appointment-booking/internal/user"
)

// memRepo is an in-memory Repository used by the service tests.
type memRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*Appointment
	order []uuid.UUID
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]*Appointment)}
}

func (m *memRepo) Insert(ctx context.Context, appt *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.rows {
		if existing.DoctorID == appt.DoctorID &&
			timeslot.SameCalendarDay(existing.AppointmentDate, appt.AppointmentDate) &&
			existing.TimeSlot.StartTime == appt.TimeSlot.StartTime &&
			(existing.Status == StatusScheduled || existing.Status == StatusConfirmed) {
			return nil, ErrSlotTaken
		}
	}

	cp := *appt
	cp.ID = uuid.New()
	cp.PaymentStatus = PaymentPending
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.rows[cp.ID] = &cp
	m.order = append(m.order, cp.ID)

	out := cp
	return &out, nil
}

func (m *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.rows[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *appt
	return &out, nil
}

func hasStatus(s Status, statuses []Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func (m *memRepo) ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time, statuses []Status) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, id := range m.order {
		appt := m.rows[id]
		if appt.DoctorID == doctorID &&
			timeslot.SameCalendarDay(appt.AppointmentDate, date) &&
			hasStatus(appt.Status, statuses) {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (m *memRepo) FindConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, slot timeslot.TimeSlot) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		appt := m.rows[id]
		if appt.DoctorID == doctorID &&
			timeslot.SameCalendarDay(appt.AppointmentDate, date) &&
			hasStatus(appt.Status, ActiveStatuses) &&
			timeslot.Overlaps(appt.TimeSlot, slot) {
			out := *appt
			return &out, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, id := range m.order {
		appt := m.rows[id]
		if filter.PatientID != nil && appt.PatientID != *filter.PatientID {
			continue
		}
		if filter.DoctorID != nil && appt.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.Status != nil && appt.Status != *filter.Status {
			continue
		}
		if filter.Date != nil && !timeslot.SameCalendarDay(appt.AppointmentDate, *filter.Date) {
			continue
		}
		out = append(out, *appt)
	}
	return out, len(out), nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.rows[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = to
	appt.UpdatedAt = time.Now()
	out := *appt
	return &out, nil
}

func (m *memRepo) Cancel(ctx context.Context, id uuid.UUID, from Status, cancelledBy, reason string, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.rows[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = StatusCancelled
	appt.CancelledBy = &cancelledBy
	appt.CancellationReason = &reason
	appt.CancelledAt = &at
	out := *appt
	return &out, nil
}

func (m *memRepo) Complete(ctx context.Context, id uuid.UUID, diagnosis string, prescription []PrescriptionItem, doctorNotes string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.rows[id]
	if !ok || appt.Status != StatusConfirmed {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = StatusCompleted
	appt.Diagnosis = &diagnosis
	appt.Prescription = prescription
	appt.DoctorNotes = &doctorNotes
	out := *appt
	return &out, nil
}

func (m *memRepo) SetRating(ctx context.Context, id uuid.UUID, rating Rating) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.rows[id]
	if !ok || appt.Rating != nil {
		return nil, ErrAppointmentNotFound
	}
	r := rating
	appt.Rating = &r
	out := *appt
	return &out, nil
}

func (m *memRepo) UpdatePatientNotes(ctx context.Context, id uuid.UUID, notes *string, symptoms []string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.rows[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if notes != nil {
		appt.PatientNotes = notes
	}
	if symptoms != nil {
		appt.Symptoms = symptoms
	}
	out := *appt
	return &out, nil
}

func (m *memRepo) RatingSummary(ctx context.Context, doctorID uuid.UUID) (float64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum, count := 0, 0
	for _, appt := range m.rows {
		if appt.DoctorID == doctorID && appt.Rating != nil {
			sum += appt.Rating.Score
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

func (m *memRepo) FindReminderDue(ctx context.Context, window ReminderWindow) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, id := range m.order {
		appt := m.rows[id]
		if !hasStatus(appt.Status, ActiveStatuses) || appt.ReminderSent {
			continue
		}
		if appt.AppointmentDate.Before(window.From.Truncate(24*time.Hour)) || appt.AppointmentDate.After(window.To) {
			continue
		}
		out = append(out, *appt)
	}
	return out, nil
}

func (m *memRepo) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.rows[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	appt.ReminderSent = true
	return nil
}

// stubUsers implements user.Repository over a fixed set of users.
type stubUsers struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*user.User
	ratings map[uuid.UUID]user.RatingAggregate
}

func newStubUsers(users ...*user.User) *stubUsers {
	s := &stubUsers{
		users:   make(map[uuid.UUID]*user.User),
		ratings: make(map[uuid.UUID]user.RatingAggregate),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (s *stubUsers) GetDoctorByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.Role != user.RoleDoctor || !u.IsActive {
		return nil, user.ErrDoctorNotFound
	}
	return u, nil
}

func (s *stubUsers) ListDoctors(ctx context.Context, filter user.DoctorFilter) ([]user.User, int, error) {
	return nil, 0, nil
}

func (s *stubUsers) UpdateAvailability(ctx context.Context, doctorID uuid.UUID, template []user.DayAvailability) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[doctorID]
	if !ok {
		return nil, user.ErrDoctorNotFound
	}
	u.Availability = template
	return u, nil
}

func (s *stubUsers) UpdateRating(ctx context.Context, doctorID uuid.UUID, rating user.RatingAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[doctorID] = rating
	if u, ok := s.users[doctorID]; ok {
		u.Rating = rating
	}
	return nil
}

// stubSettings returns a fixed settings snapshot.
type stubSettings struct {
	data settings.Settings
}

func (s *stubSettings) Get(ctx context.Context) (settings.Settings, error) {
	return s.data, nil
}

func (s *stubSettings) Update(ctx context.Context, params settings.UpdateParams) (settings.Settings, error) {
	return s.data, nil
}

// passLocker runs the critical section inline. When contended is set
// it refuses the lock, mimicking a concurrent booking in flight.
type passLocker struct {
	contended bool
}

func (l *passLocker) WithBookingLock(ctx context.Context, doctorID uuid.UUID, date time.Time, startTime string, fn func(ctx context.Context) error) error {
	if l.contended {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}
