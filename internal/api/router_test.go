package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/appointment-booking/internal/appointment"
	redisclient "github.com/medibook/appointment-booking/internal/redis"
	"github.com/medibook/appointment-booking/internal/settings"
	"github.com/medibook/appointment-booking/internal/timeslot"
	"github.com/medibook/appointment-booking/internal/user"
	"github.com/medibook/appointment-booking/pkg/logging"
)

// fakeUsers backs both the identity middleware and the booking service.
type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newFakeUsers(users ...*user.User) *fakeUsers {
	f := &fakeUsers{users: make(map[uuid.UUID]*user.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetDoctorByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.Role != user.RoleDoctor || !u.IsActive {
		return nil, user.ErrDoctorNotFound
	}
	return u, nil
}

func (f *fakeUsers) ListDoctors(ctx context.Context, filter user.DoctorFilter) ([]user.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []user.User
	for _, u := range f.users {
		if u.Role == user.RoleDoctor && u.IsActive {
			out = append(out, *u)
		}
	}
	return out, len(out), nil
}

func (f *fakeUsers) UpdateAvailability(ctx context.Context, doctorID uuid.UUID, template []user.DayAvailability) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[doctorID]
	if !ok {
		return nil, user.ErrDoctorNotFound
	}
	u.Availability = template
	return u, nil
}

func (f *fakeUsers) UpdateRating(ctx context.Context, doctorID uuid.UUID, rating user.RatingAggregate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[doctorID]; ok {
		u.Rating = rating
	}
	return nil
}

// fakeApptRepo is a minimal in-memory appointment store for routing
// tests; concurrency-sensitive behavior is covered in the service
// package.
type fakeApptRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*appointment.Appointment
}

func newFakeApptRepo() *fakeApptRepo {
	return &fakeApptRepo{rows: make(map[uuid.UUID]*appointment.Appointment)}
}

func isActive(s appointment.Status) bool {
	return s == appointment.StatusScheduled || s == appointment.StatusConfirmed
}

func (f *fakeApptRepo) Insert(ctx context.Context, appt *appointment.Appointment) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.DoctorID == appt.DoctorID &&
			timeslot.SameCalendarDay(existing.AppointmentDate, appt.AppointmentDate) &&
			existing.TimeSlot.StartTime == appt.TimeSlot.StartTime &&
			isActive(existing.Status) {
			return nil, appointment.ErrSlotTaken
		}
	}
	cp := *appt
	cp.ID = uuid.New()
	cp.PaymentStatus = appointment.PaymentPending
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeApptRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.rows[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	out := *appt
	return &out, nil
}

func (f *fakeApptRepo) ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time, statuses []appointment.Status) ([]appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []appointment.Appointment
	for _, appt := range f.rows {
		if appt.DoctorID != doctorID || !timeslot.SameCalendarDay(appt.AppointmentDate, date) {
			continue
		}
		for _, st := range statuses {
			if appt.Status == st {
				out = append(out, *appt)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeApptRepo) FindConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, slot timeslot.TimeSlot) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, appt := range f.rows {
		if appt.DoctorID == doctorID &&
			timeslot.SameCalendarDay(appt.AppointmentDate, date) &&
			isActive(appt.Status) &&
			timeslot.Overlaps(appt.TimeSlot, slot) {
			out := *appt
			return &out, nil
		}
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (f *fakeApptRepo) List(ctx context.Context, filter appointment.ListFilter) ([]appointment.Appointment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []appointment.Appointment
	for _, appt := range f.rows {
		if filter.PatientID != nil && appt.PatientID != *filter.PatientID {
			continue
		}
		if filter.DoctorID != nil && appt.DoctorID != *filter.DoctorID {
			continue
		}
		out = append(out, *appt)
	}
	return out, len(out), nil
}

func (f *fakeApptRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to appointment.Status) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.rows[id]
	if !ok || appt.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	appt.Status = to
	out := *appt
	return &out, nil
}

func (f *fakeApptRepo) Cancel(ctx context.Context, id uuid.UUID, from appointment.Status, cancelledBy, reason string, at time.Time) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.rows[id]
	if !ok || appt.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	appt.Status = appointment.StatusCancelled
	appt.CancelledBy = &cancelledBy
	appt.CancellationReason = &reason
	appt.CancelledAt = &at
	out := *appt
	return &out, nil
}

func (f *fakeApptRepo) Complete(ctx context.Context, id uuid.UUID, diagnosis string, prescription []appointment.PrescriptionItem, doctorNotes string) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.rows[id]
	if !ok || appt.Status != appointment.StatusConfirmed {
		return nil, appointment.ErrAppointmentNotFound
	}
	appt.Status = appointment.StatusCompleted
	appt.Diagnosis = &diagnosis
	appt.Prescription = prescription
	appt.DoctorNotes = &doctorNotes
	out := *appt
	return &out, nil
}

func (f *fakeApptRepo) SetRating(ctx context.Context, id uuid.UUID, rating appointment.Rating) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.rows[id]
	if !ok || appt.Rating != nil {
		return nil, appointment.ErrAppointmentNotFound
	}
	r := rating
	appt.Rating = &r
	out := *appt
	return &out, nil
}

func (f *fakeApptRepo) UpdatePatientNotes(ctx context.Context, id uuid.UUID, notes *string, symptoms []string) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.rows[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
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

func (f *fakeApptRepo) RatingSummary(ctx context.Context, doctorID uuid.UUID) (float64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum, count := 0, 0
	for _, appt := range f.rows {
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

func (f *fakeApptRepo) FindReminderDue(ctx context.Context, window appointment.ReminderWindow) ([]appointment.Appointment, error) {
	return nil, nil
}

func (f *fakeApptRepo) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	return nil
}

type fixedSettings struct {
	data settings.Settings
}

func (s fixedSettings) Get(ctx context.Context) (settings.Settings, error) {
	return s.data, nil
}

func (s fixedSettings) Update(ctx context.Context, params settings.UpdateParams) (settings.Settings, error) {
	if params.BookingEnabled != nil {
		s.data.BookingEnabled = *params.BookingEnabled
	}
	if params.MaintenanceMode != nil {
		s.data.MaintenanceMode = *params.MaintenanceMode
	}
	if params.AutoConfirmAppointments != nil {
		s.data.AutoConfirmAppointments = *params.AutoConfirmAppointments
	}
	return s.data, nil
}

type passLocker struct{}

func (passLocker) WithBookingLock(ctx context.Context, doctorID uuid.UUID, date time.Time, startTime string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ redisclient.Locker = passLocker{}

type testEnv struct {
	server  *httptest.Server
	patient *user.User
	other   *user.User
	doctor  *user.User
	admin   *user.User
	date    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// A weekday template keyed on the actual weekday of the target
	// date, so the test does not depend on when it runs.
	target := time.Now().AddDate(0, 0, 7)
	fee := 120.0

	doctor := &user.User{
		ID:              uuid.New(),
		Name:            "Dr. Reyes",
		Email:           "reyes@example.com",
		Role:            user.RoleDoctor,
		IsActive:        true,
		ConsultationFee: &fee,
		Availability: []user.DayAvailability{
			{
				Day: timeslot.WeekdayName(target),
				Slots: []user.AvailabilitySlot{
					{StartTime: "09:00", EndTime: "11:00", IsAvailable: true},
				},
			},
		},
	}
	patient := &user.User{ID: uuid.New(), Name: "Ana", Email: "ana@example.com", Role: user.RolePatient, IsActive: true}
	other := &user.User{ID: uuid.New(), Name: "Ben", Email: "ben@example.com", Role: user.RolePatient, IsActive: true}
	admin := &user.User{ID: uuid.New(), Name: "Root", Email: "root@example.com", Role: user.RoleAdmin, IsActive: true}

	users := newFakeUsers(doctor, patient, other, admin)
	logger := logging.New("error")
	store := fixedSettings{data: settings.Defaults()}

	apptSvc := appointment.NewService(newFakeApptRepo(), users, store, passLocker{}, logger)
	userSvc := user.NewService(users, logger)

	router := NewRouter(RouterConfig{
		Appointments: apptSvc,
		Users:        userSvc,
		UserRepo:     users,
		Settings:     store,
		Logger:       logger,
		Env:          "test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{
		server:  srv,
		patient: patient,
		other:   other,
		doctor:  doctor,
		admin:   admin,
		date:    target.Format(dateLayout),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, asUser *user.User, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if asUser != nil {
		req.Header.Set("X-User-ID", asUser.ID.String())
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func (e *testEnv) bookRequest() BookAppointmentRequest {
	return BookAppointmentRequest{
		DoctorID:        e.doctor.ID.String(),
		AppointmentDate: e.date,
		TimeSlot:        TimeSlotPayload{StartTime: "09:00", EndTime: "09:30"},
		Reason:          "persistent migraine headaches",
	}
}

func TestBookAppointmentEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/appointments", env.patient, env.bookRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body AppointmentResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, "scheduled", body.Status)
	assert.Equal(t, env.patient.ID, body.PatientID)
	assert.Equal(t, env.doctor.ID, body.DoctorID)
	assert.Equal(t, 120.0, body.ConsultationFee)
	assert.Equal(t, "pending", body.PaymentStatus)
}

func TestBookRequiresPatientIdentity(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/appointments", nil, env.bookRequest())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/appointments", env.doctor, env.bookRequest())
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestBookValidation(t *testing.T) {
	env := newTestEnv(t)

	bad := env.bookRequest()
	bad.AppointmentDate = "not-a-date"
	resp := env.do(t, http.MethodPost, "/appointments", env.patient, bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	short := env.bookRequest()
	short.Reason = "hi"
	resp = env.do(t, http.MethodPost, "/appointments", env.patient, short)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errBody ErrorResponse
	decodeBody(t, resp, &errBody)
	assert.Equal(t, "invalid_reason", errBody.Error)

	unknown := env.bookRequest()
	unknown.Type = "telepathy"
	resp = env.do(t, http.MethodPost, "/appointments", env.patient, unknown)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var typeErr ErrorResponse
	decodeBody(t, resp, &typeErr)
	assert.Equal(t, "invalid_type", typeErr.Error)
}

func TestBookAcceptsEveryKnownType(t *testing.T) {
	env := newTestEnv(t)

	starts := []string{"09:00", "09:30", "10:00", "10:30"}
	for i, typ := range []string{"consultation", "follow-up", "routine-checkup", "emergency"} {
		req := env.bookRequest()
		req.Type = typ
		req.TimeSlot = TimeSlotPayload{StartTime: starts[i], EndTime: ends(starts[i])}

		resp := env.do(t, http.MethodPost, "/appointments", env.patient, req)
		require.Equal(t, http.StatusCreated, resp.StatusCode, typ)

		var body AppointmentResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, typ, body.Type)
	}
}

func ends(start string) string {
	minutes, _ := timeslot.ParseClock(start)
	return timeslot.FormatClock(minutes + timeslot.SlotMinutes)
}

func TestBookConflictReturns409(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/appointments", env.patient, env.bookRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/appointments", env.other, env.bookRequest())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errBody ErrorResponse
	decodeBody(t, resp, &errBody)
	assert.Equal(t, "slot_unavailable", errBody.Error)
}

func TestAvailableSlotsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/appointments", env.patient, env.bookRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	path := fmt.Sprintf("/doctors/available-slots?doctor_id=%s&date=%s", env.doctor.ID, env.date)
	resp = env.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body SlotsResponse
	decodeBody(t, resp, &body)

	// 09:00-11:00 template yields four windows; the booked 09:00 one
	// must not be offered.
	require.Len(t, body.Data, 3)
	assert.Equal(t, "09:30", body.Data[0].StartTime)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/doctors/available-slots?doctor_id=%s&date=%s", uuid.New(), env.date), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAppointmentOwnership(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/appointments", env.patient, env.bookRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created AppointmentResponse
	decodeBody(t, resp, &created)

	resp = env.do(t, http.MethodGet, "/appointments/"+created.ID.String(), env.other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/appointments/"+created.ID.String(), env.patient, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/appointments/"+created.ID.String(), env.admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestCancelEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/appointments", env.patient, env.bookRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created AppointmentResponse
	decodeBody(t, resp, &created)

	resp = env.do(t, http.MethodPost, "/appointments/"+created.ID.String()+"/cancel", env.patient, CancelRequest{Reason: "schedule clash"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cancelled AppointmentResponse
	decodeBody(t, resp, &cancelled)

	assert.Equal(t, "cancelled", cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, "patient", *cancelled.CancelledBy)

	// cancelling twice is a conflict
	resp = env.do(t, http.MethodPost, "/appointments/"+created.ID.String()+"/cancel", env.patient, CancelRequest{Reason: "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestSettingsEndpointsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/admin/settings", env.patient, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/admin/settings", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var current settings.Settings
	decodeBody(t, resp, &current)
	assert.True(t, current.BookingEnabled)
}

func TestAnalyticsRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/admin/analytics", env.patient, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/admin/analytics", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestListScopedToIdentity(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/appointments", env.patient, env.bookRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/appointments", env.other, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list ListResponse
	decodeBody(t, resp, &list)
	assert.Zero(t, list.Count)

	resp = env.do(t, http.MethodGet, "/appointments", env.patient, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var own ListResponse
	decodeBody(t, resp, &own)
	assert.Equal(t, 1, own.Count)
}
