package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibook/appointment-booking/internal/appointment"
	"github.com/medibook/appointment-booking/internal/timeslot"
	"github.com/medibook/appointment-booking/internal/user"
)

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patient := requireRole(w, r, user.RolePatient)
		if patient == nil {
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		date, err := time.Parse(dateLayout, req.AppointmentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "appointment_date must be YYYY-MM-DD")
			return
		}

		if len(req.Reason) < 10 || len(req.Reason) > 500 {
			writeError(w, http.StatusBadRequest, "invalid_reason", "reason must be between 10 and 500 characters")
			return
		}

		if !validAppointmentType(req.Type) {
			writeError(w, http.StatusBadRequest, "invalid_type", "type must be one of consultation, follow-up, routine-checkup, emergency")
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookParams{
			PatientID:       patient.ID,
			DoctorID:        doctorID,
			AppointmentDate: date,
			TimeSlot: timeslot.TimeSlot{
				StartTime: req.TimeSlot.StartTime,
				EndTime:   req.TimeSlot.EndTime,
			},
			Reason:   req.Reason,
			Type:     appointment.Type(req.Type),
			Symptoms: req.Symptoms,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// validAppointmentType accepts the known types plus empty, which the
// service defaults to consultation.
func validAppointmentType(t string) bool {
	switch appointment.Type(t) {
	case "", appointment.TypeConsultation, appointment.TypeFollowUp,
		appointment.TypeRoutineCheckup, appointment.TypeEmergency:
		return true
	}
	return false
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrInvalidDoctor):
		writeError(w, http.StatusBadRequest, "invalid_doctor", err.Error())
	case errors.Is(err, appointment.ErrPastDate):
		writeError(w, http.StatusBadRequest, "past_date", err.Error())
	case errors.Is(err, appointment.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, "reason_required", err.Error())
	case errors.Is(err, timeslot.ErrInvalidClock):
		writeError(w, http.StatusBadRequest, "invalid_time_slot", err.Error())
	case errors.Is(err, appointment.ErrBookingDisabled):
		writeError(w, http.StatusServiceUnavailable, "booking_disabled", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func availableSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, available, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			if errors.Is(err, user.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := SlotsResponse{Data: slots}
		if resp.Data == nil {
			resp.Data = []appointment.SlotCandidate{}
		}
		if !available {
			resp.Message = "doctor is not available on this day"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireRole(w, r, user.RolePatient, user.RoleDoctor, user.RoleAdmin)
		if actor == nil {
			return
		}

		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		if !mayAccess(actor, appt) {
			writeError(w, http.StatusForbidden, "forbidden", "not authorized to access this appointment")
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireRole(w, r, user.RolePatient, user.RoleDoctor, user.RoleAdmin)
		if actor == nil {
			return
		}

		filter := appointment.ListFilter{
			Limit:  queryInt(r, "limit", 10),
			Offset: queryInt(r, "offset", 0),
		}

		// Patients and doctors only ever see their own appointments.
		switch actor.Role {
		case user.RolePatient:
			filter.PatientID = &actor.ID
		case user.RoleDoctor:
			filter.DoctorID = &actor.ID
		}

		if s := r.URL.Query().Get("status"); s != "" {
			status := appointment.Status(s)
			filter.Status = &status
		}
		if d := r.URL.Query().Get("date"); d != "" {
			date, err := time.Parse(dateLayout, d)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			filter.Date = &date
		}

		appts, total, err := svc.List(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		data := make([]any, 0, len(appts))
		for i := range appts {
			data = append(data, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse{Count: len(data), Total: total, Data: data})
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireRole(w, r, user.RolePatient, user.RoleDoctor, user.RoleAdmin)
		if actor == nil {
			return
		}

		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		var req CancelRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		if !authorizeOnAppointment(w, r, svc, actor, id) {
			return
		}

		appt, err := svc.Cancel(r.Context(), id, string(actor.Role), req.Reason)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireRole(w, r, user.RoleDoctor, user.RoleAdmin)
		if actor == nil {
			return
		}

		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		if !authorizeOnAppointment(w, r, svc, actor, id) {
			return
		}

		appt, err := svc.Confirm(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireRole(w, r, user.RoleDoctor)
		if actor == nil {
			return
		}

		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		var req CompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if !authorizeOnAppointment(w, r, svc, actor, id) {
			return
		}

		appt, err := svc.Complete(r.Context(), id, req.Diagnosis, req.Prescription, req.Notes)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func noShowAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireRole(w, r, user.RoleDoctor, user.RoleAdmin)
		if actor == nil {
			return
		}

		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		if !authorizeOnAppointment(w, r, svc, actor, id) {
			return
		}

		appt, err := svc.MarkNoShow(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireRole(w, r, user.RolePatient)
		if actor == nil {
			return
		}

		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		var req RateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if !authorizeOnAppointment(w, r, svc, actor, id) {
			return
		}

		appt, err := svc.Rate(r.Context(), id, req.Score, req.Review)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateNotesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireRole(w, r, user.RolePatient)
		if actor == nil {
			return
		}

		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		var req NotesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if !authorizeOnAppointment(w, r, svc, actor, id) {
			return
		}

		appt, err := svc.UpdatePatientNotes(r.Context(), id, req.Notes, req.Symptoms)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, appointment.ErrCannotCancelCompleted):
		writeError(w, http.StatusConflict, "cannot_cancel_completed", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrNotCompleted):
		writeError(w, http.StatusConflict, "not_completed", err.Error())
	case errors.Is(err, appointment.ErrAlreadyRated):
		writeError(w, http.StatusConflict, "already_rated", err.Error())
	case errors.Is(err, appointment.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "invalid_rating", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// authorizeOnAppointment enforces the ownership rule: patients and
// doctors may only act on their own appointments, admins on any.
func authorizeOnAppointment(w http.ResponseWriter, r *http.Request, svc *appointment.Service, actor *user.User, id uuid.UUID) bool {
	appt, err := svc.Get(r.Context(), id)
	if err != nil {
		handleAppointmentError(w, err)
		return false
	}
	if !mayAccess(actor, appt) {
		writeError(w, http.StatusForbidden, "forbidden", "not authorized for this appointment")
		return false
	}
	return true
}

func mayAccess(actor *user.User, appt *appointment.Appointment) bool {
	switch actor.Role {
	case user.RoleAdmin:
		return true
	case user.RolePatient:
		return appt.PatientID == actor.ID
	case user.RoleDoctor:
		return appt.DoctorID == actor.ID
	}
	return false
}

func parseAppointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
