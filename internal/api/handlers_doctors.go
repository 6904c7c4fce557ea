package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibook/appointment-booking/internal/user"
)

func listDoctorsHandler(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := user.DoctorFilter{
			Specialization: r.URL.Query().Get("specialization"),
			Search:         r.URL.Query().Get("search"),
			Limit:          queryInt(r, "limit", 10),
			Offset:         queryInt(r, "offset", 0),
		}

		doctors, total, err := svc.ListDoctors(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		data := make([]any, 0, len(doctors))
		for i := range doctors {
			data = append(data, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse{Count: len(data), Total: total, Data: data})
	}
}

func getDoctorHandler(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		doc, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			if errors.Is(err, user.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toDoctorResponse(doc))
	}
}

func updateAvailabilityHandler(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctor := requireRole(w, r, user.RoleDoctor)
		if doctor == nil {
			return
		}

		var req UpdateAvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		updated, err := svc.UpdateAvailability(r.Context(), doctor.ID, req.Availability)
		if err != nil {
			switch {
			case errors.Is(err, user.ErrInvalidTemplate):
				writeError(w, http.StatusBadRequest, "invalid_availability", err.Error())
			case errors.Is(err, user.ErrDoctorNotFound):
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toDoctorResponse(updated))
	}
}
