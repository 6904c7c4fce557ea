package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/medibook/appointment-booking/internal/admin"
	"github.com/medibook/appointment-booking/internal/settings"
	"github.com/medibook/appointment-booking/internal/user"
)

func getSettingsHandler(store settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if actor := requireRole(w, r, user.RoleAdmin); actor == nil {
			return
		}

		current, err := store.Get(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, current)
	}
}

func updateSettingsHandler(store settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if actor := requireRole(w, r, user.RoleAdmin); actor == nil {
			return
		}

		var params settings.UpdateParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		updated, err := store.Update(r.Context(), params)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func systemAnalyticsHandler(stats *admin.StatsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if actor := requireRole(w, r, user.RoleAdmin); actor == nil {
			return
		}

		period := queryInt(r, "period", 30)
		analytics, err := stats.GetSystemAnalytics(r.Context(), time.Now().UTC(), period)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, analytics)
	}
}

func dashboardStatsHandler(stats *admin.StatsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if actor := requireRole(w, r, user.RoleAdmin); actor == nil {
			return
		}

		snapshot, err := stats.GetDashboardStats(r.Context(), time.Now().UTC())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}
