package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

const maxBodyBytes = 1 << 20

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

// writeError maps a core error onto its HTTP status. Server-side failures
// are logged with their cause; the client only sees the generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeMessage(w, status, apperr.CodeOf(err), apperr.MessageOf(err))
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrDependency):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %s", err.Error())
	}
	return nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return n, nil
}

// queryBool reads an optional boolean query parameter.
func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.Validation("%s must be true or false", key)
	}
	return b, nil
}

func bookingFilter(r *http.Request) (model.BookingFilter, error) {
	var (
		f   model.BookingFilter
		err error
	)
	q := r.URL.Query()
	f.UserID = q.Get("user_id")
	f.FacilityID = q.Get("facility_id")
	f.SiteID = q.Get("site_id")
	f.Status = model.BookingStatus(q.Get("status"))
	if f.Upcoming, err = queryBool(r, "upcoming"); err != nil {
		return f, err
	}
	if f.Page, err = queryInt(r, "page", 1); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit", 10); err != nil {
		return f, err
	}
	return f, nil
}

func describe(method, path string) string {
	return fmt.Sprintf("%s %s", method, path)
}
