// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/service"
	"github.com/rs/zerolog"
)

const (
	codeInvalidRequest      = "invalid_request"
	codeInvalidSeatCount    = "invalid_seat_count"
	codeInvalidSlotDuration = "invalid_slot_duration"
	codeSlotNotFound        = "slot_not_found"
	codeBookingNotFound     = "booking_not_found"
	codeEventNotFound       = "event_not_found"
	codeNotFound            = "not_found"
	codeMethodNotAllowed    = "method_not_allowed"
	codeSlotFull            = "slot_full"
	codeConflict            = "conflict"
	codeTooManyRequests     = "too_many_requests"
	codeForbidden           = "forbidden"
	codeConsistencyFault    = "consistency_fault"
	codeInternalError       = "internal_error"
	codeUnavailable         = "unavailable"
)

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps a service error onto a status and error code.
// Anything unrecognised is logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSeatCount):
		writeError(w, http.StatusBadRequest, codeInvalidSeatCount, err.Error())
	case errors.Is(err, service.ErrInvalidSlotDuration):
		writeError(w, http.StatusBadRequest, codeInvalidSlotDuration, err.Error())
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, service.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, codeSlotNotFound, "time slot not found")
	case errors.Is(err, service.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, codeBookingNotFound, "booking not found")
	case errors.Is(err, service.ErrEventNotFound):
		writeError(w, http.StatusNotFound, codeEventNotFound, "event not found")
	case errors.Is(err, service.ErrSlotFull):
		writeError(w, http.StatusConflict, codeSlotFull, "time slot does not have enough available seats")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, "booking is being changed concurrently, retry")
	case errors.Is(err, service.ErrConsistencyFault):
		// Already reported by the service.
		writeError(w, http.StatusInternalServerError, codeConsistencyFault, "booking could not be moved")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal server error")
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error

// HealthCheck handles GET /health. With a nil ping it only reports liveness.
func HealthCheck(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, codeUnavailable, "storage unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// NotFound answers unmatched routes with the JSON envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "not found")
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}
