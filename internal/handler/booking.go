package handler

import (
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/service"
	"github.com/go-chi/chi/v5"
)

// BookingHandler serves the booking lifecycle. The booking token in the
// path is the only credential a caller holds.
type BookingHandler struct {
	svc *service.ReservationService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc *service.ReservationService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// CreateBooking handles POST /bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.TimeSlotID) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "time_slot_id is required")
		return
	}

	seats := 1
	if req.NumberOfSeats != nil {
		seats = *req.NumberOfSeats
	}

	booking, err := h.svc.Create(r.Context(), service.CreateBookingInput{
		AttendeeName: req.AttendeeName,
		Email:        req.Email,
		TimeSlotID:   strings.TrimSpace(req.TimeSlotID),
		Seats:        seats,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// GetBooking handles GET /bookings/{token}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.svc.GetBooking(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// Rebook handles PUT /bookings/{token}
// Moves the booking's seats to new_time_slot_id.
func (h *BookingHandler) Rebook(w http.ResponseWriter, r *http.Request) {
	var req model.RebookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	newSlot := strings.TrimSpace(req.NewTimeSlotID)
	if newSlot == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "new_time_slot_id is required")
		return
	}

	booking, err := h.svc.Rebook(r.Context(), chi.URLParam(r, "token"), newSlot)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// CancelBooking handles DELETE /bookings/{token}
// Answers 204 when a booking was cancelled and 404 when none matched.
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !cancelled {
		writeError(w, http.StatusNotFound, codeBookingNotFound, "booking not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Availability handles GET /slots/{id}/availability
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.svc.Available(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.AvailabilityResponse{TimeSlotID: id, AvailableSpots: n})
}

// Audit handles GET /slots/{id}/audit
// Compares the slot's counter with the seats its bookings hold.
func (h *BookingHandler) Audit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.svc.Audit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, audit)
}
