// Package model defines the core domain types for the slot booking system.
package model

import "time"

// SlotDuration is the only slot length the catalog accepts.
const SlotDuration = 30 * time.Minute

// Event represents a bookable event created by an organizer.
type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Date        time.Time  `json:"event_date"`
	Description *string    `json:"description"`
	Slots       []TimeSlot `json:"time_slots"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TimeSlot is a fixed-capacity window owned by an event.
// CurrentBookings only changes through the capacity ledger.
type TimeSlot struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	MaxCapacity     int       `json:"max_capacity"`
	CurrentBookings int       `json:"current_bookings"`
}

// Available returns the number of seats still free.
func (s *TimeSlot) Available() int {
	return s.MaxCapacity - s.CurrentBookings
}

// IsFull returns true when no seats remain.
func (s *TimeSlot) IsFull() bool {
	return s.CurrentBookings >= s.MaxCapacity
}

// Booking is a seat hold on one slot. Token is the only attendee-facing handle.
type Booking struct {
	ID            string    `json:"id"`
	AttendeeName  string    `json:"attendee_name"`
	Email         *string   `json:"email"`
	TimeSlotID    string    `json:"time_slot_id"`
	NumberOfSeats int       `json:"number_of_seats"`
	Token         string    `json:"booking_token"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateSlotRequest describes one slot of a new event. Times are wall-clock
// "15:04" (or "15:04:05") on the event date, in UTC.
type CreateSlotRequest struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	MaxCapacity int    `json:"max_capacity"`
}

// CreateEventRequest is the payload for creating a new event with its slots.
type CreateEventRequest struct {
	Name        string              `json:"name"`
	Date        string              `json:"event_date"`
	Description *string             `json:"description"`
	Slots       []CreateSlotRequest `json:"time_slots"`
}

// CreateBookingRequest is the payload for reserving seats.
type CreateBookingRequest struct {
	AttendeeName  string  `json:"attendee_name"`
	Email         *string `json:"email"`
	TimeSlotID    string  `json:"time_slot_id"`
	NumberOfSeats *int    `json:"number_of_seats"`
}

// RebookRequest is the payload for moving a booking to another slot.
type RebookRequest struct {
	NewTimeSlotID string `json:"new_time_slot_id"`
}

// SlotResponse is a slot together with its derived availability.
type SlotResponse struct {
	TimeSlot
	AvailableSpots int `json:"available_spots"`
}

// AvailabilityResponse reports the free seats of a single slot.
type AvailabilityResponse struct {
	TimeSlotID     string `json:"time_slot_id"`
	AvailableSpots int    `json:"available_spots"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
