package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, attendee_name, email, time_slot_id, number_of_seats, booking_token, created_at`

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	db   querier
	inTx bool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db querier) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking. A clashing id or token yields ErrDuplicate.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.AttendeeName, b.Email, b.TimeSlotID, b.NumberOfSeats, b.Token, b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetByID returns a single booking or ErrNotFound.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetByToken returns the booking whose token matches exactly, or ErrNotFound.
func (r *BookingRepository) GetByToken(ctx context.Context, token string) (*model.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_token = $1`, token)
}

// GetByTokenForUpdate is GetByToken plus a row lock held until commit.
//
// A second transaction locking the same row blocks here; if the first one
// deleted the row, the second sees no row and gets ErrNotFound.
func (r *BookingRepository) GetByTokenForUpdate(ctx context.Context, token string) (*model.Booking, error) {
	if !r.inTx {
		return r.GetByToken(ctx, token)
	}
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_token = $1 FOR UPDATE`, token)
}

// ListBySlot returns all bookings holding seats on a slot.
func (r *BookingRepository) ListBySlot(ctx context.Context, slotID string) ([]model.Booking, error) {
	if !validID(slotID) {
		return []model.Booking{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE time_slot_id = $1
		 ORDER BY created_at ASC`,
		slotID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := []model.Booking{}
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.AttendeeName, &b.Email, &b.TimeSlotID, &b.NumberOfSeats, &b.Token, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// Update rewrites the mutable columns of a booking. The token never changes.
func (r *BookingRepository) Update(ctx context.Context, b *model.Booking) error {
	if !validID(b.ID) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE bookings
		 SET attendee_name = $2, email = $3, time_slot_id = $4, number_of_seats = $5
		 WHERE id = $1`,
		b.ID, b.AttendeeName, b.Email, b.TimeSlotID, b.NumberOfSeats,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a booking and reports whether it existed.
func (r *BookingRepository) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete booking: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BookingRepository) getOne(ctx context.Context, sql string, arg string) (*model.Booking, error) {
	var b model.Booking
	err := r.db.QueryRow(ctx, sql, arg).
		Scan(&b.ID, &b.AttendeeName, &b.Email, &b.TimeSlotID, &b.NumberOfSeats, &b.Token, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}
