package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/petjoy-vn/petjoy-core/internal/availability"
	"github.com/petjoy-vn/petjoy-core/internal/booking"
	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/libs/db"
)

// BookingRepository backs both the booking lifecycle and the availability
// engine's service/booking sources.
type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) GetService(ctx context.Context, id string) (model.Service, error) {
	svc, err := scanService(r.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE id = $1
	`, id))
	if err != nil {
		return model.Service{}, notFound(err)
	}
	return svc, nil
}

func (r *BookingRepository) ListActiveBookings(ctx context.Context, serviceID, fromDate, toDate string) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE service_id = $1
			AND booking_date BETWEEN $2 AND $3
			AND status <> 'cancelled'
		ORDER BY booking_date, time_slot
	`, serviceID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBooking inserts b after re-validating slot capacity under a lock on
// the service row. The lock serializes concurrent creations for the same
// service, so the overlap count is authoritative at commit time.
func (r *BookingRepository) CreateBooking(ctx context.Context, b model.Booking, capacity int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT 1 FROM services WHERE id = $1 FOR UPDATE`, b.ServiceID); err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT time_slot
		FROM bookings
		WHERE service_id = $1 AND booking_date = $2 AND status <> 'cancelled'
	`, b.ServiceID, b.BookingDate)
	if err != nil {
		return err
	}
	start, end, err := availability.ParseSlotRange(b.TimeSlot)
	if err != nil {
		rows.Close()
		return err
	}
	taken := 0
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			rows.Close()
			return err
		}
		s, e, err := availability.ParseSlotRange(slot)
		if err != nil {
			continue
		}
		if start < e && s < end {
			taken++
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if taken >= capacity {
		return model.ErrSlotFull
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings
			(id, booking_number, customer_id, service_id, pet_ids, booking_date, time_slot,
			 status, total_amount, payment_method, payment_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, b.ID, b.BookingNumber, b.CustomerID, b.ServiceID, b.PetIDs, b.BookingDate, b.TimeSlot,
		b.Status, b.TotalAmount, b.PaymentMethod, b.PaymentStatus, b.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id))
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	return b, nil
}

func (r *BookingRepository) CancelBooking(ctx context.Context, b model.Booking) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_by = $2,
			cancellation_reason = $3
		WHERE id = $1
	`, b.ID, b.CancelledBy, b.CancellationReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *BookingRepository) CompleteBooking(ctx context.Context, bookingID, serviceID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'completed'
		WHERE id = $1 AND status = 'booked'
	`, bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `
		UPDATE services
		SET usage_count = usage_count + 1
		WHERE id = $1
	`, serviceID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *BookingRepository) ListBookings(ctx context.Context, f booking.ListFilter) ([]model.Booking, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.ServiceID != "" {
		add("service_id = $%d", f.ServiceID)
	}
	if f.Date != "" {
		add("booking_date = $%d", f.Date)
	}
	if f.Search != "" {
		add("booking_number ILIKE $%d", "%"+f.Search+"%")
	}
	cond := ""
	if len(where) > 0 {
		cond = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM bookings `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT `+bookingColumns+`
		FROM bookings %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}
