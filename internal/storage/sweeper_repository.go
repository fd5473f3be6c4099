package storage

import (
	"context"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/libs/db"
)

type SweeperRepository struct {
	pool *db.Pool
}

func NewSweeperRepository(pool *db.Pool) *SweeperRepository {
	return &SweeperRepository{pool: pool}
}

func (r *SweeperRepository) ListExpiredCheckoutBookings(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'checkout' AND created_at < $1
	`, cutoff)
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

func (r *SweeperRepository) ListExpiredCheckoutOrders(ctx context.Context, now time.Time) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = 'checkout' AND checkout_expiration < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// PurgeBooking deletes the booking and its linked payment. The status guard
// makes the delete a no-op if a concurrent payment confirmation won the race.
func (r *SweeperRepository) PurgeBooking(ctx context.Context, bookingID, paymentID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM bookings
		WHERE id = $1 AND status = 'checkout'
	`, bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	if paymentID != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, paymentID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// PurgeOrder restores reserved stock, then deletes the order and its linked
// payment.
func (r *SweeperRepository) PurgeOrder(ctx context.Context, o model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM orders
		WHERE id = $1 AND status = 'checkout'
	`, o.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	for _, item := range o.Items {
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock + $2 WHERE id = $1
		`, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	if o.PaymentID != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, o.PaymentID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
