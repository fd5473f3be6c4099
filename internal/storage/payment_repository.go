package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/libs/db"
)

type PaymentRepository struct {
	pool *db.Pool
}

func NewPaymentRepository(pool *db.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) GetOrder(ctx context.Context, id string) (model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		return model.Order{}, notFound(err)
	}
	return o, nil
}

func (r *PaymentRepository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
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

func (r *PaymentRepository) CreatePayment(ctx context.Context, p model.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments
			(id, payment_number, target_type, target_id, customer_id, amount, method, provider, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.PaymentNumber, p.TargetType, p.TargetID, p.CustomerID, p.Amount, p.Method, p.Provider, p.Status, p.CreatedAt)
	return err
}

// SetPaymentIntent records the gateway handshake and links the payment to
// its target in one transaction.
func (r *PaymentRepository) SetPaymentIntent(ctx context.Context, p model.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET provider_ref = $2,
			client_secret = $3
		WHERE id = $1
	`, p.ID, p.ProviderRef, p.ClientSecret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	if err := r.updateTargetPayment(ctx, tx, p, p.ID, model.PayStatusPending); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PaymentRepository) DeletePayment(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	return err
}

func (r *PaymentRepository) GetPaymentByClientSecret(ctx context.Context, clientSecret string) (model.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE client_secret = $1
	`, clientSecret))
	if err != nil {
		return model.Payment{}, notFound(err)
	}
	return p, nil
}

// CompletePayment settles the payment and advances its target out of
// checkout atomically: order -> pending with a history entry, booking ->
// booked.
func (r *PaymentRepository) CompletePayment(ctx context.Context, p model.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = 'completed'
		WHERE id = $1 AND status = 'pending'
	`, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	switch p.TargetType {
	case model.TargetOrder:
		entry, err := json.Marshal([]model.StatusEntry{{
			Status:    model.OrderPending,
			Timestamp: time.Now().UTC(),
			Note:      "Payment confirmed",
		}})
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = 'pending',
				payment_status = 'paid',
				status_history = status_history || $2::jsonb
			WHERE id = $1 AND status = 'checkout'
		`, p.TargetID, entry)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return model.ErrNotFound
		}
	case model.TargetBooking:
		tag, err := tx.Exec(ctx, `
			UPDATE bookings
			SET status = 'booked',
				payment_status = 'paid'
			WHERE id = $1 AND status = 'checkout'
		`, p.TargetID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return model.ErrNotFound
		}
	}
	return tx.Commit(ctx)
}

// FailPayment marks the payment and the target's payment status failed. The
// target stays in checkout for the sweeper to reclaim.
func (r *PaymentRepository) FailPayment(ctx context.Context, p model.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = 'failed'
		WHERE id = $1 AND status = 'pending'
	`, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	if err := r.updateTargetPayment(ctx, tx, p, p.ID, model.PayStatusFailed); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PaymentRepository) updateTargetPayment(ctx context.Context, tx pgx.Tx, p model.Payment, paymentID, payStatus string) error {
	switch p.TargetType {
	case model.TargetOrder:
		_, err := tx.Exec(ctx, `
			UPDATE orders
			SET payment_id = $2,
				payment_status = $3
			WHERE id = $1
		`, p.TargetID, paymentID, payStatus)
		return err
	case model.TargetBooking:
		_, err := tx.Exec(ctx, `
			UPDATE bookings
			SET payment_id = $2,
				payment_status = $3
			WHERE id = $1
		`, p.TargetID, paymentID, payStatus)
		return err
	}
	return nil
}
