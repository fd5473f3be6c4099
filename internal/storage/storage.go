// Package storage holds the pgx repositories. Compound state changes
// (capacity checks, stock reservation, payment settlement, purges) are
// executed inside a single transaction here so the domain services stay
// free of transaction plumbing.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/petjoy-vn/petjoy-core/internal/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// notFound maps the driver's empty-result sentinel to the domain's.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

const serviceColumns = `id, name, availability, excluded_holidays, capacity, duration_minutes,
	price, sale_price, on_sale, COALESCE(timezone, ''), usage_count, rating_count, rating_avg, created_at`

func scanService(row rowScanner) (model.Service, error) {
	var (
		svc          model.Service
		availability []byte
	)
	err := row.Scan(
		&svc.ID,
		&svc.Name,
		&availability,
		&svc.ExcludedHolidays,
		&svc.Capacity,
		&svc.DurationMinutes,
		&svc.Price,
		&svc.SalePrice,
		&svc.OnSale,
		&svc.Timezone,
		&svc.UsageCount,
		&svc.RatingCount,
		&svc.RatingAvg,
		&svc.CreatedAt,
	)
	if err != nil {
		return model.Service{}, err
	}
	if err := json.Unmarshal(availability, &svc.Availability); err != nil {
		return model.Service{}, fmt.Errorf("service %s has malformed availability: %w", svc.ID, err)
	}
	return svc, nil
}

const bookingColumns = `id, booking_number, customer_id, service_id, pet_ids, booking_date, time_slot,
	status, COALESCE(cancelled_by, ''), COALESCE(cancellation_reason, ''), total_amount,
	COALESCE(payment_id, ''), payment_method, payment_status, created_at`

func scanBooking(row rowScanner) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.BookingNumber,
		&b.CustomerID,
		&b.ServiceID,
		&b.PetIDs,
		&b.BookingDate,
		&b.TimeSlot,
		&b.Status,
		&b.CancelledBy,
		&b.CancellationReason,
		&b.TotalAmount,
		&b.PaymentID,
		&b.PaymentMethod,
		&b.PaymentStatus,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

const orderColumns = `id, order_number, customer_id, items, subtotal, shipping_fee, discount, total_amount,
	shipping_address, status, status_history, COALESCE(cancelled_by, ''), COALESCE(cancel_reason, ''),
	COALESCE(payment_id, ''), payment_method, payment_status, checkout_expiration, created_at`

func scanOrder(row rowScanner) (model.Order, error) {
	var (
		o          model.Order
		items      []byte
		history    []byte
		expiration *time.Time
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&items,
		&o.Subtotal,
		&o.ShippingFee,
		&o.Discount,
		&o.TotalAmount,
		&o.ShippingAddress,
		&o.Status,
		&history,
		&o.CancelledBy,
		&o.CancelReason,
		&o.PaymentID,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&expiration,
		&o.CreatedAt,
	)
	if err != nil {
		return model.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return model.Order{}, fmt.Errorf("order %s has malformed items: %w", o.ID, err)
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &o.StatusHistory); err != nil {
			return model.Order{}, fmt.Errorf("order %s has malformed status history: %w", o.ID, err)
		}
	}
	if expiration != nil {
		o.CheckoutExpiration = *expiration
	}
	return o, nil
}

const paymentColumns = `id, payment_number, target_type, target_id, customer_id, amount, method,
	provider, COALESCE(provider_ref, ''), COALESCE(client_secret, ''), status, created_at`

func scanPayment(row rowScanner) (model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.PaymentNumber,
		&p.TargetType,
		&p.TargetID,
		&p.CustomerID,
		&p.Amount,
		&p.Method,
		&p.Provider,
		&p.ProviderRef,
		&p.ClientSecret,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

const reviewColumns = `id, reviewer_id, target_type, target_id, source_type, source_id, rating,
	COALESCE(comment, ''), created_at`

func scanReview(row rowScanner) (model.Review, error) {
	var r model.Review
	err := row.Scan(
		&r.ID,
		&r.ReviewerID,
		&r.TargetType,
		&r.TargetID,
		&r.SourceType,
		&r.SourceID,
		&r.Rating,
		&r.Comment,
		&r.CreatedAt,
	)
	if err != nil {
		return model.Review{}, err
	}
	return r, nil
}
