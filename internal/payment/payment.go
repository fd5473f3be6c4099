// Package payment coordinates card payments between a checkout-status
// target (order or booking), the payment record, and the gateway.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/petjoy-vn/petjoy-core/internal/apperr"
	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/internal/notify"
	"github.com/petjoy-vn/petjoy-core/internal/policy"
	"github.com/petjoy-vn/petjoy-core/internal/refcode"
)

const currency = "vnd"

type Store interface {
	GetOrder(ctx context.Context, id string) (model.Order, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	CreatePayment(ctx context.Context, p model.Payment) error
	// SetPaymentIntent records the gateway handshake on the payment and
	// links the payment to its target in one transaction.
	SetPaymentIntent(ctx context.Context, p model.Payment) error
	DeletePayment(ctx context.Context, id string) error
	GetPaymentByClientSecret(ctx context.Context, clientSecret string) (model.Payment, error)
	// CompletePayment marks the payment completed, the target paid, and
	// advances the target out of checkout (order -> pending with a history
	// entry, booking -> booked) in one transaction.
	CompletePayment(ctx context.Context, p model.Payment) error
	// FailPayment marks the payment failed and the target's payment
	// status failed without advancing the target's lifecycle.
	FailPayment(ctx context.Context, p model.Payment) error
}

type Service struct {
	store          Store
	gateway        Gateway
	notifier       notify.Notifier
	logger         *slog.Logger
	gatewayTimeout time.Duration
	now            func() time.Time
}

func NewService(store Store, gateway Gateway, notifier notify.Notifier, logger *slog.Logger, gatewayTimeout time.Duration) *Service {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &Service{
		store:          store,
		gateway:        gateway,
		notifier:       notifier,
		logger:         logger,
		gatewayTimeout: gatewayTimeout,
		now:            time.Now,
	}
}

type CreateInput struct {
	TargetType string
	TargetID   string
}

// Create opens a card payment for a checkout-status target. The amount is
// always derived from the persisted target, never taken from the caller.
func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (model.Payment, error) {
	targetType, err := model.ParsePaymentTarget(in.TargetType)
	if err != nil {
		return model.Payment{}, apperr.BadRequest(err.Error())
	}

	ownerID, amount, err := s.resolveTarget(ctx, targetType, in.TargetID)
	if err != nil {
		return model.Payment{}, err
	}
	if !policy.Allow(policy.PaymentSettle, p, ownerID) {
		return model.Payment{}, apperr.Forbidden("not allowed to pay for this " + string(targetType))
	}

	now := s.now()
	pay := model.Payment{
		ID:            uuid.NewString(),
		PaymentNumber: refcode.New("PY", now),
		TargetType:    targetType,
		TargetID:      in.TargetID,
		CustomerID:    ownerID,
		Amount:        amount,
		Method:        model.MethodCard,
		Provider:      "stripe",
		Status:        model.PaymentPending,
		CreatedAt:     now,
	}
	if err := s.store.CreatePayment(ctx, pay); err != nil {
		return model.Payment{}, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	intent, err := s.gateway.CreateIntent(gwCtx, pay.Amount, currency, map[string]string{
		"payment_id":  pay.ID,
		"target_type": string(targetType),
		"target_id":   in.TargetID,
	})
	if err != nil {
		s.logger.Error("payment intent create failed", "payment_id", pay.ID, "err", err)
		if delErr := s.store.DeletePayment(ctx, pay.ID); delErr != nil {
			s.logger.Error("orphaned payment cleanup failed", "payment_id", pay.ID, "err", delErr)
		}
		return model.Payment{}, apperr.Internal("payment gateway unavailable")
	}

	pay.ProviderRef = intent.ID
	pay.ClientSecret = intent.ClientSecret
	if err := s.store.SetPaymentIntent(ctx, pay); err != nil {
		return model.Payment{}, err
	}

	s.logger.Info("payment created", "payment_id", pay.ID, "target", targetType, "amount", pay.Amount)
	return pay, nil
}

// Confirm settles a payment by its client secret and advances the target
// out of checkout.
func (s *Service) Confirm(ctx context.Context, p policy.Principal, clientSecret string) (model.Payment, error) {
	pay, err := s.lookup(ctx, p, clientSecret)
	if err != nil {
		return model.Payment{}, err
	}
	if pay.Status == model.PaymentCompleted {
		return pay, nil
	}
	if pay.Status == model.PaymentFailed {
		return model.Payment{}, apperr.BadRequest("payment has already failed")
	}

	pay.Status = model.PaymentCompleted
	if err := s.store.CompletePayment(ctx, pay); err != nil {
		// The guarded update finds no row when a concurrent settle or the
		// sweeper got there first.
		if errors.Is(err, model.ErrNotFound) {
			return model.Payment{}, apperr.Conflict("payment was settled by another request")
		}
		return model.Payment{}, err
	}

	title, body, link := s.confirmationMessage(ctx, pay)
	s.notifier.Send(ctx, pay.CustomerID, title, body, link)
	s.logger.Info("payment confirmed", "payment_id", pay.ID, "target", pay.TargetType)
	return pay, nil
}

// Cancel marks a pending payment failed. The target stays in checkout with
// its stock still reserved; the sweeper reclaims it if the customer never
// retries.
func (s *Service) Cancel(ctx context.Context, p policy.Principal, clientSecret string) (model.Payment, error) {
	pay, err := s.lookup(ctx, p, clientSecret)
	if err != nil {
		return model.Payment{}, err
	}
	if pay.Status == model.PaymentCompleted {
		return model.Payment{}, apperr.BadRequest("payment has already been completed")
	}
	if pay.Status == model.PaymentFailed {
		return pay, nil
	}

	pay.Status = model.PaymentFailed
	if err := s.store.FailPayment(ctx, pay); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Payment{}, apperr.Conflict("payment was settled by another request")
		}
		return model.Payment{}, err
	}

	if pay.ProviderRef != "" {
		gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
		if err := s.gateway.CancelIntent(gwCtx, pay.ProviderRef); err != nil {
			s.logger.Warn("payment intent cancel failed", "payment_id", pay.ID, "err", err)
		}
	}

	s.logger.Info("payment cancelled", "payment_id", pay.ID, "target", pay.TargetType)
	return pay, nil
}

func (s *Service) lookup(ctx context.Context, p policy.Principal, clientSecret string) (model.Payment, error) {
	if clientSecret == "" {
		return model.Payment{}, apperr.BadRequest("client secret is required")
	}
	pay, err := s.store.GetPaymentByClientSecret(ctx, clientSecret)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Payment{}, apperr.NotFound("payment not found")
		}
		return model.Payment{}, err
	}
	if !policy.Allow(policy.PaymentSettle, p, pay.CustomerID) {
		return model.Payment{}, apperr.Forbidden("not allowed to settle this payment")
	}
	return pay, nil
}

func (s *Service) resolveTarget(ctx context.Context, targetType model.PaymentTarget, targetID string) (ownerID string, amount int64, err error) {
	switch targetType {
	case model.TargetOrder:
		o, err := s.store.GetOrder(ctx, targetID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return "", 0, apperr.NotFound("order not found")
			}
			return "", 0, err
		}
		if o.Status != model.OrderCheckout {
			return "", 0, apperr.BadRequest("order is not awaiting payment")
		}
		if o.PaymentID != "" {
			return "", 0, apperr.BadRequest("a payment is already open for this order")
		}
		return o.CustomerID, o.TotalAmount, nil
	case model.TargetBooking:
		b, err := s.store.GetBooking(ctx, targetID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return "", 0, apperr.NotFound("booking not found")
			}
			return "", 0, err
		}
		if b.Status != model.BookingCheckout {
			return "", 0, apperr.BadRequest("booking is not awaiting payment")
		}
		if b.PaymentID != "" {
			return "", 0, apperr.BadRequest("a payment is already open for this booking")
		}
		return b.CustomerID, b.TotalAmount, nil
	default:
		return "", 0, apperr.BadRequest("unsupported payment target")
	}
}

func (s *Service) confirmationMessage(ctx context.Context, pay model.Payment) (title, body, link string) {
	switch pay.TargetType {
	case model.TargetOrder:
		ref := pay.TargetID
		if o, err := s.store.GetOrder(ctx, pay.TargetID); err == nil {
			ref = o.OrderNumber
		}
		return "Order placed", fmt.Sprintf("Payment received. Your order %s has been placed.", ref), "/orders/" + pay.TargetID
	default:
		ref := pay.TargetID
		var when string
		if b, err := s.store.GetBooking(ctx, pay.TargetID); err == nil {
			ref = b.BookingNumber
			when = fmt.Sprintf(" for %s at %s", b.BookingDate, b.TimeSlot)
		}
		return "Booking confirmed", fmt.Sprintf("Payment received. Your booking %s%s is confirmed.", ref, when), "/bookings/" + pay.TargetID
	}
}
