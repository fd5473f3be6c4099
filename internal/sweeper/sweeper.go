// Package sweeper reclaims abandoned checkouts. Bookings and orders left in
// checkout past their grace period never became commitments, so they are
// deleted outright together with their pending payment, not marked cancelled.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/model"
)

type Store interface {
	// ListExpiredCheckoutBookings returns checkout bookings created before cutoff.
	ListExpiredCheckoutBookings(ctx context.Context, cutoff time.Time) ([]model.Booking, error)
	// ListExpiredCheckoutOrders returns checkout orders whose checkout
	// expiration is before now.
	ListExpiredCheckoutOrders(ctx context.Context, now time.Time) ([]model.Order, error)
	// PurgeBooking deletes the booking and its linked payment, if any.
	PurgeBooking(ctx context.Context, bookingID, paymentID string) error
	// PurgeOrder restores stock for every line item, then deletes the
	// order and its linked payment.
	PurgeOrder(ctx context.Context, o model.Order) error
}

type Sweeper struct {
	store      Store
	logger     *slog.Logger
	interval   time.Duration
	bookingTTL time.Duration
	now        func() time.Time
}

func New(store Store, logger *slog.Logger, interval, bookingTTL time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if bookingTTL <= 0 {
		bookingTTL = 5 * time.Minute
	}
	return &Sweeper{
		store:      store,
		logger:     logger,
		interval:   interval,
		bookingTTL: bookingTTL,
		now:        time.Now,
	}
}

// Run sweeps on a fixed tick until ctx is cancelled. Start it once at
// process init.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("checkout sweeper started", "interval", s.interval, "booking_ttl", s.bookingTTL)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("checkout sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. A record already removed by a concurrent request or
// another sweep replica is treated as done, not as a failure.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	bookings, err := s.store.ListExpiredCheckoutBookings(ctx, now.Add(-s.bookingTTL))
	if err != nil {
		s.logger.Error("expired booking scan failed", "err", err)
	} else {
		for _, b := range bookings {
			if err := s.store.PurgeBooking(ctx, b.ID, b.PaymentID); err != nil && !errors.Is(err, model.ErrNotFound) {
				s.logger.Error("booking purge failed", "booking_id", b.ID, "err", err)
				continue
			}
			s.logger.Info("expired checkout booking purged", "booking_id", b.ID)
		}
	}

	orders, err := s.store.ListExpiredCheckoutOrders(ctx, now)
	if err != nil {
		s.logger.Error("expired order scan failed", "err", err)
		return
	}
	for _, o := range orders {
		if err := s.store.PurgeOrder(ctx, o); err != nil && !errors.Is(err, model.ErrNotFound) {
			s.logger.Error("order purge failed", "order_id", o.ID, "err", err)
			continue
		}
		s.logger.Info("expired checkout order purged", "order_id", o.ID)
	}
}
