package sweeper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/model"
)

type fakeStore struct {
	bookings map[string]model.Booking
	orders   map[string]model.Order
	payments map[string]bool
	products map[string]int

	purgeBookingErr error
	purgeOrderErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: map[string]model.Booking{},
		orders:   map[string]model.Order{},
		payments: map[string]bool{},
		products: map[string]int{},
	}
}

func (f *fakeStore) ListExpiredCheckoutBookings(_ context.Context, cutoff time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if b.Status == model.BookingCheckout && b.CreatedAt.Before(cutoff) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListExpiredCheckoutOrders(_ context.Context, now time.Time) ([]model.Order, error) {
	var out []model.Order
	for _, o := range f.orders {
		if o.Status == model.OrderCheckout && o.CheckoutExpiration.Before(now) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) PurgeBooking(_ context.Context, bookingID, paymentID string) error {
	if f.purgeBookingErr != nil {
		return f.purgeBookingErr
	}
	delete(f.bookings, bookingID)
	if paymentID != "" {
		delete(f.payments, paymentID)
	}
	return nil
}

func (f *fakeStore) PurgeOrder(_ context.Context, o model.Order) error {
	if f.purgeOrderErr != nil {
		return f.purgeOrderErr
	}
	for _, item := range o.Items {
		f.products[item.ProductID] += item.Quantity
	}
	delete(f.orders, o.ID)
	if o.PaymentID != "" {
		delete(f.payments, o.PaymentID)
	}
	return nil
}

func newTestSweeper(store *fakeStore, now time.Time) *Sweeper {
	s := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, 5*time.Minute)
	s.now = func() time.Time { return now }
	return s
}

func TestSweep_PurgesExpiredCheckoutBookingWithPayment(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	store.bookings["bk-old"] = model.Booking{
		ID:        "bk-old",
		Status:    model.BookingCheckout,
		PaymentID: "pay-1",
		CreatedAt: now.Add(-10 * time.Minute),
	}
	store.payments["pay-1"] = true

	newTestSweeper(store, now).Sweep(context.Background())

	if _, ok := store.bookings["bk-old"]; ok {
		t.Fatal("expired booking not purged")
	}
	if store.payments["pay-1"] {
		t.Fatal("linked payment not purged")
	}
}

func TestSweep_LeavesFreshAndCommittedRecords(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	store.bookings["bk-fresh"] = model.Booking{
		ID:        "bk-fresh",
		Status:    model.BookingCheckout,
		CreatedAt: now.Add(-2 * time.Minute),
	}
	store.bookings["bk-booked"] = model.Booking{
		ID:        "bk-booked",
		Status:    model.BookingBooked,
		CreatedAt: now.Add(-time.Hour),
	}
	store.orders["ord-pending"] = model.Order{
		ID:                 "ord-pending",
		Status:             model.OrderPending,
		CheckoutExpiration: now.Add(-time.Hour),
	}

	newTestSweeper(store, now).Sweep(context.Background())

	if len(store.bookings) != 2 || len(store.orders) != 1 {
		t.Fatalf("sweeper touched live records: bookings=%d orders=%d", len(store.bookings), len(store.orders))
	}
}

func TestSweep_PurgesExpiredOrderAndRestoresStock(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	store.orders["ord-old"] = model.Order{
		ID:                 "ord-old",
		Status:             model.OrderCheckout,
		PaymentID:          "pay-2",
		CheckoutExpiration: now.Add(-time.Minute),
		Items:              []model.OrderItem{{ProductID: "p-toy", Quantity: 2}},
	}
	store.payments["pay-2"] = true

	newTestSweeper(store, now).Sweep(context.Background())

	if _, ok := store.orders["ord-old"]; ok {
		t.Fatal("expired order not purged")
	}
	if store.payments["pay-2"] {
		t.Fatal("linked payment not purged")
	}
	if store.products["p-toy"] != 2 {
		t.Fatalf("stock not restored, got %d", store.products["p-toy"])
	}
}

func TestSweep_MissingRecordIsNoOp(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	store.bookings["bk-old"] = model.Booking{
		ID:        "bk-old",
		Status:    model.BookingCheckout,
		CreatedAt: now.Add(-10 * time.Minute),
	}
	store.orders["ord-old"] = model.Order{
		ID:                 "ord-old",
		Status:             model.OrderCheckout,
		CheckoutExpiration: now.Add(-time.Minute),
	}
	// Simulate a concurrent request or sweep replica winning the race.
	store.purgeBookingErr = model.ErrNotFound
	store.purgeOrderErr = model.ErrNotFound

	// Must not panic or error; the pass completes.
	newTestSweeper(store, now).Sweep(context.Background())
}
