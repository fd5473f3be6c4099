package booking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/apperr"
	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/internal/policy"
)

type fakeStore struct {
	services map[string]model.Service
	bookings map[string]model.Booking

	createErr  error
	usageBumps int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		services: map[string]model.Service{},
		bookings: map[string]model.Booking{},
	}
}

func (f *fakeStore) GetService(_ context.Context, id string) (model.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return model.Service{}, model.ErrNotFound
	}
	return svc, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b model.Booking, _ int) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) CancelBooking(_ context.Context, b model.Booking) error {
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeStore) CompleteBooking(_ context.Context, bookingID, _ string) error {
	b := f.bookings[bookingID]
	b.Status = model.BookingCompleted
	f.bookings[bookingID] = b
	f.usageBumps++
	return nil
}

func (f *fakeStore) ListBookings(_ context.Context, filter ListFilter) ([]model.Booking, int, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

type fakeSlots struct {
	open bool
	err  error
}

func (f *fakeSlots) SlotOpen(context.Context, string, string, string, time.Time) (bool, error) {
	return f.open, f.err
}

type fakeNotifier struct {
	titles []string
}

func (f *fakeNotifier) Send(_ context.Context, _, title, _, _ string) {
	f.titles = append(f.titles, title)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func utcService() model.Service {
	return model.Service{
		ID:       "svc-1",
		Name:     "Grooming",
		Capacity: 2,
		Price:    200000,
		Timezone: "UTC",
	}
}

func newTestService(store *fakeStore, slots *fakeSlots, notifier *fakeNotifier, now time.Time) *Service {
	s := NewService(store, slots, notifier, testLogger(), 12*time.Hour)
	s.now = func() time.Time { return now }
	return s
}

var (
	customer = policy.Principal{ID: "cust-1", Role: model.RoleUser}
	stranger = policy.Principal{ID: "cust-2", Role: model.RoleUser}
	staff    = policy.Principal{ID: "staff-1", Role: model.RoleStaff}
)

func TestCreate_CashIsBookedImmediately(t *testing.T) {
	store := newFakeStore()
	store.services["svc-1"] = utcService()
	notifier := &fakeNotifier{}
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{open: true}, notifier, now)

	b, err := s.Create(context.Background(), customer, CreateInput{
		ServiceID:     "svc-1",
		PetIDs:        []string{"pet-1", "pet-2"},
		BookingDate:   "2026-09-10",
		TimeSlot:      "10:00-10:30",
		PaymentMethod: model.MethodCash,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.Status != model.BookingBooked {
		t.Fatalf("expected booked, got %s", b.Status)
	}
	if b.TotalAmount != 400000 {
		t.Fatalf("expected total 400000, got %d", b.TotalAmount)
	}
	if len(notifier.titles) != 1 || notifier.titles[0] != "Booking confirmed" {
		t.Fatalf("expected confirmation notification, got %v", notifier.titles)
	}
}

func TestCreate_SalePriceUsedWhenOnSale(t *testing.T) {
	store := newFakeStore()
	svc := utcService()
	svc.OnSale = true
	svc.SalePrice = 150000
	store.services["svc-1"] = svc
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{open: true}, &fakeNotifier{}, now)

	b, err := s.Create(context.Background(), customer, CreateInput{
		ServiceID:     "svc-1",
		PetIDs:        []string{"pet-1"},
		BookingDate:   "2026-09-10",
		TimeSlot:      "10:00-10:30",
		PaymentMethod: model.MethodCash,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.TotalAmount != 150000 {
		t.Fatalf("expected sale price 150000, got %d", b.TotalAmount)
	}
}

func TestCreate_CardStartsInCheckout(t *testing.T) {
	store := newFakeStore()
	store.services["svc-1"] = utcService()
	notifier := &fakeNotifier{}
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{open: true}, notifier, now)

	b, err := s.Create(context.Background(), customer, CreateInput{
		ServiceID:     "svc-1",
		PetIDs:        []string{"pet-1"},
		BookingDate:   "2026-09-10",
		TimeSlot:      "10:00-10:30",
		PaymentMethod: model.MethodCard,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.Status != model.BookingCheckout {
		t.Fatalf("expected checkout, got %s", b.Status)
	}
	if len(notifier.titles) != 0 {
		t.Fatalf("checkout bookings must not notify yet, got %v", notifier.titles)
	}
}

func TestCreate_SlotNotOpen(t *testing.T) {
	store := newFakeStore()
	store.services["svc-1"] = utcService()
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{open: false}, &fakeNotifier{}, now)

	_, err := s.Create(context.Background(), customer, CreateInput{
		ServiceID:     "svc-1",
		PetIDs:        []string{"pet-1"},
		BookingDate:   "2026-09-10",
		TimeSlot:      "10:00-10:30",
		PaymentMethod: model.MethodCash,
	})
	if apperr.Status(err) != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestCreate_SlotRaceLoserGetsConflict(t *testing.T) {
	store := newFakeStore()
	store.services["svc-1"] = utcService()
	store.createErr = model.ErrSlotFull
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{open: true}, &fakeNotifier{}, now)

	_, err := s.Create(context.Background(), customer, CreateInput{
		ServiceID:     "svc-1",
		PetIDs:        []string{"pet-1"},
		BookingDate:   "2026-09-10",
		TimeSlot:      "10:00-10:30",
		PaymentMethod: model.MethodCash,
	})
	if apperr.Status(err) != 409 {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestCreate_UnknownService(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(newFakeStore(), &fakeSlots{open: true}, &fakeNotifier{}, now)

	_, err := s.Create(context.Background(), customer, CreateInput{
		ServiceID:     "missing",
		PetIDs:        []string{"pet-1"},
		BookingDate:   "2026-09-10",
		TimeSlot:      "10:00-10:30",
		PaymentMethod: model.MethodCash,
	})
	if apperr.Status(err) != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

func seedBooking(store *fakeStore, status model.BookingStatus) model.Booking {
	b := model.Booking{
		ID:            "bk-1",
		BookingNumber: "BK20260901080000ABCDEF01",
		CustomerID:    customer.ID,
		ServiceID:     "svc-1",
		BookingDate:   "2026-09-10",
		TimeSlot:      "10:00-10:30",
		Status:        status,
	}
	store.bookings[b.ID] = b
	return b
}

func TestCancel_StrangerForbidden(t *testing.T) {
	store := newFakeStore()
	store.services["svc-1"] = utcService()
	seedBooking(store, model.BookingBooked)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, &fakeNotifier{}, now)

	_, err := s.Cancel(context.Background(), stranger, "bk-1", "")
	if apperr.Status(err) != 403 {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestCancel_CheckoutReportsOutstandingPayment(t *testing.T) {
	store := newFakeStore()
	store.services["svc-1"] = utcService()
	seedBooking(store, model.BookingCheckout)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, &fakeNotifier{}, now)

	_, err := s.Cancel(context.Background(), customer, "bk-1", "")
	if apperr.Status(err) != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
	if apperr.UserMessage(err) != "payment is still outstanding" {
		t.Fatalf("unexpected message %q", apperr.UserMessage(err))
	}
}

func TestCancel_CustomerInsideLeadTimeRejected(t *testing.T) {
	store := newFakeStore()
	store.services["svc-1"] = utcService()
	seedBooking(store, model.BookingBooked)
	// Slot starts 2026-09-10 10:00 UTC; 23:00 the night before is inside 12h.
	now := time.Date(2026, 9, 9, 23, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, &fakeNotifier{}, now)

	_, err := s.Cancel(context.Background(), customer, "bk-1", "")
	if apperr.Status(err) != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestCancel_StaffExemptFromLeadTime(t *testing.T) {
	store := newFakeStore()
	store.services["svc-1"] = utcService()
	seedBooking(store, model.BookingBooked)
	notifier := &fakeNotifier{}
	now := time.Date(2026, 9, 9, 23, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, notifier, now)

	b, err := s.Cancel(context.Background(), staff, "bk-1", "")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if b.Status != model.BookingCancelled {
		t.Fatalf("expected cancelled, got %s", b.Status)
	}
	if b.CancelledBy != model.CancelledByAdmin {
		t.Fatalf("expected cancelledBy admin, got %s", b.CancelledBy)
	}
	if b.CancellationReason != defaultCancelReason {
		t.Fatalf("expected default reason, got %q", b.CancellationReason)
	}
	if len(notifier.titles) != 1 {
		t.Fatalf("expected cancellation notification, got %v", notifier.titles)
	}
}

func TestCancel_CustomerOutsideLeadTime(t *testing.T) {
	store := newFakeStore()
	store.services["svc-1"] = utcService()
	seedBooking(store, model.BookingBooked)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, &fakeNotifier{}, now)

	b, err := s.Cancel(context.Background(), customer, "bk-1", "change of plans")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if b.CancelledBy != model.CancelledByCustomer {
		t.Fatalf("expected cancelledBy customer, got %s", b.CancelledBy)
	}
	if b.CancellationReason != "change of plans" {
		t.Fatalf("reason not recorded: %q", b.CancellationReason)
	}
}

func TestCancel_TerminalStatesRejected(t *testing.T) {
	for _, status := range []model.BookingStatus{model.BookingCompleted, model.BookingCancelled} {
		store := newFakeStore()
		store.services["svc-1"] = utcService()
		seedBooking(store, status)
		now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
		s := newTestService(store, &fakeSlots{}, &fakeNotifier{}, now)

		if _, err := s.Cancel(context.Background(), staff, "bk-1", ""); apperr.Status(err) != 400 {
			t.Fatalf("status %s: expected 400, got %v", status, err)
		}
	}
}

func TestComplete_CustomerForbidden(t *testing.T) {
	store := newFakeStore()
	seedBooking(store, model.BookingBooked)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, &fakeNotifier{}, now)

	if _, err := s.Complete(context.Background(), customer, "bk-1"); apperr.Status(err) != 403 {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestComplete_BumpsUsage(t *testing.T) {
	store := newFakeStore()
	seedBooking(store, model.BookingBooked)
	notifier := &fakeNotifier{}
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, notifier, now)

	b, err := s.Complete(context.Background(), staff, "bk-1")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if b.Status != model.BookingCompleted {
		t.Fatalf("expected completed, got %s", b.Status)
	}
	if store.usageBumps != 1 {
		t.Fatalf("expected 1 usage bump, got %d", store.usageBumps)
	}
	if len(notifier.titles) != 1 {
		t.Fatalf("expected completion notification, got %v", notifier.titles)
	}
}

func TestComplete_OnlyFromBooked(t *testing.T) {
	store := newFakeStore()
	seedBooking(store, model.BookingCheckout)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, &fakeNotifier{}, now)

	if _, err := s.Complete(context.Background(), staff, "bk-1"); apperr.Status(err) != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestList_CustomerScopedToOwnBookings(t *testing.T) {
	store := newFakeStore()
	seedBooking(store, model.BookingBooked)
	store.bookings["bk-2"] = model.Booking{ID: "bk-2", CustomerID: "someone-else", Status: model.BookingBooked}
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, &fakeNotifier{}, now)

	got, total, err := s.List(context.Background(), customer, ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].CustomerID != customer.ID {
		t.Fatalf("expected only own bookings, got %d/%d", len(got), total)
	}

	got, total, err = s.List(context.Background(), customer, ListFilter{CustomerID: "someone-else"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || got[0].CustomerID != customer.ID {
		t.Fatalf("customer filter on another owner must be scoped back, got %d", total)
	}

	_, total, err = s.List(context.Background(), staff, ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("staff should see all bookings, got %d", total)
	}
}

func TestGet_OwnershipEnforced(t *testing.T) {
	store := newFakeStore()
	seedBooking(store, model.BookingBooked)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s := newTestService(store, &fakeSlots{}, &fakeNotifier{}, now)

	if _, err := s.Get(context.Background(), stranger, "bk-1"); apperr.Status(err) != 403 {
		t.Fatalf("expected 403, got %v", err)
	}
	if _, err := s.Get(context.Background(), customer, "bk-1"); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	if _, err := s.Get(context.Background(), staff, "bk-1"); err != nil {
		t.Fatalf("staff read failed: %v", err)
	}
}
