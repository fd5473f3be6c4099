// Package booking owns the booking lifecycle:
// checkout -> {booked, cancelled}; booked -> {completed, cancelled}.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/petjoy-vn/petjoy-core/internal/apperr"
	"github.com/petjoy-vn/petjoy-core/internal/availability"
	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/internal/notify"
	"github.com/petjoy-vn/petjoy-core/internal/policy"
	"github.com/petjoy-vn/petjoy-core/internal/refcode"
)

const defaultCancelReason = "No reason provided"

// ListFilter narrows booking listings. CustomerID is forced to the caller
// for non-staff principals.
type ListFilter struct {
	CustomerID string
	Status     string
	ServiceID  string
	Date       string
	Search     string
	Page       int
	Limit      int
}

type Store interface {
	GetService(ctx context.Context, id string) (model.Service, error)
	// CreateBooking persists b after re-validating slot capacity against
	// committed reservations. Returns model.ErrSlotFull when the slot is
	// taken between the advisory availability read and the commit.
	CreateBooking(ctx context.Context, b model.Booking, capacity int) error
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	CancelBooking(ctx context.Context, b model.Booking) error
	// CompleteBooking flips the booking to completed and bumps the
	// service's usage count in the same transaction.
	CompleteBooking(ctx context.Context, bookingID, serviceID string) error
	ListBookings(ctx context.Context, f ListFilter) ([]model.Booking, int, error)
}

type slotChecker interface {
	SlotOpen(ctx context.Context, serviceID, date, slotRange string, now time.Time) (bool, error)
}

type Service struct {
	store      Store
	slots      slotChecker
	notifier   notify.Notifier
	logger     *slog.Logger
	cancelLead time.Duration
	now        func() time.Time
}

func NewService(store Store, slots slotChecker, notifier notify.Notifier, logger *slog.Logger, cancelLead time.Duration) *Service {
	if cancelLead <= 0 {
		cancelLead = 12 * time.Hour
	}
	return &Service{
		store:      store,
		slots:      slots,
		notifier:   notifier,
		logger:     logger,
		cancelLead: cancelLead,
		now:        time.Now,
	}
}

type CreateInput struct {
	ServiceID     string
	PetIDs        []string
	BookingDate   string
	TimeSlot      string
	PaymentMethod string
}

func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (model.Booking, error) {
	if len(in.PetIDs) == 0 {
		return model.Booking{}, apperr.BadRequest("at least one pet is required")
	}
	if in.PaymentMethod != model.MethodCash && in.PaymentMethod != model.MethodCard {
		return model.Booking{}, apperr.BadRequest("unsupported payment method")
	}
	if _, err := time.Parse("2006-01-02", in.BookingDate); err != nil {
		return model.Booking{}, apperr.BadRequest("invalid booking date")
	}
	if _, _, err := availability.ParseSlotRange(in.TimeSlot); err != nil {
		return model.Booking{}, apperr.BadRequest("invalid time slot")
	}

	svc, err := s.store.GetService(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Booking{}, apperr.NotFound("service not found")
		}
		return model.Booking{}, err
	}

	now := s.now()
	open, err := s.slots.SlotOpen(ctx, svc.ID, in.BookingDate, in.TimeSlot, now)
	if err != nil {
		return model.Booking{}, err
	}
	if !open {
		return model.Booking{}, apperr.BadRequest("time slot is not available")
	}

	status := model.BookingBooked
	if in.PaymentMethod == model.MethodCard {
		status = model.BookingCheckout
	}
	b := model.Booking{
		ID:            uuid.NewString(),
		BookingNumber: refcode.New("BK", now),
		CustomerID:    p.ID,
		ServiceID:     svc.ID,
		PetIDs:        in.PetIDs,
		BookingDate:   in.BookingDate,
		TimeSlot:      in.TimeSlot,
		Status:        status,
		TotalAmount:   int64(len(in.PetIDs)) * svc.UnitPrice(),
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: model.PayStatusPending,
		CreatedAt:     now,
	}

	if err := s.store.CreateBooking(ctx, b, svc.Capacity); err != nil {
		if errors.Is(err, model.ErrSlotFull) {
			return model.Booking{}, apperr.Conflict("time slot was just taken")
		}
		return model.Booking{}, err
	}

	if b.Status == model.BookingBooked {
		s.notifier.Send(ctx, b.CustomerID, "Booking confirmed",
			fmt.Sprintf("Your booking %s for %s at %s is confirmed.", b.BookingNumber, b.BookingDate, b.TimeSlot),
			"/bookings/"+b.ID)
	}
	s.logger.Info("booking created", "booking_id", b.ID, "status", b.Status, "method", b.PaymentMethod)
	return b, nil
}

func (s *Service) Get(ctx context.Context, p policy.Principal, id string) (model.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Booking{}, apperr.NotFound("booking not found")
		}
		return model.Booking{}, err
	}
	if !policy.Allow(policy.BookingRead, p, b.CustomerID) {
		return model.Booking{}, apperr.Forbidden("not allowed to view this booking")
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, p policy.Principal, f ListFilter) ([]model.Booking, int, error) {
	// Callers without list-any rights are scoped down to their own bookings.
	if !policy.Allow(policy.BookingList, p, f.CustomerID) {
		f.CustomerID = p.ID
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.store.ListBookings(ctx, f)
}

func (s *Service) Cancel(ctx context.Context, p policy.Principal, id, reason string) (model.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Booking{}, apperr.NotFound("booking not found")
		}
		return model.Booking{}, err
	}
	if !policy.Allow(policy.BookingCancel, p, b.CustomerID) {
		return model.Booking{}, apperr.Forbidden("not allowed to cancel this booking")
	}
	switch b.Status {
	case model.BookingCheckout:
		return model.Booking{}, apperr.BadRequest("payment is still outstanding")
	case model.BookingBooked:
	default:
		return model.Booking{}, apperr.BadRequest("booking can no longer be cancelled")
	}

	if !policy.Staff(p) {
		svc, err := s.store.GetService(ctx, b.ServiceID)
		if err != nil {
			return model.Booking{}, err
		}
		loc, err := availability.Location(svc)
		if err != nil {
			return model.Booking{}, err
		}
		start, err := b.StartTime(loc)
		if err != nil {
			return model.Booking{}, err
		}
		if start.Sub(s.now()) < s.cancelLead {
			return model.Booking{}, apperr.BadRequest(
				fmt.Sprintf("bookings can only be cancelled at least %d hours before the slot", int(s.cancelLead.Hours())))
		}
	}

	b.Status = model.BookingCancelled
	b.CancelledBy = model.CancelledByCustomer
	if policy.Staff(p) {
		b.CancelledBy = model.CancelledByAdmin
	}
	b.CancellationReason = reason
	if b.CancellationReason == "" {
		b.CancellationReason = defaultCancelReason
	}
	if err := s.store.CancelBooking(ctx, b); err != nil {
		return model.Booking{}, err
	}

	s.notifier.Send(ctx, b.CustomerID, "Booking cancelled",
		fmt.Sprintf("Your booking %s has been cancelled.", b.BookingNumber),
		"/bookings/"+b.ID)
	s.logger.Info("booking cancelled", "booking_id", b.ID, "by", b.CancelledBy)
	return b, nil
}

func (s *Service) Complete(ctx context.Context, p policy.Principal, id string) (model.Booking, error) {
	if !policy.Allow(policy.BookingComplete, p, "") {
		return model.Booking{}, apperr.Forbidden("only staff can complete bookings")
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Booking{}, apperr.NotFound("booking not found")
		}
		return model.Booking{}, err
	}
	if b.Status != model.BookingBooked {
		return model.Booking{}, apperr.BadRequest("only booked bookings can be completed")
	}
	if err := s.store.CompleteBooking(ctx, b.ID, b.ServiceID); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingCompleted

	s.notifier.Send(ctx, b.CustomerID, "Booking completed",
		fmt.Sprintf("Your booking %s is completed. Thank you!", b.BookingNumber),
		"/bookings/"+b.ID)
	s.logger.Info("booking completed", "booking_id", b.ID)
	return b, nil
}
