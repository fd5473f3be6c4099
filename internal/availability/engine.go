package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/model"
)

// WindowDays is how far ahead the engine exposes bookable slots.
const WindowDays = 14

const defaultTimezone = "Asia/Ho_Chi_Minh"

type ServiceSource interface {
	GetService(ctx context.Context, id string) (model.Service, error)
}

type BookingSource interface {
	// ListActiveBookings returns non-cancelled bookings for the service with
	// booking dates in [fromDate, toDate] (ISO dates, inclusive).
	ListActiveBookings(ctx context.Context, serviceID, fromDate, toDate string) ([]model.Booking, error)
}

// Engine answers "what can be booked" by replaying committed bookings through
// the slot calculator. It holds no cached state: a booking created between two
// calls is reflected on the next call.
type Engine struct {
	services ServiceSource
	bookings BookingSource
	leadTime time.Duration
}

func NewEngine(services ServiceSource, bookings BookingSource, leadTime time.Duration) *Engine {
	if leadTime <= 0 {
		leadTime = 30 * time.Minute
	}
	return &Engine{services: services, bookings: bookings, leadTime: leadTime}
}

// AvailableSlots computes open slots per ISO date for the next WindowDays days
// starting at now, normalized to the service's timezone. Holidays and closed
// weekdays yield empty lists; the current day drops slots starting inside the
// minimum lead time.
func (e *Engine) AvailableSlots(ctx context.Context, serviceID string, now time.Time) (map[string][]Slot, error) {
	svc, err := e.services.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	loc, err := Location(svc)
	if err != nil {
		return nil, fmt.Errorf("service %s has invalid timezone %q: %w", svc.ID, svc.Timezone, err)
	}
	localNow := now.In(loc)
	first := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
	last := first.AddDate(0, 0, WindowDays-1)

	booked, err := e.bookings.ListActiveBookings(ctx, svc.ID, first.Format("2006-01-02"), last.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	reservedByDate := groupReservations(booked)

	out := make(map[string][]Slot, WindowDays)
	for i := 0; i < WindowDays; i++ {
		day := first.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		out[key] = []Slot{}

		if svc.IsHoliday(key) {
			continue
		}
		tpl, ok := svc.Availability.ForWeekday(day.Weekday())
		if !ok || !tpl.IsOpen {
			continue
		}
		openMin, err := ParseClock(tpl.OpenTime)
		if err != nil {
			continue
		}
		closeMin, err := ParseClock(tpl.CloseTime)
		if err != nil {
			continue
		}

		slots := BuildSlots(openMin, closeMin, tpl.SlotDurationMinutes, svc.DurationMinutes, svc.Capacity, reservedByDate[key])
		if i == 0 {
			slots = dropEarlySlots(slots, localNow, e.leadTime)
		}
		if slots == nil {
			slots = []Slot{}
		}
		out[key] = slots
	}
	return out, nil
}

// SlotOpen reports whether the given slot range is currently bookable on date.
func (e *Engine) SlotOpen(ctx context.Context, serviceID, date, slotRange string, now time.Time) (bool, error) {
	days, err := e.AvailableSlots(ctx, serviceID, now)
	if err != nil {
		return false, err
	}
	for _, s := range days[date] {
		if s.Range() == slotRange {
			return s.AvailableSpots > 0, nil
		}
	}
	return false, nil
}

func groupReservations(bookings []model.Booking) map[string][]Reservation {
	grouped := map[string][]Reservation{}
	for _, b := range bookings {
		start, end, err := ParseSlotRange(b.TimeSlot)
		if err != nil {
			continue
		}
		grouped[b.BookingDate] = append(grouped[b.BookingDate], Reservation{
			StartMin: start,
			EndMin:   end,
			Units:    1,
		})
	}
	return grouped
}

func dropEarlySlots(slots []Slot, localNow time.Time, lead time.Duration) []Slot {
	earliest := localNow.Hour()*60 + localNow.Minute() + int(lead.Minutes())
	kept := slots[:0]
	for _, s := range slots {
		if s.StartMin >= earliest {
			kept = append(kept, s)
		}
	}
	return kept
}

// Location resolves the service's IANA timezone, falling back to the
// platform default when the service does not pin one.
func Location(svc model.Service) (*time.Location, error) {
	tz := svc.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	return time.LoadLocation(tz)
}
