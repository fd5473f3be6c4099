package model

import (
	"fmt"
	"strings"
	"time"
)

// Roles supplied by the identity collaborator.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Payment methods accepted at checkout.
const (
	MethodCash = "cash"
	MethodCard = "card"
)

type BookingStatus string

const (
	BookingCheckout  BookingStatus = "checkout"
	BookingBooked    BookingStatus = "booked"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type OrderStatus string

const (
	OrderCheckout  OrderStatus = "checkout"
	OrderPending   OrderStatus = "pending"
	OrderShipping  OrderStatus = "shipping"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentFailed    PaymentState = "failed"
)

// Payment status as seen from the paying record (booking or order).
const (
	PayStatusPending = "pending"
	PayStatusPaid    = "paid"
	PayStatusFailed  = "failed"
)

// CancelledBy values recorded on cancelled bookings and orders.
const (
	CancelledByCustomer = "customer"
	CancelledByAdmin    = "admin"
)

// PaymentTarget discriminates what a payment settles.
type PaymentTarget string

const (
	TargetOrder   PaymentTarget = "order"
	TargetBooking PaymentTarget = "booking"
)

func ParsePaymentTarget(raw string) (PaymentTarget, error) {
	switch PaymentTarget(strings.TrimSpace(strings.ToLower(raw))) {
	case TargetOrder:
		return TargetOrder, nil
	case TargetBooking:
		return TargetBooking, nil
	default:
		return "", fmt.Errorf("unsupported payment target %q", raw)
	}
}

// ReviewTarget discriminates what a review rates.
type ReviewTarget string

const (
	ReviewTargetService ReviewTarget = "service"
	ReviewTargetProduct ReviewTarget = "product"
)

// ReviewSource discriminates the transaction a review is verified against.
type ReviewSource string

const (
	ReviewSourceBooking ReviewSource = "booking"
	ReviewSourceOrder   ReviewSource = "order"
)

// DayAvailability is one weekday entry of a service's weekly template.
type DayAvailability struct {
	IsOpen              bool   `json:"is_open"`
	OpenTime            string `json:"open_time"`  // "HH:MM"
	CloseTime           string `json:"close_time"` // "HH:MM"
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
}

// WeeklyAvailability maps lowercase weekday names ("monday".."sunday") to templates.
type WeeklyAvailability map[string]DayAvailability

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
	time.Sunday:    "sunday",
}

func (w WeeklyAvailability) ForWeekday(d time.Weekday) (DayAvailability, bool) {
	tpl, ok := w[weekdayNames[d]]
	return tpl, ok
}

type Service struct {
	ID               string
	Name             string
	Availability     WeeklyAvailability
	ExcludedHolidays []string // ISO dates, e.g. "2026-09-02"
	Capacity         int
	DurationMinutes  int
	Price            int64
	SalePrice        int64
	OnSale           bool
	Timezone         string // IANA name; empty means the platform default
	UsageCount       int
	RatingCount      int
	RatingAvg        float64
	CreatedAt        time.Time
}

func (s Service) UnitPrice() int64 {
	if s.OnSale {
		return s.SalePrice
	}
	return s.Price
}

func (s Service) IsHoliday(isoDate string) bool {
	for _, h := range s.ExcludedHolidays {
		if h == isoDate {
			return true
		}
	}
	return false
}

type Booking struct {
	ID                 string
	BookingNumber      string
	CustomerID         string
	ServiceID          string
	PetIDs             []string
	BookingDate        string // ISO date in the service timezone
	TimeSlot           string // "HH:MM-HH:MM"
	Status             BookingStatus
	CancelledBy        string
	CancellationReason string
	TotalAmount        int64
	PaymentID          string // empty when no payment is linked
	PaymentMethod      string
	PaymentStatus      string
	CreatedAt          time.Time
}

// StartTime resolves the booking's slot start as a wall-clock instant in loc.
func (b Booking) StartTime(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", b.BookingDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid booking date %q: %w", b.BookingDate, err)
	}
	startRaw, _, ok := strings.Cut(b.TimeSlot, "-")
	if !ok {
		return time.Time{}, fmt.Errorf("invalid time slot %q", b.TimeSlot)
	}
	clock, err := time.Parse("15:04", strings.TrimSpace(startRaw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time slot %q: %w", b.TimeSlot, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	OnSale    bool   `json:"on_sale"`
	SalePrice int64  `json:"sale_price,omitempty"`
	Subtotal  int64  `json:"subtotal"`
}

// StatusEntry is one element of an order's append-only status history.
type StatusEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
}

type Order struct {
	ID                 string
	OrderNumber        string
	CustomerID         string
	Items              []OrderItem
	Subtotal           int64
	ShippingFee        int64
	Discount           int64
	TotalAmount        int64
	ShippingAddress    string
	Status             OrderStatus
	StatusHistory      []StatusEntry
	CancelledBy        string
	CancelReason       string
	PaymentID          string
	PaymentMethod      string
	PaymentStatus      string
	CheckoutExpiration time.Time
	CreatedAt          time.Time
}

type Payment struct {
	ID            string
	PaymentNumber string
	TargetType    PaymentTarget
	TargetID      string
	CustomerID    string
	Amount        int64
	Method        string
	Provider      string
	ProviderRef   string // gateway-side intent id
	ClientSecret  string
	Status        PaymentState
	CreatedAt     time.Time
}

type Product struct {
	ID          string
	Name        string
	Image       string
	Price       int64
	SalePrice   int64
	OnSale      bool
	Stock       int
	SoldCount   int
	RatingCount int
	RatingAvg   float64
}

func (p Product) UnitPrice() int64 {
	if p.OnSale {
		return p.SalePrice
	}
	return p.Price
}

type Review struct {
	ID         string
	ReviewerID string
	TargetType ReviewTarget
	TargetID   string
	SourceType ReviewSource
	SourceID   string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}
