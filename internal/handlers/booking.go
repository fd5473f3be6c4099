package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/booking"
	"github.com/petjoy-vn/petjoy-core/internal/model"
)

type BookingHandler struct {
	bookings *booking.Service
	logger   *slog.Logger
}

func NewBookingHandler(bookings *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/bookings", h.Create)
	mux.HandleFunc("GET /api/v1/bookings", h.List)
	mux.HandleFunc("GET /api/v1/bookings/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}", h.Complete)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", h.Cancel)
}

type createBookingRequest struct {
	ServiceID     string   `json:"service_id"`
	PetIDs        []string `json:"pet_ids"`
	BookingDate   string   `json:"booking_date"`
	TimeSlot      string   `json:"time_slot"`
	PaymentMethod string   `json:"payment_method"`
}

type bookingResponse struct {
	ID                 string   `json:"id"`
	BookingNumber      string   `json:"booking_number"`
	CustomerID         string   `json:"customer_id"`
	ServiceID          string   `json:"service_id"`
	PetIDs             []string `json:"pet_ids"`
	BookingDate        string   `json:"booking_date"`
	TimeSlot           string   `json:"time_slot"`
	Status             string   `json:"status"`
	CancelledBy        string   `json:"cancelled_by,omitempty"`
	CancellationReason string   `json:"cancellation_reason,omitempty"`
	TotalAmount        int64    `json:"total_amount"`
	PaymentMethod      string   `json:"payment_method"`
	PaymentStatus      string   `json:"payment_status"`
	CreatedAt          string   `json:"created_at"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	return bookingResponse{
		ID:                 b.ID,
		BookingNumber:      b.BookingNumber,
		CustomerID:         b.CustomerID,
		ServiceID:          b.ServiceID,
		PetIDs:             b.PetIDs,
		BookingDate:        b.BookingDate,
		TimeSlot:           b.TimeSlot,
		Status:             string(b.Status),
		CancelledBy:        b.CancelledBy,
		CancellationReason: b.CancellationReason,
		TotalAmount:        b.TotalAmount,
		PaymentMethod:      b.PaymentMethod,
		PaymentStatus:      b.PaymentStatus,
		CreatedAt:          b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.bookings.Create(r.Context(), p, booking.CreateInput{
		ServiceID:     req.ServiceID,
		PetIDs:        req.PetIDs,
		BookingDate:   req.BookingDate,
		TimeSlot:      req.TimeSlot,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	b, err := h.bookings.Get(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	f := booking.ListFilter{
		Status:    q.Get("status"),
		ServiceID: q.Get("service"),
		Date:      q.Get("date"),
		Search:    q.Get("search"),
		Page:      page,
		Limit:     limit,
	}
	bookings, total, err := h.bookings.List(r.Context(), p, f)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	items := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, listResponse[bookingResponse]{Items: items, Total: total, Page: max(page, 1), Limit: limit})
}

type completeBookingRequest struct {
	Status string `json:"status"`
}

// Complete is the back-office transition endpoint. The only supported patch
// today is booked -> completed.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req completeBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status != string(model.BookingCompleted) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported status change"})
		return
	}
	b, err := h.bookings.Complete(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req cancelBookingRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.bookings.Cancel(r.Context(), p, r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}
