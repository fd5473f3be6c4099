package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/internal/order"
)

type OrderHandler struct {
	orders *order.Service
	logger *slog.Logger
}

func NewOrderHandler(orders *order.Service, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func (h *OrderHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders", h.Create)
	mux.HandleFunc("GET /api/v1/orders", h.List)
	mux.HandleFunc("GET /api/v1/orders/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/orders/{id}", h.UpdateStatus)
	mux.HandleFunc("POST /api/v1/orders/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /api/v1/orders/{id}/confirm-delivery", h.ConfirmDelivery)
}

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items           []orderLineRequest `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	Discount        int64              `json:"discount"`
}

type statusEntryResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Note      string `json:"note,omitempty"`
}

type orderResponse struct {
	ID                 string                `json:"id"`
	OrderNumber        string                `json:"order_number"`
	CustomerID         string                `json:"customer_id"`
	Items              []model.OrderItem     `json:"items"`
	Subtotal           int64                 `json:"subtotal"`
	ShippingFee        int64                 `json:"shipping_fee"`
	Discount           int64                 `json:"discount"`
	TotalAmount        int64                 `json:"total_amount"`
	ShippingAddress    string                `json:"shipping_address"`
	Status             string                `json:"status"`
	StatusHistory      []statusEntryResponse `json:"status_history"`
	CancelledBy        string                `json:"cancelled_by,omitempty"`
	CancelReason       string                `json:"cancel_reason,omitempty"`
	PaymentMethod      string                `json:"payment_method"`
	PaymentStatus      string                `json:"payment_status"`
	CheckoutExpiration string                `json:"checkout_expiration,omitempty"`
	CreatedAt          string                `json:"created_at"`
}

func toOrderResponse(o model.Order) orderResponse {
	history := make([]statusEntryResponse, 0, len(o.StatusHistory))
	for _, e := range o.StatusHistory {
		history = append(history, statusEntryResponse{
			Status:    string(e.Status),
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Note:      e.Note,
		})
	}
	resp := orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Items:           o.Items,
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Discount:        o.Discount,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		Status:          string(o.Status),
		StatusHistory:   history,
		CancelledBy:     o.CancelledBy,
		CancelReason:    o.CancelReason,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !o.CheckoutExpiration.IsZero() {
		resp.CheckoutExpiration = o.CheckoutExpiration.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items := make([]order.LineInput, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, order.LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	o, err := h.orders.Create(r.Context(), p, order.CreateInput{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Discount:        req.Discount,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	orders, total, err := h.orders.List(r.Context(), p, order.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	items := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, listResponse[orderResponse]{Items: items, Total: total, Page: max(page, 1), Limit: limit})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req updateOrderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), p, r.PathValue("id"), model.OrderStatus(req.Status), req.Note)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.orders.Cancel(r.Context(), p, r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	o, err := h.orders.ConfirmDelivery(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
