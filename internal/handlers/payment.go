package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/internal/payment"
)

type PaymentHandler struct {
	payments *payment.Service
	logger   *slog.Logger
}

func NewPaymentHandler(payments *payment.Service, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

func (h *PaymentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/payments", h.Create)
	mux.HandleFunc("POST /api/v1/payments/confirm", h.Confirm)
	mux.HandleFunc("POST /api/v1/payments/cancel", h.Cancel)
}

type createPaymentRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
}

type paymentResponse struct {
	ID            string `json:"id"`
	PaymentNumber string `json:"payment_number"`
	TargetType    string `json:"target_type"`
	TargetID      string `json:"target_id"`
	Amount        int64  `json:"amount"`
	Method        string `json:"method"`
	Provider      string `json:"provider"`
	ClientSecret  string `json:"client_secret,omitempty"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

func toPaymentResponse(p model.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		PaymentNumber: p.PaymentNumber,
		TargetType:    string(p.TargetType),
		TargetID:      p.TargetID,
		Amount:        p.Amount,
		Method:        p.Method,
		Provider:      p.Provider,
		ClientSecret:  p.ClientSecret,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req createPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.payments.Create(r.Context(), principal, payment.CreateInput{
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

type settlePaymentRequest struct {
	ClientSecret string `json:"client_secret"`
}

func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req settlePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.payments.Confirm(r.Context(), principal, req.ClientSecret)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req settlePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.payments.Cancel(r.Context(), principal, req.ClientSecret)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}
