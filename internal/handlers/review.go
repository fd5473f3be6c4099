package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/internal/review"
)

type ReviewHandler struct {
	reviews *review.Service
	logger  *slog.Logger
}

func NewReviewHandler(reviews *review.Service, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

func (h *ReviewHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/reviews", h.Create)
	mux.HandleFunc("GET /api/v1/services/{id}/reviews", h.ServiceReviews)
	mux.HandleFunc("GET /api/v1/products/{id}/reviews", h.ProductReviews)
}

type createReviewRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
}

type reviewResponse struct {
	ID         string `json:"id"`
	ReviewerID string `json:"reviewer_id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toReviewResponse(r model.Review) reviewResponse {
	return reviewResponse{
		ID:         r.ID,
		ReviewerID: r.ReviewerID,
		TargetType: string(r.TargetType),
		TargetID:   r.TargetID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req createReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rev, err := h.reviews.Create(r.Context(), p, review.CreateInput{
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReviewResponse(rev))
}

func (h *ReviewHandler) ServiceReviews(w http.ResponseWriter, r *http.Request) {
	h.recent(w, r, model.ReviewTargetService)
}

func (h *ReviewHandler) ProductReviews(w http.ResponseWriter, r *http.Request) {
	h.recent(w, r, model.ReviewTargetProduct)
}

func (h *ReviewHandler) recent(w http.ResponseWriter, r *http.Request, target model.ReviewTarget) {
	reviews, err := h.reviews.Recent(r.Context(), target, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	items := make([]reviewResponse, 0, len(reviews))
	for _, rev := range reviews {
		items = append(items, toReviewResponse(rev))
	}
	writeJSON(w, http.StatusOK, items)
}
