// Package review verifies reviews against completed transactions and keeps
// target rating aggregates consistent with the persisted review set.
package review

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/petjoy-vn/petjoy-core/internal/apperr"
	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/internal/policy"
)

// RecentLimit caps the most-recent-first review list served per target.
const RecentLimit = 10

type Store interface {
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	HasReview(ctx context.Context, reviewerID string, targetType model.ReviewTarget, targetID, sourceID string) (bool, error)
	CreateReview(ctx context.Context, r model.Review) error
	// ListRatings returns every persisted rating for the target. The
	// aggregate is always recomputed from this full set so deletions and
	// hides stay consistent without incremental bookkeeping.
	ListRatings(ctx context.Context, targetType model.ReviewTarget, targetID string) ([]int, error)
	UpdateTargetRating(ctx context.Context, targetType model.ReviewTarget, targetID string, count int, avg float64) error
	ListRecent(ctx context.Context, targetType model.ReviewTarget, targetID string, limit int) ([]model.Review, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

type CreateInput struct {
	TargetType string
	TargetID   string
	SourceType string
	SourceID   string
	Rating     int
	Comment    string
}

func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (model.Review, error) {
	if !policy.Allow(policy.ReviewCreate, p, p.ID) {
		return model.Review{}, apperr.Forbidden("not allowed to create reviews")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return model.Review{}, apperr.BadRequest("rating must be between 1 and 5")
	}
	targetType := model.ReviewTarget(in.TargetType)
	if targetType != model.ReviewTargetService && targetType != model.ReviewTargetProduct {
		return model.Review{}, apperr.BadRequest("unsupported review target")
	}
	sourceType := model.ReviewSource(in.SourceType)
	if sourceType != model.ReviewSourceBooking && sourceType != model.ReviewSourceOrder {
		return model.Review{}, apperr.BadRequest("unsupported review source")
	}

	if err := s.verifySource(ctx, p, targetType, in.TargetID, sourceType, in.SourceID); err != nil {
		return model.Review{}, err
	}

	dup, err := s.store.HasReview(ctx, p.ID, targetType, in.TargetID, in.SourceID)
	if err != nil {
		return model.Review{}, err
	}
	if dup {
		return model.Review{}, apperr.BadRequest("you have already reviewed this")
	}

	r := model.Review{
		ID:         uuid.NewString(),
		ReviewerID: p.ID,
		TargetType: targetType,
		TargetID:   in.TargetID,
		SourceType: sourceType,
		SourceID:   in.SourceID,
		Rating:     in.Rating,
		Comment:    in.Comment,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateReview(ctx, r); err != nil {
		if errors.Is(err, model.ErrDuplicateReview) {
			return model.Review{}, apperr.BadRequest("you have already reviewed this")
		}
		return model.Review{}, err
	}

	if err := s.recomputeRating(ctx, targetType, in.TargetID); err != nil {
		return model.Review{}, err
	}
	s.logger.Info("review created", "review_id", r.ID, "target", targetType, "rating", r.Rating)
	return r, nil
}

func (s *Service) Recent(ctx context.Context, targetType model.ReviewTarget, targetID string) ([]model.Review, error) {
	return s.store.ListRecent(ctx, targetType, targetID, RecentLimit)
}

// verifySource checks the review is backed by a finished transaction owned
// by the reviewer and that the transaction actually covers the target.
func (s *Service) verifySource(ctx context.Context, p policy.Principal, targetType model.ReviewTarget, targetID string, sourceType model.ReviewSource, sourceID string) error {
	switch sourceType {
	case model.ReviewSourceBooking:
		if targetType != model.ReviewTargetService {
			return apperr.BadRequest("bookings can only back service reviews")
		}
		b, err := s.store.GetBooking(ctx, sourceID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return apperr.NotFound("booking not found")
			}
			return err
		}
		if b.CustomerID != p.ID {
			return apperr.Forbidden("only the booking's owner can review it")
		}
		if b.Status != model.BookingCompleted {
			return apperr.BadRequest("only completed bookings can be reviewed")
		}
		if b.ServiceID != targetID {
			return apperr.BadRequest("booking does not cover this service")
		}
	case model.ReviewSourceOrder:
		if targetType != model.ReviewTargetProduct {
			return apperr.BadRequest("orders can only back product reviews")
		}
		o, err := s.store.GetOrder(ctx, sourceID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return apperr.NotFound("order not found")
			}
			return err
		}
		if o.CustomerID != p.ID {
			return apperr.Forbidden("only the order's owner can review it")
		}
		if o.Status != model.OrderDelivered {
			return apperr.BadRequest("only delivered orders can be reviewed")
		}
		found := false
		for _, item := range o.Items {
			if item.ProductID == targetID {
				found = true
				break
			}
		}
		if !found {
			return apperr.BadRequest("order does not contain this product")
		}
	}
	return nil
}

func (s *Service) recomputeRating(ctx context.Context, targetType model.ReviewTarget, targetID string) error {
	ratings, err := s.store.ListRatings(ctx, targetType, targetID)
	if err != nil {
		return err
	}
	var sum int
	for _, r := range ratings {
		sum += r
	}
	avg := 0.0
	if len(ratings) > 0 {
		avg = math.Round(float64(sum)/float64(len(ratings))*10) / 10
	}
	return s.store.UpdateTargetRating(ctx, targetType, targetID, len(ratings), avg)
}
