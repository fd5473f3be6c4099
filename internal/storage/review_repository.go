package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/libs/db"
)

type ReviewRepository struct {
	pool *db.Pool
}

func NewReviewRepository(pool *db.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

func (r *ReviewRepository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id))
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	return b, nil
}

func (r *ReviewRepository) GetOrder(ctx context.Context, id string) (model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		return model.Order{}, notFound(err)
	}
	return o, nil
}

func (r *ReviewRepository) HasReview(ctx context.Context, reviewerID string, targetType model.ReviewTarget, targetID, sourceID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reviews
			WHERE reviewer_id = $1 AND target_type = $2 AND target_id = $3 AND source_id = $4
		)
	`, reviewerID, targetType, targetID, sourceID).Scan(&exists)
	return exists, err
}

func (r *ReviewRepository) CreateReview(ctx context.Context, rev model.Review) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reviews
			(id, reviewer_id, target_type, target_id, source_type, source_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rev.ID, rev.ReviewerID, rev.TargetType, rev.TargetID, rev.SourceType, rev.SourceID, rev.Rating, rev.Comment, rev.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ErrDuplicateReview
		}
		return err
	}
	return nil
}

func (r *ReviewRepository) ListRatings(ctx context.Context, targetType model.ReviewTarget, targetID string) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rating
		FROM reviews
		WHERE target_type = $1 AND target_id = $2
	`, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		out = append(out, rating)
	}
	return out, rows.Err()
}

func (r *ReviewRepository) UpdateTargetRating(ctx context.Context, targetType model.ReviewTarget, targetID string, count int, avg float64) error {
	table := "products"
	if targetType == model.ReviewTargetService {
		table = "services"
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE `+table+`
		SET rating_count = $2,
			rating_avg = $3
		WHERE id = $1
	`, targetID, count, avg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ReviewRepository) ListRecent(ctx context.Context, targetType model.ReviewTarget, targetID string, limit int) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, targetType, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}
