package store

import (
	"context"
	"fmt"

	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
)

// UpsertRating stores a user's rating of a product; rating again replaces the
// earlier value and comment.
func (s *Queries) UpsertRating(ctx context.Context, r *models.Rating) error {
	query := `
		INSERT INTO ratings (product_id, user_id, value, comment, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (product_id, user_id)
		DO UPDATE SET value = EXCLUDED.value, comment = EXCLUDED.comment, created_at = NOW()
		RETURNING created_at`

	err := s.q.QueryRowContext(ctx, query, r.ProductID, r.UserID, r.Value, r.Comment).Scan(&r.CreatedAt)
	if err != nil {
		switch {
		case database.IsForeignKeyViolation(err):
			return fmt.Errorf("rate product %d: %w", r.ProductID, database.ErrProductNotFound)
		case database.IsCheckViolation(err):
			return fmt.Errorf("rate product %d: %w", r.ProductID, database.ErrInvalidRating)
		}
		return fmt.Errorf("rate product %d: %w", r.ProductID, err)
	}
	return nil
}

func (s *Queries) RatingOverview(ctx context.Context) (models.RatingSummary, error) {
	var summary models.RatingSummary
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(ROUND(AVG(value), 2), 0), COUNT(*) FROM ratings`,
	).Scan(&summary.Average, &summary.Count)
	if err != nil {
		return summary, fmt.Errorf("rating overview: %w", err)
	}
	return summary, nil
}

// ListLowRatings returns the most recent ratings strictly below the threshold.
func (s *Queries) ListLowRatings(ctx context.Context, below, limit int) ([]models.Rating, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT product_id, user_id, value, comment, created_at
		 FROM ratings
		 WHERE value < $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		below, limit)
	if err != nil {
		return nil, fmt.Errorf("list low ratings: %w", err)
	}
	defer rows.Close()

	ratings := []models.Rating{}
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.ProductID, &r.UserID, &r.Value, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ratings, nil
}
