package review

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"toolmart/internal/domain"
	"toolmart/internal/repository"
)

// Service handles customer reviews.
type Service struct {
	reviews repository.ReviewRepository
	logger  *slog.Logger
}

// New constructs a Service.
func New(reviews repository.ReviewRepository, logger *slog.Logger) Service {
	return Service{reviews: reviews, logger: logger}
}

// List returns all reviews.
func (s Service) List(ctx context.Context) ([]domain.Document, error) {
	return s.reviews.ListReviews(ctx)
}

// Create stores a review under a generated identifier and returns it.
func (s Service) Create(ctx context.Context, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.reviews.InsertReview(ctx, id, fields); err != nil {
		return "", err
	}
	s.logger.Info("review created", "review_id", id)
	return id, nil
}
