package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pavel-morozov/gelato-shop/internal/user"
)

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrForbidden     = errors.New("not allowed to modify this review")
)

type Service interface {
	CreateReview(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*Review, error)
	ListProductReviews(ctx context.Context, productID uuid.UUID) ([]Review, error)
	ListUserReviews(ctx context.Context, userID uuid.UUID) ([]Review, error)
	UpdateReview(ctx context.Context, reviewID, requesterID uuid.UUID, rating int, comment string) (*Review, error)
	DeleteReview(ctx context.Context, reviewID, requesterID uuid.UUID, requesterRole string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateReview(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate review id: %w", err)
	}

	rv := &Review{
		ID:        id,
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
	}

	if err := s.repo.Create(ctx, rv); err != nil {
		if errors.Is(err, ErrAlreadyReviewed) || errors.Is(err, ErrProductNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to create review")
		return nil, fmt.Errorf("service: failed to create review: %w", err)
	}

	log.Info().Stringer("review_id", rv.ID).Stringer("product_id", productID).Int("rating", rating).Msg("service: review created")
	return rv, nil
}

func (s *service) ListProductReviews(ctx context.Context, productID uuid.UUID) ([]Review, error) {
	reviews, err := s.repo.ListByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (s *service) ListUserReviews(ctx context.Context, userID uuid.UUID) ([]Review, error) {
	reviews, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list user reviews: %w", err)
	}
	return reviews, nil
}

// UpdateReview changes the rating or comment of a review. Only the author may
// edit; admins can only delete.
func (s *service) UpdateReview(ctx context.Context, reviewID, requesterID uuid.UUID, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	rv, err := s.repo.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch review for update: %w", err)
	}

	if rv.UserID != requesterID {
		return nil, ErrForbidden
	}

	rv.Rating = rating
	rv.Comment = comment

	if err := s.repo.Update(ctx, rv); err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return nil, ErrReviewNotFound
		}
		log.Error().Err(err).Stringer("review_id", reviewID).Msg("service: failed to update review")
		return nil, fmt.Errorf("service: failed to update review: %w", err)
	}

	return rv, nil
}

func (s *service) DeleteReview(ctx context.Context, reviewID, requesterID uuid.UUID, requesterRole string) error {
	rv, err := s.repo.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("service: failed to fetch review: %w", err)
	}

	if rv.UserID != requesterID && requesterRole != user.RoleAdmin {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, reviewID); err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("service: failed to delete review: %w", err)
	}
	return nil
}
