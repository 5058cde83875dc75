package core

import (
	"context"
	"time"

	"mangahub/internal/cache"
	"mangahub/internal/repository"
	"mangahub/pkg/models"
)

// RatingService handles manga ratings and their derived aggregates.
type RatingService interface {
	Rate(ctx context.Context, userID, mangaID string, value int) (*models.RatingStats, error)
	Unrate(ctx context.Context, userID, mangaID string) (*models.RatingStats, error)
	Stats(ctx context.Context, mangaID, userID string) (*models.RatingStats, error)
}

type ratingService struct {
	ratings repository.RatingRepository
	manga   repository.MangaRepository
	cache   cache.RatingCache
}

// NewRatingService creates the rating service. cache may be the noop
// implementation when Redis is not configured.
func NewRatingService(ratings repository.RatingRepository, manga repository.MangaRepository, ratingCache cache.RatingCache) RatingService {
	return &ratingService{ratings: ratings, manga: manga, cache: ratingCache}
}

// Rate records or replaces the caller's rating.
func (s *ratingService) Rate(ctx context.Context, userID, mangaID string, value int) (*models.RatingStats, error) {
	if !models.IsValidRating(value) {
		return nil, models.NewValidationError("rating must be between 1 and 5")
	}
	if _, err := s.manga.GetByID(ctx, mangaID); err != nil {
		return nil, err
	}

	rating := &models.Rating{
		UserID:    userID,
		MangaID:   mangaID,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.ratings.Upsert(ctx, rating); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, mangaID)
	return s.Stats(ctx, mangaID, userID)
}

// Unrate removes the caller's rating row entirely so the aggregates no
// longer count it.
func (s *ratingService) Unrate(ctx context.Context, userID, mangaID string) (*models.RatingStats, error) {
	if err := s.ratings.Delete(ctx, userID, mangaID); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, mangaID)
	return s.Stats(ctx, mangaID, userID)
}

// Stats returns the aggregates plus the caller's own rating when userID
// is non-empty.
func (s *ratingService) Stats(ctx context.Context, mangaID, userID string) (*models.RatingStats, error) {
	stats, ok := s.cache.Get(ctx, mangaID)
	if !ok {
		if _, err := s.manga.GetByID(ctx, mangaID); err != nil {
			return nil, err
		}
		var err error
		stats, err = s.ratings.Stats(ctx, mangaID)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, mangaID, stats)
	}

	if userID != "" {
		if own, err := s.ratings.Get(ctx, userID, mangaID); err == nil {
			v := own.Value
			stats.UserRating = &v
		}
	}
	return stats, nil
}
