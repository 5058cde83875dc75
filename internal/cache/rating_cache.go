// Package cache keeps hot derived aggregates in Redis so the gateway
// does not recompute them on every read. The cache is strictly optional:
// every method degrades to a miss when Redis is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

const ratingStatsTTL = 5 * time.Minute

// RatingCache caches per-manga rating aggregates.
type RatingCache interface {
	Get(ctx context.Context, mangaID string) (*models.RatingStats, bool)
	Set(ctx context.Context, mangaID string, stats *models.RatingStats)
	Invalidate(ctx context.Context, mangaID string)
}

type ratingCache struct {
	client *redis.Client
}

// NewRatingCache connects to Redis. A nil cache is returned when the
// ping fails; callers must treat that as cache-disabled.
func NewRatingCache(addr, password string, db int) RatingCache {
	if addr == "" {
		return noopRatingCache{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnf("Redis unavailable at %s, rating cache disabled: %v", addr, err)
		return noopRatingCache{}
	}
	logger.Infof("Rating cache connected to Redis at %s", addr)
	return &ratingCache{client: client}
}

func ratingKey(mangaID string) string {
	return "mangahub:rating_stats:" + mangaID
}

func (c *ratingCache) Get(ctx context.Context, mangaID string) (*models.RatingStats, bool) {
	raw, err := c.client.Get(ctx, ratingKey(mangaID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debugf("rating cache get failed: %v", err)
		}
		return nil, false
	}
	var stats models.RatingStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (c *ratingCache) Set(ctx context.Context, mangaID string, stats *models.RatingStats) {
	// UserRating is caller-specific, never cached.
	copied := *stats
	copied.UserRating = nil
	raw, err := json.Marshal(&copied)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, ratingKey(mangaID), raw, ratingStatsTTL).Err(); err != nil {
		logger.Debugf("rating cache set failed: %v", err)
	}
}

func (c *ratingCache) Invalidate(ctx context.Context, mangaID string) {
	if err := c.client.Del(ctx, ratingKey(mangaID)).Err(); err != nil {
		logger.Debugf("rating cache invalidate failed: %v", err)
	}
}

// noopRatingCache is the disabled cache: every lookup is a miss.
type noopRatingCache struct{}

func (noopRatingCache) Get(context.Context, string) (*models.RatingStats, bool) { return nil, false }
func (noopRatingCache) Set(context.Context, string, *models.RatingStats)        {}
func (noopRatingCache) Invalidate(context.Context, string)                      {}
