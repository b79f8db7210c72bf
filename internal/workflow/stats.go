package workflow

import (
	"context"
	"fmt"
	"math"

	"github.com/lollopanta/simpleReviewBot/internal/product"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// RecentReviewsLimit caps the reviews listed in a user's stats
const RecentReviewsLimit = 5

// UserStats summarizes the qualifying reviews written by one user
type UserStats struct {
	UserID        string
	ReviewCount   int
	AverageRating float64
	Recent        []*storage.Review
}

// GuildOverview summarizes a guild's review activity
type GuildOverview struct {
	ReviewsByStatus  map[storage.ReviewStatus]int
	TotalReviews     int
	AverageRating    float64
	ActiveProducts   int
	RequestsByStatus map[storage.RequestStatus]int
	// ApprovalRate is approved / (approved + denied) in percent, 0 when
	// nothing has been processed
	ApprovalRate float64
}

// UserStats returns a user's review count, average and latest reviews
func (s *Service) UserStats(ctx context.Context, guildID, userID string) (*UserStats, error) {
	rs, err := s.repo.UserRatingStats(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user reviews: %w", err)
	}

	recent, err := s.repo.ListUserReviews(ctx, guildID, userID, RecentReviewsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user reviews: %w", err)
	}

	return &UserStats{
		UserID:        userID,
		ReviewCount:   rs.Count,
		AverageRating: product.Average(rs),
		Recent:        recent,
	}, nil
}

// ProductReviews returns an active product's latest qualifying reviews
func (s *Service) ProductReviews(ctx context.Context, guildID, productID string, limit int) (*storage.Product, []*storage.Review, error) {
	p, err := s.products.Get(ctx, guildID, productID)
	if err != nil {
		return nil, nil, err
	}
	reviews, err := s.repo.ListProductReviews(ctx, guildID, productID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list product reviews: %w", err)
	}
	return p, reviews, nil
}

// GuildOverview gathers review, product and request counts for a guild
func (s *Service) GuildOverview(ctx context.Context, guildID string) (*GuildOverview, error) {
	counts, err := s.repo.CountReviewsByStatus(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	o := &GuildOverview{ReviewsByStatus: make(map[storage.ReviewStatus]int)}
	for _, c := range counts {
		o.ReviewsByStatus[c.Status] = c.Count
		o.TotalReviews += c.Count
		if c.Status == storage.ReviewApproved {
			o.AverageRating = roundTenth(c.AvgRating)
		}
	}

	o.ActiveProducts, err = s.repo.CountActiveProducts(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	o.RequestsByStatus, err = s.repo.CountRequestsByStatus(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	approved := o.RequestsByStatus[storage.RequestApproved]
	if processed := approved + o.RequestsByStatus[storage.RequestDenied]; processed > 0 {
		o.ApprovalRate = roundTenth(float64(approved) / float64(processed) * 100)
	}
	return o, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
