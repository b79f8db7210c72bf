package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// SubmitInput is a user's review submission
type SubmitInput struct {
	GuildID  string
	UserID   string
	Username string
	// RequestID names the approved request being used. When empty the
	// user's most recent unused approval is taken.
	RequestID string
	Text      string
	Rating    int
	// Anonymous asks to hide the reviewer; honored only if the guild allows it.
	Anonymous bool
}

// Submit creates a review from an approved request and publishes it
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*storage.Review, error) {
	unlock := s.requestLocks.Lock(in.GuildID + ":" + in.UserID)
	defer unlock()

	req, err := s.approvedRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	if req.ProductID == "" {
		return nil, apperr.ErrMissingProduct
	}

	p, err := s.products.Get(ctx, in.GuildID, req.ProductID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrMissingProduct
	}
	if err != nil {
		return nil, err
	}

	cd, err := s.cooldowns.CanSubmit(ctx, in.UserID, in.GuildID)
	if err != nil {
		return nil, err
	}
	if !cd.Allowed {
		return nil, fmt.Errorf("%w: you can submit another review in %s", apperr.ErrCooldownActive, cd.Formatted)
	}

	gs, err := s.settings.Get(ctx, in.GuildID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(in.Text)
	if err := validateReview(gs.Review, text, in.Rating); err != nil {
		return nil, err
	}

	channelID := gs.Channels.ReviewsChannel
	if channelID == "" {
		return nil, fmt.Errorf("%w: reviews channel", apperr.ErrChannelNotConfigured)
	}

	rv := &storage.Review{
		ID:               uuid.NewString(),
		GuildID:          in.GuildID,
		ProductID:        p.ID,
		UserID:           in.UserID,
		ReviewerUsername: in.Username,
		Text:             text,
		Rating:           in.Rating,
		SubmittedAt:      s.now().UTC(),
		StaffApproverID:  req.StaffMemberID,
		Status:           storage.ReviewApproved,
		Anonymous:        in.Anonymous && gs.Features.AllowAnonymous,
	}

	// The conditional claim makes the approval single-use across processes
	claimed, err := s.repo.MarkRequestUsed(ctx, req.ID, rv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim approval: %w", err)
	}
	if !claimed {
		return nil, apperr.ErrNoApprovedRequest
	}

	if err := s.repo.CreateReview(ctx, rv); err != nil {
		if rerr := s.repo.ReleaseRequestUse(ctx, req.ID, rv.ID); rerr != nil {
			slog.Error("Failed to release approval", "guild", in.GuildID, "request", req.ID, "error", rerr)
		}
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	agg, err := s.products.RecomputeAggregates(ctx, p.ID)
	if err != nil {
		slog.Error("Failed to recompute product aggregates", "product", p.ID, "error", err)
	} else {
		p.ReviewCount, p.AverageRating, p.TotalRatingSum = agg.ReviewCount, agg.AverageRating, agg.TotalRatingSum
	}

	messageID, err := s.notifier.PostReview(ctx, channelID, rv, p)
	if err != nil {
		slog.Warn("Failed to post review", "guild", in.GuildID, "review", rv.ID, "error", err)
	} else {
		rv.ChannelID, rv.MessageID = channelID, messageID
		if err := s.repo.SetReviewMessage(ctx, rv.ID, channelID, messageID); err != nil {
			slog.Error("Failed to store review message", "review", rv.ID, "error", err)
		}
	}

	if err := s.cooldowns.RecordSubmission(ctx, in.UserID, in.GuildID); err != nil {
		slog.Error("Failed to record submission cooldown", "guild", in.GuildID, "user", in.UserID, "error", err)
	}

	slog.Info("Review submitted", "guild", in.GuildID, "user", in.UserID, "review", rv.ID, "product", p.ID, "rating", rv.Rating)
	return rv, nil
}

func (s *Service) approvedRequest(ctx context.Context, in SubmitInput) (*storage.ReviewRequest, error) {
	if in.RequestID == "" {
		req, err := s.repo.LatestUnusedApprovedRequest(ctx, in.GuildID, in.UserID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrNoApprovedRequest
		}
		return req, err
	}

	req, err := s.repo.GetReviewRequest(ctx, in.GuildID, in.RequestID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrNoApprovedRequest
	}
	if err != nil {
		return nil, err
	}
	if req.UserID != in.UserID || req.Status != storage.RequestApproved || req.ReviewID != "" {
		return nil, apperr.ErrNoApprovedRequest
	}
	return req, nil
}

// EditableReview returns a live review for staff to edit. Deleted reviews
// are reported as not found, the same as EditReview does.
func (s *Service) EditableReview(ctx context.Context, guildID, reviewID string, staff access.Actor) (*storage.Review, error) {
	_, rv, err := s.editableReview(ctx, guildID, reviewID, staff)
	return rv, err
}

func (s *Service) editableReview(ctx context.Context, guildID, reviewID string, staff access.Actor) (*storage.GuildSettings, *storage.Review, error) {
	gs, err := s.staffSettings(ctx, guildID, staff)
	if err != nil {
		return nil, nil, err
	}
	rv, err := s.repo.GetReview(ctx, guildID, reviewID)
	if err != nil {
		return nil, nil, err
	}
	if rv.IsDeleted() {
		return nil, nil, apperr.ErrNotFound
	}
	return gs, rv, nil
}

// EditReview replaces the text and rating of a live review. An empty text
// keeps the current one.
func (s *Service) EditReview(ctx context.Context, guildID, reviewID string, staff access.Actor, text string, rating int) (*storage.Review, error) {
	gs, rv, err := s.editableReview(ctx, guildID, reviewID, staff)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = rv.Text
	}
	if err := validateReview(gs.Review, text, rating); err != nil {
		return nil, err
	}

	oldRating := rv.Rating
	at := s.now().UTC()
	ok, err := s.repo.UpdateReviewContent(ctx, rv.ID, text, rating, staff.ID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	if !ok {
		return nil, apperr.ErrNotFound
	}
	rv.Text, rv.Rating, rv.LastEditedBy, rv.LastEditedAt = text, rating, staff.ID, &at

	p := s.refreshProduct(ctx, guildID, rv.ProductID)
	if rv.MessageID != "" && p != nil {
		if err := s.notifier.UpdateReviewPost(ctx, rv, p); err != nil {
			slog.Warn("Failed to update review post", "guild", guildID, "review", rv.ID, "error", err)
		}
	}

	s.recordAction(ctx, gs, &storage.StaffAction{
		GuildID:             guildID,
		StaffMemberID:       staff.ID,
		StaffMemberUsername: staff.Username,
		ActionType:          storage.ActionEdit,
		TargetType:          storage.TargetReview,
		TargetID:            rv.ID,
		Metadata:            map[string]any{"oldRating": oldRating, "newRating": rating},
	}, fmt.Sprintf("Edited review %s (rating %d -> %d)", rv.ID, oldRating, rating))

	return rv, nil
}

// DeleteReview soft-deletes a review and removes its public post
func (s *Service) DeleteReview(ctx context.Context, guildID, reviewID string, staff access.Actor) (*storage.Review, error) {
	gs, err := s.staffSettings(ctx, guildID, staff)
	if err != nil {
		return nil, err
	}

	rv, err := s.repo.GetReview(ctx, guildID, reviewID)
	if err != nil {
		return nil, err
	}
	if rv.IsDeleted() {
		return nil, apperr.ErrAlreadyDeleted
	}

	if rv.MessageID != "" {
		if err := s.notifier.DeleteReviewPost(ctx, rv); err != nil {
			slog.Warn("Failed to delete review post", "guild", guildID, "review", rv.ID, "error", err)
		}
	}

	at := s.now().UTC()
	ok, err := s.repo.SoftDeleteReview(ctx, rv.ID, staff.ID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to delete review: %w", err)
	}
	if !ok {
		return nil, apperr.ErrAlreadyDeleted
	}
	rv.Status, rv.DeletedAt, rv.LastEditedBy, rv.LastEditedAt = storage.ReviewDeleted, &at, staff.ID, &at

	s.refreshProduct(ctx, guildID, rv.ProductID)

	s.recordAction(ctx, gs, &storage.StaffAction{
		GuildID:             guildID,
		StaffMemberID:       staff.ID,
		StaffMemberUsername: staff.Username,
		ActionType:          storage.ActionDelete,
		TargetType:          storage.TargetReview,
		TargetID:            rv.ID,
		Metadata:            map[string]any{"userId": rv.UserID, "productId": rv.ProductID, "rating": rv.Rating},
	}, fmt.Sprintf("Deleted review %s by %s", rv.ID, rv.ReviewerUsername))

	return rv, nil
}

// refreshProduct recomputes a product's aggregates after a review mutation
// and returns the product, or nil when it cannot be loaded.
func (s *Service) refreshProduct(ctx context.Context, guildID, productID string) *storage.Product {
	agg, aggErr := s.products.RecomputeAggregates(ctx, productID)
	if aggErr != nil {
		slog.Error("Failed to recompute product aggregates", "product", productID, "error", aggErr)
	}

	p, err := s.products.Lookup(ctx, guildID, productID)
	if err != nil {
		slog.Warn("Failed to load product", "product", productID, "error", err)
		return nil
	}
	if aggErr == nil {
		p.ReviewCount, p.AverageRating, p.TotalRatingSum = agg.ReviewCount, agg.AverageRating, agg.TotalRatingSum
	}
	return p
}

func validateReview(rules storage.ReviewSettings, text string, rating int) error {
	if rating < rules.MinRating || rating > rules.MaxRating {
		return fmt.Errorf("%w: must be between %d and %d", apperr.ErrInvalidRating, rules.MinRating, rules.MaxRating)
	}
	if n := utf8.RuneCountInString(text); n < rules.MinTextLength || n > rules.MaxTextLength {
		return fmt.Errorf("%w: must be %d-%d characters", apperr.ErrInvalidTextLength, rules.MinTextLength, rules.MaxTextLength)
	}
	return nil
}
