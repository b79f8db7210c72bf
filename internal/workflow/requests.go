package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/lollopanta/simpleReviewBot/internal/audit"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// CreateRequest opens a pending review request for the user and notifies staff
func (s *Service) CreateRequest(ctx context.Context, guildID string, user access.Actor) (*storage.ReviewRequest, error) {
	unlock := s.requestLocks.Lock(guildID + ":" + user.ID)
	defer unlock()

	gs, err := s.settings.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	pending, err := s.repo.HasPendingRequest(ctx, guildID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending requests: %w", err)
	}
	if pending {
		return nil, apperr.ErrDuplicatePendingRequest
	}

	cd, err := s.cooldowns.CanRequest(ctx, user.ID, guildID)
	if err != nil {
		return nil, err
	}
	if !cd.Allowed {
		return nil, fmt.Errorf("%w: you can request another review in %s", apperr.ErrCooldownActive, cd.Formatted)
	}

	if limit := gs.Review.MaxReviewsPerUser; limit != nil {
		stats, err := s.repo.UserRatingStats(ctx, guildID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count user reviews: %w", err)
		}
		if stats.Count >= *limit {
			return nil, fmt.Errorf("%w: limit is %d", apperr.ErrMaxReviewsReached, *limit)
		}
	}

	channelID := gs.Channels.StaffReviewChannel
	if channelID == "" {
		return nil, fmt.Errorf("%w: staff review channel", apperr.ErrChannelNotConfigured)
	}

	req := &storage.ReviewRequest{
		ID:                uuid.NewString(),
		GuildID:           guildID,
		UserID:            user.ID,
		RequesterUsername: user.Username,
		RequestChannelID:  channelID,
		CreatedAt:         s.now().UTC(),
	}

	messageID, err := s.notifier.PostRequest(ctx, channelID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to notify staff: %w", err)
	}
	req.RequestMessageID = messageID

	if err := s.repo.CreateReviewRequest(ctx, req); err != nil {
		if rerr := s.notifier.RetractRequest(ctx, channelID, messageID); rerr != nil {
			slog.Warn("Failed to retract staff notification", "guild", guildID, "message", messageID, "error", rerr)
		}
		if errors.Is(err, apperr.ErrDuplicatePendingRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save review request: %w", err)
	}

	if err := s.cooldowns.RecordRequest(ctx, user.ID, guildID); err != nil {
		slog.Error("Failed to record request cooldown", "guild", guildID, "user", user.ID, "error", err)
	}

	slog.Info("Review request created", "guild", guildID, "user", user.ID, "request", req.ID)
	return req, nil
}

// ResolveRequest finds the request a staff control refers to. The request ID
// carried by the control wins; otherwise the staff notification message is used.
func (s *Service) ResolveRequest(ctx context.Context, guildID, requestID, messageID string) (*storage.ReviewRequest, error) {
	if requestID != "" {
		return s.repo.GetReviewRequest(ctx, guildID, requestID)
	}
	if messageID != "" {
		return s.repo.GetReviewRequestByMessage(ctx, guildID, messageID)
	}
	return nil, apperr.ErrNotFound
}

// BeginApproval checks that the request can still be approved and returns
// the guild's active products to choose from
func (s *Service) BeginApproval(ctx context.Context, guildID, requestID string, staff access.Actor) (*storage.ReviewRequest, []*storage.Product, error) {
	if _, err := s.staffSettings(ctx, guildID, staff); err != nil {
		return nil, nil, err
	}

	req, err := s.pendingRequest(ctx, guildID, requestID)
	if err != nil {
		return nil, nil, err
	}

	products, err := s.products.List(ctx, guildID, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list products: %w", err)
	}
	if len(products) == 0 {
		return nil, nil, apperr.ErrNoProductsAvailable
	}
	return req, products, nil
}

// SelectProduct binds a product to the approval in progress. The request
// stays pending; the returned token carries the choice to FinalizeApproval.
func (s *Service) SelectProduct(ctx context.Context, guildID, requestID string, staff access.Actor, productID string) (string, *storage.Product, error) {
	if _, err := s.staffSettings(ctx, guildID, staff); err != nil {
		return "", nil, err
	}

	if _, err := s.pendingRequest(ctx, guildID, requestID); err != nil {
		return "", nil, err
	}

	p, err := s.products.Get(ctx, guildID, productID)
	if err != nil {
		return "", nil, err
	}
	return s.tokens.Sign(requestID, p.ID), p, nil
}

// FinalizeWithToken completes an approval started by SelectProduct
func (s *Service) FinalizeWithToken(ctx context.Context, guildID, token string, staff access.Actor, note string) (*storage.ReviewRequest, error) {
	requestID, productID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return s.FinalizeApproval(ctx, guildID, requestID, staff, productID, note)
}

// FinalizeApproval moves a pending request to approved
func (s *Service) FinalizeApproval(ctx context.Context, guildID, requestID string, staff access.Actor, productID, note string) (*storage.ReviewRequest, error) {
	gs, err := s.staffSettings(ctx, guildID, staff)
	if err != nil {
		return nil, err
	}

	req, err := s.pendingRequest(ctx, guildID, requestID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.Get(ctx, guildID, productID)
	if err != nil {
		return nil, err
	}

	note = strings.TrimSpace(note)
	at := s.now().UTC()
	ok, err := s.repo.ApproveReviewRequest(ctx, req.ID, staff.ID, p.ID, note, at)
	if err != nil {
		return nil, fmt.Errorf("failed to approve request: %w", err)
	}
	if !ok {
		return nil, apperr.ErrAlreadyProcessed
	}

	req.Status = storage.RequestApproved
	req.StaffMemberID = staff.ID
	req.ProductID = p.ID
	req.StaffNote = note
	req.ProcessedAt = &at
	processing := at.Sub(req.CreatedAt)

	if err := s.notifier.MarkRequestApproved(ctx, req, p, staff); err != nil {
		slog.Warn("Failed to update staff notification", "guild", guildID, "request", req.ID, "error", err)
	}
	if err := s.notifier.InviteSubmission(ctx, req, p); err != nil {
		slog.Warn("Failed to invite requester", "guild", guildID, "user", req.UserID, "error", err)
	}

	metadata := map[string]any{
		"userId":      req.UserID,
		"productId":   p.ID,
		"productName": p.Name,
	}
	if note != "" {
		metadata["staffNote"] = note
	}
	s.recordAction(ctx, gs, &storage.StaffAction{
		GuildID:             guildID,
		StaffMemberID:       staff.ID,
		StaffMemberUsername: staff.Username,
		ActionType:          storage.ActionApprove,
		TargetType:          storage.TargetReviewRequest,
		TargetID:            req.ID,
		Metadata:            metadata,
		ProcessingTime:      &processing,
	}, fmt.Sprintf("Approved review request from %s for %s (took %s)",
		req.RequesterUsername, p.Name, audit.FormatDuration(processing)))

	slog.Info("Review request approved", "guild", guildID, "request", req.ID, "staff", staff.ID, "product", p.ID)
	return req, nil
}

// Deny moves a pending request to denied and tells the requester why
func (s *Service) Deny(ctx context.Context, guildID, requestID string, staff access.Actor, reason string) (*storage.ReviewRequest, error) {
	gs, err := s.staffSettings(ctx, guildID, staff)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.ErrMissingReason
	}

	req, err := s.pendingRequest(ctx, guildID, requestID)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	ok, err := s.repo.DenyReviewRequest(ctx, req.ID, staff.ID, reason, at)
	if err != nil {
		return nil, fmt.Errorf("failed to deny request: %w", err)
	}
	if !ok {
		return nil, apperr.ErrAlreadyProcessed
	}

	req.Status = storage.RequestDenied
	req.StaffMemberID = staff.ID
	req.DenialReason = reason
	req.ProcessedAt = &at
	processing := at.Sub(req.CreatedAt)

	if err := s.notifier.MarkRequestDenied(ctx, req, staff); err != nil {
		slog.Warn("Failed to update staff notification", "guild", guildID, "request", req.ID, "error", err)
	}
	if err := s.notifier.NotifyDenial(ctx, req, staff); err != nil {
		slog.Warn("Failed to notify requester of denial", "guild", guildID, "user", req.UserID, "error", err)
	}

	s.recordAction(ctx, gs, &storage.StaffAction{
		GuildID:             guildID,
		StaffMemberID:       staff.ID,
		StaffMemberUsername: staff.Username,
		ActionType:          storage.ActionDeny,
		TargetType:          storage.TargetReviewRequest,
		TargetID:            req.ID,
		Metadata:            map[string]any{"userId": req.UserID, "denialReason": reason},
		ProcessingTime:      &processing,
	}, fmt.Sprintf("Denied review request from %s (%s). Reason: %s", req.RequesterUsername, req.UserID, reason))

	slog.Info("Review request denied", "guild", guildID, "request", req.ID, "staff", staff.ID)
	return req, nil
}

func (s *Service) pendingRequest(ctx context.Context, guildID, requestID string) (*storage.ReviewRequest, error) {
	req, err := s.repo.GetReviewRequest(ctx, guildID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != storage.RequestPending {
		return nil, apperr.ErrAlreadyProcessed
	}
	return req, nil
}
