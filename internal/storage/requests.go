package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
)

// Review request operations

const requestColumns = `id, guild_id, user_id, requester_username, request_message_id, request_channel_id,
	product_id, status, staff_member_id, staff_note, denial_reason, review_id, created_at, processed_at`

func scanRequest(row rowScanner) (*ReviewRequest, error) {
	req := &ReviewRequest{}
	var created int64
	var processed sql.NullInt64
	err := row.Scan(&req.ID, &req.GuildID, &req.UserID, &req.RequesterUsername, &req.RequestMessageID,
		&req.RequestChannelID, &req.ProductID, &req.Status, &req.StaffMemberID, &req.StaffNote,
		&req.DenialReason, &req.ReviewID, &created, &processed)
	if err != nil {
		return nil, err
	}
	req.CreatedAt = fromMillis(created)
	req.ProcessedAt = timePtr(processed)
	return req, nil
}

func (r *Repository) queryRequest(ctx context.Context, query string, args ...any) (*ReviewRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return req, err
}

// CreateReviewRequest inserts a pending request. The partial unique index on
// (guild_id, user_id) for pending rows turns a second pending request into
// apperr.ErrDuplicatePendingRequest. A caller-assigned ID is kept.
func (r *Repository) CreateReviewRequest(ctx context.Context, req *ReviewRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = RequestPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO review_requests (id, guild_id, user_id, requester_username, request_message_id,
		 request_channel_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.GuildID, req.UserID, req.RequesterUsername, req.RequestMessageID,
		req.RequestChannelID, string(req.Status), toMillis(req.CreatedAt),
	)
	if IsUniqueViolation(err) {
		return apperr.ErrDuplicatePendingRequest
	}
	return err
}

// GetReviewRequest finds a request by ID within a guild
func (r *Repository) GetReviewRequest(ctx context.Context, guildID, requestID string) (*ReviewRequest, error) {
	return r.queryRequest(ctx,
		`SELECT `+requestColumns+` FROM review_requests WHERE id = ? AND guild_id = ?`,
		requestID, guildID,
	)
}

// GetReviewRequestByMessage finds a request by its staff notification message
func (r *Repository) GetReviewRequestByMessage(ctx context.Context, guildID, messageID string) (*ReviewRequest, error) {
	return r.queryRequest(ctx,
		`SELECT `+requestColumns+` FROM review_requests WHERE guild_id = ? AND request_message_id = ?`,
		guildID, messageID,
	)
}

// HasPendingRequest reports whether the user has a pending request in the guild
func (r *Repository) HasPendingRequest(ctx context.Context, guildID, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_requests WHERE guild_id = ? AND user_id = ? AND status = 'pending'`,
		guildID, userID,
	).Scan(&n)
	return n > 0, err
}

// LatestUnusedApprovedRequest returns the most recently approved request that
// has not yet been used for a submission
func (r *Repository) LatestUnusedApprovedRequest(ctx context.Context, guildID, userID string) (*ReviewRequest, error) {
	return r.queryRequest(ctx,
		`SELECT `+requestColumns+` FROM review_requests
		 WHERE guild_id = ? AND user_id = ? AND status = 'approved' AND review_id = ''
		 ORDER BY processed_at DESC LIMIT 1`,
		guildID, userID,
	)
}

// ApproveReviewRequest moves a pending request to approved. It returns false
// when the request was no longer pending.
func (r *Repository) ApproveReviewRequest(ctx context.Context, requestID, staffID, productID, note string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE review_requests SET status = 'approved', staff_member_id = ?, product_id = ?, staff_note = ?, processed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		staffID, productID, note, toMillis(at), requestID,
	)
	return affectedOne(res, err)
}

// DenyReviewRequest moves a pending request to denied. It returns false when
// the request was no longer pending.
func (r *Repository) DenyReviewRequest(ctx context.Context, requestID, staffID, reason string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE review_requests SET status = 'denied', staff_member_id = ?, denial_reason = ?, processed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		staffID, reason, toMillis(at), requestID,
	)
	return affectedOne(res, err)
}

// MarkRequestUsed claims an approved request for the review about to be
// submitted with it. It returns false when the request had already been used.
func (r *Repository) MarkRequestUsed(ctx context.Context, requestID, reviewID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE review_requests SET review_id = ? WHERE id = ? AND status = 'approved' AND review_id = ''`,
		reviewID, requestID,
	)
	return affectedOne(res, err)
}

// ReleaseRequestUse undoes MarkRequestUsed when the review it was claimed
// for could not be saved
func (r *Repository) ReleaseRequestUse(ctx context.Context, requestID, reviewID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE review_requests SET review_id = '' WHERE id = ? AND review_id = ?`,
		requestID, reviewID,
	)
	return err
}

// CountRequestsByStatus groups a guild's requests by status
func (r *Repository) CountRequestsByStatus(ctx context.Context, guildID string) (map[RequestStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM review_requests WHERE guild_id = ? GROUP BY status`, guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[RequestStatus]int)
	for rows.Next() {
		var status RequestStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
