package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
)

// Review operations

const reviewColumns = `id, guild_id, product_id, user_id, reviewer_username, review_text, rating, submitted_at,
	staff_approver_id, status, message_id, channel_id, anonymous, last_edited_by, last_edited_at, deleted_at,
	created_at, updated_at`

// qualifyingReview restricts a query to reviews that count toward aggregates.
const qualifyingReview = `status = 'approved' AND deleted_at IS NULL`

func scanReview(row rowScanner) (*Review, error) {
	rv := &Review{}
	var submitted, created, updated int64
	var anonymous int
	var editedAt, deletedAt sql.NullInt64
	err := row.Scan(&rv.ID, &rv.GuildID, &rv.ProductID, &rv.UserID, &rv.ReviewerUsername, &rv.Text, &rv.Rating,
		&submitted, &rv.StaffApproverID, &rv.Status, &rv.MessageID, &rv.ChannelID, &anonymous, &rv.LastEditedBy,
		&editedAt, &deletedAt, &created, &updated)
	if err != nil {
		return nil, err
	}
	rv.SubmittedAt = fromMillis(submitted)
	rv.Anonymous = anonymous == 1
	rv.LastEditedAt = timePtr(editedAt)
	rv.DeletedAt = timePtr(deletedAt)
	rv.CreatedAt = fromMillis(created)
	rv.UpdatedAt = fromMillis(updated)
	return rv, nil
}

// CreateReview inserts a review
func (r *Repository) CreateReview(ctx context.Context, rv *Review) error {
	now := time.Now().UTC()
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	if rv.SubmittedAt.IsZero() {
		rv.SubmittedAt = now
	}
	if rv.Status == "" {
		rv.Status = ReviewApproved
	}
	rv.CreatedAt = now
	rv.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (id, guild_id, product_id, user_id, reviewer_username, review_text, rating, submitted_at,
		 staff_approver_id, status, anonymous, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rv.ID, rv.GuildID, rv.ProductID, rv.UserID, rv.ReviewerUsername, rv.Text, rv.Rating, toMillis(rv.SubmittedAt),
		rv.StaffApproverID, string(rv.Status), boolToInt(rv.Anonymous), toMillis(now), toMillis(now),
	)
	return err
}

// GetReview finds a review by ID within a guild, including soft-deleted ones
func (r *Repository) GetReview(ctx context.Context, guildID, reviewID string) (*Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = ? AND guild_id = ?`,
		reviewID, guildID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return rv, err
}

// SetReviewMessage records where the public post of a review lives
func (r *Repository) SetReviewMessage(ctx context.Context, reviewID, channelID, messageID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reviews SET channel_id = ?, message_id = ?, updated_at = ? WHERE id = ?`,
		channelID, messageID, toMillis(time.Now()), reviewID,
	)
	return err
}

// UpdateReviewContent replaces text and rating of a live review. It returns
// false when the review has been deleted meanwhile.
func (r *Repository) UpdateReviewContent(ctx context.Context, reviewID, text string, rating int, editorID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reviews SET review_text = ?, rating = ?, last_edited_by = ?, last_edited_at = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL AND status != 'deleted'`,
		text, rating, editorID, toMillis(at), toMillis(at), reviewID,
	)
	return affectedOne(res, err)
}

// SoftDeleteReview marks a review deleted. It returns false when it already was.
func (r *Repository) SoftDeleteReview(ctx context.Context, reviewID, editorID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reviews SET status = 'deleted', deleted_at = ?, last_edited_by = ?, last_edited_at = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL AND status != 'deleted'`,
		toMillis(at), editorID, toMillis(at), toMillis(at), reviewID,
	)
	return affectedOne(res, err)
}

// ProductRatingStats aggregates the qualifying reviews of a product
func (r *Repository) ProductRatingStats(ctx context.Context, productID string) (RatingStats, error) {
	var s RatingStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(rating), 0) FROM reviews WHERE product_id = ? AND `+qualifyingReview,
		productID,
	).Scan(&s.Count, &s.Sum)
	return s, err
}

// UserRatingStats aggregates the qualifying reviews written by a user
func (r *Repository) UserRatingStats(ctx context.Context, guildID, userID string) (RatingStats, error) {
	var s RatingStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(rating), 0) FROM reviews WHERE guild_id = ? AND user_id = ? AND `+qualifyingReview,
		guildID, userID,
	).Scan(&s.Count, &s.Sum)
	return s, err
}

// ListUserReviews returns a user's most recent qualifying reviews
func (r *Repository) ListUserReviews(ctx context.Context, guildID, userID string, limit int) ([]*Review, error) {
	return r.listReviews(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE guild_id = ? AND user_id = ? AND `+qualifyingReview+`
		 ORDER BY submitted_at DESC LIMIT ?`,
		guildID, userID, limit,
	)
}

// ListProductReviews returns a product's most recent qualifying reviews
func (r *Repository) ListProductReviews(ctx context.Context, guildID, productID string, limit int) ([]*Review, error) {
	return r.listReviews(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE guild_id = ? AND product_id = ? AND `+qualifyingReview+`
		 ORDER BY submitted_at DESC LIMIT ?`,
		guildID, productID, limit,
	)
}

func (r *Repository) listReviews(ctx context.Context, query string, args ...any) ([]*Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

// ReviewStatusCount is one status group of a guild's non-deleted reviews
type ReviewStatusCount struct {
	Status    ReviewStatus
	Count     int
	AvgRating float64
}

// CountReviewsByStatus groups a guild's non-deleted reviews by status
func (r *Repository) CountReviewsByStatus(ctx context.Context, guildID string) ([]ReviewStatusCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*), COALESCE(AVG(rating), 0) FROM reviews
		 WHERE guild_id = ? AND deleted_at IS NULL GROUP BY status`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []ReviewStatusCount
	for rows.Next() {
		var c ReviewStatusCount
		if err := rows.Scan(&c.Status, &c.Count, &c.AvgRating); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
