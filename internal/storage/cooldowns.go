package storage

import (
	"context"
	"database/sql"
	"time"
)

// Cooldown operations

// GetUserCooldown returns the cooldown row for a user, creating it if absent
func (r *Repository) GetUserCooldown(ctx context.Context, guildID, userID string) (*UserCooldown, error) {
	now := toMillis(time.Now())
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO user_cooldowns (guild_id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(guild_id, user_id) DO NOTHING`,
		guildID, userID, now, now,
	); err != nil {
		return nil, err
	}

	c := &UserCooldown{}
	var lastRequest, lastSubmission sql.NullInt64
	var created, updated int64
	err := r.db.QueryRowContext(ctx,
		`SELECT guild_id, user_id, last_review_request, last_review_submission, created_at, updated_at
		 FROM user_cooldowns WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	).Scan(&c.GuildID, &c.UserID, &lastRequest, &lastSubmission, &created, &updated)
	if err != nil {
		return nil, err
	}
	c.LastReviewRequest = timePtr(lastRequest)
	c.LastReviewSubmission = timePtr(lastSubmission)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return c, nil
}

// SetLastReviewRequest stamps the user's last request time
func (r *Repository) SetLastReviewRequest(ctx context.Context, guildID, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_cooldowns (guild_id, user_id, last_review_request, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id, user_id) DO UPDATE SET last_review_request = excluded.last_review_request, updated_at = excluded.updated_at`,
		guildID, userID, toMillis(at), toMillis(at), toMillis(at),
	)
	return err
}

// SetLastReviewSubmission stamps the user's last submission time
func (r *Repository) SetLastReviewSubmission(ctx context.Context, guildID, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_cooldowns (guild_id, user_id, last_review_submission, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id, user_id) DO UPDATE SET last_review_submission = excluded.last_review_submission, updated_at = excluded.updated_at`,
		guildID, userID, toMillis(at), toMillis(at), toMillis(at),
	)
	return err
}
