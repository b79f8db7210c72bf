// Package cooldown gates how often a user may request or submit reviews.
package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/settings"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// Result is the outcome of a cooldown check
type Result struct {
	Allowed   bool
	Remaining time.Duration
	// Formatted is Remaining for display, e.g. "23h 0m"
	Formatted string
}

// Tracker compares per-user timestamps against the guild's configured durations
type Tracker struct {
	repo     *storage.Repository
	settings *settings.Store
	now      func() time.Time
}

// NewTracker creates a cooldown tracker
func NewTracker(repo *storage.Repository, settingsStore *settings.Store) *Tracker {
	return &Tracker{repo: repo, settings: settingsStore, now: time.Now}
}

// WithClock replaces the time source, for tests
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// CanRequest checks the review request cooldown
func (t *Tracker) CanRequest(ctx context.Context, userID, guildID string) (Result, error) {
	gs, err := t.settings.Get(ctx, guildID)
	if err != nil {
		return Result{}, err
	}
	if !gs.Features.EnableCooldowns {
		return Result{Allowed: true}, nil
	}

	c, err := t.repo.GetUserCooldown(ctx, guildID, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load cooldown: %w", err)
	}
	return t.check(c.LastReviewRequest, gs.Cooldowns.RequestDuration()), nil
}

// CanSubmit checks the review submission cooldown
func (t *Tracker) CanSubmit(ctx context.Context, userID, guildID string) (Result, error) {
	gs, err := t.settings.Get(ctx, guildID)
	if err != nil {
		return Result{}, err
	}
	if !gs.Features.EnableCooldowns {
		return Result{Allowed: true}, nil
	}

	c, err := t.repo.GetUserCooldown(ctx, guildID, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load cooldown: %w", err)
	}
	return t.check(c.LastReviewSubmission, gs.Cooldowns.SubmissionDuration()), nil
}

// RecordRequest stamps the current time as the user's last request.
// It does nothing while cooldowns are disabled.
func (t *Tracker) RecordRequest(ctx context.Context, userID, guildID string) error {
	gs, err := t.settings.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if !gs.Features.EnableCooldowns {
		return nil
	}
	return t.repo.SetLastReviewRequest(ctx, guildID, userID, t.now())
}

// RecordSubmission stamps the current time as the user's last submission.
// It does nothing while cooldowns are disabled.
func (t *Tracker) RecordSubmission(ctx context.Context, userID, guildID string) error {
	gs, err := t.settings.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if !gs.Features.EnableCooldowns {
		return nil
	}
	return t.repo.SetLastReviewSubmission(ctx, guildID, userID, t.now())
}

func (t *Tracker) check(last *time.Time, duration time.Duration) Result {
	if last == nil {
		return Result{Allowed: true}
	}
	remaining := duration - t.now().Sub(*last)
	if remaining <= 0 {
		return Result{Allowed: true}
	}
	return Result{Allowed: false, Remaining: remaining, Formatted: Format(remaining)}
}

// Format renders a duration as "Xh Ym", or "Ym" below one hour
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
