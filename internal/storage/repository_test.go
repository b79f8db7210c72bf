package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_GuildSettingsInsertIfAbsent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.GetGuildSettings(ctx, "g1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	first := &GuildSettings{GuildID: "g1", Channels: ChannelSettings{LogsChannel: "logs"}}
	require.NoError(t, repo.InsertGuildSettingsIfAbsent(ctx, first))

	second := &GuildSettings{GuildID: "g1", Channels: ChannelSettings{LogsChannel: "other"}}
	require.NoError(t, repo.InsertGuildSettingsIfAbsent(ctx, second))

	got, err := repo.GetGuildSettings(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GuildID)
	assert.Equal(t, "logs", got.Channels.LogsChannel)

	require.NoError(t, repo.UpsertGuildSettings(ctx, second))
	got, err = repo.GetGuildSettings(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "other", got.Channels.LogsChannel)
}

func TestRepository_OnePendingRequestPerUser(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := &ReviewRequest{GuildID: "g1", UserID: "u1", RequesterUsername: "user", RequestMessageID: "m1", RequestChannelID: "c1"}
	require.NoError(t, repo.CreateReviewRequest(ctx, first))

	second := &ReviewRequest{GuildID: "g1", UserID: "u1", RequesterUsername: "user", RequestMessageID: "m2", RequestChannelID: "c1"}
	assert.ErrorIs(t, repo.CreateReviewRequest(ctx, second), apperr.ErrDuplicatePendingRequest)

	// Another guild is independent
	other := &ReviewRequest{GuildID: "g2", UserID: "u1", RequesterUsername: "user", RequestMessageID: "m3", RequestChannelID: "c2"}
	require.NoError(t, repo.CreateReviewRequest(ctx, other))

	// Once resolved, a new pending request is allowed
	ok, err := repo.DenyReviewRequest(ctx, first.ID, "staff", "no", time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.CreateReviewRequest(ctx, second))
}

func TestRepository_ApproveOnlyFromPending(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	req := &ReviewRequest{GuildID: "g1", UserID: "u1", RequesterUsername: "user", RequestMessageID: "m1", RequestChannelID: "c1"}
	require.NoError(t, repo.CreateReviewRequest(ctx, req))

	ok, err := repo.ApproveReviewRequest(ctx, req.ID, "staff", "p1", "vip", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ApproveReviewRequest(ctx, req.ID, "staff", "p1", "vip", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DenyReviewRequest(ctx, req.ID, "staff", "late", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetReviewRequest(ctx, "g1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestApproved, got.Status)
	assert.Equal(t, "p1", got.ProductID)
	assert.Equal(t, "vip", got.StaffNote)
	require.NotNil(t, got.ProcessedAt)

	byMessage, err := repo.GetReviewRequestByMessage(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, req.ID, byMessage.ID)
}

func TestRepository_RequestUsedOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	req := &ReviewRequest{GuildID: "g1", UserID: "u1", RequesterUsername: "user", RequestMessageID: "m1", RequestChannelID: "c1"}
	require.NoError(t, repo.CreateReviewRequest(ctx, req))

	// Pending requests cannot be claimed
	ok, err := repo.MarkRequestUsed(ctx, req.ID, "rv1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ApproveReviewRequest(ctx, req.ID, "staff", "p1", "", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkRequestUsed(ctx, req.ID, "rv1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkRequestUsed(ctx, req.ID, "rv2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.LatestUnusedApprovedRequest(ctx, "g1", "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Releasing with the wrong review ID is a no-op
	require.NoError(t, repo.ReleaseRequestUse(ctx, req.ID, "rv2"))
	got, err := repo.GetReviewRequest(ctx, "g1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, "rv1", got.ReviewID)

	require.NoError(t, repo.ReleaseRequestUse(ctx, req.ID, "rv1"))
	ok, err = repo.MarkRequestUsed(ctx, req.ID, "rv2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_ProductNameUniqueAmongActive(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	widget := &Product{GuildID: "g1", Name: "Widget", Price: 9.99, CreatedBy: "staff"}
	require.NoError(t, repo.CreateProduct(ctx, widget))

	dup := &Product{GuildID: "g1", Name: "Widget", Price: 1, CreatedBy: "staff"}
	assert.ErrorIs(t, repo.CreateProduct(ctx, dup), apperr.ErrDuplicateName)

	widget.Active = false
	require.NoError(t, repo.UpdateProduct(ctx, widget))

	require.NoError(t, repo.CreateProduct(ctx, dup))

	active, err := repo.ListProducts(ctx, "g1", false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := repo.ListProducts(ctx, "g1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRepository_RatingStatsExcludeDeleted(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, rating := range []int{5, 4, 1} {
		require.NoError(t, repo.CreateReview(ctx, &Review{
			GuildID: "g1", ProductID: "p1", UserID: "u1", ReviewerUsername: "user",
			Text: "some review text", Rating: rating, StaffApproverID: "staff",
		}))
	}
	reviews, err := repo.ListProductReviews(ctx, "g1", "p1", 10)
	require.NoError(t, err)
	require.Len(t, reviews, 3)

	var low *Review
	for _, rv := range reviews {
		if rv.Rating == 1 {
			low = rv
		}
	}
	require.NotNil(t, low)

	ok, err := repo.SoftDeleteReview(ctx, low.ID, "staff", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SoftDeleteReview(ctx, low.ID, "staff", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := repo.ProductRatingStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, RatingStats{Count: 2, Sum: 9}, stats)

	userStats, err := repo.UserRatingStats(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, userStats.Count)
}

func TestRepository_CountStaffActions(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	minute := time.Minute
	threeMinutes := 3 * time.Minute
	require.NoError(t, repo.InsertStaffAction(ctx, &StaffAction{GuildID: "g1", StaffMemberID: "s1", StaffMemberUsername: "alice", ActionType: ActionApprove, ProcessingTime: &minute}))
	require.NoError(t, repo.InsertStaffAction(ctx, &StaffAction{GuildID: "g1", StaffMemberID: "s1", StaffMemberUsername: "alice", ActionType: ActionApprove, ProcessingTime: &threeMinutes}))
	require.NoError(t, repo.InsertStaffAction(ctx, &StaffAction{GuildID: "g1", StaffMemberID: "s2", StaffMemberUsername: "bob", ActionType: ActionDelete}))
	require.NoError(t, repo.InsertStaffAction(ctx, &StaffAction{GuildID: "g1", StaffMemberID: "s1", StaffMemberUsername: "alice", ActionType: ActionEdit, CreatedAt: time.Now().AddDate(0, 0, -40)}))

	counts, err := repo.CountStaffActions(ctx, "g1", "s1", time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, ActionApprove, counts[0].ActionType)
	assert.Equal(t, 2, counts[0].Count)
	require.NotNil(t, counts[0].AvgProcessingMs)
	assert.InDelta(t, float64(2*time.Minute/time.Millisecond), *counts[0].AvgProcessingMs, 0.5)

	all, err := repo.CountStaffActions(ctx, "g1", "", time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	actions, err := repo.ListStaffActions(ctx, "g1", "", 10)
	require.NoError(t, err)
	assert.Len(t, actions, 4)
}

func TestRepository_CooldownLazyCreate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	c, err := repo.GetUserCooldown(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, c.LastReviewRequest)
	assert.Nil(t, c.LastReviewSubmission)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.SetLastReviewRequest(ctx, "g1", "u1", at))

	c, err = repo.GetUserCooldown(ctx, "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, c.LastReviewRequest)
	assert.True(t, at.Equal(*c.LastReviewRequest))
	assert.Nil(t, c.LastReviewSubmission)
}
