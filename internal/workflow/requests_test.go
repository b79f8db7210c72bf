package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/lollopanta/simpleReviewBot/internal/settings"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req, err := h.svc.CreateRequest(ctx, guildID, member)
	require.NoError(t, err)
	assert.Equal(t, storage.RequestPending, req.Status)
	assert.Equal(t, "msg-1", req.RequestMessageID)
	assert.Equal(t, "staff-channel", req.RequestChannelID)

	stored, err := h.svc.ResolveRequest(ctx, guildID, "", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, req.ID, stored.ID)

	cd, err := h.repo.GetUserCooldown(ctx, guildID, member.ID)
	require.NoError(t, err)
	require.NotNil(t, cd.LastReviewRequest)
	assert.True(t, cd.LastReviewRequest.Equal(h.clock.Now()))
}

func TestCreateRequest_RapidDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateRequest(ctx, guildID, member)
	require.NoError(t, err)

	_, err = h.svc.CreateRequest(ctx, guildID, member)
	assert.ErrorIs(t, err, apperr.ErrDuplicatePendingRequest)
	assert.Equal(t, 1, h.notifier.count("PostRequest"), "no second staff notification")
}

func TestCreateRequest_ConcurrentSameUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const attempts = 5
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.CreateRequest(ctx, guildID, member)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrDuplicatePendingRequest)
	}
	assert.Equal(t, 1, succeeded)

	counts, err := h.repo.CountRequestsByStatus(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[storage.RequestPending])
}

func TestCreateRequest_Cooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req, err := h.svc.CreateRequest(ctx, guildID, member)
	require.NoError(t, err)
	_, err = h.svc.Deny(ctx, guildID, req.ID, staff, "not a customer")
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	_, err = h.svc.CreateRequest(ctx, guildID, member)
	assert.ErrorIs(t, err, apperr.ErrCooldownActive)
	assert.Contains(t, err.Error(), "23h 0m")

	h.clock.Advance(23 * time.Hour)
	_, err = h.svc.CreateRequest(ctx, guildID, member)
	assert.NoError(t, err)
}

func TestCreateRequest_MaxReviewsReached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	widget := h.addProduct(t, "Widget", 9.99)

	_, err := h.settings.Update(ctx, guildID, settings.Update{
		Review:   &settings.ReviewUpdate{MaxReviewsPerUser: ptr(1)},
		Features: &settings.FeaturesUpdate{EnableCooldowns: ptr(false)},
	}, admin.ID)
	require.NoError(t, err)

	req := h.approvedRequest(t, member, widget)
	_, err = h.svc.Submit(ctx, SubmitInput{GuildID: guildID, UserID: member.ID, Username: member.Username,
		RequestID: req.ID, Text: "Solid widget overall", Rating: 4})
	require.NoError(t, err)

	_, err = h.svc.CreateRequest(ctx, guildID, member)
	assert.ErrorIs(t, err, apperr.ErrMaxReviewsReached)
}

func TestCreateRequest_ChannelNotConfigured(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.settings.Update(ctx, guildID, settings.Update{
		Channels: &settings.ChannelsUpdate{StaffReviewChannel: ptr("")},
	}, admin.ID)
	require.NoError(t, err)

	_, err = h.svc.CreateRequest(ctx, guildID, member)
	assert.ErrorIs(t, err, apperr.ErrChannelNotConfigured)

	has, err := h.repo.HasPendingRequest(ctx, guildID, member.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCreateRequest_NotifyFailureLeavesNoState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.notifier.fail("PostRequest")

	_, err := h.svc.CreateRequest(ctx, guildID, member)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	has, err := h.repo.HasPendingRequest(ctx, guildID, member.ID)
	require.NoError(t, err)
	assert.False(t, has)

	cd, err := h.repo.GetUserCooldown(ctx, guildID, member.ID)
	require.NoError(t, err)
	assert.Nil(t, cd.LastReviewRequest)
}

func TestBeginApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req, err := h.svc.CreateRequest(ctx, guildID, member)
	require.NoError(t, err)

	_, _, err = h.svc.BeginApproval(ctx, guildID, req.ID, member)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, _, err = h.svc.BeginApproval(ctx, guildID, req.ID, staff)
	assert.ErrorIs(t, err, apperr.ErrNoProductsAvailable)

	h.addProduct(t, "Widget", 9.99)
	h.addProduct(t, "Gadget", 5)
	_, products, err := h.svc.BeginApproval(ctx, guildID, req.ID, staff)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Gadget", products[0].Name)

	_, _, err = h.svc.BeginApproval(ctx, guildID, "missing", staff)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSelectProduct_KeepsRequestPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	widget := h.addProduct(t, "Widget", 9.99)

	req, err := h.svc.CreateRequest(ctx, guildID, member)
	require.NoError(t, err)

	_, _, err = h.svc.SelectProduct(ctx, guildID, req.ID, staff, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	token, p, err := h.svc.SelectProduct(ctx, guildID, req.ID, staff, widget.ID)
	require.NoError(t, err)
	assert.Equal(t, widget.ID, p.ID)
	assert.NotEmpty(t, token)

	stored, err := h.repo.GetReviewRequest(ctx, guildID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RequestPending, stored.Status)
	assert.Empty(t, stored.ProductID)
}

func TestFinalizeApproval_WidgetScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	widget := h.addProduct(t, "Widget", 9.99)

	req, err := h.svc.CreateRequest(ctx, guildID, member)
	require.NoError(t, err)

	_, _, err = h.svc.BeginApproval(ctx, guildID, req.ID, staff)
	require.NoError(t, err)
	token, _, err := h.svc.SelectProduct(ctx, guildID, req.ID, staff, widget.ID)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	approved, err := h.svc.FinalizeWithToken(ctx, guildID, token, staff, "vip")
	require.NoError(t, err)
	assert.Equal(t, storage.RequestApproved, approved.Status)

	stored, err := h.repo.GetReviewRequest(ctx, guildID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RequestApproved, stored.Status)
	assert.Equal(t, widget.ID, stored.ProductID)
	assert.Equal(t, "vip", stored.StaffNote)
	assert.Equal(t, staff.ID, stored.StaffMemberID)
	require.NotNil(t, stored.ProcessedAt)

	approvals := h.actions(t, storage.ActionApprove)
	require.Len(t, approvals, 1)
	require.NotNil(t, approvals[0].ProcessingTime)
	assert.Equal(t, 10*time.Minute, *approvals[0].ProcessingTime)
	assert.Equal(t, "vip", approvals[0].Metadata["staffNote"])

	assert.Equal(t, 1, h.notifier.count("MarkRequestApproved"))
	assert.Equal(t, 1, h.notifier.count("InviteSubmission"))

	rv, err := h.svc.Submit(ctx, SubmitInput{
		GuildID: guildID, UserID: member.ID, Username: member.Username,
		RequestID: req.ID, Text: "Great widget, works well", Rating: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, storage.ReviewApproved, rv.Status)
	assert.Equal(t, widget.ID, rv.ProductID)
	assert.Equal(t, staff.ID, rv.StaffApproverID)

	p, err := h.products.Get(ctx, guildID, widget.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReviewCount)
	assert.Equal(t, 5.0, p.AverageRating)
}

func TestFinalizeApproval_AlreadyApproved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	widget := h.addProduct(t, "Widget", 9.99)

	req := h.approvedRequest(t, member, widget)

	_, err := h.svc.FinalizeApproval(ctx, guildID, req.ID, staff, widget.ID, "again")
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	assert.Len(t, h.actions(t, storage.ActionApprove), 1, "no duplicate audit entry")

	_, err = h.svc.Deny(ctx, guildID, req.ID, staff, "too late")
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	assert.Empty(t, h.actions(t, storage.ActionDeny))
}

func TestFinalizeApproval_Forbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	widget := h.addProduct(t, "Widget", 9.99)

	req, err := h.svc.CreateRequest(ctx, guildID, member)
	require.NoError(t, err)

	outsider := access.Actor{ID: "someone", RoleIDs: []string{"other-role"}}
	_, err = h.svc.FinalizeApproval(ctx, guildID, req.ID, outsider, widget.ID, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	stored, err := h.repo.GetReviewRequest(ctx, guildID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RequestPending, stored.Status)
}

func TestFinalizeWithToken_Tampered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.FinalizeWithToken(ctx, guildID, "req.prod.bogus", staff, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestDeny(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.notifier.fail("NotifyDenial")

	req, err := h.svc.CreateRequest(ctx, guildID, member)
	require.NoError(t, err)

	_, err = h.svc.Deny(ctx, guildID, req.ID, staff, "   ")
	assert.ErrorIs(t, err, apperr.ErrMissingReason)

	h.clock.Advance(5 * time.Minute)
	denied, err := h.svc.Deny(ctx, guildID, req.ID, staff, "Not a verified buyer")
	require.NoError(t, err, "a failed DM is swallowed")
	assert.Equal(t, storage.RequestDenied, denied.Status)

	stored, err := h.repo.GetReviewRequest(ctx, guildID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RequestDenied, stored.Status)
	assert.Equal(t, "Not a verified buyer", stored.DenialReason)
	assert.Empty(t, stored.ProductID)

	_, err = h.svc.Deny(ctx, guildID, req.ID, staff, "again")
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)

	denials := h.actions(t, storage.ActionDeny)
	require.Len(t, denials, 1)
	require.NotNil(t, denials[0].ProcessingTime)
	assert.Equal(t, 5*time.Minute, *denials[0].ProcessingTime)

	assert.Equal(t, 1, h.notifier.count("MarkRequestDenied"))
	assert.Equal(t, 1, h.notifier.count("LogAction"))
}

func TestDeny_WithoutLogsChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.settings.Update(ctx, guildID, settings.Update{
		Channels: &settings.ChannelsUpdate{LogsChannel: ptr("")},
	}, admin.ID)
	require.NoError(t, err)

	req, err := h.svc.CreateRequest(ctx, guildID, member)
	require.NoError(t, err)
	_, err = h.svc.Deny(ctx, guildID, req.ID, staff, "nope")
	require.NoError(t, err)

	assert.Zero(t, h.notifier.count("LogAction"))
	assert.Len(t, h.actions(t, storage.ActionDeny), 1)
}
