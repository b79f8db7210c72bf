package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/audit"
	"github.com/lollopanta/simpleReviewBot/internal/continuation"
	"github.com/lollopanta/simpleReviewBot/internal/cooldown"
	"github.com/lollopanta/simpleReviewBot/internal/product"
	"github.com/lollopanta/simpleReviewBot/internal/settings"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
	"github.com/stretchr/testify/require"
)

const guildID = "g1"

var (
	staff  = access.Actor{ID: "staff-1", Username: "mod", RoleIDs: []string{"staff-role"}}
	admin  = access.Actor{ID: "admin-1", Username: "owner", Administrator: true}
	member = access.Actor{ID: "user-1", Username: "buyer"}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeNotifier records every call and can be told to fail
type fakeNotifier struct {
	mu      sync.Mutex
	calls   []string
	nextID  int
	failing map[string]bool
	logs    []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failing: make(map[string]bool)}
}

func (n *fakeNotifier) record(call string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, call)
	if n.failing[call] {
		return errors.New(call + " failed")
	}
	return nil
}

func (n *fakeNotifier) messageID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	return fmt.Sprintf("msg-%d", n.nextID)
}

func (n *fakeNotifier) fail(call string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failing[call] = true
}

func (n *fakeNotifier) count(call string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, got := range n.calls {
		if got == call {
			c++
		}
	}
	return c
}

func (n *fakeNotifier) PostRequest(_ context.Context, _ string, _ *storage.ReviewRequest) (string, error) {
	if err := n.record("PostRequest"); err != nil {
		return "", err
	}
	return n.messageID(), nil
}

func (n *fakeNotifier) RetractRequest(context.Context, string, string) error {
	return n.record("RetractRequest")
}

func (n *fakeNotifier) MarkRequestApproved(context.Context, *storage.ReviewRequest, *storage.Product, access.Actor) error {
	return n.record("MarkRequestApproved")
}

func (n *fakeNotifier) MarkRequestDenied(context.Context, *storage.ReviewRequest, access.Actor) error {
	return n.record("MarkRequestDenied")
}

func (n *fakeNotifier) InviteSubmission(context.Context, *storage.ReviewRequest, *storage.Product) error {
	return n.record("InviteSubmission")
}

func (n *fakeNotifier) NotifyDenial(context.Context, *storage.ReviewRequest, access.Actor) error {
	return n.record("NotifyDenial")
}

func (n *fakeNotifier) PostReview(context.Context, string, *storage.Review, *storage.Product) (string, error) {
	if err := n.record("PostReview"); err != nil {
		return "", err
	}
	return n.messageID(), nil
}

func (n *fakeNotifier) UpdateReviewPost(context.Context, *storage.Review, *storage.Product) error {
	return n.record("UpdateReviewPost")
}

func (n *fakeNotifier) DeleteReviewPost(context.Context, *storage.Review) error {
	return n.record("DeleteReviewPost")
}

func (n *fakeNotifier) LogAction(_ context.Context, _ string, _ *storage.StaffAction, summary string) error {
	if err := n.record("LogAction"); err != nil {
		return err
	}
	n.mu.Lock()
	n.logs = append(n.logs, summary)
	n.mu.Unlock()
	return nil
}

type harness struct {
	svc      *Service
	repo     *storage.Repository
	settings *settings.Store
	products *product.Registry
	audit    *audit.Log
	notifier *fakeNotifier
	clock    *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	clock := &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	store := settings.NewStore(repo, time.Minute)
	auditLog := audit.NewLog(repo).WithClock(clock.Now)
	products := product.NewRegistry(repo, store, auditLog)
	notifier := newFakeNotifier()
	svc := New(
		repo,
		store,
		cooldown.NewTracker(repo, store).WithClock(clock.Now),
		products,
		auditLog,
		continuation.NewSigner("test-secret"),
		notifier,
	).WithClock(clock.Now)

	_, err = store.Update(context.Background(), guildID, settings.Update{
		Channels: &settings.ChannelsUpdate{
			StaffReviewChannel: ptr("staff-channel"),
			ReviewsChannel:     ptr("reviews-channel"),
			LogsChannel:        ptr("logs-channel"),
		},
		Roles: &settings.RolesUpdate{StaffRole: ptr("staff-role")},
	}, admin.ID)
	require.NoError(t, err)

	return &harness{
		svc:      svc,
		repo:     repo,
		settings: store,
		products: products,
		audit:    auditLog,
		notifier: notifier,
		clock:    clock,
	}
}

func ptr[T any](v T) *T { return &v }

func (h *harness) addProduct(t *testing.T, name string, price float64) *storage.Product {
	t.Helper()
	p, err := h.products.Create(context.Background(), guildID, admin, product.CreateInput{Name: name, Price: price})
	require.NoError(t, err)
	return p
}

// approvedRequest walks a request for user through the full approval flow
func (h *harness) approvedRequest(t *testing.T, user access.Actor, p *storage.Product) *storage.ReviewRequest {
	t.Helper()
	ctx := context.Background()

	req, err := h.svc.CreateRequest(ctx, guildID, user)
	require.NoError(t, err)
	_, _, err = h.svc.BeginApproval(ctx, guildID, req.ID, staff)
	require.NoError(t, err)
	token, _, err := h.svc.SelectProduct(ctx, guildID, req.ID, staff, p.ID)
	require.NoError(t, err)
	approved, err := h.svc.FinalizeWithToken(ctx, guildID, token, staff, "")
	require.NoError(t, err)
	return approved
}

func (h *harness) actions(t *testing.T, action storage.ActionType) []*storage.StaffAction {
	t.Helper()
	all, err := h.audit.Recent(context.Background(), guildID, "", 100)
	require.NoError(t, err)
	var out []*storage.StaffAction
	for _, a := range all {
		if a.ActionType == action {
			out = append(out, a)
		}
	}
	return out
}
