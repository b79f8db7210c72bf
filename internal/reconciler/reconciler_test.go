package reconciler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/audit"
	"github.com/lollopanta/simpleReviewBot/internal/product"
	"github.com/lollopanta/simpleReviewBot/internal/settings"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLister struct {
	mu     sync.Mutex
	calls  []string
	failOn string
	passes chan struct{}
}

func (l *recordingLister) ListFresh(_ context.Context, guildID string, includeInactive bool) ([]*storage.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, guildID)
	if guildID == l.failOn {
		return nil, errors.New("boom")
	}
	if l.passes != nil {
		select {
		case l.passes <- struct{}{}:
		default:
		}
	}
	return []*storage.Product{{ID: "p1"}}, nil
}

func (l *recordingLister) guildCalls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func TestReconcile_ContinuesPastFailingGuild(t *testing.T) {
	lister := &recordingLister{failOn: "g1"}
	r := New(lister, func() []string { return []string{"g1", "g2"} }, 60)

	r.reconcile(context.Background())

	assert.Equal(t, []string{"g1", "g2"}, lister.guildCalls())
}

func TestReconcile_SkipsCancelledContext(t *testing.T) {
	lister := &recordingLister{}
	r := New(lister, func() []string { return []string{"g1"} }, 60)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.reconcile(ctx)

	assert.Empty(t, lister.guildCalls())
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	lister := &recordingLister{passes: make(chan struct{}, 1)}
	r := New(lister, func() []string { return []string{"g1"} }, 3600)

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	select {
	case <-lister.passes:
	case <-time.After(5 * time.Second):
		t.Fatal("initial pass did not run")
	}

	r.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not stop")
	}
	r.Stop()
}

func TestStartDisabled(t *testing.T) {
	lister := &recordingLister{}
	r := New(lister, func() []string { return []string{"g1"} }, 0)

	r.Start(context.Background())

	assert.Empty(t, lister.guildCalls())
}

func TestReconcile_RepairsDriftedAggregates(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	reg := product.NewRegistry(repo, settings.NewStore(repo, time.Minute), audit.NewLog(repo))
	p, err := reg.Create(ctx, "g1", access.Actor{ID: "admin", Administrator: true}, product.CreateInput{Name: "Widget", Price: 5})
	require.NoError(t, err)

	for _, rating := range []int{4, 5} {
		require.NoError(t, repo.CreateReview(ctx, &storage.Review{
			GuildID: "g1", ProductID: p.ID, UserID: "u1", ReviewerUsername: "user",
			Text: "a perfectly fine review", Rating: rating, StaffApproverID: "staff",
		}))
	}
	require.NoError(t, repo.UpdateProductAggregates(ctx, p.ID, 0, 0, 0))

	New(reg, func() []string { return []string{"g1"} }, 60).reconcile(ctx)

	got, err := reg.Get(ctx, "g1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReviewCount)
	assert.Equal(t, 4.5, got.AverageRating)
	assert.Equal(t, 9, got.TotalRatingSum)
}
