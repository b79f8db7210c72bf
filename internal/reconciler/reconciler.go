package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// ProductLister recomputes and returns a guild's products
type ProductLister interface {
	ListFresh(ctx context.Context, guildID string, includeInactive bool) ([]*storage.Product, error)
}

// Reconciler periodically recomputes product aggregates from reviews so
// stored counts and averages converge even if an update was missed
type Reconciler struct {
	products ProductLister
	guilds   func() []string
	interval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Reconciler over the guilds returned by guilds
func New(products ProductLister, guilds func() []string, intervalSeconds int) *Reconciler {
	return &Reconciler{
		products: products,
		guilds:   guilds,
		interval: time.Duration(intervalSeconds) * time.Second,
		stopChan: make(chan struct{}),
	}
}

// Start runs a pass immediately and then once per interval until ctx is
// cancelled or Stop is called
func (r *Reconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		slog.Info("Aggregate reconciler disabled")
		return
	}
	slog.Info("Starting aggregate reconciler", "interval", r.interval)

	r.wg.Add(1)
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Aggregate reconciler stopped (context cancelled)")
			return
		case <-r.stopChan:
			slog.Info("Aggregate reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// Stop signals the reconciler to stop and waits for the current pass
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

// reconcile refreshes every product of every known guild
func (r *Reconciler) reconcile(ctx context.Context) {
	guilds := r.guilds()
	if len(guilds) == 0 {
		slog.Debug("No guilds to reconcile")
		return
	}

	total := 0
	for _, guildID := range guilds {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		default:
		}

		products, err := r.products.ListFresh(ctx, guildID, true)
		if err != nil {
			slog.Error("Failed to reconcile product aggregates", "guild", guildID, "error", err)
			continue
		}
		total += len(products)
	}
	slog.Debug("Reconciled product aggregates", "guilds", len(guilds), "products", total)
}
