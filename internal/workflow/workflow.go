// Package workflow implements the review request lifecycle: request,
// staff approval or denial, submission, and staff moderation of reviews.
package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/lollopanta/simpleReviewBot/internal/audit"
	"github.com/lollopanta/simpleReviewBot/internal/continuation"
	"github.com/lollopanta/simpleReviewBot/internal/cooldown"
	"github.com/lollopanta/simpleReviewBot/internal/product"
	"github.com/lollopanta/simpleReviewBot/internal/settings"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// Service coordinates requests, reviews and their side effects
type Service struct {
	repo      *storage.Repository
	settings  *settings.Store
	cooldowns *cooldown.Tracker
	products  *product.Registry
	audit     *audit.Log
	tokens    *continuation.Signer
	notifier  Notifier
	now       func() time.Time

	requestLocks keyedMutex
}

// New creates a workflow service
func New(
	repo *storage.Repository,
	settingsStore *settings.Store,
	cooldowns *cooldown.Tracker,
	products *product.Registry,
	auditLog *audit.Log,
	tokens *continuation.Signer,
	notifier Notifier,
) *Service {
	return &Service{
		repo:      repo,
		settings:  settingsStore,
		cooldowns: cooldowns,
		products:  products,
		audit:     auditLog,
		tokens:    tokens,
		notifier:  notifier,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) staffSettings(ctx context.Context, guildID string, actor access.Actor) (*storage.GuildSettings, error) {
	gs, err := s.settings.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !access.IsStaff(actor, gs) {
		return nil, apperr.ErrForbidden
	}
	return gs, nil
}

// recordAction appends an audit entry and mirrors it to the logs channel.
// The audit write happens after the state change it describes, so a failure
// is logged rather than returned.
func (s *Service) recordAction(ctx context.Context, gs *storage.GuildSettings, entry *storage.StaffAction, summary string) {
	if err := s.audit.Record(ctx, entry); err != nil {
		slog.Error("Failed to record staff action", "guild", entry.GuildID, "action", entry.ActionType, "target", entry.TargetID, "error", err)
	}

	if gs.Channels.LogsChannel == "" {
		return
	}
	if err := s.notifier.LogAction(ctx, gs.Channels.LogsChannel, entry, summary); err != nil {
		slog.Warn("Failed to post to logs channel", "guild", entry.GuildID, "action", entry.ActionType, "error", err)
	}
}

// keyedMutex serializes work per key within this process
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
