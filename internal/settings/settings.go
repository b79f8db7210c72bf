// Package settings owns per-guild configuration and its in-process cache.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

const (
	// DefaultCacheTTL is how long a cached guild configuration stays fresh
	DefaultCacheTTL = 5 * time.Minute

	cacheSize = 1024
)

// Defaults returns the configuration a guild starts with
func Defaults(guildID string) storage.GuildSettings {
	return storage.GuildSettings{
		GuildID: guildID,
		Features: storage.FeatureSettings{
			EnableCooldowns: true,
		},
		Cooldowns: storage.CooldownSettings{
			ReviewRequest:    (24 * time.Hour).Milliseconds(),
			ReviewSubmission: time.Hour.Milliseconds(),
		},
		Review: storage.ReviewSettings{
			MinTextLength: 10,
			MaxTextLength: 2000,
			MinRating:     1,
			MaxRating:     5,
		},
		DefaultLanguage: "en",
	}
}

// Store reads and writes guild settings through a TTL cache keyed by guild.
// Updates evict the guild's entry so the next read goes to the database.
// A read that raced an eviction is returned but not cached.
type Store struct {
	repo  *storage.Repository
	cache *expirable.LRU[string, storage.GuildSettings]

	mu  sync.Mutex
	gen uint64 // bumped by every Invalidate
}

// NewStore creates a settings store. A non-positive ttl uses DefaultCacheTTL.
func NewStore(repo *storage.Repository, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Store{
		repo:  repo,
		cache: expirable.NewLRU[string, storage.GuildSettings](cacheSize, nil, ttl),
	}
}

// Get returns the guild's settings, creating the defaults on first access.
// The returned value is a copy and may be modified freely.
func (s *Store) Get(ctx context.Context, guildID string) (*storage.GuildSettings, error) {
	if cached, ok := s.cache.Get(guildID); ok {
		return clone(cached), nil
	}

	gen := s.generation()
	settings, err := s.load(ctx, guildID)
	if err != nil {
		return nil, err
	}

	s.cacheIfCurrent(guildID, *clone(*settings), gen)
	return settings, nil
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// cacheIfCurrent caches settings read at generation gen. It reports false and
// caches nothing when an Invalidate happened after that read started.
func (s *Store) cacheIfCurrent(guildID string, gs storage.GuildSettings, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.cache.Add(guildID, gs)
	return true
}

func (s *Store) load(ctx context.Context, guildID string) (*storage.GuildSettings, error) {
	settings, err := s.repo.GetGuildSettings(ctx, guildID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	defaults := Defaults(guildID)
	if err := s.repo.InsertGuildSettingsIfAbsent(ctx, &defaults); err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}
	return s.repo.GetGuildSettings(ctx, guildID)
}

// Update applies a partial update, persists it and evicts the cached copy
func (s *Store) Update(ctx context.Context, guildID string, update Update, actorID string) (*storage.GuildSettings, error) {
	settings, err := s.load(ctx, guildID)
	if err != nil {
		return nil, err
	}

	update.apply(settings)
	if actorID != "" {
		settings.LastUpdatedBy = actorID
	}

	if err := s.repo.UpsertGuildSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	s.Invalidate(guildID)
	return settings, nil
}

// Invalidate drops the cached settings of a guild
func (s *Store) Invalidate(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Remove(guildID)
}

func clone(gs storage.GuildSettings) *storage.GuildSettings {
	if gs.Review.MaxReviewsPerUser != nil {
		v := *gs.Review.MaxReviewsPerUser
		gs.Review.MaxReviewsPerUser = &v
	}
	return &gs
}
