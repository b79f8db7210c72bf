// Package product manages the catalog of reviewable items and their rating aggregates.
package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/lollopanta/simpleReviewBot/internal/audit"
	"github.com/lollopanta/simpleReviewBot/internal/settings"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
)

// Aggregates are the derived rating statistics of a product
type Aggregates struct {
	ReviewCount    int
	AverageRating  float64
	TotalRatingSum int
}

// CreateInput describes a new product
type CreateInput struct {
	Name        string
	Description string
	Price       float64
}

// Update is a partial product edit; nil fields are unchanged
type Update struct {
	Name        *string
	Description *string
	Price       *float64
}

// Registry is the per-guild product catalog
type Registry struct {
	repo     *storage.Repository
	settings *settings.Store
	audit    *audit.Log
}

func NewRegistry(repo *storage.Repository, settingsStore *settings.Store, auditLog *audit.Log) *Registry {
	return &Registry{repo: repo, settings: settingsStore, audit: auditLog}
}

// Create adds a product to the guild's catalog
func (r *Registry) Create(ctx context.Context, guildID string, actor access.Actor, in CreateInput) (*storage.Product, error) {
	if err := r.requireStaff(ctx, guildID, actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if err := validate(name, in.Description, in.Price); err != nil {
		return nil, err
	}

	if _, err := r.repo.FindActiveProductByName(ctx, guildID, name); err == nil {
		return nil, apperr.ErrDuplicateName
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	p := &storage.Product{
		GuildID:     guildID,
		Name:        name,
		Description: in.Description,
		Price:       in.Price,
		CreatedBy:   actor.ID,
	}
	if err := r.repo.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	r.record(ctx, guildID, actor, storage.ActionProductCreate, p.ID, map[string]any{
		"name":  p.Name,
		"price": p.Price,
	})
	return p, nil
}

// Edit changes an active product. Renaming re-checks uniqueness among the
// guild's other active products.
func (r *Registry) Edit(ctx context.Context, guildID, productID string, actor access.Actor, upd Update) (*storage.Product, error) {
	if err := r.requireStaff(ctx, guildID, actor); err != nil {
		return nil, err
	}

	p, err := r.Get(ctx, guildID, productID)
	if err != nil {
		return nil, err
	}

	before := map[string]any{"name": p.Name, "description": p.Description, "price": p.Price}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name != p.Name {
			existing, err := r.repo.FindActiveProductByName(ctx, guildID, name)
			if err == nil && existing.ID != p.ID {
				return nil, apperr.ErrDuplicateName
			}
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return nil, err
			}
		}
		p.Name = name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if err := validate(p.Name, p.Description, p.Price); err != nil {
		return nil, err
	}

	if err := r.repo.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	r.record(ctx, guildID, actor, storage.ActionProductEdit, p.ID, map[string]any{
		"before": before,
		"after":  map[string]any{"name": p.Name, "description": p.Description, "price": p.Price},
	})
	return p, nil
}

// SoftDelete deactivates a product. Its reviews are left untouched.
func (r *Registry) SoftDelete(ctx context.Context, guildID, productID string, actor access.Actor) (*storage.Product, error) {
	if err := r.requireStaff(ctx, guildID, actor); err != nil {
		return nil, err
	}

	p, err := r.Get(ctx, guildID, productID)
	if err != nil {
		return nil, err
	}

	p.Active = false
	if err := r.repo.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	r.record(ctx, guildID, actor, storage.ActionProductDelete, p.ID, map[string]any{"name": p.Name})
	return p, nil
}

// Get returns an active product, or apperr.ErrNotFound
func (r *Registry) Get(ctx context.Context, guildID, productID string) (*storage.Product, error) {
	p, err := r.repo.GetProduct(ctx, guildID, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

// Lookup returns a product whether or not it is still active
func (r *Registry) Lookup(ctx context.Context, guildID, productID string) (*storage.Product, error) {
	return r.repo.GetProduct(ctx, guildID, productID)
}

// List returns the guild's products ordered by name
func (r *Registry) List(ctx context.Context, guildID string, includeInactive bool) ([]*storage.Product, error) {
	return r.repo.ListProducts(ctx, guildID, includeInactive)
}

// ListFresh recomputes every listed product's aggregates before returning them
func (r *Registry) ListFresh(ctx context.Context, guildID string, includeInactive bool) ([]*storage.Product, error) {
	products, err := r.List(ctx, guildID, includeInactive)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		agg, err := r.RecomputeAggregates(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.ReviewCount = agg.ReviewCount
		p.AverageRating = agg.AverageRating
		p.TotalRatingSum = agg.TotalRatingSum
	}
	return products, nil
}

// RecomputeAggregates re-derives a product's rating statistics from its
// approved, non-deleted reviews. It is a full recompute and safe to repeat.
func (r *Registry) RecomputeAggregates(ctx context.Context, productID string) (Aggregates, error) {
	stats, err := r.repo.ProductRatingStats(ctx, productID)
	if err != nil {
		return Aggregates{}, fmt.Errorf("failed to aggregate reviews: %w", err)
	}

	agg := Aggregates{
		ReviewCount:    stats.Count,
		AverageRating:  Average(stats),
		TotalRatingSum: stats.Sum,
	}
	if err := r.repo.UpdateProductAggregates(ctx, productID, agg.ReviewCount, agg.AverageRating, agg.TotalRatingSum); err != nil {
		return Aggregates{}, fmt.Errorf("failed to save aggregates: %w", err)
	}
	return agg, nil
}

// Average is the mean rating rounded to one decimal, 0 without reviews
func Average(stats storage.RatingStats) float64 {
	if stats.Count == 0 {
		return 0
	}
	return math.Round(float64(stats.Sum)/float64(stats.Count)*10) / 10
}

func (r *Registry) requireStaff(ctx context.Context, guildID string, actor access.Actor) error {
	gs, err := r.settings.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if !access.IsStaff(actor, gs) {
		return apperr.ErrForbidden
	}
	return nil
}

func (r *Registry) record(ctx context.Context, guildID string, actor access.Actor, action storage.ActionType, productID string, metadata map[string]any) {
	err := r.audit.Record(ctx, &storage.StaffAction{
		GuildID:             guildID,
		StaffMemberID:       actor.ID,
		StaffMemberUsername: actor.Username,
		ActionType:          action,
		TargetType:          storage.TargetProduct,
		TargetID:            productID,
		Metadata:            metadata,
	})
	if err != nil {
		slog.Error("Failed to record product action", "guild", guildID, "action", action, "error", err)
	}
}

func validate(name, description string, price float64) error {
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", apperr.ErrInvalidInput, MaxNameLength)
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description must be at most %d characters", apperr.ErrInvalidInput, MaxDescriptionLength)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return fmt.Errorf("%w: price must be zero or more", apperr.ErrInvalidInput)
	}
	return nil
}
