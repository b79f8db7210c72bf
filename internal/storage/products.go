package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
)

// Product operations

const productColumns = `id, guild_id, name, description, price, review_count, average_rating,
	total_rating_sum, created_by, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	p := &Product{}
	var active int
	var created, updated int64
	err := row.Scan(&p.ID, &p.GuildID, &p.Name, &p.Description, &p.Price, &p.ReviewCount,
		&p.AverageRating, &p.TotalRatingSum, &p.CreatedBy, &active, &created, &updated)
	if err != nil {
		return nil, err
	}
	p.Active = active == 1
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return p, nil
}

// CreateProduct inserts a new active product. A name clash with another
// active product in the guild yields apperr.ErrDuplicateName.
func (r *Repository) CreateProduct(ctx context.Context, p *Product) error {
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.Active = true
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, guild_id, name, description, price, created_by, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		p.ID, p.GuildID, p.Name, p.Description, p.Price, p.CreatedBy, toMillis(now), toMillis(now),
	)
	if IsUniqueViolation(err) {
		return apperr.ErrDuplicateName
	}
	return err
}

// GetProduct finds a product by ID within a guild regardless of its active flag
func (r *Repository) GetProduct(ctx context.Context, guildID, productID string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ? AND guild_id = ?`,
		productID, guildID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return p, err
}

// FindActiveProductByName returns the active product with this name, or apperr.ErrNotFound
func (r *Repository) FindActiveProductByName(ctx context.Context, guildID, name string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE guild_id = ? AND name = ? AND active = 1`,
		guildID, name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return p, err
}

// ListProducts returns a guild's products ordered by name
func (r *Repository) ListProducts(ctx context.Context, guildID string, includeInactive bool) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE guild_id = ?`
	if !includeInactive {
		query += ` AND active = 1`
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// CountActiveProducts returns the number of active products in a guild
func (r *Repository) CountActiveProducts(ctx context.Context, guildID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE guild_id = ? AND active = 1`, guildID,
	).Scan(&n)
	return n, err
}

// UpdateProduct saves the editable fields and active flag of a product
func (r *Repository) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price = ?, active = ?, updated_at = ?
		 WHERE id = ? AND guild_id = ?`,
		p.Name, p.Description, p.Price, boolToInt(p.Active), toMillis(p.UpdatedAt), p.ID, p.GuildID,
	)
	if IsUniqueViolation(err) {
		return apperr.ErrDuplicateName
	}
	return err
}

// UpdateProductAggregates overwrites the derived rating columns
func (r *Repository) UpdateProductAggregates(ctx context.Context, productID string, count int, average float64, sum int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET review_count = ?, average_rating = ?, total_rating_sum = ?, updated_at = ? WHERE id = ?`,
		count, average, sum, toMillis(time.Now()), productID,
	)
	return err
}
