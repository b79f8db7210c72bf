package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/apperr"
)

// Guild settings operations

// GetGuildSettings retrieves guild settings, or apperr.ErrNotFound
func (r *Repository) GetGuildSettings(ctx context.Context, guildID string) (*GuildSettings, error) {
	var data string
	var created, updated int64
	err := r.db.QueryRowContext(ctx,
		`SELECT data, created_at, updated_at FROM guild_settings WHERE guild_id = ?`,
		guildID,
	).Scan(&data, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	settings := &GuildSettings{}
	if err := json.Unmarshal([]byte(data), settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings for guild %s: %w", guildID, err)
	}
	settings.GuildID = guildID
	settings.CreatedAt = fromMillis(created)
	settings.UpdatedAt = fromMillis(updated)
	return settings, nil
}

// InsertGuildSettingsIfAbsent stores settings unless the guild already has a row
func (r *Repository) InsertGuildSettingsIfAbsent(ctx context.Context, settings *GuildSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	now := toMillis(time.Now())
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id, data, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO NOTHING`,
		settings.GuildID, string(data), now, now,
	)
	return err
}

// UpsertGuildSettings creates or replaces guild settings
func (r *Repository) UpsertGuildSettings(ctx context.Context, settings *GuildSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	now := toMillis(time.Now())
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id, data, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		settings.GuildID, string(data), now, now,
	)
	return err
}
