package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Staff action log operations. Rows are never updated or deleted.

// InsertStaffAction appends an audit row
func (r *Repository) InsertStaffAction(ctx context.Context, a *StaffAction) error {
	a.ID = uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.TargetType == "" {
		a.TargetType = TargetNone
	}
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode action metadata: %w", err)
	}

	var processing sql.NullInt64
	if a.ProcessingTime != nil {
		processing = sql.NullInt64{Int64: a.ProcessingTime.Milliseconds(), Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO staff_action_logs (id, guild_id, staff_member_id, staff_member_username, action_type,
		 target_type, target_id, metadata, processing_time_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.GuildID, a.StaffMemberID, a.StaffMemberUsername, string(a.ActionType),
		string(a.TargetType), a.TargetID, string(data), processing, toMillis(a.CreatedAt),
	)
	return err
}

// ListStaffActions returns a guild's audit rows newest first, optionally for one staff member
func (r *Repository) ListStaffActions(ctx context.Context, guildID, staffID string, limit int) ([]*StaffAction, error) {
	query := `SELECT id, guild_id, staff_member_id, staff_member_username, action_type, target_type, target_id,
		metadata, processing_time_ms, created_at FROM staff_action_logs WHERE guild_id = ?`
	args := []any{guildID}
	if staffID != "" {
		query += ` AND staff_member_id = ?`
		args = append(args, staffID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*StaffAction
	for rows.Next() {
		a := &StaffAction{}
		var metadata string
		var processing sql.NullInt64
		var created int64
		if err := rows.Scan(&a.ID, &a.GuildID, &a.StaffMemberID, &a.StaffMemberUsername, &a.ActionType,
			&a.TargetType, &a.TargetID, &metadata, &processing, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode action metadata: %w", err)
		}
		if processing.Valid {
			d := time.Duration(processing.Int64) * time.Millisecond
			a.ProcessingTime = &d
		}
		a.CreatedAt = fromMillis(created)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// CountStaffActions groups a guild's audit rows since a point in time by
// staff member and action type. An empty staffID covers every staff member.
func (r *Repository) CountStaffActions(ctx context.Context, guildID, staffID string, since time.Time) ([]StaffActionCount, error) {
	query := `SELECT staff_member_id, MAX(staff_member_username), action_type, COUNT(*), AVG(processing_time_ms)
		FROM staff_action_logs WHERE guild_id = ? AND created_at >= ?`
	args := []any{guildID, toMillis(since)}
	if staffID != "" {
		query += ` AND staff_member_id = ?`
		args = append(args, staffID)
	}
	query += ` GROUP BY staff_member_id, action_type`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []StaffActionCount
	for rows.Next() {
		var c StaffActionCount
		var avg sql.NullFloat64
		if err := rows.Scan(&c.StaffMemberID, &c.StaffMemberUsername, &c.ActionType, &c.Count, &avg); err != nil {
			return nil, err
		}
		if avg.Valid {
			v := avg.Float64
			c.AvgProcessingMs = &v
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
