// Package audit is the append-only record of staff decisions.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// DefaultWindowDays is the look-back used when a caller passes no window
const DefaultWindowDays = 30

// StaffStats summarizes one staff member's activity inside a window
type StaffStats struct {
	StaffMemberID       string
	StaffMemberUsername string
	TotalActions        int
	Counts              map[storage.ActionType]int
	// AvgApprovalTime is the mean processing time of approve actions, nil
	// when the staff member approved nothing in the window.
	AvgApprovalTime *time.Duration
}

func (s StaffStats) Count(action storage.ActionType) int {
	return s.Counts[action]
}

// Log appends and queries staff actions
type Log struct {
	repo *storage.Repository
	now  func() time.Time
}

func NewLog(repo *storage.Repository) *Log {
	return &Log{repo: repo, now: time.Now}
}

// WithClock replaces the time source, for tests
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Record appends an entry. Entries are never changed afterwards.
func (l *Log) Record(ctx context.Context, entry *storage.StaffAction) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	if err := l.repo.InsertStaffAction(ctx, entry); err != nil {
		return fmt.Errorf("failed to record %s action: %w", entry.ActionType, err)
	}
	return nil
}

// Recent lists the newest entries of a guild, optionally for one staff member
func (l *Log) Recent(ctx context.Context, guildID, staffID string, limit int) ([]*storage.StaffAction, error) {
	return l.repo.ListStaffActions(ctx, guildID, staffID, limit)
}

// StatsFor returns per-staff activity over the trailing windowDays. An empty
// staffID covers every staff member. Results are ordered by total actions.
func (l *Log) StatsFor(ctx context.Context, guildID, staffID string, windowDays int) ([]StaffStats, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	since := l.now().AddDate(0, 0, -windowDays)

	counts, err := l.repo.CountStaffActions(ctx, guildID, staffID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count staff actions: %w", err)
	}

	byStaff := make(map[string]*StaffStats)
	for _, c := range counts {
		s, ok := byStaff[c.StaffMemberID]
		if !ok {
			s = &StaffStats{
				StaffMemberID: c.StaffMemberID,
				Counts:        make(map[storage.ActionType]int),
			}
			byStaff[c.StaffMemberID] = s
		}
		if c.StaffMemberUsername > s.StaffMemberUsername {
			s.StaffMemberUsername = c.StaffMemberUsername
		}
		s.Counts[c.ActionType] += c.Count
		s.TotalActions += c.Count
		if c.ActionType == storage.ActionApprove && c.AvgProcessingMs != nil {
			d := time.Duration(*c.AvgProcessingMs * float64(time.Millisecond))
			s.AvgApprovalTime = &d
		}
	}

	stats := make([]StaffStats, 0, len(byStaff))
	for _, s := range byStaff {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalActions != stats[j].TotalActions {
			return stats[i].TotalActions > stats[j].TotalActions
		}
		return stats[i].StaffMemberID < stats[j].StaffMemberID
	})
	return stats, nil
}

// FormatDuration renders a processing time with its two largest units
func FormatDuration(d time.Duration) string {
	seconds := int(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
