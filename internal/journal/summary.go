package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionSummary aggregates the events of one session.
type SessionSummary struct {
	Session
	Casts   int
	Strikes int
	Catches int
	Events  int
}

// Duration is the wall time of the session; open sessions run until now.
func (s SessionSummary) Duration() time.Duration {
	end := s.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}

// CatchRate is catches per cast.
func (s SessionSummary) CatchRate() float64 {
	if s.Casts == 0 {
		return 0
	}
	return float64(s.Catches) / float64(s.Casts)
}

// Totals sums the counters across sessions.
type Totals struct {
	Sessions int
	Casts    int
	Strikes  int
	Catches  int
	Fishing  time.Duration
}

// Sessions returns the most recent sessions first. limit <= 0 returns all.
func (s *Store) Sessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := `SELECT s.id, s.started_at, s.ended_at, s.dry_run, s.capture_area,
        COALESCE(SUM(CASE WHEN e.kind = 'cast' THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN e.kind = 'strike' THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN e.kind = 'catch' THEN 1 ELSE 0 END), 0),
        COUNT(e.id)
    FROM sessions s
    LEFT JOIN events e ON e.session_id = s.id
    GROUP BY s.id
    ORDER BY s.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum        SessionSummary
			startedRaw sql.NullString
			endedRaw   sql.NullString
			dryRun     int
			area       sql.NullString
		)
		if err := rows.Scan(&sum.ID, &startedRaw, &endedRaw, &dryRun, &area,
			&sum.Casts, &sum.Strikes, &sum.Catches, &sum.Events); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.StartedAt = parseTime(startedRaw)
		sum.EndedAt = parseTime(endedRaw)
		sum.DryRun = dryRun != 0
		sum.Area = area.String
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Totals aggregates every recorded session.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	sessions, err := s.Sessions(ctx, 0)
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	for _, sess := range sessions {
		t.Sessions++
		t.Casts += sess.Casts
		t.Strikes += sess.Strikes
		t.Catches += sess.Catches
		t.Fishing += sess.Duration()
	}
	return t, nil
}
