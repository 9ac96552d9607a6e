// Package history keeps a local SQLite log of what the dashboard observed:
// crawler status over time, push events received, and alerts raised. The
// crawler itself stays the source of truth; this is only for trends.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crawlwatch/internal/api"
	"crawlwatch/internal/database"
	"crawlwatch/pkg/protocol"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// StatusSnapshot is one observation of the crawler's status counters
type StatusSnapshot struct {
	ID             int64     `json:"id"`
	ObservedAt     time.Time `json:"observed_at"`
	CrawlStatus    string    `json:"crawl_status"`
	TotalAccounts  int       `json:"total_accounts"`
	ActiveAccounts int       `json:"active_accounts"`
	TotalRecords   int       `json:"total_records"`
	Source         string    `json:"source,omitempty"`
}

// PushEvent is a crawler_update received on the push channel
type PushEvent struct {
	ID          int64     `json:"id"`
	Account     string    `json:"account"`
	RecordCount int       `json:"record_count"`
	EventTime   time.Time `json:"event_time,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Alert is a notable change detected between two snapshots
type Alert struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	RaisedAt  time.Time `json:"raised_at"`
	Delivered bool      `json:"delivered"`
}

// Store persists observations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the history database at path, creating and migrating it
func Open(path string) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an already configured database
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RecordStatus stores a status observation. A zero at means now.
func (s *Store) RecordStatus(ctx context.Context, st api.Status, source string, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_snapshots (observed_at, crawl_status, total_accounts, active_accounts, total_records, source)
		VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(at), st.CrawlStatus, st.TotalAccounts, st.ActiveAccounts, st.TotalRecords, source,
	)
	if err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}
	return nil
}

// RecordPush stores a received crawler_update event
func (s *Store) RecordPush(ctx context.Context, update *protocol.CrawlerUpdate, receivedAt time.Time) error {
	if update == nil {
		return nil
	}
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	var eventTime interface{}
	if !update.Timestamp.IsZero() {
		eventTime = formatTime(update.Timestamp.Time)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_events (account, record_count, event_time, received_at)
		VALUES (?, ?, ?, ?)`,
		update.Account, update.RecordCount(), eventTime, formatTime(receivedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record push event: %w", err)
	}
	return nil
}

// RecordAlert stores an alert and returns its ID
func (s *Store) RecordAlert(ctx context.Context, a Alert) (int64, error) {
	if a.RaisedAt.IsZero() {
		a.RaisedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (kind, subject, message, raised_at, delivered)
		VALUES (?, ?, ?, ?, ?)`,
		a.Kind, a.Subject, a.Message, formatTime(a.RaisedAt), a.Delivered,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record alert: %w", err)
	}
	return res.LastInsertId()
}

// MarkDelivered flags an alert as sent
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE alerts SET delivered = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark alert %d delivered: %w", id, err)
	}
	return nil
}

// RecentSnapshots returns up to limit snapshots, newest first
func (s *Store) RecentSnapshots(ctx context.Context, limit int) ([]StatusSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, observed_at, crawl_status, total_accounts, active_accounts, total_records, source
		FROM status_snapshots
		ORDER BY observed_at DESC, id DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []StatusSnapshot
	for rows.Next() {
		var snap StatusSnapshot
		var observed sql.NullString
		if err := rows.Scan(&snap.ID, &observed, &snap.CrawlStatus, &snap.TotalAccounts,
			&snap.ActiveAccounts, &snap.TotalRecords, &snap.Source); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.ObservedAt = parseTime(observed)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// RecentPushEvents returns up to limit push events, newest first
func (s *Store) RecentPushEvents(ctx context.Context, limit int) ([]PushEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, record_count, event_time, received_at
		FROM push_events
		ORDER BY received_at DESC, id DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query push events: %w", err)
	}
	defer rows.Close()

	var out []PushEvent
	for rows.Next() {
		var ev PushEvent
		var eventTime, received sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Account, &ev.RecordCount, &eventTime, &received); err != nil {
			return nil, fmt.Errorf("failed to scan push event: %w", err)
		}
		ev.EventTime = parseTime(eventTime)
		ev.ReceivedAt = parseTime(received)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecentAlerts returns up to limit alerts, newest first
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, subject, message, raised_at, delivered
		FROM alerts
		ORDER BY raised_at DESC, id DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		var raised sql.NullString
		if err := rows.Scan(&a.ID, &a.Kind, &a.Subject, &a.Message, &raised, &a.Delivered); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.RaisedAt = parseTime(raised)
		out = append(out, a)
	}
	return out, rows.Err()
}

// PushCountsSince sums record counts per account for push events received at
// or after since
func (s *Store) PushCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account, SUM(record_count)
		FROM push_events
		WHERE received_at >= ?
		GROUP BY account`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query push counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var account string
		var total int
		if err := rows.Scan(&account, &total); err != nil {
			return nil, fmt.Errorf("failed to scan push count: %w", err)
		}
		counts[account] = total
	}
	return counts, rows.Err()
}

// PruneResult reports how many rows Prune removed per table
type PruneResult struct {
	Snapshots  int64
	PushEvents int64
	Alerts     int64
}

// Total is the number of rows removed
func (r PruneResult) Total() int64 {
	return r.Snapshots + r.PushEvents + r.Alerts
}

// Prune deletes rows older than the retention window. A non-positive
// retention keeps everything.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (PruneResult, error) {
	var res PruneResult
	if retention <= 0 {
		return res, nil
	}
	cutoff := formatTime(s.now().Add(-retention))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin prune: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		query string
		dst   *int64
	}{
		{"DELETE FROM status_snapshots WHERE observed_at < ?", &res.Snapshots},
		{"DELETE FROM push_events WHERE received_at < ?", &res.PushEvents},
		{"DELETE FROM alerts WHERE raised_at < ?", &res.Alerts},
	}
	for _, step := range steps {
		r, err := tx.ExecContext(ctx, step.query, cutoff)
		if err != nil {
			return PruneResult{}, fmt.Errorf("failed to prune: %w", err)
		}
		n, _ := r.RowsAffected()
		*step.dst = n
	}

	if err := tx.Commit(); err != nil {
		return PruneResult{}, fmt.Errorf("failed to commit prune: %w", err)
	}
	return res, nil
}

// RecordsTrend returns total_records from snapshots in chronological order
func RecordsTrend(snaps []StatusSnapshot) []int {
	out := make([]int, len(snaps))
	for i, snap := range snaps {
		out[len(snaps)-1-i] = snap.TotalRecords
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 10000 {
		return 100
	}
	return limit
}
