package analytics

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"todoq/backend"
)

// Tracker handles mutation event recording
type Tracker struct {
	db      *sql.DB
	enabled bool
	mu      sync.Mutex
	pending sync.WaitGroup
}

// NewTracker creates a new mutation journal.
// If enabled is false, recording is disabled but the database is still created.
func NewTracker(dbPath string, enabled bool) (*Tracker, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		db:      db,
		enabled: enabled,
	}, nil
}

// Enabled reports whether events are recorded
func (t *Tracker) Enabled() bool {
	return t.enabled
}

// Close waits for pending writes and closes the database connection
func (t *Tracker) Close() error {
	t.Flush()
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

// Flush blocks until every asynchronously recorded event is written
func (t *Tracker) Flush() {
	t.pending.Wait()
}

// RecordMutation records one settled mutation. The write happens on its own
// goroutine so settling is never slowed down by the journal.
func (t *Tracker) RecordMutation(kind, mutationID string, itemID backend.ItemID, duration time.Duration, err error) {
	if !t.enabled {
		return
	}

	event := Event{
		Timestamp:  time.Now().Unix(),
		Kind:       kind,
		MutationID: mutationID,
		ItemID:     int64(itemID),
		Success:    err == nil,
		DurationMs: duration.Milliseconds(),
	}
	if err != nil {
		event.ErrorType = categorizeError(err)
		var tf *backend.TransportFailure
		if errors.As(err, &tf) {
			event.Status = tf.Status
		}
	}

	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		t.logEvent(event)
	}()
}

// logEvent records an event to the database
func (t *Tracker) logEvent(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, _ = t.db.Exec(`
		INSERT INTO events (timestamp, kind, mutation_id, item_id, success, duration_ms, error_type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.Timestamp, event.Kind, event.MutationID, nullInt(event.ItemID),
		boolToInt(event.Success), event.DurationMs, nullString(event.ErrorType), nullInt(int64(event.Status)))
}

// Summary aggregates the journal per mutation kind, ordered by kind
func (t *Tracker) Summary() ([]KindSummary, error) {
	rows, err := t.db.Query(`
		SELECT kind,
		       COUNT(*) AS total,
		       COALESCE(SUM(success), 0) AS succeeded,
		       COALESCE(AVG(duration_ms), 0) AS avg_ms
		FROM events
		GROUP BY kind
		ORDER BY kind
	`)
	if err != nil {
		return nil, err
	}

	var summaries []KindSummary
	for rows.Next() {
		var s KindSummary
		if err := rows.Scan(&s.Kind, &s.Total, &s.Succeeded, &s.AvgDurationMs); err != nil {
			_ = rows.Close()
			return nil, err
		}
		s.Failed = s.Total - s.Succeeded
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range summaries {
		var lastErr sql.NullString
		err := t.db.QueryRow(`
			SELECT error_type FROM events
			WHERE kind = ? AND success = 0
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		`, summaries[i].Kind).Scan(&lastErr)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if lastErr.Valid {
			summaries[i].LastErrorType = lastErr.String
		}
	}

	return summaries, nil
}

// Cleanup removes events older than the specified retention period.
// Returns the number of deleted events.
func (t *Tracker) Cleanup(retentionDays int) (int64, error) {
	cutoff := time.Now().Unix() - int64(retentionDays*86400)

	t.mu.Lock()
	defer t.mu.Unlock()

	result, err := t.db.Exec("DELETE FROM events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	// Vacuum to reclaim space
	_, _ = t.db.Exec("VACUUM")

	return deleted, nil
}

// categorizeError categorizes an error into a general type
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var tf *backend.TransportFailure
	if errors.As(err, &tf) && tf.Status != 0 {
		switch {
		case tf.Status == 404:
			return "not_found"
		case tf.Status >= 500:
			return "server"
		default:
			return "rejected"
		}
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return "network"
	case strings.Contains(errStr, "not found"):
		return "not_found"
	case strings.Contains(errStr, "invalid") || strings.Contains(errStr, "validation"):
		return "validation"
	default:
		return "unknown"
	}
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullInt returns nil for zero, otherwise the value
func nullInt(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// boolToInt converts a bool to 1 (true) or 0 (false)
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
