// Package auditlog is the durable, append-only record of login attempts.
// It is the ground truth the fast-path counters approximate: the banned and
// locked determinations can always be recomputed from it.
package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnavailable is returned when the log's backing database fails.
var ErrUnavailable = errors.New("audit log unavailable")

// Event is one login attempt. UserID is nil for attempts against unknown
// usernames; Username is the submitted login either way. ID reflects arrival
// order.
type Event struct {
	ID        int64
	CreatedAt time.Time
	UserID    *int64
	Username  string
	IP        string
	Succeeded bool
}

const schema = `
CREATE TABLE IF NOT EXISTS login_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT    NOT NULL,
	user_id    INTEGER,
	login      TEXT    NOT NULL,
	ip         TEXT    NOT NULL,
	succeeded  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_login_log_ip ON login_log(ip);
CREATE INDEX IF NOT EXISTS idx_login_log_user ON login_log(user_id);
`

// Store is a SQLite-backed audit log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the audit log at path and runs
// migrations. WAL mode and a busy timeout keep concurrent appenders from
// failing on write contention.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit log: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit log: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append records one attempt. A zero CreatedAt is stamped with the current
// time. Append is durable: it returns only after the row is committed.
func (s *Store) Append(ctx context.Context, event Event) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO login_log (created_at, user_id, login, ip, succeeded) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		createdAt.UTC().Format(time.RFC3339Nano),
		event.UserID,
		event.Username,
		event.IP,
		boolToInt(event.Succeeded),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// BannedIPs recomputes, purely from the log, every source address whose
// attempts since its last success (or since the beginning of the log if it
// never succeeded) number at least threshold.
func (s *Store) BannedIPs(ctx context.Context, threshold int) ([]string, error) {
	neverSucceeded := `
		SELECT ip FROM (
			SELECT ip, MAX(succeeded) AS max_succeeded, COUNT(1) AS cnt
			FROM login_log
			GROUP BY ip
		) WHERE max_succeeded = 0 AND cnt >= ?`

	sinceLastSuccess := `
		SELECT l.ip
		FROM login_log l
		JOIN (
			SELECT ip, MAX(id) AS last_success_id
			FROM login_log
			WHERE succeeded = 1
			GROUP BY ip
		) t ON t.ip = l.ip AND l.id > t.last_success_id
		GROUP BY l.ip
		HAVING COUNT(l.id) >= ?`

	ips, err := s.queryStrings(ctx, neverSucceeded, threshold)
	if err != nil {
		return nil, err
	}
	more, err := s.queryStrings(ctx, sinceLastSuccess, threshold)
	if err != nil {
		return nil, err
	}
	return append(ips, more...), nil
}

// LockedUsers is the analogous computation keyed by resolved user id,
// restricted to attempts where the username resolved. It returns usernames.
func (s *Store) LockedUsers(ctx context.Context, threshold int) ([]string, error) {
	neverSucceeded := `
		SELECT login FROM (
			SELECT user_id, login, MAX(succeeded) AS max_succeeded, COUNT(1) AS cnt
			FROM login_log
			WHERE user_id IS NOT NULL
			GROUP BY user_id
		) WHERE max_succeeded = 0 AND cnt >= ?`

	sinceLastSuccess := `
		SELECT l.login
		FROM login_log l
		JOIN (
			SELECT user_id, MAX(id) AS last_success_id
			FROM login_log
			WHERE user_id IS NOT NULL AND succeeded = 1
			GROUP BY user_id
		) t ON l.user_id = t.user_id AND l.id > t.last_success_id
		GROUP BY l.user_id
		HAVING COUNT(l.id) >= ?`

	users, err := s.queryStrings(ctx, neverSucceeded, threshold)
	if err != nil {
		return nil, err
	}
	more, err := s.queryStrings(ctx, sinceLastSuccess, threshold)
	if err != nil {
		return nil, err
	}
	return append(users, more...), nil
}

// PreviousSuccess returns the successful login before the user's most recent
// one, or the most recent one itself when it is the only success. Nil when
// the user has never succeeded.
func (s *Store) PreviousSuccess(ctx context.Context, userID int64) (*Event, error) {
	query := `
		SELECT id, created_at, user_id, login, ip, succeeded
		FROM login_log
		WHERE succeeded = 1 AND user_id = ?
		ORDER BY id DESC
		LIMIT 2`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var last *Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		last = event
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return last, nil
}

func (s *Store) queryStrings(ctx context.Context, query string, threshold int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var (
		event     Event
		createdAt string
		userID    sql.NullInt64
		succeeded int
	)
	if err := rows.Scan(&event.ID, &createdAt, &userID, &event.Username, &event.IP, &succeeded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp: %v", ErrUnavailable, err)
	}
	event.CreatedAt = parsed

	if userID.Valid {
		id := userID.Int64
		event.UserID = &id
	}
	event.Succeeded = succeeded == 1
	return &event, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
