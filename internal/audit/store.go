package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bellhop-project/bellhop/internal/events"
)

// LoginRecord is one login attempt as stored in the audit log.
type LoginRecord struct {
	ID       int64     `json:"id"`
	Handle   uint64    `json:"handle"`
	Username string    `json:"username"`
	Result   string    `json:"result"`
	Member   bool      `json:"member"`
	At       time.Time `json:"at"`
}

// RequestRecord is one Check or Reserve outcome as stored in the audit log.
type RequestRecord struct {
	ID       int64     `json:"id"`
	Handle   uint64    `json:"handle"`
	Username string    `json:"username"`
	Op       string    `json:"op"`
	RoomCode string    `json:"room_code"`
	Result   string    `json:"result"`
	At       time.Time `json:"at"`
}

// Store is the audit log over a SQLite database.
type Store struct {
	db *Database
}

// NewStore opens the audit database and creates the schema.
func NewStore(dbPath string) (*Store, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: database}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS logins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			handle INTEGER NOT NULL,
			username TEXT NOT NULL,
			result TEXT NOT NULL,
			member INTEGER NOT NULL DEFAULT 0,
			at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			handle INTEGER NOT NULL,
			username TEXT NOT NULL,
			op TEXT NOT NULL,
			room_code TEXT NOT NULL,
			result TEXT NOT NULL,
			at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_logins_at ON logins(at);
		CREATE INDEX IF NOT EXISTS idx_requests_at ON requests(at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// RecordLogin appends one login attempt.
func (s *Store) RecordLogin(rec LoginRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO logins (handle, username, result, member, at) VALUES (?, ?, ?, ?, ?)`,
		rec.Handle, rec.Username, rec.Result, rec.Member, rec.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// RecordRequest appends one request outcome.
func (s *Store) RecordRequest(rec RequestRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO requests (handle, username, op, room_code, result, at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Handle, rec.Username, rec.Op, rec.RoomCode, rec.Result, rec.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}

// RecentLogins returns the newest login records, newest first.
func (s *Store) RecentLogins(limit int) ([]LoginRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, handle, username, result, member, at FROM logins ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query logins: %w", err)
	}
	defer rows.Close()

	var out []LoginRecord
	for rows.Next() {
		var rec LoginRecord
		if err := rows.Scan(&rec.ID, &rec.Handle, &rec.Username, &rec.Result, &rec.Member, &rec.At); err != nil {
			return nil, fmt.Errorf("failed to scan login record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentRequests returns the newest request records, newest first.
func (s *Store) RecentRequests(limit int) ([]RequestRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, handle, username, op, room_code, result, at FROM requests ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []RequestRecord
	for rows.Next() {
		var rec RequestRecord
		if err := rows.Scan(&rec.ID, &rec.Handle, &rec.Username, &rec.Op, &rec.RoomCode, &rec.Result, &rec.At); err != nil {
			return nil, fmt.Errorf("failed to scan request record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Counts returns the total number of stored login and request records.
func (s *Store) Counts() (logins int, requests int, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM logins`).Scan(&logins); err != nil {
		return 0, 0, fmt.Errorf("failed to count logins: %w", err)
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM requests`).Scan(&requests); err != nil {
		return 0, 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return logins, requests, nil
}

// Prune removes records older than the cutoff and returns how many rows
// were deleted.
func (s *Store) Prune(olderThan time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"logins", "requests"} {
		res, err := s.db.Exec(`DELETE FROM `+table+` WHERE at < ?`, olderThan)
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Subscribe attaches the store to the event bus so every login and
// request outcome is recorded as it happens.
func (s *Store) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventLoginResult, "audit_store", func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.LoginResultPayload)
		if !ok {
			return nil
		}
		return s.RecordLogin(LoginRecord{
			Handle:   payload.Handle,
			Username: payload.Username,
			Result:   payload.Result,
			Member:   payload.Member,
			At:       payload.At,
		})
	})

	recordRequest := func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.RequestResultPayload)
		if !ok {
			return nil
		}
		return s.RecordRequest(RequestRecord{
			Handle:   payload.Handle,
			Username: payload.Username,
			Op:       payload.Op,
			RoomCode: payload.RoomCode,
			Result:   payload.Result,
			At:       payload.At,
		})
	}
	bus.Subscribe(events.EventCheckResult, "audit_store", recordRequest)
	bus.Subscribe(events.EventReserveResult, "audit_store", recordRequest)

	log.Debug().Msg("audit store subscribed to event bus")
}
