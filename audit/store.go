package audit

import (
	"cfsync/common"
	"cfsync/log"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Appender is the write side of the audit log.
type Appender interface {
	Append(ctx context.Context, o *Outcome) error
}

// Lister is the read side of the audit log.
type Lister interface {
	ListRecent(ctx context.Context, limit int) ([]Outcome, error)
	Count(ctx context.Context) (int, error)
}

// Store is the SQLite backed audit log. It is safe for one writer and any
// number of concurrent readers.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	ctx = log.SWith(ctx, log.Stage("init:store"), "path", path)

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err = runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.S(ctx).Infow("audit store ready")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts o and evicts everything beyond the newest MaxEntries rows
// in the same transaction. o.ID and a zero o.Timestamp are filled in.
func (s *Store) Append(ctx context.Context, o *Outcome) error {
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	o.Timestamp = o.Timestamp.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO updates (timestamp, ip, record_name, record_id, status, response) VALUES (?, ?, ?, ?, ?, ?)`,
		o.Timestamp.Format(time.RFC3339Nano),
		o.IP,
		o.RecordName,
		o.RecordID,
		string(o.Status),
		o.Summary,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read outcome id: %w", err)
	}

	evicted, err := tx.ExecContext(ctx,
		`DELETE FROM updates WHERE id NOT IN (SELECT id FROM updates ORDER BY id DESC LIMIT ?)`,
		MaxEntries,
	)
	if err != nil {
		return fmt.Errorf("failed to evict old outcomes: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcome: %w", err)
	}

	o.ID = id
	if n, _ := evicted.RowsAffected(); n > 0 {
		log.S(ctx).Debugw("evicted old outcomes", "count", n)
	}
	return nil
}

// ListRecent returns up to limit outcomes, newest first. limit is clamped to
// [1, MaxEntries].
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 || limit > MaxEntries {
		limit = MaxEntries
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(timestamp, ''), COALESCE(ip, ''), record_name, record_id, COALESCE(status, ''), COALESCE(response, '') FROM updates ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]Outcome, 0, limit)
	for rows.Next() {
		var o Outcome
		var ts, status string
		if err := rows.Scan(&o.ID, &ts, &o.IP, &o.RecordName, &o.RecordID, &status, &o.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}

		if err := o.Status.UnmarshalText([]byte(status)); err != nil {
			log.S(ctx).Warnw("bad status in audit log", "id", o.ID, zap.Error(err))
			o.Status = common.Status(status)
		}

		o.Timestamp, err = parseTimestamp(ts)
		if err != nil {
			log.S(ctx).Warnw("bad timestamp in audit log", "id", o.ID, "timestamp", ts, zap.Error(err))
		}

		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

// parseTimestamp reads RFC 3339 timestamps and the zone-less ISO 8601 form
// written by earlier versions of the updates table, taken as UTC.
func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err == nil {
		return t, nil
	}
	if legacy, lerr := time.Parse("2006-01-02T15:04:05.999999999", ts); lerr == nil {
		return legacy, nil
	}
	return time.Time{}, err
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM updates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return n, nil
}
