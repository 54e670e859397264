package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/aegis/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite chain store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for concurrent reads during
	// appends. Default: true
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the chain database and initializes the
// schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, audit.NewStoreError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite chain store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

// initialize sets up the schema and pragmas.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStoreError("sqlite", "enable_wal", err)
		}
	}
	if s.config.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())
		if _, err := s.db.Exec(pragma); err != nil {
			return audit.NewStoreError("sqlite", "busy_timeout", err)
		}
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStoreError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
		return audit.NewStoreError("sqlite", "schema_version", err)
	}
	return nil
}

// Append persists a sealed record. Redelivering an identical record is a
// no-op; a conflicting hash for an existing seq is rejected.
func (s *SQLiteStore) Append(ctx context.Context, record *audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_chain (
			seq, id, kind, prev_hash, hash, recorded_at,
			decision_id, message_id, score, level, mode, action, reason,
			validating_roles, constitutional_hash,
			operator, from_mode, to_mode
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Seq, record.ID, string(record.Kind), record.PrevHash, record.Hash,
		record.RecordedAt.UTC(),
		record.DecisionID, record.MessageID, record.Score, record.Level,
		record.Mode, record.Action, record.Reason,
		strings.Join(record.ValidatingRoles, ","), record.ConstitutionalHash,
		record.Operator, record.FromMode, record.ToMode,
	)
	if err == nil {
		return nil
	}

	// Redelivery lands here as a primary key conflict. Accept the
	// duplicate only if it is byte-identical at the hash level.
	existing, getErr := s.Get(ctx, record.Seq)
	if getErr == nil && existing.Hash == record.Hash {
		return nil
	}
	return audit.NewStoreError("sqlite", "append", err)
}

// Get returns the record at seq.
func (s *SQLiteStore) Get(ctx context.Context, seq uint64) (*audit.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE seq = ?", seq)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit.ErrNotFound
	}
	if err != nil {
		return nil, audit.NewStoreError("sqlite", "get", err)
	}
	return rec, nil
}

// Range returns records with fromSeq <= seq < toSeq in sequence order.
func (s *SQLiteStore) Range(ctx context.Context, fromSeq, toSeq uint64) ([]*audit.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE seq >= ? AND seq < ? ORDER BY seq ASC", fromSeq, toSeq)
	if err != nil {
		return nil, audit.NewStoreError("sqlite", "range", err)
	}
	defer rows.Close()

	var out []*audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, audit.NewStoreError("sqlite", "range_scan", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStoreError("sqlite", "range_rows", err)
	}
	return out, nil
}

// Last returns the highest-sequenced record, or nil for an empty chain.
func (s *SQLiteStore) Last(ctx context.Context) (*audit.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" ORDER BY seq DESC LIMIT 1")
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, audit.NewStoreError("sqlite", "last", err)
	}
	return rec, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_chain").Scan(&n)
	if err != nil {
		return 0, audit.NewStoreError("sqlite", "count", err)
	}
	return n, nil
}

// DeleteBelow removes records with seq < belowSeq.
func (s *SQLiteStore) DeleteBelow(ctx context.Context, belowSeq uint64) (uint64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_chain WHERE seq < ?", belowSeq)
	if err != nil {
		return 0, audit.NewStoreError("sqlite", "delete_below", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, audit.NewStoreError("sqlite", "delete_below", err)
	}
	return uint64(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT
	seq, id, kind, prev_hash, hash, recorded_at,
	decision_id, message_id, score, level, mode, action, reason,
	validating_roles, constitutional_hash,
	operator, from_mode, to_mode
	FROM audit_chain`

// rowScanner abstracts sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads one chain row.
func scanRecord(row rowScanner) (*audit.Record, error) {
	var rec audit.Record
	var kind, roles string
	var recordedAt time.Time

	err := row.Scan(
		&rec.Seq, &rec.ID, &kind, &rec.PrevHash, &rec.Hash, &recordedAt,
		&rec.DecisionID, &rec.MessageID, &rec.Score, &rec.Level,
		&rec.Mode, &rec.Action, &rec.Reason,
		&roles, &rec.ConstitutionalHash,
		&rec.Operator, &rec.FromMode, &rec.ToMode,
	)
	if err != nil {
		return nil, err
	}
	rec.Kind = audit.Kind(kind)
	rec.RecordedAt = recordedAt.UTC()
	if roles != "" {
		rec.ValidatingRoles = strings.Split(roles, ",")
	}
	return &rec, nil
}
