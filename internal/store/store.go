package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added partial UNIQUE index on cases.external_ref
const currentSchemaVersion = 1

// Store provides durable storage for case records, reference counters and
// settings. Uses SQLite with WAL mode for concurrent read access; all
// mutation paths run through WithTx so a logical operation is exactly one
// transaction.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - 8 MiB page cache, in-memory temp tables
//
// This function is idempotent - safe to call multiple times.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("database opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close runs a full checkpoint and closes the database connection.
// Should be called on clean shutdown.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.Checkpoint(context.Background(), CheckpointTruncate); err != nil {
		s.logger.Warn("shutdown checkpoint failed", zap.Error(err))
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a single transaction with all-or-nothing semantics:
// any error returned by fn rolls back every statement executed within it,
// a nil return commits them all. A lock-wait timeout surfaces as a distinct
// retryable condition; WithTx never retries internally - retry policy
// belongs to the caller.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ClassifyErr(err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return ClassifyErr(err, "commit transaction")
	}
	return nil
}

// CheckpointMode selects how aggressively the WAL is flushed.
type CheckpointMode string

const (
	// CheckpointPassive flushes as much of the WAL as possible without
	// blocking readers or writers. Used by the periodic checkpoint loop.
	CheckpointPassive CheckpointMode = "PASSIVE"

	// CheckpointTruncate flushes the entire WAL and truncates the log file.
	// Used on clean shutdown.
	CheckpointTruncate CheckpointMode = "TRUNCATE"
)

// CheckpointResult reports the outcome of a WAL checkpoint.
type CheckpointResult struct {
	// Busy is true if the checkpoint could not complete because of
	// concurrent activity.
	Busy bool

	// LogFrames is the total number of frames in the WAL.
	LogFrames int

	// CheckpointedFrames is the number of frames flushed to the main store.
	CheckpointedFrames int
}

// Flushed reports whether the whole WAL made it into the main store.
func (r CheckpointResult) Flushed() bool {
	return !r.Busy && r.LogFrames == r.CheckpointedFrames
}

// Checkpoint flushes the write-ahead log into the main database file.
func (s *Store) Checkpoint(ctx context.Context, mode CheckpointMode) (CheckpointResult, error) {
	var res CheckpointResult
	var busy int
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode)
	if err := s.db.QueryRowContext(ctx, query).Scan(&busy, &res.LogFrames, &res.CheckpointedFrames); err != nil {
		return res, ClassifyErr(err, "wal checkpoint")
	}
	res.Busy = busy != 0
	s.logger.Debug("wal checkpoint",
		zap.String("mode", string(mode)),
		zap.Bool("busy", res.Busy),
		zap.Int("log_frames", res.LogFrames),
		zap.Int("checkpointed_frames", res.CheckpointedFrames),
	)
	return res, nil
}

// VerifyIntegrity runs the engine's integrity check and reports pass/fail
// only. Detail rows are logged, not returned, since the operational health
// check contract is a boolean.
func (s *Store) VerifyIntegrity(ctx context.Context) (bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return false, ClassifyErr(err, "integrity check")
	}
	defer rows.Close()

	ok := true
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return false, ClassifyErr(err, "integrity check")
		}
		if line != "ok" {
			ok = false
			s.logger.Error("integrity check failure", zap.String("detail", line))
		}
	}
	if err := rows.Err(); err != nil {
		return false, ClassifyErr(err, "integrity check")
	}
	return ok, nil
}

// ClassifyErr wraps a driver error into the core taxonomy. Lock-wait
// timeouts become the distinct retryable busy condition; everything else is
// a terminal database error.
func ClassifyErr(err error, op string) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return apperr.Database(apperr.CodeBusy, err, "database busy during %s", op)
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return apperr.Database(apperr.CodeIntegrity, err, "database integrity fault during %s", op)
		}
	}
	return apperr.Database(apperr.CodeInternal, err, "%s failed", op)
}

// IsUniqueViolation reports whether err is a UNIQUE constraint violation.
// Repositories map these to conflict errors for the columns they own.
func IsUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint &&
			serr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -8192",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the partial UNIQUE index on cases.external_ref for
// existing databases. New databases get this from schema.sql, but databases
// created before v1 need the index added explicitly.
func migrateToV1(db *sql.DB) error {
	// CREATE UNIQUE INDEX IF NOT EXISTS is safe - no-op if index exists
	_, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_external_ref
		ON cases(external_ref) WHERE external_ref IS NOT NULL
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
