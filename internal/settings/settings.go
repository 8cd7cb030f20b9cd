// Package settings is the key/value configuration store. The key set is
// closed: every key is statically bound to a validator, unknown keys are
// rejected, and a batch update either fully succeeds or leaves every prior
// value untouched.
package settings

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// validate backs the email-shape check. Shared instance, safe for
// concurrent use.
var validate = validator.New()

// validateFn checks one value for one key. A non-nil return is always a
// ValidationError naming the key.
type validateFn func(key, value string) error

// registry binds the closed key set to per-key validators. Adding a setting
// means adding a row here and a seed row in schema.sql.
var registry = map[string]validateFn{
	"fee_base_rate":    numericNonNegative,
	"fee_hourly_rate":  numericNonNegative,
	"vat_percent":      numericNonNegative,
	"office_email":     emailAddress,
	"billing_email":    emailAddress,
	"office_address":   freeText,
	"smtp_credentials": freeText,
}

func numericNonNegative(key, value string) error {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return apperr.Validation(apperr.CodeMalformedField, key,
			"value %q for %s is not a number", value, key)
	}
	if n < 0 {
		return apperr.Validation(apperr.CodeMalformedField, key,
			"value for %s must be non-negative", key)
	}
	return nil
}

func emailAddress(key, value string) error {
	if err := validate.Var(value, "required,email"); err != nil {
		return apperr.Validation(apperr.CodeMalformedField, key,
			"value %q for %s is not a valid email address", value, key)
	}
	return nil
}

func freeText(string, string) error { return nil }

// Store reads and writes configuration entries.
type Store struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a settings store over the given database.
func NewStore(st *store.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{store: st, logger: logger, now: time.Now}
}

// GetAll returns every configuration entry.
func (s *Store) GetAll(ctx context.Context) (map[string]string, error) {
	return getAll(ctx, s.store.DB().QueryContext)
}

// Update validates the entire batch, then upserts every key in one
// transaction and returns the fully reloaded configuration. A caller either
// sees all new values or all old values, never a mix.
func (s *Store) Update(ctx context.Context, changes map[string]string) (map[string]string, error) {
	if err := validateBatch(changes); err != nil {
		return nil, err
	}

	var result map[string]string
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UTC().Format(time.RFC3339)
		for _, key := range sortedKeys(changes) {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value, updated_at)
				VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
			`, key, changes[key], now)
			if err != nil {
				return store.ClassifyErr(err, "upsert setting")
			}
		}

		var err error
		result, err = getAll(ctx, tx.QueryContext)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("settings updated", zap.Int("keys", len(changes)))
	return result, nil
}

// validateBatch checks every change against the registry before any
// transaction opens. Keys are checked in sorted order so the first offending
// key named in the error is stable.
func validateBatch(changes map[string]string) error {
	for _, key := range sortedKeys(changes) {
		fn, ok := registry[key]
		if !ok {
			return apperr.Validation(apperr.CodeUnknownKey, key,
				"unknown setting %q", key)
		}
		if err := fn(key, changes[key]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// queryFn abstracts over db- and tx-scoped queries.
type queryFn func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func getAll(ctx context.Context, query queryFn) (map[string]string, error) {
	rows, err := query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, store.ClassifyErr(err, "read settings")
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, store.ClassifyErr(err, "scan setting")
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, store.ClassifyErr(err, "read settings")
	}
	return result, nil
}
