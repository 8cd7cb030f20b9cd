package casefile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
	"github.com/kanzleiwerk/aktenregister/internal/caseref"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// timeLayout is the storage format for all timestamp columns.
const timeLayout = time.RFC3339

// Repository creates and updates case records.
type Repository struct {
	store  *store.Store
	logger *zap.Logger

	// now is injectable so year-rollover behavior is testable.
	now func() time.Time
}

// NewRepository creates a repository over the given store.
func NewRepository(st *store.Store, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the case with the given id.
func (r *Repository) Get(ctx context.Context, id string) (*Case, error) {
	row := r.store.DB().QueryRowContext(ctx, selectCase+` WHERE id = ?`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeCaseNotFound, "no case with id %q", id)
	}
	if err != nil {
		return nil, store.ClassifyErr(err, "read case")
	}
	return c, nil
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Family caseref.Family
	State  State
}

// List returns cases matching the filter, newest first. Ties on the
// creation timestamp are broken by id for deterministic paging.
func (r *Repository) List(ctx context.Context, f Filter) ([]*Case, error) {
	query := selectCase + ` WHERE 1=1`
	var args []any
	if f.Family != "" {
		query += ` AND family = ?`
		args = append(args, string(f.Family))
	}
	if f.State != "" {
		query += ` AND state = ?`
		args = append(args, string(f.State))
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.ClassifyErr(err, "list cases")
	}
	defer rows.Close()

	cases := []*Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, store.ClassifyErr(err, "scan case")
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ClassifyErr(err, "list cases")
	}
	return cases, nil
}

const selectCase = `
	SELECT id, family, client_name, reference, external_ref, state,
	       version, notes, closed_at, created_at, updated_at
	FROM cases`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCase(s scanner) (*Case, error) {
	var (
		c           Case
		family      string
		state       string
		externalRef sql.NullString
		closedAt    sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := s.Scan(&c.ID, &family, &c.ClientName, &c.Reference, &externalRef,
		&state, &c.Version, &c.Notes, &closedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Family = caseref.Family(family)
	c.State = State(state)
	if externalRef.Valid {
		c.ExternalRef = externalRef.String
	}
	if closedAt.Valid {
		t, err := time.Parse(timeLayout, closedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse closed_at: %w", err)
		}
		c.ClosedAt = &t
	}
	if c.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &c, nil
}

// getTx reads a case inside an open transaction.
func getTx(ctx context.Context, tx *sql.Tx, id string) (*Case, error) {
	row := tx.QueryRowContext(ctx, selectCase+` WHERE id = ?`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeCaseNotFound, "no case with id %q", id)
	}
	if err != nil {
		return nil, store.ClassifyErr(err, "read case")
	}
	return c, nil
}

// nullable maps an empty string to SQL NULL so the partial UNIQUE index on
// external_ref ignores cases without one.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
