package casefile

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
	"github.com/kanzleiwerk/aktenregister/internal/caseref"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// Create validates the input, then inserts a new case and consumes the next
// family reference inside one transaction. If any step fails nothing is
// persisted: the counter is not advanced and no partial case exists.
//
// Validation runs before the transaction opens so a bad request never takes
// the writer lock.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*Case, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var created *Case
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		// The duplicate check runs inside the transaction, not before it,
		// so no second writer can sneak between check and insert. The
		// UNIQUE index on external_ref remains the actual enforcement.
		if in.ExternalRef != "" {
			if err := checkDuplicateRef(ctx, tx, in.ExternalRef); err != nil {
				return err
			}
		}

		now := r.now().UTC().Truncate(time.Second)
		ref, err := caseref.Next(ctx, tx, in.Family, now)
		if err != nil {
			return err
		}

		c := &Case{
			ID:          uuid.NewString(),
			Family:      in.Family,
			ClientName:  in.ClientName,
			Reference:   ref,
			ExternalRef: in.ExternalRef,
			State:       StateOpen,
			Version:     1,
			Notes:       in.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cases
			(id, family, client_name, reference, external_ref, state, version, notes, closed_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			c.ID,
			string(c.Family),
			c.ClientName,
			c.Reference,
			nullable(c.ExternalRef),
			string(c.State),
			c.Version,
			c.Notes,
			nil,
			now.Format(timeLayout),
			now.Format(timeLayout),
		)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict(apperr.CodeDuplicateRef,
					"external reference %q is already registered", in.ExternalRef)
			}
			return store.ClassifyErr(err, "insert case")
		}

		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("case created",
		zap.String("id", created.ID),
		zap.String("family", string(created.Family)),
		zap.String("reference", created.Reference),
	)
	return created, nil
}

// checkDuplicateRef rejects a create whose external reference is already
// taken. Runs inside the create transaction.
func checkDuplicateRef(ctx context.Context, tx *sql.Tx, externalRef string) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM cases WHERE external_ref = ?`, externalRef).Scan(&one)
	switch {
	case err == nil:
		return apperr.Conflict(apperr.CodeDuplicateRef,
			"external reference %q is already registered", externalRef)
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return store.ClassifyErr(err, "duplicate reference check")
	}
}
