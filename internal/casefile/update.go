package casefile

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
	"github.com/kanzleiwerk/aktenregister/internal/caseref"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// Update applies allow-listed changes to a case under optimistic locking.
//
// When expectedVersion is non-nil and does not match the stored version the
// update aborts with a version-mismatch conflict before any write. The write
// itself carries WHERE id = ? AND version = ?, so the database enforces the
// check atomically: zero affected rows means another writer committed
// between our read and our write, which is reported identically to a stale
// expectedVersion.
func (r *Repository) Update(ctx context.Context, id string, changes UpdateInput, expectedVersion *int64) (*Case, error) {
	var updated *Case
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		cur, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if expectedVersion != nil && *expectedVersion != cur.Version {
			return apperr.VersionMismatch(*expectedVersion, cur.Version)
		}

		if cur.State.Terminal() && changes.touchesBeyondNotes() {
			return apperr.Validation(apperr.CodeTerminalState, "state",
				"an archived case accepts only note edits")
		}

		next, err := applyChanges(cur, changes)
		if err != nil {
			return err
		}

		now := r.now().UTC().Truncate(time.Second)
		res, err := tx.ExecContext(ctx, `
			UPDATE cases
			SET client_name = ?, external_ref = ?, state = ?, notes = ?,
			    closed_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?
		`,
			next.ClientName,
			nullable(next.ExternalRef),
			string(next.State),
			next.Notes,
			nullableTime(next.ClosedAt),
			now.Format(timeLayout),
			id,
			cur.Version,
		)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict(apperr.CodeDuplicateRef,
					"external reference %q is already registered", next.ExternalRef)
			}
			return store.ClassifyErr(err, "update case")
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return store.ClassifyErr(err, "update case")
		}
		if affected == 0 {
			// Lost the race against a concurrent writer.
			return apperr.Conflict(apperr.CodeVersionMismatch,
				"case %q was modified concurrently, reload and retry", id)
		}

		updated, err = getTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("case updated",
		zap.String("id", updated.ID),
		zap.Int64("version", updated.Version),
		zap.String("state", string(updated.State)),
	)
	return updated, nil
}

// applyChanges merges the allow-listed fields into a copy of cur and
// validates the result. The family and the internal reference never change.
func applyChanges(cur *Case, changes UpdateInput) (*Case, error) {
	next := *cur

	if changes.ClientName != nil {
		if *changes.ClientName == "" {
			return nil, apperr.Validation(apperr.CodeMissingField, "client_name",
				"client name cannot be cleared")
		}
		next.ClientName = *changes.ClientName
	}
	if changes.ExternalRef != nil {
		if next.Family == caseref.FamilyInsurance && !externalRefPattern.MatchString(*changes.ExternalRef) {
			return nil, apperr.Validation(apperr.CodeMalformedField, "external_ref",
				"claim reference %q does not match the required DJ######## shape", *changes.ExternalRef)
		}
		next.ExternalRef = *changes.ExternalRef
	}
	if changes.Notes != nil {
		next.Notes = *changes.Notes
	}
	if changes.ClosedAt != nil {
		t := changes.ClosedAt.UTC()
		next.ClosedAt = &t
	}
	if changes.State != nil {
		if err := validateTransition(next.Family, cur.State, *changes.State, next.ClosedAt != nil); err != nil {
			return nil, err
		}
		next.State = *changes.State
	}

	return &next, nil
}
