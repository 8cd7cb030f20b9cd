// Package caseref issues the internal sequential reference for a case
// family. Numbers come from counter rows that are mutated only through an
// atomic increment-and-return statement inside the caller's transaction, so
// counter consumption and case insertion commit or roll back together.
package caseref

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// Family identifies one of the three mutually exclusive case categories.
type Family string

const (
	// FamilyInsurance is the insurance-backed family. Requires an external
	// reference from the insurer and formats as IY followed by a six-digit
	// sequence.
	FamilyInsurance Family = "insurance"

	// FamilyPrivate is the private-client family. Its counter is scoped per
	// calendar year and formats as IY-<yy>-<nnn>.
	FamilyPrivate Family = "private"

	// FamilyLegalAid is the legal-aid family (no monetary billing). Shares
	// the insurance family's counter and format.
	FamilyLegalAid Family = "legal_aid"
)

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	switch f {
	case FamilyInsurance, FamilyPrivate, FamilyLegalAid:
		return true
	}
	return false
}

// YearScoped reports whether the family keeps an independent counter per
// calendar year.
func (f Family) YearScoped() bool {
	return f == FamilyPrivate
}

// counterKey maps a family to its counter row key. The legal-aid family
// consumes the insurance counter; non-year-scoped counters use year 0.
func counterKey(f Family, now time.Time) (string, int) {
	family := f
	if f == FamilyLegalAid {
		family = FamilyInsurance
	}
	year := 0
	if f.YearScoped() {
		year = now.Year()
	}
	return string(family), year
}

// Next atomically increments the counter for family and returns the
// formatted reference. Must be called with an active transaction; Next never
// manages its own transaction, so the counter advance is durable if and only
// if the caller's transaction commits.
//
// The increment and the read-back happen in one UPDATE ... RETURNING
// statement. A read-then-write pair would lose updates between two
// transactions; the single statement cannot.
func Next(ctx context.Context, tx *sql.Tx, family Family, now time.Time) (string, error) {
	if !family.Valid() {
		return "", fmt.Errorf("unknown case family %q", family)
	}

	key, year := counterKey(family, now)

	// Lazy row creation on first use of a family (or a new year).
	_, err := tx.ExecContext(ctx, `
		INSERT INTO case_counters (family, year, value)
		VALUES (?, ?, 0)
		ON CONFLICT(family, year) DO NOTHING
	`, key, year)
	if err != nil {
		return "", store.ClassifyErr(err, "create counter row")
	}

	var value int64
	err = tx.QueryRowContext(ctx, `
		UPDATE case_counters
		SET value = value + 1
		WHERE family = ? AND year = ?
		RETURNING value
	`, key, year).Scan(&value)
	if err != nil {
		return "", store.ClassifyErr(err, "advance counter")
	}

	return Format(family, year, value), nil
}

// Format renders a reference for the given family, year and sequence value.
// Exposed for tests and for parsing-free display code.
func Format(family Family, year int, value int64) string {
	if family.YearScoped() {
		return fmt.Sprintf("IY-%02d-%03d", year%100, value)
	}
	return fmt.Sprintf("IY%06d", value)
}
