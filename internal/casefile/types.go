// Package casefile is the repository for case records. It owns the atomicity
// of "generate reference + insert row" on create and the optimistic version
// check on update; all writes run as exactly one transaction against the
// store.
package casefile

import (
	"time"

	"github.com/kanzleiwerk/aktenregister/internal/caseref"
)

// State is the lifecycle state of a case.
//
// Allowed transitions:
//
//	open -> in_proceedings (insurance family only)
//	open -> archived
//	in_proceedings -> archived
//
// Archiving requires a closure date. Archived is terminal: the record then
// accepts note edits and nothing else.
type State string

const (
	StateOpen          State = "open"
	StateInProceedings State = "in_proceedings"
	StateArchived      State = "archived"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateOpen, StateInProceedings, StateArchived:
		return true
	}
	return false
}

// Terminal reports whether s accepts no further field changes except notes.
func (s State) Terminal() bool {
	return s == StateArchived
}

// Case represents one legal matter.
type Case struct {
	// ID is the opaque server-assigned identifier.
	ID string `json:"id"`

	// Family is the case category; immutable after creation.
	Family caseref.Family `json:"family"`

	// ClientName is the mandant's display name.
	ClientName string `json:"client_name"`

	// Reference is the internal sequential reference, assigned exactly once
	// at creation and never reassigned.
	Reference string `json:"reference"`

	// ExternalRef is the externally supplied reference. Required for the
	// insurance family, optional otherwise, unique when present.
	ExternalRef string `json:"external_ref,omitempty"`

	// State is the lifecycle state.
	State State `json:"state"`

	// Version increases by exactly 1 on every successful update. Callers
	// pass it back as expectedVersion to detect stale concurrent edits.
	Version int64 `json:"version"`

	// Notes is free text; the only field editable in a terminal state.
	Notes string `json:"notes"`

	// ClosedAt is the closure date; must be set before archiving.
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries the caller-supplied fields for a new case.
type CreateInput struct {
	Family      caseref.Family `json:"family"`
	ClientName  string         `json:"client_name"`
	ExternalRef string         `json:"external_ref,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// UpdateInput carries the allow-listed mutable fields. Nil means "leave
// unchanged"; the family and the internal reference are not updatable.
type UpdateInput struct {
	ClientName  *string    `json:"client_name,omitempty"`
	ExternalRef *string    `json:"external_ref,omitempty"`
	State       *State     `json:"state,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// touchesBeyondNotes reports whether the input changes anything other than
// the notes field.
func (u UpdateInput) touchesBeyondNotes() bool {
	return u.ClientName != nil || u.ExternalRef != nil || u.State != nil || u.ClosedAt != nil
}
