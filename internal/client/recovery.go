package client

import (
	"errors"
	"net/http"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
)

// RecoveryAction tells a caller how to react to a failed operation once the
// retry component has given up or declined.
type RecoveryAction string

const (
	// ActionNone: the operation succeeded or the error carries no recovery.
	ActionNone RecoveryAction = "none"

	// ActionRetry: transient connectivity or server fault; the retry
	// component handles these silently, so seeing one means retries are
	// exhausted and the caller may try again later.
	ActionRetry RecoveryAction = "retry"

	// ActionReloadRecord: a version conflict or duplicate; reload the
	// affected record and re-apply the edit on fresh data.
	ActionReloadRecord RecoveryAction = "reload_record"

	// ActionReloadSession: the session expired; reload the application.
	ActionReloadSession RecoveryAction = "reload_session"

	// ActionCorrectInput: validation failed; surface the offending field.
	ActionCorrectInput RecoveryAction = "correct_input"
)

// Recover maps an error to the action a caller should take.
func Recover(err error) RecoveryAction {
	if err == nil {
		return ActionNone
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		// No server response at all: connectivity.
		return ActionRetry
	}

	switch {
	case apiErr.StatusCode == http.StatusUnauthorized:
		return ActionReloadSession
	case apiErr.Kind == apperr.KindConflict:
		return ActionReloadRecord
	case apiErr.Kind == apperr.KindValidation:
		return ActionCorrectInput
	case apiErr.Kind == apperr.KindNotFound:
		return ActionReloadRecord
	default:
		return ActionRetry
	}
}

// OffendingField returns the field named by a validation error, or "".
func OffendingField(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Field
	}
	return ""
}
