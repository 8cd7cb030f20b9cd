package casefile

import (
	"regexp"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
	"github.com/kanzleiwerk/aktenregister/internal/caseref"
)

// externalRefPattern is the shape insurers use for their claim numbers.
var externalRefPattern = regexp.MustCompile(`^DJ\d{8}$`)

// validate checks a CreateInput before any transaction opens, so a rejected
// create never takes the writer lock and never advances a counter.
func (in CreateInput) validate() error {
	if !in.Family.Valid() {
		return apperr.Validation(apperr.CodeMalformedField, "family",
			"unknown case family %q", in.Family)
	}
	if in.ClientName == "" {
		return apperr.Validation(apperr.CodeMissingField, "client_name",
			"client name is required")
	}
	switch in.Family {
	case caseref.FamilyInsurance:
		if in.ExternalRef == "" {
			return apperr.Validation(apperr.CodeMissingField, "external_ref",
				"insurance cases require the insurer's claim reference")
		}
		if !externalRefPattern.MatchString(in.ExternalRef) {
			return apperr.Validation(apperr.CodeMalformedField, "external_ref",
				"claim reference %q does not match the required DJ######## shape", in.ExternalRef)
		}
	default:
		// Other families may carry a free-form external reference; it only
		// has to be unique, which the store enforces.
	}
	return nil
}

// validateTransition checks a lifecycle state change. closedAt is the
// closure date as it will stand after the update is applied.
func validateTransition(family caseref.Family, from, to State, closedAt bool) error {
	if !to.Valid() {
		return apperr.Validation(apperr.CodeMalformedField, "state",
			"unknown lifecycle state %q", to)
	}
	if from == to {
		return nil
	}
	switch {
	case from == StateOpen && to == StateInProceedings:
		if family != caseref.FamilyInsurance {
			return apperr.Validation(apperr.CodeBadTransition, "state",
				"only insurance cases enter proceedings")
		}
		return nil
	case (from == StateOpen || from == StateInProceedings) && to == StateArchived:
		if !closedAt {
			return apperr.Validation(apperr.CodeMissingField, "closed_at",
				"archiving requires a closure date")
		}
		return nil
	}
	return apperr.Validation(apperr.CodeBadTransition, "state",
		"cannot transition from %q to %q", from, to)
}
