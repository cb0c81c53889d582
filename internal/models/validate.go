package models

import "fmt"

// ValidationError reports a single violated field invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate checks a token's field invariants and returns the first violation.
// Callers must not persist a token that fails validation.
func (t *Token) Validate() *ValidationError {
	if t.TokenID == "" {
		return &ValidationError{Field: "token_id", Reason: "must not be empty"}
	}
	if t.WebsiteID == "" {
		return &ValidationError{Field: "website_id", Reason: "must not be empty"}
	}
	switch t.Status {
	case StatusPending, StatusActive, StatusRevoked:
	default:
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", t.Status)}
	}
	if !ValidScriptVersion(t.ScriptVersion) {
		return &ValidationError{Field: "script_version", Reason: fmt.Sprintf("unknown script version %q", t.ScriptVersion)}
	}
	if !ValidEnvironment(t.Environment) {
		return &ValidationError{Field: "environment", Reason: fmt.Sprintf("unknown environment %q", t.Environment)}
	}
	if t.UsageCount < 0 {
		return &ValidationError{Field: "usage_count", Reason: "must not be negative"}
	}
	if t.RegenerationCount < 0 {
		return &ValidationError{Field: "regeneration_count", Reason: "must not be negative"}
	}
	// revoked_at is set if and only if the token is revoked.
	if t.Status == StatusRevoked && t.RevokedAt == nil {
		return &ValidationError{Field: "revoked_at", Reason: "must be set on a revoked token"}
	}
	if t.Status != StatusRevoked && t.RevokedAt != nil {
		return &ValidationError{Field: "revoked_at", Reason: "must not be set unless the token is revoked"}
	}
	return nil
}
