// Package models defines the database entity types.
package models

// TokenStatus is the lifecycle state of a script token.
type TokenStatus string

// Token lifecycle states. Revoked is terminal; a revoked token is never
// reactivated.
const (
	StatusPending TokenStatus = "pending"
	StatusActive  TokenStatus = "active"
	StatusRevoked TokenStatus = "revoked"
)

// ScriptVersion identifies the widget script generation a token is bound to.
type ScriptVersion string

// Supported widget script versions.
const (
	ScriptV1Basic    ScriptVersion = "v1_basic"
	ScriptV1Advanced ScriptVersion = "v1_advanced"
	ScriptV2Enhanced ScriptVersion = "v2_enhanced"
)

// LatestScriptVersion is the version production tokens are expected to run.
const LatestScriptVersion = ScriptV2Enhanced

// Environment identifies the deployment environment a token is issued for.
type Environment string

// Supported environments.
const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Website statuses.
const (
	WebsiteActive   = "active"
	WebsiteInactive = "inactive"
)

// Website represents a protected website record in the database. A website
// owns at most one active token at any instant.
type Website struct {
	ID        string
	Name      string
	URL       string
	Status    string
	CreatedAt int64
}

// Token represents a script token record in the database. Rows are never
// deleted; revoked tokens remain for history queries.
type Token struct {
	ID                 int64
	TokenID            string
	WebsiteID          string
	Status             TokenStatus
	ScriptVersion      ScriptVersion
	Environment        Environment
	Config             Configuration
	ConfigVersion      int
	UsageCount         int64
	RegenerationCount  int
	CreatedAt          int64
	LastUsedAt         *int64
	RevokedAt          *int64
	RevocationReason   *string
	RegenerationReason *string
}

// IsRevoked reports whether the token has been revoked.
func (t *Token) IsRevoked() bool {
	return t.Status == StatusRevoked
}

// Audit event types written by the lifecycle engine.
const (
	EventCreated       = "created"
	EventRegenerated   = "regenerated"
	EventRevoked       = "revoked"
	EventConfigUpdated = "config_updated"
)

// AuditEvent is an immutable record of a single lifecycle transition.
// The lifecycle engine is the sole writer; rows are never updated or deleted.
type AuditEvent struct {
	ID        int64
	WebsiteID string
	TokenID   string
	EventType string
	CreatedAt int64
	Actor     string
	Reason    string
}

// Configuration describes what the widget collects and how often. It is a
// value object: every update replaces the whole thing and bumps the token's
// config version.
type Configuration struct {
	CollectMouseMovements   bool    `json:"collect_mouse_movements"`
	CollectKeyboardPatterns bool    `json:"collect_keyboard_patterns"`
	CollectScrollBehavior   bool    `json:"collect_scroll_behavior"`
	CollectTimingData       bool    `json:"collect_timing_data"`
	CollectDeviceInfo       bool    `json:"collect_device_info"`
	SamplingRate            float64 `json:"sampling_rate"`
	BatchSize               int     `json:"batch_size"`
	SendIntervalMS          int     `json:"send_interval_ms"`
	DebugMode               bool    `json:"debug_mode"`
}

// ValidScriptVersion reports whether v is a known script version.
func ValidScriptVersion(v ScriptVersion) bool {
	switch v {
	case ScriptV1Basic, ScriptV1Advanced, ScriptV2Enhanced:
		return true
	}
	return false
}

// ValidEnvironment reports whether e is a known environment.
func ValidEnvironment(e Environment) bool {
	switch e {
	case EnvDevelopment, EnvStaging, EnvProduction:
		return true
	}
	return false
}
