// Package api defines the request and response shapes of the admin REST API.
package api

import "github.com/scriptgate/scriptgate/internal/widgetcfg"

type CreateWebsiteRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type WebsiteResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type ListWebsitesResponse struct {
	Websites []WebsiteResponse `json:"websites"`
}

type ConfigurationPayload struct {
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

type TokenResponse struct {
	TokenID            string               `json:"token_id"`
	WebsiteID          string               `json:"website_id"`
	Status             string               `json:"status"`
	ScriptVersion      string               `json:"script_version"`
	Environment        string               `json:"environment"`
	Config             ConfigurationPayload `json:"config"`
	ConfigVersion      int                  `json:"config_version"`
	UsageCount         int64                `json:"usage_count"`
	RegenerationCount  int                  `json:"regeneration_count"`
	CreatedAt          string               `json:"created_at"`
	LastUsedAt         *string              `json:"last_used_at"`
	RevokedAt          *string              `json:"revoked_at"`
	RevocationReason   *string              `json:"revocation_reason,omitempty"`
	RegenerationReason *string              `json:"regeneration_reason,omitempty"`
}

type GenerateTokenRequest struct {
	ScriptVersion string                `json:"script_version"`
	Environment   string                `json:"environment"`
	Config        *ConfigurationPayload `json:"config,omitempty"`
	Actor         string                `json:"actor,omitempty"`
	Reason        string                `json:"reason,omitempty"`
}

type RegenerateTokenRequest struct {
	ScriptVersion *string          `json:"script_version,omitempty"`
	Environment   *string          `json:"environment,omitempty"`
	Config        *widgetcfg.Patch `json:"config,omitempty"`
	Reason        string           `json:"reason"`
	Actor         string           `json:"actor,omitempty"`
}

type RegenerateTokenResponse struct {
	Token    TokenResponse `json:"token"`
	Previous TokenResponse `json:"previous"`
}

type RevokeTokenRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor,omitempty"`
}

type SecurityReportResponse struct {
	SecurityScore   int      `json:"security_score"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

type TokenWithReportResponse struct {
	Token          TokenResponse          `json:"token"`
	SecurityReport SecurityReportResponse `json:"security_report"`
}

type AuditEventResponse struct {
	WebsiteID string `json:"website_id"`
	TokenID   string `json:"token_id"`
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Reason    string `json:"reason"`
}

type HistoryResponse struct {
	WebsiteID string               `json:"website_id"`
	Tokens    []TokenResponse      `json:"tokens"`
	Events    []AuditEventResponse `json:"events"`
}

type RotationCandidateResponse struct {
	Token    TokenResponse `json:"token"`
	AgeDays  int           `json:"age_days"`
	Reasons  []string      `json:"rotation_reasons"`
	Priority string        `json:"rotation_priority"`
}

type RotationCandidatesResponse struct {
	MaxAgeDays int                         `json:"max_age_days"`
	Candidates []RotationCandidateResponse `json:"candidates"`
}

type ValidateTokenResponse struct {
	TokenID string `json:"token_id"`
	Active  bool   `json:"active"`
}

type RecordUsageRequest struct {
	TokenID string `json:"token_id"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
