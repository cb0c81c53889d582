// Package lifecycle implements the script token state machine: issuance,
// regeneration, revocation, and configuration updates. Every transition and
// its audit event commit in one transaction; mutations on the same website
// are serialized.
package lifecycle

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scriptgate/scriptgate/internal/db"
	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/models"
	"github.com/scriptgate/scriptgate/internal/token"
	"github.com/scriptgate/scriptgate/internal/widgetcfg"
)

// RevocationReasonSuperseded is written to the prior token when a new one
// replaces it within a single transition.
const RevocationReasonSuperseded = "superseded by regeneration"

// Engine drives token lifecycle transitions. It is the sole writer of token
// and audit rows.
type Engine struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates a lifecycle engine over an open database.
func NewEngine(database *sql.DB, logger *zap.Logger) *Engine {
	return &Engine{
		db:     database,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// websiteLock returns the mutex serializing mutations for one website.
// Operations on different websites proceed independently. The map holds one
// entry per website ever mutated and is never pruned.
func (e *Engine) websiteLock(websiteID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[websiteID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[websiteID] = l
	}
	return l
}

// GenerateParams are the inputs to token issuance. A nil Config issues the
// default collection configuration.
type GenerateParams struct {
	ScriptVersion models.ScriptVersion
	Environment   models.Environment
	Config        *models.Configuration
}

// Overrides optionally replace inherited values during regeneration.
type Overrides struct {
	ScriptVersion *models.ScriptVersion
	Environment   *models.Environment
	Config        *widgetcfg.Patch
}

// Generate issues a new token for the website. If an active token already
// exists it is superseded atomically: the old token is revoked and the new
// one activated in the same transaction, carrying the regeneration count
// forward.
func (e *Engine) Generate(websiteID string, params GenerateParams, reason, actor string) (*models.Token, error) {
	if !models.ValidScriptVersion(params.ScriptVersion) {
		return nil, validation("script_version", "unknown script version %q", params.ScriptVersion)
	}
	if !models.ValidEnvironment(params.Environment) {
		return nil, validation("environment", "unknown environment %q", params.Environment)
	}
	cfg := widgetcfg.Default()
	if params.Config != nil {
		cfg = *params.Config
	}
	if errs := widgetcfg.Validate(cfg); len(errs) > 0 {
		return nil, validationFrom(errs)
	}

	lock := e.websiteLock(websiteID)
	lock.Lock()
	defer lock.Unlock()

	tok, err := e.issue(websiteID, params.ScriptVersion, params.Environment, cfg, reason, actor)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// Regenerate replaces the website's active token with a fresh one, inheriting
// script version, environment, and configuration unless overridden. The old
// token ends up revoked with the superseded reason; the new token's
// regeneration count is strictly one higher.
func (e *Engine) Regenerate(websiteID string, ov Overrides, reason, actor string) (newTok, prev *models.Token, err error) {
	lock := e.websiteLock(websiteID)
	lock.Lock()
	defer lock.Unlock()

	prev, err = e.activeToken(websiteID)
	if err != nil {
		return nil, nil, err
	}

	version := prev.ScriptVersion
	if ov.ScriptVersion != nil {
		if !models.ValidScriptVersion(*ov.ScriptVersion) {
			return nil, nil, validation("script_version", "unknown script version %q", *ov.ScriptVersion)
		}
		version = *ov.ScriptVersion
	}
	env := prev.Environment
	if ov.Environment != nil {
		if !models.ValidEnvironment(*ov.Environment) {
			return nil, nil, validation("environment", "unknown environment %q", *ov.Environment)
		}
		env = *ov.Environment
	}
	cfg := prev.Config
	if ov.Config != nil {
		merged, errs := widgetcfg.Merge(cfg, *ov.Config)
		if len(errs) > 0 {
			return nil, nil, validationFrom(errs)
		}
		cfg = merged
	}

	newTok, err = e.issue(websiteID, version, env, cfg, reason, actor)
	if err != nil {
		return nil, nil, err
	}

	revokedAt := newTok.CreatedAt
	reasonStr := RevocationReasonSuperseded
	prev.Status = models.StatusRevoked
	prev.RevokedAt = &revokedAt
	prev.RevocationReason = &reasonStr
	return newTok, prev, nil
}

// issue creates and activates a token, superseding any existing active token,
// all inside one transaction with the audit write. Callers hold the website
// lock.
func (e *Engine) issue(websiteID string, version models.ScriptVersion, env models.Environment, cfg models.Configuration, reason, actor string) (*models.Token, error) {
	tokenID, err := token.Generate()
	if err != nil {
		return nil, persistence("generate token id", err)
	}
	now := e.now().Unix()

	tx, err := e.db.Begin()
	if err != nil {
		return nil, persistence("begin transaction", err)
	}
	defer tx.Rollback()

	website, err := db.GetWebsite(tx, websiteID)
	if err != nil {
		return nil, persistence("load website", err)
	}
	if website == nil {
		return nil, notFound("website %s not found", websiteID)
	}
	if website.Status != models.WebsiteActive {
		return nil, validation("website_id", "website %s is inactive", websiteID)
	}

	prev, err := db.GetActiveToken(tx, websiteID)
	if err != nil {
		return nil, persistence("load active token", err)
	}

	t := &models.Token{
		TokenID:       tokenID,
		WebsiteID:     websiteID,
		Status:        models.StatusPending,
		ScriptVersion: version,
		Environment:   env,
		Config:        cfg,
		ConfigVersion: 1,
		CreatedAt:     now,
	}
	eventType := models.EventCreated
	if prev != nil {
		t.RegenerationCount = prev.RegenerationCount + 1
		if reason != "" {
			r := reason
			t.RegenerationReason = &r
		}
		eventType = models.EventRegenerated
	}
	if verr := t.Validate(); verr != nil {
		return nil, validation(verr.Field, "%s", verr.Reason)
	}

	id, err := db.InsertToken(tx, t)
	if err != nil {
		return nil, classify("insert token", err)
	}
	t.ID = id

	if prev != nil {
		if err := db.RevokeToken(tx, prev.ID, now, RevocationReasonSuperseded); err != nil {
			return nil, classify("supersede prior token", err)
		}
	}

	// The pending state exists only inside this transaction; outside readers
	// never observe it.
	if err := db.PromoteToken(tx, id); err != nil {
		return nil, classify("promote token", err)
	}
	t.Status = models.StatusActive

	if _, err := db.InsertAuditEvent(tx, &models.AuditEvent{
		WebsiteID: websiteID,
		TokenID:   tokenID,
		EventType: eventType,
		CreatedAt: now,
		Actor:     actor,
		Reason:    reason,
	}); err != nil {
		return nil, persistence("write audit event", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("commit transaction", err)
	}

	e.logger.Info("token issued",
		logging.WebsiteID(websiteID),
		logging.TokenID(tokenID),
		logging.Event(eventType),
		logging.Actor(actor))
	return t, nil
}

// RevokeActive revokes the website's current active token. It fails with
// NotFound when the website has no active token; a fresh generate is the only
// recovery path after a revoke.
func (e *Engine) RevokeActive(websiteID, reason, actor string) (*models.Token, error) {
	lock := e.websiteLock(websiteID)
	lock.Lock()
	defer lock.Unlock()

	now := e.now().Unix()

	tx, err := e.db.Begin()
	if err != nil {
		return nil, persistence("begin transaction", err)
	}
	defer tx.Rollback()

	website, err := db.GetWebsite(tx, websiteID)
	if err != nil {
		return nil, persistence("load website", err)
	}
	if website == nil {
		return nil, notFound("website %s not found", websiteID)
	}

	active, err := db.GetActiveToken(tx, websiteID)
	if err != nil {
		return nil, persistence("load active token", err)
	}
	if active == nil {
		return nil, notFound("website %s has no active token", websiteID)
	}

	if err := db.RevokeToken(tx, active.ID, now, reason); err != nil {
		return nil, classify("revoke token", err)
	}

	if _, err := db.InsertAuditEvent(tx, &models.AuditEvent{
		WebsiteID: websiteID,
		TokenID:   active.TokenID,
		EventType: models.EventRevoked,
		CreatedAt: now,
		Actor:     actor,
		Reason:    reason,
	}); err != nil {
		return nil, persistence("write audit event", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("commit transaction", err)
	}

	active.Status = models.StatusRevoked
	active.RevokedAt = &now
	active.RevocationReason = &reason

	e.logger.Info("token revoked",
		logging.WebsiteID(websiteID),
		logging.TokenID(active.TokenID),
		logging.Actor(actor))
	return active, nil
}

// Revoke revokes a single token by its opaque ID. Revoking an already-revoked
// token is a no-op returning the terminal state without a new audit event.
func (e *Engine) Revoke(tokenID, reason, actor string) (*models.Token, error) {
	existing, err := db.GetTokenByID(e.db, tokenID)
	if err != nil {
		return nil, persistence("load token", err)
	}
	if existing == nil {
		return nil, notFound("token %s not found", tokenID)
	}

	lock := e.websiteLock(existing.WebsiteID)
	lock.Lock()
	defer lock.Unlock()

	now := e.now().Unix()

	tx, err := e.db.Begin()
	if err != nil {
		return nil, persistence("begin transaction", err)
	}
	defer tx.Rollback()

	t, err := db.GetTokenByID(tx, tokenID)
	if err != nil {
		return nil, persistence("load token", err)
	}
	if t == nil {
		return nil, notFound("token %s not found", tokenID)
	}
	if t.IsRevoked() {
		return t, nil
	}

	if err := db.RevokeToken(tx, t.ID, now, reason); err != nil {
		return nil, classify("revoke token", err)
	}

	if _, err := db.InsertAuditEvent(tx, &models.AuditEvent{
		WebsiteID: t.WebsiteID,
		TokenID:   t.TokenID,
		EventType: models.EventRevoked,
		CreatedAt: now,
		Actor:     actor,
		Reason:    reason,
	}); err != nil {
		return nil, persistence("write audit event", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("commit transaction", err)
	}

	t.Status = models.StatusRevoked
	t.RevokedAt = &now
	t.RevocationReason = &reason
	return t, nil
}

// UpdateConfig merges a partial configuration onto the website's active token
// and bumps its config version. Rejected on revoked tokens; the merge either
// fully applies or fully fails. An empty patch is a validation error, not a
// version bump.
func (e *Engine) UpdateConfig(websiteID string, patch widgetcfg.Patch, actor string) (*models.Token, error) {
	if patch.IsEmpty() {
		return nil, validation("config", "no configuration fields supplied")
	}

	lock := e.websiteLock(websiteID)
	lock.Lock()
	defer lock.Unlock()

	now := e.now().Unix()

	tx, err := e.db.Begin()
	if err != nil {
		return nil, persistence("begin transaction", err)
	}
	defer tx.Rollback()

	website, err := db.GetWebsite(tx, websiteID)
	if err != nil {
		return nil, persistence("load website", err)
	}
	if website == nil {
		return nil, notFound("website %s not found", websiteID)
	}

	active, err := db.GetActiveToken(tx, websiteID)
	if err != nil {
		return nil, persistence("load active token", err)
	}
	if active == nil {
		latest, err := db.GetLatestToken(tx, websiteID)
		if err != nil {
			return nil, persistence("load latest token", err)
		}
		if latest == nil {
			return nil, notFound("website %s has no token", websiteID)
		}
		return nil, invalidState("cannot update configuration of a %s token", latest.Status)
	}

	merged, verrs := widgetcfg.Merge(active.Config, patch)
	if len(verrs) > 0 {
		return nil, validationFrom(verrs)
	}

	newVersion := active.ConfigVersion + 1
	if err := db.UpdateTokenConfig(tx, active.ID, merged, newVersion); err != nil {
		return nil, classify("update token config", err)
	}

	if _, err := db.InsertAuditEvent(tx, &models.AuditEvent{
		WebsiteID: websiteID,
		TokenID:   active.TokenID,
		EventType: models.EventConfigUpdated,
		CreatedAt: now,
		Actor:     actor,
		Reason:    "configuration updated",
	}); err != nil {
		return nil, persistence("write audit event", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("commit transaction", err)
	}

	active.Config = merged
	active.ConfigVersion = newVersion
	return active, nil
}

// RecordUsage bumps the usage counter on an active token. The token must
// belong to the given website; a mismatch is NotFound and nothing is written.
// This is the widget boundary, not a lifecycle transition; no audit event is
// written.
func (e *Engine) RecordUsage(websiteID, tokenID string) (*models.Token, error) {
	t, err := db.GetTokenByID(e.db, tokenID)
	if err != nil {
		return nil, persistence("load token", err)
	}
	if t == nil || t.WebsiteID != websiteID {
		return nil, notFound("token %s not found", tokenID)
	}
	if t.Status != models.StatusActive {
		return nil, invalidState("token %s is %s, not active", tokenID, t.Status)
	}

	now := e.now().Unix()
	if err := db.RecordTokenUsage(e.db, t.ID, now); err != nil {
		return nil, classify("record token usage", err)
	}
	t.UsageCount++
	t.LastUsedAt = &now
	return t, nil
}

// IsActive reports whether the token exists and is currently active. This is
// the sole runtime check the verification endpoint depends on.
func (e *Engine) IsActive(tokenID string) (bool, error) {
	t, err := db.GetTokenByID(e.db, tokenID)
	if err != nil {
		return false, persistence("load token", err)
	}
	return t != nil && t.Status == models.StatusActive, nil
}

// Current returns the website's active token.
func (e *Engine) Current(websiteID string) (*models.Token, error) {
	return e.activeToken(websiteID)
}

func (e *Engine) activeToken(websiteID string) (*models.Token, error) {
	website, err := db.GetWebsite(e.db, websiteID)
	if err != nil {
		return nil, persistence("load website", err)
	}
	if website == nil {
		return nil, notFound("website %s not found", websiteID)
	}
	active, err := db.GetActiveToken(e.db, websiteID)
	if err != nil {
		return nil, persistence("load active token", err)
	}
	if active == nil {
		return nil, notFound("website %s has no active token", websiteID)
	}
	return active, nil
}

// History returns the website's token lineage in creation order together
// with its audit trail.
func (e *Engine) History(websiteID string) ([]models.Token, []models.AuditEvent, error) {
	website, err := db.GetWebsite(e.db, websiteID)
	if err != nil {
		return nil, nil, persistence("load website", err)
	}
	if website == nil {
		return nil, nil, notFound("website %s not found", websiteID)
	}
	tokens, err := db.ListTokensByWebsite(e.db, websiteID)
	if err != nil {
		return nil, nil, persistence("list tokens", err)
	}
	events, err := db.ListAuditEventsByWebsite(e.db, websiteID)
	if err != nil {
		return nil, nil, persistence("list audit events", err)
	}
	return tokens, events, nil
}

// classify maps store errors onto the lifecycle taxonomy. sqlite busy and
// unique-index races on the single-active invariant surface as retryable
// conflicts.
func classify(msg string, err error) *Error {
	s := err.Error()
	if strings.Contains(s, "database is locked") ||
		strings.Contains(s, "SQLITE_BUSY") ||
		strings.Contains(s, "idx_tokens_one_active_per_website") {
		return &Error{Kind: KindConflict, Message: msg, Err: err}
	}
	return persistence(msg, err)
}
