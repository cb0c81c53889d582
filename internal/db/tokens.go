package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/scriptgate/scriptgate/internal/models"
)

const tokenColumns = `id, token_id, website_id, status, script_version, environment,
	config, config_version, usage_count, regeneration_count,
	created_at, last_used_at, revoked_at, revocation_reason, regeneration_reason`

// InsertToken inserts a new token row and returns its row ID.
func InsertToken(q Querier, t *models.Token) (int64, error) {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return 0, fmt.Errorf("marshal config: %w", err)
	}
	result, err := q.Exec(`INSERT INTO tokens
		(token_id, website_id, status, script_version, environment, config, config_version,
		 usage_count, regeneration_count, created_at, last_used_at, revoked_at,
		 revocation_reason, regeneration_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TokenID, t.WebsiteID, string(t.Status), string(t.ScriptVersion), string(t.Environment),
		string(cfg), t.ConfigVersion, t.UsageCount, t.RegenerationCount, t.CreatedAt,
		t.LastUsedAt, t.RevokedAt, t.RevocationReason, t.RegenerationReason,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func scanToken(scan func(dest ...any) error) (*models.Token, error) {
	var t models.Token
	var cfg string
	err := scan(&t.ID, &t.TokenID, &t.WebsiteID, &t.Status, &t.ScriptVersion, &t.Environment,
		&cfg, &t.ConfigVersion, &t.UsageCount, &t.RegenerationCount,
		&t.CreatedAt, &t.LastUsedAt, &t.RevokedAt, &t.RevocationReason, &t.RegenerationReason)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &t.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config for token %s: %w", t.TokenID, err)
	}
	return &t, nil
}

// GetTokenByID retrieves a token by its opaque token ID. Returns nil if not
// found.
func GetTokenByID(q Querier, tokenID string) (*models.Token, error) {
	row := q.QueryRow("SELECT "+tokenColumns+" FROM tokens WHERE token_id = ?", tokenID)
	t, err := scanToken(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetActiveToken retrieves the website's single active token. Returns nil if
// the website has no active token.
func GetActiveToken(q Querier, websiteID string) (*models.Token, error) {
	row := q.QueryRow(
		"SELECT "+tokenColumns+" FROM tokens WHERE website_id = ? AND status = ?",
		websiteID, string(models.StatusActive),
	)
	t, err := scanToken(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetLatestToken retrieves the website's most recently created token
// regardless of status. Returns nil if the website has never had a token.
func GetLatestToken(q Querier, websiteID string) (*models.Token, error) {
	row := q.QueryRow(
		"SELECT "+tokenColumns+" FROM tokens WHERE website_id = ? ORDER BY id DESC LIMIT 1",
		websiteID,
	)
	t, err := scanToken(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTokensByWebsite returns the website's full token lineage in creation
// order.
func ListTokensByWebsite(q Querier, websiteID string) ([]models.Token, error) {
	rows, err := q.Query(
		"SELECT "+tokenColumns+" FROM tokens WHERE website_id = ? ORDER BY id",
		websiteID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.Token
	for rows.Next() {
		t, err := scanToken(rows.Scan)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

// ListActiveTokens returns every active token across all websites, oldest
// first. The rotation scanner reads through this.
func ListActiveTokens(q Querier) ([]models.Token, error) {
	rows, err := q.Query(
		"SELECT "+tokenColumns+" FROM tokens WHERE status = ? ORDER BY created_at, id",
		string(models.StatusActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.Token
	for rows.Next() {
		t, err := scanToken(rows.Scan)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

// PromoteToken moves a pending token to active.
func PromoteToken(q Querier, id int64) error {
	_, err := q.Exec(
		"UPDATE tokens SET status = ? WHERE id = ? AND status = ?",
		string(models.StatusActive), id, string(models.StatusPending),
	)
	return err
}

// RevokeToken marks a token revoked with the supplied reason and timestamp.
func RevokeToken(q Querier, id int64, revokedAt int64, reason string) error {
	_, err := q.Exec(
		"UPDATE tokens SET status = ?, revoked_at = ?, revocation_reason = ? WHERE id = ?",
		string(models.StatusRevoked), revokedAt, reason, id,
	)
	return err
}

// UpdateTokenConfig replaces a token's configuration and bumps its config
// version.
func UpdateTokenConfig(q Querier, id int64, cfg models.Configuration, configVersion int) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = q.Exec(
		"UPDATE tokens SET config = ?, config_version = ? WHERE id = ?",
		string(raw), configVersion, id,
	)
	return err
}

// RecordTokenUsage bumps the usage counter and last-used timestamp.
func RecordTokenUsage(q Querier, id int64, usedAt int64) error {
	_, err := q.Exec(
		"UPDATE tokens SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?",
		usedAt, id,
	)
	return err
}

// CountActiveTokens returns how many active tokens a website currently has.
// Anything above one is an invariant violation.
func CountActiveTokens(q Querier, websiteID string) (int, error) {
	var count int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM tokens WHERE website_id = ? AND status = ?",
		websiteID, string(models.StatusActive),
	).Scan(&count)
	return count, err
}
