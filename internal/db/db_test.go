package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/scriptgate/scriptgate/internal/models"
	"github.com/scriptgate/scriptgate/internal/widgetcfg"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenCreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestMigrationsApplied(t *testing.T) {
	db := openTestDB(t)

	tables := []string{"schema_migrations", "websites", "tokens", "audit_events", "api_keys"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)

	var fkEnabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	if err != nil {
		t.Fatalf("PRAGMA foreign_keys failed: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys not enabled")
	}
}

func TestWebsiteCRUD(t *testing.T) {
	db := openTestDB(t)

	w := &models.Website{
		ID:     "site-1",
		Name:   "Example",
		URL:    "https://example.com",
		Status: models.WebsiteActive,
	}
	if err := CreateWebsite(db, w); err != nil {
		t.Fatalf("CreateWebsite failed: %v", err)
	}
	if w.CreatedAt == 0 {
		t.Error("CreatedAt was not populated")
	}

	got, err := GetWebsite(db, "site-1")
	if err != nil {
		t.Fatalf("GetWebsite failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetWebsite returned nil for existing website")
	}
	if got.Name != "Example" || got.URL != "https://example.com" {
		t.Errorf("unexpected website: %+v", got)
	}

	missing, err := GetWebsite(db, "no-such-site")
	if err != nil {
		t.Fatalf("GetWebsite failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown website, got %+v", missing)
	}

	if err := CreateWebsite(db, &models.Website{ID: "site-2", Name: "Other", URL: "https://other.com", Status: models.WebsiteActive}); err != nil {
		t.Fatalf("CreateWebsite failed: %v", err)
	}
	all, err := ListWebsites(db)
	if err != nil {
		t.Fatalf("ListWebsites failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 websites, got %d", len(all))
	}
}

func TestTokenRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if err := CreateWebsite(db, &models.Website{ID: "site-1", Name: "Example", URL: "https://example.com", Status: models.WebsiteActive, CreatedAt: 1000}); err != nil {
		t.Fatalf("CreateWebsite failed: %v", err)
	}

	cfg := widgetcfg.Default()
	cfg.SamplingRate = 0.5
	cfg.DebugMode = true
	tok := &models.Token{
		TokenID:       "sgt_abc123",
		WebsiteID:     "site-1",
		Status:        models.StatusActive,
		ScriptVersion: models.ScriptV2Enhanced,
		Environment:   models.EnvProduction,
		Config:        cfg,
		ConfigVersion: 1,
		CreatedAt:     2000,
	}
	id, err := InsertToken(db, tok)
	if err != nil {
		t.Fatalf("InsertToken failed: %v", err)
	}
	if id == 0 {
		t.Error("InsertToken returned zero row ID")
	}

	got, err := GetTokenByID(db, "sgt_abc123")
	if err != nil {
		t.Fatalf("GetTokenByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetTokenByID returned nil for existing token")
	}
	if got.Status != models.StatusActive || got.ScriptVersion != models.ScriptV2Enhanced {
		t.Errorf("unexpected token: %+v", got)
	}
	if got.Config.SamplingRate != 0.5 || !got.Config.DebugMode {
		t.Errorf("config did not round-trip: %+v", got.Config)
	}

	missing, err := GetTokenByID(db, "sgt_missing")
	if err != nil {
		t.Fatalf("GetTokenByID failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown token, got %+v", missing)
	}
}

func TestActiveTokenQueries(t *testing.T) {
	db := openTestDB(t)

	if err := CreateWebsite(db, &models.Website{ID: "site-1", Name: "Example", URL: "https://example.com", Status: models.WebsiteActive, CreatedAt: 1000}); err != nil {
		t.Fatalf("CreateWebsite failed: %v", err)
	}

	insert := func(tokenID string, status models.TokenStatus, createdAt int64) int64 {
		t.Helper()
		id, err := InsertToken(db, &models.Token{
			TokenID:       tokenID,
			WebsiteID:     "site-1",
			Status:        status,
			ScriptVersion: models.ScriptV1Basic,
			Environment:   models.EnvDevelopment,
			Config:        widgetcfg.Default(),
			ConfigVersion: 1,
			CreatedAt:     createdAt,
		})
		if err != nil {
			t.Fatalf("InsertToken failed: %v", err)
		}
		return id
	}

	oldID := insert("sgt_old", models.StatusActive, 1000)

	active, err := GetActiveToken(db, "site-1")
	if err != nil {
		t.Fatalf("GetActiveToken failed: %v", err)
	}
	if active == nil || active.TokenID != "sgt_old" {
		t.Fatalf("expected sgt_old active, got %+v", active)
	}

	// The partial unique index rejects a second active row.
	if _, err := InsertToken(db, &models.Token{
		TokenID:       "sgt_dup",
		WebsiteID:     "site-1",
		Status:        models.StatusActive,
		ScriptVersion: models.ScriptV1Basic,
		Environment:   models.EnvDevelopment,
		Config:        widgetcfg.Default(),
		ConfigVersion: 1,
		CreatedAt:     1500,
	}); err == nil {
		t.Error("expected unique index violation for second active token")
	}

	if err := RevokeToken(db, oldID, 2000, "rotated"); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	insert("sgt_new", models.StatusActive, 2000)

	active, err = GetActiveToken(db, "site-1")
	if err != nil {
		t.Fatalf("GetActiveToken failed: %v", err)
	}
	if active == nil || active.TokenID != "sgt_new" {
		t.Errorf("expected sgt_new active, got %+v", active)
	}

	latest, err := GetLatestToken(db, "site-1")
	if err != nil {
		t.Fatalf("GetLatestToken failed: %v", err)
	}
	if latest == nil || latest.TokenID != "sgt_new" {
		t.Errorf("expected sgt_new latest, got %+v", latest)
	}

	lineage, err := ListTokensByWebsite(db, "site-1")
	if err != nil {
		t.Fatalf("ListTokensByWebsite failed: %v", err)
	}
	if len(lineage) != 2 {
		t.Fatalf("expected 2 tokens in lineage, got %d", len(lineage))
	}
	if lineage[0].TokenID != "sgt_old" || lineage[1].TokenID != "sgt_new" {
		t.Errorf("lineage out of order: %s, %s", lineage[0].TokenID, lineage[1].TokenID)
	}
	if lineage[0].RevocationReason == nil || *lineage[0].RevocationReason != "rotated" {
		t.Errorf("revocation reason not stored: %+v", lineage[0].RevocationReason)
	}

	count, err := CountActiveTokens(db, "site-1")
	if err != nil {
		t.Fatalf("CountActiveTokens failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 active token, got %d", count)
	}
}

func TestPromoteToken(t *testing.T) {
	db := openTestDB(t)

	if err := CreateWebsite(db, &models.Website{ID: "site-1", Name: "Example", URL: "https://example.com", Status: models.WebsiteActive, CreatedAt: 1000}); err != nil {
		t.Fatalf("CreateWebsite failed: %v", err)
	}
	id, err := InsertToken(db, &models.Token{
		TokenID:       "sgt_pending",
		WebsiteID:     "site-1",
		Status:        models.StatusPending,
		ScriptVersion: models.ScriptV1Basic,
		Environment:   models.EnvDevelopment,
		Config:        widgetcfg.Default(),
		ConfigVersion: 1,
		CreatedAt:     1000,
	})
	if err != nil {
		t.Fatalf("InsertToken failed: %v", err)
	}

	if err := PromoteToken(db, id); err != nil {
		t.Fatalf("PromoteToken failed: %v", err)
	}
	got, err := GetTokenByID(db, "sgt_pending")
	if err != nil {
		t.Fatalf("GetTokenByID failed: %v", err)
	}
	if got.Status != models.StatusActive {
		t.Errorf("expected active after promote, got %s", got.Status)
	}
}

func TestRecordTokenUsage(t *testing.T) {
	db := openTestDB(t)

	if err := CreateWebsite(db, &models.Website{ID: "site-1", Name: "Example", URL: "https://example.com", Status: models.WebsiteActive, CreatedAt: 1000}); err != nil {
		t.Fatalf("CreateWebsite failed: %v", err)
	}
	id, err := InsertToken(db, &models.Token{
		TokenID:       "sgt_used",
		WebsiteID:     "site-1",
		Status:        models.StatusActive,
		ScriptVersion: models.ScriptV1Basic,
		Environment:   models.EnvDevelopment,
		Config:        widgetcfg.Default(),
		ConfigVersion: 1,
		CreatedAt:     1000,
	})
	if err != nil {
		t.Fatalf("InsertToken failed: %v", err)
	}

	if err := RecordTokenUsage(db, id, 5000); err != nil {
		t.Fatalf("RecordTokenUsage failed: %v", err)
	}
	if err := RecordTokenUsage(db, id, 6000); err != nil {
		t.Fatalf("RecordTokenUsage failed: %v", err)
	}

	got, err := GetTokenByID(db, "sgt_used")
	if err != nil {
		t.Fatalf("GetTokenByID failed: %v", err)
	}
	if got.UsageCount != 2 {
		t.Errorf("expected usage count 2, got %d", got.UsageCount)
	}
	if got.LastUsedAt == nil || *got.LastUsedAt != 6000 {
		t.Errorf("unexpected last_used_at: %+v", got.LastUsedAt)
	}
}

func TestAuditEventsOrdering(t *testing.T) {
	db := openTestDB(t)

	if err := CreateWebsite(db, &models.Website{ID: "site-1", Name: "Example", URL: "https://example.com", Status: models.WebsiteActive, CreatedAt: 1000}); err != nil {
		t.Fatalf("CreateWebsite failed: %v", err)
	}

	// Same second: ordering must fall back to insertion order.
	events := []models.AuditEvent{
		{WebsiteID: "site-1", TokenID: "sgt_a", EventType: models.EventCreated, CreatedAt: 1000, Actor: "admin"},
		{WebsiteID: "site-1", TokenID: "sgt_a", EventType: models.EventRevoked, CreatedAt: 1000, Actor: "admin", Reason: "superseded by regeneration"},
		{WebsiteID: "site-1", TokenID: "sgt_b", EventType: models.EventRegenerated, CreatedAt: 1000, Actor: "admin"},
	}
	for i := range events {
		if _, err := InsertAuditEvent(db, &events[i]); err != nil {
			t.Fatalf("InsertAuditEvent failed: %v", err)
		}
	}

	got, err := ListAuditEventsByWebsite(db, "site-1")
	if err != nil {
		t.Fatalf("ListAuditEventsByWebsite failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	wantTypes := []string{models.EventCreated, models.EventRevoked, models.EventRegenerated}
	for i, ev := range got {
		if ev.EventType != wantTypes[i] {
			t.Errorf("event %d: got %s, want %s", i, ev.EventType, wantTypes[i])
		}
	}

	byToken, err := ListAuditEventsByToken(db, "sgt_a")
	if err != nil {
		t.Fatalf("ListAuditEventsByToken failed: %v", err)
	}
	if len(byToken) != 2 {
		t.Errorf("expected 2 events for sgt_a, got %d", len(byToken))
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     int
		wantErr  bool
	}{
		{"valid", "0001_init.sql", 1, false},
		{"valid large", "123_add_column.sql", 123, false},
		{"missing underscore", "001.sql", 0, true},
		{"empty prefix", "_create_tables.sql", 0, true},
		{"non-numeric prefix", "abc_create_tables.sql", 0, true},
		{"empty string", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVersion(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseVersion(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("parseVersion(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
