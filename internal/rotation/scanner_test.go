package rotation

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scriptgate/scriptgate/internal/db"
	"github.com/scriptgate/scriptgate/internal/lifecycle"
	"github.com/scriptgate/scriptgate/internal/models"
	"github.com/scriptgate/scriptgate/internal/widgetcfg"
)

var scanNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	scanner *Scanner
	engine  *lifecycle.Engine
}

func setupScanner(t *testing.T) *fixture {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "scriptgate_rotation_test_*.db")
	require.NoError(t, err)
	_ = tmpFile.Close()

	database, err := db.Open(tmpFile.Name())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = database.Close()
		_ = os.Remove(tmpFile.Name())
	})

	scanner := NewScanner(database, zap.NewNop())
	scanner.Now = func() time.Time { return scanNow }
	return &fixture{
		scanner: scanner,
		engine:  lifecycle.NewEngine(database, zap.NewNop()),
	}
}

// seedToken inserts a website with one active token of the given age.
func (f *fixture) seedToken(t *testing.T, id string, ageDays, regenCount int, env models.Environment, version models.ScriptVersion) {
	t.Helper()

	require.NoError(t, db.CreateWebsite(f.scanner.DB, &models.Website{
		ID:        id,
		Name:      id,
		URL:       "https://" + id + ".example.com",
		Status:    models.WebsiteActive,
		CreatedAt: scanNow.AddDate(0, 0, -ageDays).Unix(),
	}))
	tok := &models.Token{
		TokenID:           "sgt_" + id,
		WebsiteID:         id,
		Status:            models.StatusActive,
		ScriptVersion:     version,
		Environment:       env,
		Config:            widgetcfg.Default(),
		ConfigVersion:     1,
		RegenerationCount: regenCount,
		CreatedAt:         scanNow.AddDate(0, 0, -ageDays).Unix(),
	}
	_, err := db.InsertToken(f.scanner.DB, tok)
	require.NoError(t, err)
}

func TestScanEmptyDatabase(t *testing.T) {
	f := setupScanner(t)
	candidates, err := f.scanner.Scan(0)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFreshRotatedTokenIsNotACandidate(t *testing.T) {
	f := setupScanner(t)
	f.seedToken(t, "site-fresh", 10, 2, models.EnvStaging, models.ScriptV2Enhanced)

	candidates, err := f.scanner.Scan(0)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestAgedTokenIsACandidate(t *testing.T) {
	f := setupScanner(t)
	f.seedToken(t, "site-old", 120, 3, models.EnvStaging, models.ScriptV2Enhanced)

	candidates, err := f.scanner.Scan(0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, 120, c.AgeDays)
	assert.Equal(t, PriorityMedium, c.Priority)
	assert.Contains(t, c.Reasons, "token exceeds maximum age")
}

func TestNeverRotatedPastHalfLife(t *testing.T) {
	f := setupScanner(t)
	f.seedToken(t, "site-half", 50, 0, models.EnvStaging, models.ScriptV2Enhanced)

	candidates, err := f.scanner.Scan(0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Contains(t, candidates[0].Reasons,
		"token has never been rotated and is past half its maximum age")
}

func TestProductionOnStaleScriptVersion(t *testing.T) {
	f := setupScanner(t)
	f.seedToken(t, "site-prod", 5, 1, models.EnvProduction, models.ScriptV1Basic)

	candidates, err := f.scanner.Scan(0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Contains(t, c.Reasons, "production token is not on the latest script version")
	// Production with a scorer issue escalates the priority.
	assert.Equal(t, PriorityHigh, c.Priority)
}

func TestVeryOldTokenIsHighPriority(t *testing.T) {
	f := setupScanner(t)
	f.seedToken(t, "site-ancient", 200, 1, models.EnvStaging, models.ScriptV2Enhanced)

	candidates, err := f.scanner.Scan(0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, PriorityHigh, candidates[0].Priority)
}

func TestScanOrderingHighBeforeMediumThenAge(t *testing.T) {
	f := setupScanner(t)
	f.seedToken(t, "site-a", 100, 1, models.EnvStaging, models.ScriptV2Enhanced)    // medium, 100d
	f.seedToken(t, "site-b", 250, 1, models.EnvStaging, models.ScriptV2Enhanced)    // high, 250d
	f.seedToken(t, "site-c", 130, 1, models.EnvStaging, models.ScriptV2Enhanced)    // medium, 130d
	f.seedToken(t, "site-d", 5, 1, models.EnvProduction, models.ScriptV1Basic)      // high, 5d
	f.seedToken(t, "site-e", 10, 2, models.EnvDevelopment, models.ScriptV2Enhanced) // not a candidate

	candidates, err := f.scanner.Scan(0)
	require.NoError(t, err)
	require.Len(t, candidates, 4)

	// high never appears after medium.
	lastRank := 0
	for _, c := range candidates {
		rank := priorityRank(c.Priority)
		assert.GreaterOrEqual(t, rank, lastRank)
		lastRank = rank
	}

	assert.Equal(t, "sgt_site-b", candidates[0].Token.TokenID)
	assert.Equal(t, "sgt_site-d", candidates[1].Token.TokenID)
	assert.Equal(t, "sgt_site-c", candidates[2].Token.TokenID)
	assert.Equal(t, "sgt_site-a", candidates[3].Token.TokenID)
}

func TestScanMaxAgeOverride(t *testing.T) {
	f := setupScanner(t)
	f.seedToken(t, "site-mid", 40, 1, models.EnvStaging, models.ScriptV2Enhanced)

	candidates, err := f.scanner.Scan(0)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	candidates, err = f.scanner.Scan(30)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestScanIgnoresRevokedTokens(t *testing.T) {
	f := setupScanner(t)
	f.seedToken(t, "site-r", 300, 0, models.EnvProduction, models.ScriptV1Basic)

	_, err := f.engine.RevokeActive("site-r", "decommissioned", "ops")
	require.NoError(t, err)

	candidates, err := f.scanner.Scan(0)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
