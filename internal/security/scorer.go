// Package security computes advisory security reports for script tokens.
package security

import (
	"time"

	"github.com/scriptgate/scriptgate/internal/models"
)

// Policy holds the thresholds the scorer and rotation scanner judge tokens
// against.
type Policy struct {
	MaxAgeDays          int
	MaxRegenerations    int
	LatestScriptVersion models.ScriptVersion
}

// DefaultPolicy returns the policy used when the caller does not override
// thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAgeDays:          90,
		MaxRegenerations:    10,
		LatestScriptVersion: models.LatestScriptVersion,
	}
}

// Report is the advisory result of scoring a token. It is computed on demand
// and never persisted or cached.
type Report struct {
	Score           int      `json:"security_score"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// rule is one entry in the penalty table. Each triggered rule subtracts its
// penalty and contributes exactly one issue and one recommendation.
type rule struct {
	applies        func(t *models.Token, p Policy, ageDays int) bool
	penalty        int
	issue          string
	recommendation string
}

// rules are evaluated in fixed order so identical tokens always produce
// identical reports.
var rules = []rule{
	{
		applies: func(t *models.Token, p Policy, ageDays int) bool {
			return ageDays > p.MaxAgeDays
		},
		penalty:        20,
		issue:          "token is older than the maximum policy age",
		recommendation: "regenerate the token to issue a fresh credential",
	},
	{
		applies: func(t *models.Token, p Policy, ageDays int) bool {
			return t.Environment == models.EnvProduction && t.ScriptVersion == models.ScriptV1Basic
		},
		penalty:        15,
		issue:          "outdated script in production",
		recommendation: "upgrade the production token to the latest script version",
	},
	{
		applies: func(t *models.Token, p Policy, ageDays int) bool {
			return t.RegenerationCount == 0 && ageDays > p.MaxAgeDays
		},
		penalty:        10,
		issue:          "token has never been rotated",
		recommendation: "establish a regular rotation schedule for this website",
	},
	{
		applies: func(t *models.Token, p Policy, ageDays int) bool {
			return t.Environment == models.EnvProduction && t.Config.DebugMode
		},
		penalty:        25,
		issue:          "debug mode enabled in production",
		recommendation: "disable debug mode in the token configuration",
	},
	{
		applies: func(t *models.Token, p Policy, ageDays int) bool {
			return t.RegenerationCount > p.MaxRegenerations
		},
		penalty:        10,
		issue:          "token lineage has been regenerated unusually often",
		recommendation: "review why this website's token keeps being replaced",
	},
}

// Evaluate scores a token against the policy at the given instant. It is a
// pure function of its inputs; the report never blocks lifecycle operations.
func Evaluate(t *models.Token, p Policy, now time.Time) Report {
	ageDays := AgeDays(t, now)

	report := Report{
		Score:           100,
		Issues:          []string{},
		Recommendations: []string{},
	}
	for _, r := range rules {
		if !r.applies(t, p, ageDays) {
			continue
		}
		report.Score -= r.penalty
		report.Issues = append(report.Issues, r.issue)
		report.Recommendations = append(report.Recommendations, r.recommendation)
	}
	if report.Score < 0 {
		report.Score = 0
	}
	return report
}

// AgeDays returns the token's age in whole days at the given instant.
func AgeDays(t *models.Token, now time.Time) int {
	created := time.Unix(t.CreatedAt, 0)
	if now.Before(created) {
		return 0
	}
	return int(now.Sub(created).Hours() / 24)
}
