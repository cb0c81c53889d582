// Package rotation identifies active tokens due for proactive regeneration.
// The scanner only reads token state; it never mutates anything, so it is
// safe to run on any schedule or on demand.
package rotation

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/scriptgate/scriptgate/internal/db"
	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/models"
	"github.com/scriptgate/scriptgate/internal/security"
)

// Priority orders rotation candidates.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

func priorityRank(p Priority) int {
	if p == PriorityHigh {
		return 0
	}
	return 1
}

// Candidate is an active token flagged for rotation, with the reasons it was
// flagged.
type Candidate struct {
	Token    models.Token
	AgeDays  int
	Reasons  []string
	Priority Priority
}

// Scanner scans the active token set against the rotation policy.
type Scanner struct {
	DB     *sql.DB
	Logger *zap.Logger
	Policy security.Policy

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewScanner creates a scanner with the default policy.
func NewScanner(database *sql.DB, logger *zap.Logger) *Scanner {
	return &Scanner{
		DB:     database,
		Logger: logger,
		Policy: security.DefaultPolicy(),
		Now:    time.Now,
	}
}

// Scan returns rotation candidates across all websites, sorted by priority
// (high before medium) and then by descending age. maxAgeDays overrides the
// policy threshold when positive.
func (s *Scanner) Scan(maxAgeDays int) ([]Candidate, error) {
	policy := s.Policy
	if maxAgeDays > 0 {
		policy.MaxAgeDays = maxAgeDays
	}
	now := s.Now()

	tokens, err := db.ListActiveTokens(s.DB)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for i := range tokens {
		t := &tokens[i]
		if c, ok := evaluate(t, policy, now); ok {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := priorityRank(candidates[i].Priority), priorityRank(candidates[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return candidates[i].AgeDays > candidates[j].AgeDays
	})
	return candidates, nil
}

func evaluate(t *models.Token, policy security.Policy, now time.Time) (Candidate, bool) {
	ageDays := security.AgeDays(t, now)

	var reasons []string
	if ageDays > policy.MaxAgeDays {
		reasons = append(reasons, "token exceeds maximum age")
	}
	if t.RegenerationCount == 0 && ageDays > policy.MaxAgeDays/2 {
		reasons = append(reasons, "token has never been rotated and is past half its maximum age")
	}
	if t.Environment == models.EnvProduction && t.ScriptVersion != policy.LatestScriptVersion {
		reasons = append(reasons, "production token is not on the latest script version")
	}
	if len(reasons) == 0 {
		return Candidate{}, false
	}

	priority := PriorityMedium
	if ageDays > 2*policy.MaxAgeDays {
		priority = PriorityHigh
	} else if t.Environment == models.EnvProduction {
		report := security.Evaluate(t, policy, now)
		if len(report.Issues) > 0 {
			priority = PriorityHigh
		}
	}

	return Candidate{
		Token:    *t,
		AgeDays:  ageDays,
		Reasons:  reasons,
		Priority: priority,
	}, true
}

// Run performs a scan every interval until the context is cancelled, logging
// each candidate. Used by the server's background sweep.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			candidates, err := s.Scan(0)
			if err != nil {
				s.Logger.Error("rotation sweep failed", zap.Error(err))
				continue
			}
			for _, c := range candidates {
				s.Logger.Warn("token due for rotation",
					logging.WebsiteID(c.Token.WebsiteID),
					logging.TokenID(c.Token.TokenID),
					logging.Priority(string(c.Priority)),
					logging.AgeDays(c.AgeDays),
					logging.Reasons(c.Reasons))
			}
			if len(candidates) == 0 {
				s.Logger.Debug("rotation sweep found no candidates")
			}
		}
	}
}
