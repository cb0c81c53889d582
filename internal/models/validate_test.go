package models

import "testing"

func validToken() Token {
	return Token{
		TokenID:       "sgt_abc",
		WebsiteID:     "site-1",
		Status:        StatusActive,
		ScriptVersion: ScriptV2Enhanced,
		Environment:   EnvProduction,
		CreatedAt:     1000,
	}
}

func TestValidate(t *testing.T) {
	revokedAt := int64(2000)

	tests := []struct {
		name      string
		mutate    func(*Token)
		wantField string
	}{
		{"valid", func(tok *Token) {}, ""},
		{"empty token id", func(tok *Token) { tok.TokenID = "" }, "token_id"},
		{"empty website id", func(tok *Token) { tok.WebsiteID = "" }, "website_id"},
		{"unknown status", func(tok *Token) { tok.Status = "frozen" }, "status"},
		{"unknown script version", func(tok *Token) { tok.ScriptVersion = "v9" }, "script_version"},
		{"unknown environment", func(tok *Token) { tok.Environment = "qa" }, "environment"},
		{"negative usage count", func(tok *Token) { tok.UsageCount = -1 }, "usage_count"},
		{"negative regeneration count", func(tok *Token) { tok.RegenerationCount = -1 }, "regeneration_count"},
		{"revoked without timestamp", func(tok *Token) { tok.Status = StatusRevoked }, "revoked_at"},
		{"active with revoked timestamp", func(tok *Token) { tok.RevokedAt = &revokedAt }, "revoked_at"},
		{"revoked with timestamp", func(tok *Token) {
			tok.Status = StatusRevoked
			tok.RevokedAt = &revokedAt
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := validToken()
			tt.mutate(&tok)
			err := tok.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("expected valid token, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected violation on %s, got nil", tt.wantField)
			}
			if err.Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, err.Field)
			}
		})
	}
}

func TestIsRevoked(t *testing.T) {
	tok := validToken()
	if tok.IsRevoked() {
		t.Error("active token reported revoked")
	}
	tok.Status = StatusRevoked
	if !tok.IsRevoked() {
		t.Error("revoked token not reported revoked")
	}
}
