// Package server implements the admin REST API.
package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scriptgate/scriptgate/internal/api"
	"github.com/scriptgate/scriptgate/internal/auth"
	"github.com/scriptgate/scriptgate/internal/db"
	"github.com/scriptgate/scriptgate/internal/lifecycle"
	"github.com/scriptgate/scriptgate/internal/models"
	"github.com/scriptgate/scriptgate/internal/rotation"
	"github.com/scriptgate/scriptgate/internal/security"
	"github.com/scriptgate/scriptgate/internal/widgetcfg"
)

type contextKey string

const actorContextKey contextKey = "actor"

// requestActor returns the audit actor for a request: the body-supplied actor
// when present, otherwise the authenticated key's prefix.
func requestActor(r *http.Request, supplied string) string {
	if supplied != "" {
		return supplied
	}
	if actor, ok := r.Context().Value(actorContextKey).(string); ok {
		return actor
	}
	return "unknown"
}

// APIServer handles the REST API for token lifecycle management.
type APIServer struct {
	DB      *sql.DB
	Engine  *lifecycle.Engine
	Scanner *rotation.Scanner
	Policy  security.Policy
	Logger  *zap.Logger
}

// AuthMiddleware validates API key authentication for protected routes.
func (s *APIServer) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			return
		}

		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		prefix, _, err := auth.ParseAPIKey(apiKey)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			return
		}

		storedKey, err := db.GetAPIKeyByPrefix(s.DB, prefix)
		if err != nil || storedKey == nil {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			return
		}

		if storedKey.RevokedAt != nil {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			return
		}

		if !auth.VerifyAPIKey(apiKey, storedKey.KeyHash) {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey, storedKey.KeyPrefix)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler returns the HTTP handler for the API server.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/websites", s.handleCreateWebsite)
	mux.HandleFunc("GET /v1/websites", s.handleListWebsites)
	mux.HandleFunc("GET /v1/websites/{website_id}", s.handleGetWebsite)

	// Validation lives outside /v1/tokens: a "validate" segment there would
	// be ambiguous with the {website_id} wildcard routes.
	mux.HandleFunc("GET /v1/validate/{token_id}", s.handleValidateToken)

	mux.HandleFunc("GET /v1/tokens/rotation-candidates", s.handleRotationCandidates)

	mux.HandleFunc("POST /v1/tokens/{website_id}/generate", s.handleGenerateToken)
	mux.HandleFunc("POST /v1/tokens/{website_id}/regenerate", s.handleRegenerateToken)
	mux.HandleFunc("POST /v1/tokens/{website_id}/revoke", s.handleRevokeToken)
	mux.HandleFunc("POST /v1/tokens/{website_id}/used", s.handleRecordUsage)
	mux.HandleFunc("GET /v1/tokens/{website_id}", s.handleGetToken)
	mux.HandleFunc("GET /v1/tokens/{website_id}/history", s.handleHistory)
	mux.HandleFunc("PUT /v1/tokens/{website_id}/config", s.handleUpdateConfig)

	return s.AuthMiddleware(mux)
}

// decodeJSON reads a request body into dst with the usual guards: size
// limit, unknown-field rejection, and no trailing data. An empty body leaves
// dst zero-valued.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16) // 64KB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: "request body too large"})
			return err
		}
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid JSON"})
		return err
	} else if err == io.EOF {
		return nil
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "unexpected trailing data"})
		return errors.New("trailing data")
	}
	return nil
}

func (s *APIServer) handleCreateWebsite(w http.ResponseWriter, r *http.Request) {
	var req api.CreateWebsiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "name required", Kind: string(lifecycle.KindValidation), Field: "name"})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "url required", Kind: string(lifecycle.KindValidation), Field: "url"})
		return
	}

	website := &models.Website{
		ID:        uuid.NewString(),
		Name:      req.Name,
		URL:       req.URL,
		Status:    models.WebsiteActive,
		CreatedAt: time.Now().Unix(),
	}
	if err := db.CreateWebsite(s.DB, website); err != nil {
		s.Logger.Error("failed to create website", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}

	writeJSON(w, http.StatusOK, websiteResponse(website))
}

func (s *APIServer) handleListWebsites(w http.ResponseWriter, r *http.Request) {
	websites, err := db.ListWebsites(s.DB)
	if err != nil {
		s.Logger.Error("failed to list websites", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}
	resp := api.ListWebsitesResponse{Websites: make([]api.WebsiteResponse, 0, len(websites))}
	for i := range websites {
		resp.Websites = append(resp.Websites, websiteResponse(&websites[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleGetWebsite(w http.ResponseWriter, r *http.Request) {
	website, err := db.GetWebsite(s.DB, r.PathValue("website_id"))
	if err != nil {
		s.Logger.Error("failed to get website", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}
	if website == nil {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "website not found", Kind: string(lifecycle.KindNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, websiteResponse(website))
}

func (s *APIServer) handleGenerateToken(w http.ResponseWriter, r *http.Request) {
	websiteID := r.PathValue("website_id")

	var req api.GenerateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	params := lifecycle.GenerateParams{
		ScriptVersion: models.ScriptVersion(req.ScriptVersion),
		Environment:   models.Environment(req.Environment),
	}
	if req.Config != nil {
		cfg := models.Configuration(*req.Config)
		params.Config = &cfg
	}

	tok, err := s.Engine.Generate(websiteID, params, req.Reason, requestActor(r, req.Actor))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(tok))
}

func (s *APIServer) handleRegenerateToken(w http.ResponseWriter, r *http.Request) {
	websiteID := r.PathValue("website_id")

	var req api.RegenerateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	var ov lifecycle.Overrides
	if req.ScriptVersion != nil {
		v := models.ScriptVersion(*req.ScriptVersion)
		ov.ScriptVersion = &v
	}
	if req.Environment != nil {
		e := models.Environment(*req.Environment)
		ov.Environment = &e
	}
	ov.Config = req.Config

	newTok, prev, err := s.Engine.Regenerate(websiteID, ov, req.Reason, requestActor(r, req.Actor))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RegenerateTokenResponse{
		Token:    tokenResponse(newTok),
		Previous: tokenResponse(prev),
	})
}

func (s *APIServer) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	websiteID := r.PathValue("website_id")

	var req api.RevokeTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	tok, err := s.Engine.RevokeActive(websiteID, req.Reason, requestActor(r, req.Actor))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(tok))
}

func (s *APIServer) handleGetToken(w http.ResponseWriter, r *http.Request) {
	tok, err := s.Engine.Current(r.PathValue("website_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	report := security.Evaluate(tok, s.Policy, time.Now())
	writeJSON(w, http.StatusOK, api.TokenWithReportResponse{
		Token: tokenResponse(tok),
		SecurityReport: api.SecurityReportResponse{
			SecurityScore:   report.Score,
			Issues:          report.Issues,
			Recommendations: report.Recommendations,
		},
	})
}

func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	websiteID := r.PathValue("website_id")

	tokens, events, err := s.Engine.History(websiteID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := api.HistoryResponse{
		WebsiteID: websiteID,
		Tokens:    make([]api.TokenResponse, 0, len(tokens)),
		Events:    make([]api.AuditEventResponse, 0, len(events)),
	}
	for i := range tokens {
		resp.Tokens = append(resp.Tokens, tokenResponse(&tokens[i]))
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, api.AuditEventResponse{
			WebsiteID: ev.WebsiteID,
			TokenID:   ev.TokenID,
			EventType: ev.EventType,
			Timestamp: formatTime(ev.CreatedAt),
			Actor:     ev.Actor,
			Reason:    ev.Reason,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	websiteID := r.PathValue("website_id")

	var patch widgetcfg.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		return
	}

	tok, err := s.Engine.UpdateConfig(websiteID, patch, requestActor(r, ""))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(tok))
}

func (s *APIServer) handleRotationCandidates(w http.ResponseWriter, r *http.Request) {
	maxAgeDays := 0
	if v := r.URL.Query().Get("max_age_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "max_age_days must be a positive integer", Kind: string(lifecycle.KindValidation), Field: "max_age_days"})
			return
		}
		maxAgeDays = n
	}

	candidates, err := s.Scanner.Scan(maxAgeDays)
	if err != nil {
		s.Logger.Error("rotation scan failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}

	effective := maxAgeDays
	if effective == 0 {
		effective = s.Scanner.Policy.MaxAgeDays
	}
	resp := api.RotationCandidatesResponse{
		MaxAgeDays: effective,
		Candidates: make([]api.RotationCandidateResponse, 0, len(candidates)),
	}
	for i := range candidates {
		c := &candidates[i]
		resp.Candidates = append(resp.Candidates, api.RotationCandidateResponse{
			Token:    tokenResponse(&c.Token),
			AgeDays:  c.AgeDays,
			Reasons:  c.Reasons,
			Priority: string(c.Priority),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	tokenID := r.PathValue("token_id")
	active, err := s.Engine.IsActive(tokenID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ValidateTokenResponse{TokenID: tokenID, Active: active})
}

func (s *APIServer) handleRecordUsage(w http.ResponseWriter, r *http.Request) {
	var req api.RecordUsageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.TokenID == "" {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "token_id required", Kind: string(lifecycle.KindValidation), Field: "token_id"})
		return
	}

	tok, err := s.Engine.RecordUsage(r.PathValue("website_id"), req.TokenID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(tok))
}

// writeError maps the lifecycle error taxonomy onto HTTP statuses.
func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	var le *lifecycle.Error
	if !errors.As(err, &le) {
		s.Logger.Error("unclassified error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch le.Kind {
	case lifecycle.KindValidation:
		status = http.StatusBadRequest
	case lifecycle.KindNotFound:
		status = http.StatusNotFound
	case lifecycle.KindInvalidState, lifecycle.KindConflict:
		status = http.StatusConflict
	case lifecycle.KindPersistence:
		s.Logger.Error("persistence failure", zap.Error(le))
	}

	writeJSON(w, status, api.ErrorResponse{
		Error:     le.Message,
		Kind:      string(le.Kind),
		Field:     le.Field,
		Retryable: le.Retryable(),
	})
}

func websiteResponse(website *models.Website) api.WebsiteResponse {
	return api.WebsiteResponse{
		ID:        website.ID,
		Name:      website.Name,
		URL:       website.URL,
		Status:    website.Status,
		CreatedAt: formatTime(website.CreatedAt),
	}
}

func tokenResponse(t *models.Token) api.TokenResponse {
	return api.TokenResponse{
		TokenID:            t.TokenID,
		WebsiteID:          t.WebsiteID,
		Status:             string(t.Status),
		ScriptVersion:      string(t.ScriptVersion),
		Environment:        string(t.Environment),
		Config:             api.ConfigurationPayload(t.Config),
		ConfigVersion:      t.ConfigVersion,
		UsageCount:         t.UsageCount,
		RegenerationCount:  t.RegenerationCount,
		CreatedAt:          formatTime(t.CreatedAt),
		LastUsedAt:         formatTimePtr(t.LastUsedAt),
		RevokedAt:          formatTimePtr(t.RevokedAt),
		RevocationReason:   t.RevocationReason,
		RegenerationReason: t.RegenerationReason,
	}
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func formatTimePtr(unix *int64) *string {
	if unix == nil {
		return nil
	}
	s := formatTime(*unix)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
