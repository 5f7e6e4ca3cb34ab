// Package api provides HTTP API handlers.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/veritrust/veritrust/internal/analyze"
	"github.com/veritrust/veritrust/internal/auth"
	"github.com/veritrust/veritrust/internal/database"
	"github.com/veritrust/veritrust/internal/export"
	"github.com/veritrust/veritrust/internal/legal"
	"github.com/veritrust/veritrust/internal/llm"
	"github.com/veritrust/veritrust/internal/models"
	"github.com/veritrust/veritrust/internal/worker"
)

// Handler contains all HTTP handlers.
type Handler struct {
	store        database.Store
	analyzer     *analyze.Analyzer
	auth         *auth.Service
	persister    *worker.Persister
	maxBodyBytes int64
}

// NewHandler creates a new handler. maxUploadBytes bounds the decoded media
// size; the verify request body is capped at its base64-encoded equivalent
// plus envelope slack, so oversized payloads are refused while streaming in
// instead of after full materialization.
func NewHandler(store database.Store, analyzer *analyze.Analyzer, authSvc *auth.Service, persister *worker.Persister, maxUploadBytes int64) *Handler {
	const envelopeSlack = 64 << 10
	return &Handler{
		store:        store,
		analyzer:     analyzer,
		auth:         authSvc,
		persister:    persister,
		maxBodyBytes: int64(base64.StdEncoding.EncodedLen(int(maxUploadBytes))) + envelopeSlack,
	}
}

// HealthCheck returns the service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Signup creates an account and opens a session.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, token, err := h.auth.Signup(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusConflict, "Email already registered")
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Signup failed")
			writeError(w, http.StatusInternalServerError, "Failed to create account")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token":   token,
		"profile": profile,
	})
}

// Login verifies credentials and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, token, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		log.Error().Err(err).Msg("Login failed")
		writeError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"profile": profile,
	})
}

// Logout revokes the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			log.Error().Err(err).Msg("Failed to revoke session")
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Session returns the authenticated profile.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, getProfile(r.Context()))
}

// Verify runs one verification and returns the result immediately; the
// record is persisted in the background and the response does not depend
// on that write succeeding.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	profile := getProfile(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = models.ModeStandard
	}
	if !auth.ModeAllowed(profile.Role, mode) {
		writeError(w, http.StatusForbidden, "This analysis mode requires a lawyer or admin account")
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), profile.ID, &req)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}

	h.persister.Enqueue(profile.ID, result)

	writeJSON(w, http.StatusOK, redactForRole(result, profile.Role))
}

func (h *Handler) writeVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analyze.ErrBusy):
		writeError(w, http.StatusConflict, "An analysis is already in progress for this account")
	case errors.Is(err, analyze.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, llm.ErrAuth):
		writeError(w, http.StatusBadGateway, "Verification engine rejected the configured credentials")
	case errors.Is(err, llm.ErrEmptyReply),
		errors.Is(err, analyze.ErrEngineReply),
		errors.Is(err, analyze.ErrNormalization):
		log.Error().Err(err).Msg("Engine reply unusable")
		writeError(w, http.StatusBadGateway, "Verification engine returned an unusable reply")
	default:
		log.Error().Err(err).Msg("Verification failed")
		writeError(w, http.StatusInternalServerError, "Verification failed")
	}
}

// History returns the caller's verification records, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	profile := getProfile(r.Context())

	results, err := h.store.ListVerificationsByUser(r.Context(), profile.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list history")
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	for i := range results {
		redactInPlace(&results[i], profile.Role)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// Stats recomputes the caller's aggregate view from stored rows on every
// call; nothing is cached.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	profile := getProfile(r.Context())

	results, err := h.store.ListVerificationsByUser(r.Context(), profile.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute stats")
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	stats := models.UserStats{History: results}
	for i := range results {
		redactInPlace(&results[i], profile.Role)
		stats.TotalVerifications++
		if results[i].RiskLevel == models.RiskHigh {
			stats.HighRiskCount++
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetResult returns one verification record. Non-admins can only read their
// own records.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	profile := getProfile(r.Context())
	id := chi.URLParam(r, "id")

	result, ownerID, err := h.store.GetVerification(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get verification")
		writeError(w, http.StatusInternalServerError, "Failed to get result")
		return
	}
	if result == nil || (ownerID != profile.ID && profile.Role != models.RoleAdmin) {
		writeError(w, http.StatusNotFound, "Result not found")
		return
	}

	writeJSON(w, http.StatusOK, redactForRole(result, profile.Role))
}

// ExportHistory streams the caller's history as CSV.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	profile := getProfile(r.Context())

	results, err := h.store.ListVerificationsByUser(r.Context(), profile.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to export history")
		writeError(w, http.StatusInternalServerError, "Failed to export history")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="verification_history.csv"`)
	if err := export.WriteUserHistory(w, results); err != nil {
		log.Error().Err(err).Msg("CSV export failed mid-stream")
	}
}

// ListStatutes searches the statute reference.
func (h *Handler) ListStatutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	matches := legal.Search(q.Get("query"), q.Get("relevance"), q.Get("category"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"statutes": matches,
		"count":    len(matches),
	})
}

// SuggestStatutes recommends statutes for a stored verification record.
func (h *Handler) SuggestStatutes(w http.ResponseWriter, r *http.Request) {
	profile := getProfile(r.Context())
	id := chi.URLParam(r, "id")

	result, ownerID, err := h.store.GetVerification(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get verification")
		writeError(w, http.StatusInternalServerError, "Failed to get result")
		return
	}
	if result == nil || (ownerID != profile.ID && profile.Role != models.RoleAdmin) {
		writeError(w, http.StatusNotFound, "Result not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": legal.Recommend(result),
	})
}

// AdminOverview returns platform-wide aggregates.
func (h *Handler) AdminOverview(w http.ResponseWriter, r *http.Request) {
	dist, err := h.store.CountVerificationsByRisk(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute overview")
		writeError(w, http.StatusInternalServerError, "Failed to load overview")
		return
	}

	profiles, err := h.store.ListProfiles(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list profiles")
		writeError(w, http.StatusInternalServerError, "Failed to load overview")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"riskDistribution":   dist,
		"totalVerifications": dist.Low + dist.Medium + dist.High,
		"totalUsers":         len(profiles),
	})
}

// AdminReports returns paginated verifications across all users.
func (h *Handler) AdminReports(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset := queryInt(r, "offset", 0)

	results, err := h.store.ListAllVerifications(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reports")
		writeError(w, http.StatusInternalServerError, "Failed to load reports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
		"limit":   limit,
		"offset":  offset,
	})
}

// AdminUsers lists all registered profiles with their report counts.
func (h *Handler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.ListProfiles(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		writeError(w, http.StatusInternalServerError, "Failed to load users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": profiles,
		"count": len(profiles),
	})
}

// AdminExport streams the cross-user report as CSV.
func (h *Handler) AdminExport(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.ListAllVerifications(r.Context(), 10000, 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to export reports")
		writeError(w, http.StatusInternalServerError, "Failed to export reports")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="verification_reports.csv"`)
	if err := export.WriteAdminReport(w, results); err != nil {
		log.Error().Err(err).Msg("CSV export failed mid-stream")
	}
}

// redactForRole strips legal and investigative output from records shown to
// plain user accounts.
func redactForRole(r *models.VerificationResult, role models.Role) *models.VerificationResult {
	if role == models.RoleUser && r.LegalAssessment != nil {
		clone := *r
		clone.LegalAssessment = nil
		return &clone
	}
	return r
}

func redactInPlace(r *models.VerificationResult, role models.Role) {
	if role == models.RoleUser {
		r.LegalAssessment = nil
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
