package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrust/veritrust/internal/analyze"
	"github.com/veritrust/veritrust/internal/auth"
	"github.com/veritrust/veritrust/internal/config"
	"github.com/veritrust/veritrust/internal/database"
	"github.com/veritrust/veritrust/internal/llm"
	"github.com/veritrust/veritrust/internal/models"
	"github.com/veritrust/veritrust/internal/worker"
)

// queueProvider replays canned replies in order.
type queueProvider struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
}

func (p *queueProvider) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.replies) {
		return p.replies[i], nil
	}
	return "", fmt.Errorf("no canned reply left")
}

func (p *queueProvider) Name() string { return "queue" }

type testServer struct {
	srv      *httptest.Server
	provider *queueProvider
	store    database.Store
}

func newTestServer(t *testing.T, adminEmails ...string) *testServer {
	t.Helper()

	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	cfg.Auth.AdminEmails = adminEmails
	cfg.Analysis.MaxRetries = 0
	cfg.Analysis.MaxUploadBytes = 1024
	cfg.RateLimits.RequestsPerMinute = 1000

	provider := &queueProvider{}
	analyzer := analyze.NewAnalyzer(&cfg.Analysis, provider)
	authSvc := auth.NewService(store, &cfg.Auth)
	persister := worker.NewPersister(store, 1, 16)
	t.Cleanup(persister.Close)

	router := NewRouter(cfg, store, analyzer, authSvc, persister)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, provider: provider, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+"/api/v1"+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (ts *testServer) signup(t *testing.T, email string, role models.Role) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/auth/signup", "", models.SignupRequest{
		Email: email, Password: "longenough", Role: role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
	}
	decode(t, resp, &body)
	require.NotEmpty(t, body.Token)
	return body.Token
}

func engineReply(extra map[string]interface{}) string {
	payload := map[string]interface{}{
		"fakeProbability":  88.0,
		"riskLevel":        "high",
		"confidenceScore":  0.9,
		"reasoning":        "Fabricated claim.",
		"isMisinformation": true,
		"originLabel":      "ai-generated",
		"fingerprint":      "fp-1",
		"publishRiskScore": 70.0,
		"literacyTip":      "Verify sources.",
		"verificationHash": "vh-1",
	}
	for k, v := range extra {
		payload[k] = v
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func legalBlock() map[string]interface{} {
	return map[string]interface{}{
		"legalAssessment": map[string]interface{}{
			"probativeValue":       "High",
			"courtReadySummary":    "Consistent manipulation markers.",
			"forensicRedFlags":     []string{"metadata stripped"},
			"expertRecommendation": "Preserve the original.",
			"applicableLaws": []map[string]interface{}{{
				"title": "Information Technology Act, 2000", "section": "Section 66D",
				"description": "Cheating by personation.", "relevanceLevel": "Direct", "category": "Fraud",
			}},
		},
	}
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/history", "vt_bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyAndHistory(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "alice@example.com", models.RoleUser)
	ts.provider.replies = []string{engineReply(nil)}

	resp := ts.do(t, http.MethodPost, "/verify", token, models.VerifyRequest{
		Type: models.ContentTypeText, Content: "the moon is made of cheese",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.VerificationResult
	decode(t, resp, &result)
	assert.Equal(t, models.RiskHigh, result.RiskLevel)
	assert.NotEmpty(t, result.ID)
	assert.NotEmpty(t, result.ContentHash)

	// Persistence is asynchronous; the record appears shortly after.
	require.Eventually(t, func() bool {
		resp := ts.do(t, http.MethodGet, "/history", token, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var body struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		return body.Count == 1
	}, 3*time.Second, 50*time.Millisecond)

	statsResp := ts.do(t, http.MethodGet, "/stats", token, nil)
	require.Equal(t, http.StatusOK, statsResp.StatusCode)
	var stats models.UserStats
	decode(t, statsResp, &stats)
	assert.Equal(t, 1, stats.TotalVerifications)
	assert.Equal(t, 1, stats.HighRiskCount)
}

func TestVerifyErrorMapping(t *testing.T) {
	t.Run("invalid input", func(t *testing.T) {
		ts := newTestServer(t)
		token := ts.signup(t, "a@example.com", models.RoleUser)
		resp := ts.do(t, http.MethodPost, "/verify", token, models.VerifyRequest{
			Type: models.ContentTypeText, Content: "  ",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("engine auth rejection", func(t *testing.T) {
		ts := newTestServer(t)
		token := ts.signup(t, "a@example.com", models.RoleUser)
		ts.provider.errs = []error{llm.ErrAuth}
		resp := ts.do(t, http.MethodPost, "/verify", token, models.VerifyRequest{
			Type: models.ContentTypeText, Content: "claim",
		})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var body map[string]string
		decode(t, resp, &body)
		assert.Contains(t, body["error"], "credentials")
	})

	t.Run("malformed engine reply", func(t *testing.T) {
		ts := newTestServer(t)
		token := ts.signup(t, "a@example.com", models.RoleUser)
		ts.provider.replies = []string{"not json at all"}
		resp := ts.do(t, http.MethodPost, "/verify", token, models.VerifyRequest{
			Type: models.ContentTypeText, Content: "claim",
		})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestModeGating(t *testing.T) {
	ts := newTestServer(t)

	t.Run("user cannot request legal mode", func(t *testing.T) {
		token := ts.signup(t, "user@example.com", models.RoleUser)
		resp := ts.do(t, http.MethodPost, "/verify", token, models.VerifyRequest{
			Type: models.ContentTypeText, Content: "claim", Mode: models.ModeLegal,
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("lawyer receives legal assessment", func(t *testing.T) {
		token := ts.signup(t, "counsel@example.com", models.RoleLawyer)
		ts.provider.replies = []string{engineReply(legalBlock())}
		resp := ts.do(t, http.MethodPost, "/verify", token, models.VerifyRequest{
			Type: models.ContentTypeText, Content: "claim", Mode: models.ModeLegal,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result models.VerificationResult
		decode(t, resp, &result)
		require.NotNil(t, result.LegalAssessment)
		assert.Equal(t, "High", result.LegalAssessment.ProbativeValue)
	})
}

func TestRoleGatedRoutes(t *testing.T) {
	ts := newTestServer(t, "root@example.com")
	userToken := ts.signup(t, "user@example.com", models.RoleUser)
	lawyerToken := ts.signup(t, "counsel@example.com", models.RoleLawyer)
	adminToken := ts.signup(t, "root@example.com", models.RoleUser)

	t.Run("statutes require lawyer or admin", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/legal/statutes", userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = ts.do(t, http.MethodGet, "/legal/statutes?category=Fraud", lawyerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("admin routes require admin", func(t *testing.T) {
		for _, path := range []string{"/admin/overview", "/admin/reports", "/admin/users"} {
			resp := ts.do(t, http.MethodGet, path, lawyerToken, nil)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)

			resp = ts.do(t, http.MethodGet, path, adminToken, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		}
	})

	t.Run("allow-listed signup got admin role", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/auth/session", adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var profile models.UserProfile
		decode(t, resp, &profile)
		assert.Equal(t, models.RoleAdmin, profile.Role)
	})
}

func TestResultOwnership(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := ts.signup(t, "alice@example.com", models.RoleUser)
	bobToken := ts.signup(t, "bob@example.com", models.RoleUser)

	ts.provider.replies = []string{engineReply(nil)}
	resp := ts.do(t, http.MethodPost, "/verify", aliceToken, models.VerifyRequest{
		Type: models.ContentTypeText, Content: "claim",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result models.VerificationResult
	decode(t, resp, &result)

	require.Eventually(t, func() bool {
		r := ts.do(t, http.MethodGet, "/results/"+result.ID, aliceToken, nil)
		return r.StatusCode == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	resp = ts.do(t, http.MethodGet, "/results/"+result.ID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVerifyUploadBounds(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "alice@example.com", models.RoleUser)

	t.Run("media above the configured cap", func(t *testing.T) {
		// 4 KiB of media against a 1 KiB cap.
		big := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("x"), 4096))
		resp := ts.do(t, http.MethodPost, "/verify", token, models.VerifyRequest{
			Type: models.ContentTypeImage, Media: big, MIMEType: "image/png",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]string
		decode(t, resp, &body)
		assert.Contains(t, body["error"], "upload limit")
	})

	t.Run("request body beyond the hard bound", func(t *testing.T) {
		// Far past the encoded cap plus envelope slack; the body reader
		// must cut the request off rather than buffer it all.
		huge := strings.Repeat("A", 200<<10)
		resp := ts.do(t, http.MethodPost, "/verify", token, models.VerifyRequest{
			Type: models.ContentTypeImage, Media: huge, MIMEType: "image/png",
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})
}

func TestLegalRedactionForUserRole(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "user@example.com", models.RoleUser)

	resp := ts.do(t, http.MethodGet, "/auth/session", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var profile models.UserProfile
	decode(t, resp, &profile)

	// Seed a stored row that already carries a populated legal assessment,
	// as if crafted outside the normal mode gate.
	seeded := &models.VerificationResult{
		ID:               "rec-legal",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		Type:             models.ContentTypeText,
		Mode:             models.ModeLegal,
		Content:          "claim",
		FakeProbability:  90,
		RiskLevel:        models.RiskHigh,
		ConfidenceScore:  0.9,
		Reasoning:        "Fabricated claim.",
		IsMisinformation: true,
		OriginLabel:      models.OriginAI,
		Fingerprint:      "fp-1",
		PublishRiskScore: 70,
		LiteracyTip:      "Verify sources.",
		VerificationHash: "vh-1",
		ContentHash:      "ch-1",
		LegalAssessment: &models.LegalAssessment{
			ProbativeValue:       "High",
			CourtReadySummary:    "Consistent manipulation markers.",
			ForensicRedFlags:     []string{"metadata stripped"},
			ExpertRecommendation: "Preserve the original.",
		},
	}
	require.NoError(t, ts.store.SaveVerification(context.Background(), profile.ID, seeded))

	assertNoLegalKey := func(t *testing.T, record map[string]json.RawMessage) {
		t.Helper()
		_, present := record["legalAssessment"]
		assert.False(t, present, "legalAssessment must be stripped for role user")
	}

	t.Run("single result is redacted", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/results/rec-legal", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var record map[string]json.RawMessage
		decode(t, resp, &record)
		assertNoLegalKey(t, record)
	})

	t.Run("history is redacted", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/history", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Results []map[string]json.RawMessage `json:"results"`
		}
		decode(t, resp, &body)
		require.Len(t, body.Results, 1)
		assertNoLegalKey(t, body.Results[0])
	})

	t.Run("stats history is redacted", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/stats", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			History []map[string]json.RawMessage `json:"history"`
		}
		decode(t, resp, &body)
		require.Len(t, body.History, 1)
		assertNoLegalKey(t, body.History[0])
	})
}

func TestLogoutRevokesSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "alice@example.com", models.RoleUser)

	resp := ts.do(t, http.MethodGet, "/auth/session", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUserExportCSV(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "alice@example.com", models.RoleUser)

	resp := ts.do(t, http.MethodGet, "/export.csv", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "verification_history.csv")
}
