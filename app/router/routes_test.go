package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/handlers"
	"github.com/Belgarat/freedownloadlandingpage/app/middleware"
	"github.com/Belgarat/freedownloadlandingpage/app/router"
	"github.com/Belgarat/freedownloadlandingpage/app/services"
	businessflow "github.com/Belgarat/freedownloadlandingpage/business_flow"
	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/Belgarat/freedownloadlandingpage/database"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	testingutil "github.com/Belgarat/freedownloadlandingpage/testing"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminPassword = "correct horse battery staple"

var tokenInURL = regexp.MustCompile(`/api/download/([0-9a-f]{64})$`)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

type testServer struct {
	app  *fiber.App
	mail *services.MockEmailService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	testDB := testingutil.SetupTestDB(t)

	cfg := config.FromEnv()
	cfg.Logging.EnableAccessLog = false
	cfg.Server.EnableCompression = false
	cfg.Metrics.Enabled = true
	cfg.Admin = config.AdminConfig{Password: adminPassword}
	cfg.Security.CookieSecure = false
	cfg.Download = config.DownloadConfig{
		BaseURL:  "https://books.example.com",
		TokenTTL: 24 * time.Hour,
		FileURL:  "https://files.example.com/ebook.pdf",
	}

	log := logger.NewNop()
	db := testDB.DB

	configRepo := repository.NewConfigRepository(db)
	abTestRepo := repository.NewABTestRepository(db)
	assignmentRepo := repository.NewVisitorAssignmentRepository(db)
	usageRepo := repository.NewConfigUsageRepository(db)

	tokenService, err := services.NewTokenService(time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	mail := services.NewMockEmailService(log)
	analyticsFlow := businessflow.NewAnalyticsFlow(
		repository.NewAnalyticsEventRepository(db),
		services.NewDatabaseCounterStore(repository.NewAnalyticsCounterRepository(db)),
		services.NoopEventPublisher{},
		log,
	)

	r, err := router.NewFiberRouter(
		router.Handlers{
			Config:     handlers.NewConfigHandler(businessflow.NewConfigFlow(configRepo), log),
			ABTest:     handlers.NewABTestHandler(businessflow.NewABTestFlow(abTestRepo, assignmentRepo, configRepo, usageRepo, db), log),
			Assignment: handlers.NewAssignmentHandler(businessflow.NewAssignmentFlow(configRepo, abTestRepo, assignmentRepo, usageRepo, db), log),
			Download:   handlers.NewDownloadHandler(businessflow.NewDownloadFlow(repository.NewDownloadTokenRepository(db), configRepo, mail, analyticsFlow, cfg.Download, log), log),
			Analytics:  handlers.NewAnalyticsHandler(analyticsFlow, log),
			Admin:      handlers.NewAdminHandler(businessflow.NewAdminAuthFlow(cfg.Admin, tokenService, nil), cfg.Security, log),
		},
		middleware.NewAuthMiddleware(tokenService),
		func(ctx context.Context) error { return database.HealthCheck(db, time.Second) },
		cfg,
		log,
	)
	require.NoError(t, err)
	r.SetupRoutes()

	return &testServer{app: r.GetApp(), mail: mail}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := s.app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestDownloadLinkRoundTrip(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.do(t, http.MethodPost, "/api/send-ebook", map[string]string{"email": "reader@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	var sent struct {
		DownloadURL string `json:"downloadUrl"`
		ExpiresAt   string `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	assert.True(t, strings.HasPrefix(sent.DownloadURL, "https://books.example.com/api/download/"))
	m := tokenInURL.FindStringSubmatch(sent.DownloadURL)
	require.Len(t, m, 2)
	token := m[1]
	require.Len(t, s.mail.SentMessages(), 1)

	resp, env = s.do(t, http.MethodPost, "/api/validate-token", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var valid struct {
		Valid bool   `json:"valid"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &valid))
	assert.True(t, valid.Valid)
	assert.Equal(t, "reader@example.com", valid.Email)

	resp, _ = s.do(t, http.MethodGet, "/api/download/"+token, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://files.example.com/ebook.pdf", resp.Header.Get("Location"))
}

func TestDownloadErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{name: "invalid email", method: http.MethodPost, path: "/api/send-ebook", body: map[string]string{"email": "not-an-email"}, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "missing token", method: http.MethodPost, path: "/api/validate-token", body: map[string]string{}, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "unknown token", method: http.MethodPost, path: "/api/validate-token", body: map[string]string{"token": strings.Repeat("a", 64)}, wantStatus: http.StatusNotFound},
		{name: "unknown download", method: http.MethodGet, path: "/api/download/" + strings.Repeat("b", 64), wantStatus: http.StatusNotFound},
		{name: "unknown route", method: http.MethodGet, path: "/api/nope", wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.False(t, env.Success)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, env.Error.Code)
			}
		})
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.do(t, http.MethodGet, "/api/config/theme", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_ADMIN_SESSION", env.Error.Code)

	resp, _ = s.do(t, http.MethodGet, "/api/analytics/stats", nil, &http.Cookie{Name: utils.AdminSessionCookie, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/admin/auth", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = s.do(t, http.MethodPost, "/api/admin/auth", map[string]string{"password": adminPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == utils.AdminSessionCookie {
			session = c
		}
	}
	require.NotNil(t, session, "login must set the session cookie")
	assert.True(t, session.HttpOnly)

	cookie := &http.Cookie{Name: session.Name, Value: session.Value}
	resp, env = s.do(t, http.MethodGet, "/api/config/theme", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, _ = s.do(t, http.MethodGet, "/api/admin/auth", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/admin/auth", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = s.do(t, http.MethodGet, "/api/config/theme", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_REVOKED", env.Error.Code)
}

func TestPublicConfigAndAnalyticsEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.do(t, http.MethodGet, "/api/config/theme/active", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)

	resp, _ = s.do(t, http.MethodGet, "/api/config/widgets/active", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = s.do(t, http.MethodPost, "/api/analytics", map[string]any{"action": "page_view"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	resp, _ = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
