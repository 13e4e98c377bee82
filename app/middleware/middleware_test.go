package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/services"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(t *testing.T) services.TokenService {
	t.Helper()
	svc, err := services.NewTokenService(time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)
	return svc
}

func newProtectedApp(tokens services.TokenService) *fiber.App {
	app := fiber.New()
	app.Use(Metrics("/metrics"))
	auth := NewAuthMiddleware(tokens)
	app.Get("/admin/things/:id", auth.AdminAuthenticate(), func(c fiber.Ctx) error {
		claims, ok := c.Locals(utils.AdminKey).(*services.AdminTokenClaims)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(claims.TokenID)
	})
	app.Get("/public", func(c fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", func(c fiber.Ctx) error { return c.SendString("scrape") })
	return app
}

func TestAdminAuthenticate(t *testing.T) {
	tokens := newTokenService(t)
	app := newProtectedApp(tokens)

	valid, claims, err := tokens.GenerateAdminToken()
	require.NoError(t, err)
	revoked, _, err := tokens.GenerateAdminToken()
	require.NoError(t, err)
	require.NoError(t, tokens.RevokeToken(revoked))

	tests := []struct {
		name       string
		cookie     string
		bearer     string
		wantStatus int
		wantCode   string
	}{
		{name: "no credentials", wantStatus: http.StatusUnauthorized, wantCode: "MISSING_ADMIN_SESSION"},
		{name: "cookie", cookie: valid, wantStatus: http.StatusOK},
		{name: "bearer header", bearer: valid, wantStatus: http.StatusOK},
		{name: "cookie wins over bearer", cookie: valid, bearer: "garbage", wantStatus: http.StatusOK},
		{name: "garbage token", bearer: "garbage", wantStatus: http.StatusUnauthorized, wantCode: "TOKEN_INVALID"},
		{name: "revoked token", cookie: revoked, wantStatus: http.StatusUnauthorized, wantCode: "TOKEN_REVOKED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/things/7", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: utils.AdminSessionCookie, Value: tt.cookie})
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantCode != "" {
				var body struct {
					Success bool `json:"success"`
					Error   struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.False(t, body.Success)
				assert.Equal(t, tt.wantCode, body.Error.Code)
			}
		})
	}

	t.Run("claims reach the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/things/7", nil)
		req.Header.Set("Authorization", "Bearer "+valid)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, claims.TokenID, string(body))
	})
}

func TestMetricsLabels(t *testing.T) {
	tokens := newTokenService(t)
	app := newProtectedApp(tokens)
	valid, _, err := tokens.GenerateAdminToken()
	require.NoError(t, err)

	adminOK := httpRequestsTotal.WithLabelValues(SurfaceAdmin, http.MethodGet, "/admin/things/:id", "200")
	publicDenied := httpRequestsTotal.WithLabelValues(SurfacePublic, http.MethodGet, "/admin/things/:id", "401")
	public := httpRequestsTotal.WithLabelValues(SurfacePublic, http.MethodGet, "/public", "200")
	scrape := httpRequestsTotal.WithLabelValues(SurfacePublic, http.MethodGet, "/metrics", "200")

	beforeAdmin := testutil.ToFloat64(adminOK)
	beforeDenied := testutil.ToFloat64(publicDenied)
	beforePublic := testutil.ToFloat64(public)
	beforeScrape := testutil.ToFloat64(scrape)

	do := func(path, bearer string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	do("/admin/things/1", valid)
	do("/admin/things/2", valid)
	do("/admin/things/3", "")
	do("/public", "")
	do("/metrics", "")

	assert.Equal(t, beforeAdmin+2, testutil.ToFloat64(adminOK), "ids must collapse into the route template")
	assert.Equal(t, beforeDenied+1, testutil.ToFloat64(publicDenied))
	assert.Equal(t, beforePublic+1, testutil.ToFloat64(public))
	assert.Equal(t, beforeScrape, testutil.ToFloat64(scrape), "skipped paths are not observed")
	assert.Zero(t, testutil.ToFloat64(httpInFlight))
}
