// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/payments"
	"github.com/danielhkuo/ballotline/store"
	"github.com/danielhkuo/ballotline/testutil"
)

func newTestRouter(t *testing.T) (http.Handler, *store.Store, cliparse.Config) {
	t.Helper()
	st := testutil.NewTestStore(t)
	cfg := testutil.GetTestConfig()
	verifier := auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer, cfg.AuthAudience)
	h := NewRouter(st, cfg, Deps{
		Auth:     auth.NewAuthenticator(verifier, st, cfg.IsAdminEmail),
		Limiter:  middleware.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Payments: payments.LocalProvider{BaseURL: cfg.BaseURL},
	})
	return h, st, cfg
}

func TestHealthEndpoint(t *testing.T) {
	mux, _, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "ballotline API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _, _ := newTestRouter(t)

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	assert.Contains(t, w.Body.String(), `ballotline_http_requests_total{method="GET",route="GET /health",status="200"}`)
}

func TestRouteExistence(t *testing.T) {
	mux, _, _ := newTestRouter(t)

	// Routes respond from their handler or auth layer, never 405
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/elections"},
		{"GET", "/elections/spring"},
		{"GET", "/candidates"},
		{"GET", "/candidates/ada"},
		{"GET", "/vendors"},
		{"GET", "/vendors/acme"},
		{"GET", "/email/unsubscribe"},
		{"POST", "/candidates/ada/donations"},
		{"POST", "/webhooks/payments"},
		{"GET", "/donations/d1/complete"},

		{"GET", "/me"},
		{"PUT", "/me"},
		{"GET", "/me/follows"},
		{"GET", "/me/notifications"},
		{"POST", "/me/notifications/n1/read"},
		{"POST", "/candidates/ada/follow"},
		{"DELETE", "/candidates/ada/follow"},
		{"POST", "/candidates"},
		{"PUT", "/candidates/ada"},
		{"POST", "/candidates/ada/posts"},
		{"GET", "/candidates/ada/donations"},
		{"POST", "/vendors"},
		{"PUT", "/vendors/acme"},
		{"POST", "/vendors/acme/inquiries"},

		{"GET", "/admin/stats"},
		{"POST", "/admin/elections"},
		{"PUT", "/admin/elections/spring"},
		{"POST", "/admin/elections/spring/import"},
		{"POST", "/admin/candidates/c1/verify"},
		{"POST", "/admin/candidates/c1/reject"},
		{"POST", "/admin/vendors/v1/approve"},
		{"POST", "/admin/vendors/v1/reject"},
		{"GET", "/admin/emails"},
		{"POST", "/admin/emails/e1/retry"},
		{"PUT", "/admin/users/u1/role"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _, _ := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"DELETE", "/elections/spring"},
		{"PUT", "/webhooks/payments"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestAuthLayers(t *testing.T) {
	mux, st, cfg := newTestRouter(t)

	voterToken := testutil.SignTestToken(t, cfg, "voter-sub", "voter@example.com")
	adminToken := testutil.SignTestToken(t, cfg, "admin-sub", "admin@ballotline.test")
	testutil.CreateTestUser(t, st, "campaign-sub", "campaign@example.com", models.RoleCandidate)
	campaignToken := testutil.SignTestToken(t, cfg, "campaign-sub", "campaign@example.com")

	testCases := []struct {
		name           string
		method         string
		path           string
		token          string
		expectedStatus int
	}{
		{"anonymous me", "GET", "/me", "", http.StatusUnauthorized},
		{"garbage token", "GET", "/me", "not-a-jwt", http.StatusUnauthorized},
		{"signed in", "GET", "/me", voterToken, http.StatusOK},
		{"voter on admin route", "GET", "/admin/stats", voterToken, http.StatusForbidden},
		{"admin by config email", "GET", "/admin/stats", adminToken, http.StatusOK},
		{"voter sending inquiry", "POST", "/vendors/acme/inquiries", voterToken, http.StatusForbidden},
		{"candidate sending inquiry", "POST", "/vendors/acme/inquiries", campaignToken, http.StatusBadRequest},
		{"public listing", "GET", "/candidates", "", http.StatusOK},
		{"optional auth with bad token", "GET", "/candidates/ada", "not-a-jwt", http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var headers map[string]string
			if tc.token != "" {
				headers = testutil.AuthHeader(tc.token)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, testutil.MakeRequest(tc.method, tc.path, nil, headers))
			testutil.AssertStatus(t, w, tc.expectedStatus)
		})
	}
}

func TestDonationFlowThroughRouter(t *testing.T) {
	mux, st, cfg := newTestRouter(t)

	e := testutil.CreateTestElection(t, st, "primary", testutil.Now.AddDate(0, 1, 0))
	testutil.CreateTestCandidate(t, st, e.ID, "ada", "Mayor", models.CandidateVerified, nil)

	body := models.DonationRequest{
		AmountCents: 5000,
		DonorName:   "Pat Donor",
		DonorEmail:  "pat@example.com",
		Employer:    "Self",
		Occupation:  "Carpenter",
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/candidates/ada/donations", body, nil))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.DonationResponse
	testutil.AssertJSON(t, w, &resp)
	if !strings.HasPrefix(resp.CheckoutURL, cfg.BaseURL+"/donations/") {
		t.Fatalf("Unexpected checkout URL %q", resp.CheckoutURL)
	}

	path := strings.TrimPrefix(resp.CheckoutURL, cfg.BaseURL)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", path, nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var status models.StatusResponse
	testutil.AssertJSON(t, w, &status)
	assert.Equal(t, models.DonationPaid, status.Status)
}
