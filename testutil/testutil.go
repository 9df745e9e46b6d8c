// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/db"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

// Now is the fixed clock test stores run on
var Now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// SetupTestDB opens a private in-memory SQLite database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// NewTestStore wraps SetupTestDB in a store pinned to Now
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(SetupTestDB(t))
	st.SetClock(func() time.Time { return Now })
	return st
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:                   3318,
		DatabaseURL:            ":memory:",
		DatabaseType:           db.TypeSQLite,
		BaseURL:                "https://ballotline.test",
		LinkSigningSalt:        "test-link-salt",
		AuthJWTSecret:          "test-jwt-secret",
		AdminEmails:            []string{"admin@ballotline.test"},
		EmailProvider:          "log",
		EmailFrom:              "Ballotline <no-reply@ballotline.test>",
		PaymentsProvider:       "local",
		PaymentsWebhookSecret:  "whsec_test",
		RateLimitRPS:           100,
		RateLimitBurst:         100,
		ContributionLimitCents: 330000,
		MinDonationCents:       100,
		VendorCategories:       cliparse.DefaultVendorCategories,
		WorkerInterval:         time.Second,
		EmailMaxAttempts:       5,
		EmailConcurrency:       2,
	}
}

// SignTestToken issues a bearer token the test config's verifier accepts
func SignTestToken(t *testing.T, cfg cliparse.Config, subject, email string) string {
	t.Helper()
	v := auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer, cfg.AuthAudience)
	token, err := v.Issue(subject, email, subject, time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return token
}

// AuthHeader builds request headers carrying a bearer token
func AuthHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// CreateTestUser upserts a user and sets its role
func CreateTestUser(t *testing.T, st *store.Store, subject, email, role string) models.User {
	t.Helper()
	ctx := context.Background()

	u, err := st.UpsertUser(ctx, subject, email, subject, role == models.RoleAdmin)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	if role != u.Role {
		if err := st.SetUserRole(ctx, u.ID, role); err != nil {
			t.Fatalf("Failed to set test user role: %v", err)
		}
		u.Role = role
	}
	return u
}

// CreateTestElection inserts a published election on the given date
func CreateTestElection(t *testing.T, st *store.Store, slug string, date time.Time) models.Election {
	t.Helper()

	e := models.Election{
		ID:           auth.NewID(),
		Slug:         slug,
		Name:         "Election " + slug,
		Jurisdiction: "Springfield",
		State:        "IL",
		ElectionDate: date,
		Published:    true,
		CreatedAt:    Now,
	}
	if err := st.CreateElection(context.Background(), e); err != nil {
		t.Fatalf("Failed to create test election: %v", err)
	}
	return e
}

// CreateTestCandidate inserts a candidate; owner may be nil
func CreateTestCandidate(t *testing.T, st *store.Store, electionID, slug, office, status string, owner *models.User) models.Candidate {
	t.Helper()

	c := models.Candidate{
		ID:               auth.NewID(),
		ElectionID:       electionID,
		Slug:             slug,
		Name:             "Candidate " + slug,
		Office:           office,
		ContactEmail:     slug + "@campaign.test",
		Status:           status,
		DonationsEnabled: true,
		CreatedAt:        Now,
		UpdatedAt:        Now,
	}
	if owner != nil {
		c.OwnerID = &owner.ID
	}
	if err := st.CreateCandidate(context.Background(), st.DB(), c); err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}
	return c
}

// CreateTestVendor inserts a vendor owned by owner
func CreateTestVendor(t *testing.T, st *store.Store, owner models.User, slug, category, status string) models.Vendor {
	t.Helper()

	v := models.Vendor{
		ID:           auth.NewID(),
		OwnerID:      owner.ID,
		Slug:         slug,
		Name:         "Vendor " + slug,
		Category:     category,
		ContactEmail: slug + "@vendor.test",
		ServiceArea:  "IL",
		Status:       status,
		CreatedAt:    Now,
	}
	if err := st.CreateVendor(context.Background(), st.DB(), v); err != nil {
		t.Fatalf("Failed to create test vendor: %v", err)
	}
	return v
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AsUser attaches u to the request as the signed-in user, standing in for
// the auth middleware
func AsUser(req *http.Request, u models.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), u))
}
