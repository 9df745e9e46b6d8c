// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/testutil"
)

func TestListCandidates_VerifiedOnly(t *testing.T) {
	st := testutil.NewTestStore(t)
	handler := NewCandidateHandler(st, testutil.GetTestConfig())

	e := testutil.CreateTestElection(t, st, "primary", testutil.Now.AddDate(0, 1, 0))
	other := testutil.CreateTestElection(t, st, "other", testutil.Now.AddDate(0, 2, 0))
	testutil.CreateTestCandidate(t, st, e.ID, "ada", "Mayor", models.CandidateVerified, nil)
	testutil.CreateTestCandidate(t, st, e.ID, "hidden", "Mayor", models.CandidatePending, nil)
	testutil.CreateTestCandidate(t, st, e.ID, "rejected", "Mayor", models.CandidateRejected, nil)
	testutil.CreateTestCandidate(t, st, other.ID, "grace", "Clerk", models.CandidateVerified, nil)

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"everything public", "", []string{"grace", "ada"}},
		{"by election", "?election=primary", []string{"ada"}},
		{"by office", "?office=clerk", []string{"grace"}},
		{"by name", "?q=ADA", []string{"ada"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ListCandidates(w, testutil.MakeRequest("GET", "/candidates"+tt.query, nil, nil))
			testutil.AssertStatus(t, w, http.StatusOK)

			var got []models.Candidate
			testutil.AssertJSON(t, w, &got)
			var slugs []string
			for _, c := range got {
				slugs = append(slugs, c.Slug)
			}
			assert.Equal(t, tt.expected, slugs)
		})
	}

	t.Run("unknown election", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ListCandidates(w, testutil.MakeRequest("GET", "/candidates?election=nope", nil, nil))
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestGetCandidate_Visibility(t *testing.T) {
	st := testutil.NewTestStore(t)
	handler := NewCandidateHandler(st, testutil.GetTestConfig())

	owner := testutil.CreateTestUser(t, st, "owner", "owner@example.com", models.RoleCandidate)
	stranger := testutil.CreateTestUser(t, st, "stranger", "stranger@example.com", models.RoleVoter)
	e := testutil.CreateTestElection(t, st, "primary", testutil.Now.AddDate(0, 1, 0))
	testutil.CreateTestCandidate(t, st, e.ID, "pending", "Mayor", models.CandidatePending, &owner)

	get := func(viewer *models.User) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("GET", "/candidates/pending", nil, nil)
		if viewer != nil {
			req = testutil.AsUser(req, *viewer)
		}
		req.SetPathValue("slug", "pending")
		w := httptest.NewRecorder()
		handler.GetCandidate(w, req)
		return w
	}

	testutil.AssertStatus(t, get(nil), http.StatusNotFound)
	testutil.AssertStatus(t, get(&stranger), http.StatusNotFound)

	w := get(&owner)
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.CandidateProfileResponse
	testutil.AssertJSON(t, w, &resp)
	assert.Equal(t, "pending", resp.Candidate.Slug)
	assert.Equal(t, 0, resp.FollowerCount)
	assert.Empty(t, resp.Posts)
}

func TestCreateCandidate(t *testing.T) {
	st := testutil.NewTestStore(t)
	handler := NewCandidateHandler(st, testutil.GetTestConfig())
	ctx := context.Background()

	voter := testutil.CreateTestUser(t, st, "voter", "Voter@Example.com", models.RoleVoter)
	testutil.CreateTestElection(t, st, "primary", testutil.Now.AddDate(0, 1, 0))

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"valid", models.CandidateRequest{ElectionSlug: "primary", Name: "  Ada   Lovelace ", Office: "Mayor", Website: "https://ada.example"}, http.StatusCreated},
		{"same person again", models.CandidateRequest{ElectionSlug: "primary", Name: "ada lovelace", Office: "mayor"}, http.StatusConflict},
		{"missing election", models.CandidateRequest{Name: "Grace", Office: "Mayor"}, http.StatusBadRequest},
		{"unknown election", models.CandidateRequest{ElectionSlug: "nope", Name: "Grace", Office: "Mayor"}, http.StatusNotFound},
		{"missing office", models.CandidateRequest{ElectionSlug: "primary", Name: "Grace"}, http.StatusBadRequest},
		{"bad website", models.CandidateRequest{ElectionSlug: "primary", Name: "Grace", Office: "Mayor", Website: "javascript:alert(1)"}, http.StatusBadRequest},
		{"bad email", models.CandidateRequest{ElectionSlug: "primary", Name: "Grace", Office: "Mayor", ContactEmail: "grace"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.AsUser(testutil.MakeRequest("POST", "/candidates", tt.body, nil), voter)
			w := httptest.NewRecorder()
			handler.CreateCandidate(w, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusCreated {
				var c models.Candidate
				testutil.AssertJSON(t, w, &c)
				assert.Equal(t, "Ada Lovelace", c.Name)
				assert.Equal(t, models.CandidatePending, c.Status)
				assert.True(t, strings.HasPrefix(c.Slug, "ada-lovelace-"))

				stored, err := st.GetCandidate(ctx, c.ID)
				require.NoError(t, err)
				assert.Equal(t, "voter@example.com", stored.ContactEmail)
				require.NotNil(t, stored.OwnerID)
				assert.Equal(t, voter.ID, *stored.OwnerID)

				u, err := st.GetUser(ctx, voter.ID)
				require.NoError(t, err)
				assert.Equal(t, models.RoleCandidate, u.Role)
			}
		})
	}
}

func TestUpdateCandidate(t *testing.T) {
	st := testutil.NewTestStore(t)
	handler := NewCandidateHandler(st, testutil.GetTestConfig())
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, st, "owner", "owner@example.com", models.RoleCandidate)
	other := testutil.CreateTestUser(t, st, "other", "other@example.com", models.RoleCandidate)
	e := testutil.CreateTestElection(t, st, "primary", testutil.Now.AddDate(0, 1, 0))
	testutil.CreateTestCandidate(t, st, e.ID, "ada", "Mayor", models.CandidateVerified, &owner)
	testutil.CreateTestCandidate(t, st, e.ID, "draft", "Clerk", models.CandidatePending, &owner)

	update := func(u models.User, slug string, body models.CandidateRequest) *httptest.ResponseRecorder {
		req := testutil.AsUser(testutil.MakeRequest("PUT", "/candidates/"+slug, body, nil), u)
		req.SetPathValue("slug", slug)
		w := httptest.NewRecorder()
		handler.UpdateCandidate(w, req)
		return w
	}

	body := models.CandidateRequest{Name: "Ada King", Office: "Mayor", Bio: "Mathematician"}
	testutil.AssertStatus(t, update(other, "ada", body), http.StatusForbidden)

	w := update(owner, "ada", body)
	testutil.AssertStatus(t, w, http.StatusOK)
	var c models.Candidate
	testutil.AssertJSON(t, w, &c)
	assert.Equal(t, "Ada King", c.Name)
	assert.Equal(t, "Mathematician", c.Bio)

	// Resending the same profile is not a change
	w = update(owner, "ada", body)
	testutil.AssertStatus(t, w, http.StatusOK)
	var same models.Candidate
	testutil.AssertJSON(t, w, &same)
	assert.Equal(t, c.UpdatedAt, same.UpdatedAt)

	// Pending profiles change quietly
	testutil.AssertStatus(t, update(owner, "draft", models.CandidateRequest{Name: "Draft", Office: "Clerk"}), http.StatusOK)

	events, err := st.ListPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventProfileUpdated, events[0].Kind)
	assert.Equal(t, c.ID, events[0].CandidateID)
}

func TestCreatePost(t *testing.T) {
	st := testutil.NewTestStore(t)
	handler := NewCandidateHandler(st, testutil.GetTestConfig())
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, st, "owner", "owner@example.com", models.RoleCandidate)
	e := testutil.CreateTestElection(t, st, "primary", testutil.Now.AddDate(0, 1, 0))
	c := testutil.CreateTestCandidate(t, st, e.ID, "ada", "Mayor", models.CandidateVerified, &owner)
	testutil.CreateTestCandidate(t, st, e.ID, "draft", "Clerk", models.CandidatePending, &owner)

	tests := []struct {
		name           string
		slug           string
		body           interface{}
		expectedStatus int
	}{
		{"valid", "ada", models.PostRequest{Title: "Town hall", Body: "Join us Saturday."}, http.StatusCreated},
		{"missing title", "ada", models.PostRequest{Body: "Untitled"}, http.StatusBadRequest},
		{"missing body", "ada", models.PostRequest{Title: "Empty"}, http.StatusBadRequest},
		{"not verified", "draft", models.PostRequest{Title: "Hi", Body: "There"}, http.StatusConflict},
		{"unknown candidate", "nobody", models.PostRequest{Title: "Hi", Body: "There"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.AsUser(testutil.MakeRequest("POST", "/candidates/"+tt.slug+"/posts", tt.body, nil), owner)
			req.SetPathValue("slug", tt.slug)
			w := httptest.NewRecorder()
			handler.CreatePost(w, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)
		})
	}

	posts, err := st.ListPosts(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	events, err := st.ListPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPostPublished, events[0].Kind)
	assert.Equal(t, "Candidate ada published: Town hall", events[0].Summary)
}
