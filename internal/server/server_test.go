package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmatch/matchd/internal/assess"
	"github.com/foodmatch/matchd/internal/auth"
	"github.com/foodmatch/matchd/internal/config"
	"github.com/foodmatch/matchd/internal/matcher"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/portal"
	"github.com/foodmatch/matchd/internal/predict"
	"github.com/foodmatch/matchd/internal/rfq"
	"github.com/foodmatch/matchd/internal/store"
)

func newTestServer(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	authSvc := auth.New(st, config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenTTLHrs: 1,
		AdminSecret: "let-me-in",
	})
	m := matcher.New(st, assess.NewFallback(500), config.MatchConfig{
		ProximityNormMiles: 500,
		ShortlistSize:      10,
		CapabilityWeight:   0.3,
		ProximityWeight:    0.2,
		NeedWeight:         0.2,
		AssessmentWeight:   0.3,
	})
	p := portal.New(st, config.PortalConfig{
		ProximityNormMiles: 3000,
		PartnerLimit:       5,
		ComboLimit:         25,
	})
	est := rfq.New(st, config.RFQConfig{FuelSurchargePct: 0.18, TopVendors: 8})

	srv := New(st, authSvc, m, p, est, predict.New(st), config.ServerConfig{Port: 0})
	return srv.Router(), st
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func registerUser(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/api/auth/register", map[string]any{
		"email":    email,
		"password": "correct horse",
		"name":     "Ops",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess struct {
		Token string `json:"token"`
	}
	decodeResponse(t, rec, &sess)
	return sess.Token
}

func seedZipScore(t *testing.T, st store.Store) {
	t.Helper()
	require.NoError(t, st.UpsertZipNeedScore(context.Background(), &model.ZipNeedScore{
		ZipCode: "38614", City: "Clarksdale", State: "MS",
		Lat: 34.2001, Lng: -90.5711,
		FoodInsecurityRate: 0.24, SNAPParticipationRate: 0.22,
		Population: 20000, NeedScore: 82,
	}))
}

func seedSupplier(t *testing.T, st store.Store, name string) *model.Organization {
	t.Helper()
	org, err := st.CreateOrganization(context.Background(), &model.Organization{
		Name:               name,
		OrgType:            model.OrgSupplier,
		ZipCode:            "38614",
		Lat:                34.2001,
		Lng:                -90.5711,
		Capabilities:       []string{"fresh produce", "canned goods"},
		ServiceRadiusMiles: 200,
	})
	require.NoError(t, err)
	return org
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doRequest(t, h, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthEndpoints(t *testing.T) {
	h, _ := newTestServer(t)

	token := registerUser(t, h, "ops@example.org")

	// Duplicate email conflicts.
	rec := doRequest(t, h, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "ops@example.org", "password": "battery staple", "name": "Two",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Login round trip.
	rec = doRequest(t, h, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "ops@example.org", "password": "correct horse",
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "ops@example.org", "password": "wrong",
	}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Identity requires a session.
	rec = doRequest(t, h, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User model.User `json:"user"`
	}
	decodeResponse(t, rec, &me)
	assert.Equal(t, "ops@example.org", me.User.Email)
	assert.False(t, me.User.IsAdmin)

	// Admin promotion via shared secret.
	rec = doRequest(t, h, http.MethodPost, "/api/auth/make-admin", map[string]any{"secret": "nope"}, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/auth/make-admin", map[string]any{"secret": "let-me-in"}, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/auth/me", nil, token)
	decodeResponse(t, rec, &me)
	assert.True(t, me.User.IsAdmin)
}

func TestSolicitationLifecycle(t *testing.T) {
	h, st := newTestServer(t)
	seedZipScore(t, st)
	token := registerUser(t, h, "ops@example.org")

	// Validation failures come back as 400.
	rec := doRequest(t, h, http.MethodPost, "/api/solicitations", map[string]any{
		"title": "No description or zip",
	}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid create inherits coordinates from the ZIP table.
	rec = doRequest(t, h, http.MethodPost, "/api/solicitations", map[string]any{
		"title":       "Emergency Produce Buy",
		"description": "Fresh produce for shelters",
		"agency":      "Delta Relief",
		"zip_code":    "38614",
		"categories":  []string{"fresh produce"},
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sol model.Solicitation
	decodeResponse(t, rec, &sol)
	assert.Equal(t, model.SourceCommercial, sol.SourceType)
	assert.InDelta(t, 34.2001, sol.Lat, 0.0001)

	// List filters by status.
	rec = doRequest(t, h, http.MethodGet, "/api/solicitations?status=open", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var listed []model.Solicitation
	decodeResponse(t, rec, &listed)
	require.Len(t, listed, 1)

	// Get includes the (empty) match list.
	rec = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/solicitations/%d", sol.ID), nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		model.Solicitation
		Matches []model.MatchResult `json:"matches"`
	}
	decodeResponse(t, rec, &detail)
	assert.Equal(t, sol.ID, detail.ID)
	assert.Empty(t, detail.Matches)

	// Anonymous deletion is rejected, the owner succeeds.
	rec = doRequest(t, h, http.MethodDelete, fmt.Sprintf("/api/solicitations/%d", sol.ID), nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, fmt.Sprintf("/api/solicitations/%d", sol.ID), nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/solicitations/%d", sol.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSolicitation_Ownership(t *testing.T) {
	h, st := newTestServer(t)
	owner := registerUser(t, h, "owner@example.org")
	other := registerUser(t, h, "other@example.org")

	rec := doRequest(t, h, http.MethodPost, "/api/solicitations", map[string]any{
		"title":       "Commercial Buy",
		"description": "Canned goods",
		"zip_code":    "38614",
		"categories":  []string{"canned goods"},
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sol model.Solicitation
	decodeResponse(t, rec, &sol)

	rec = doRequest(t, h, http.MethodDelete, fmt.Sprintf("/api/solicitations/%d", sol.ID), nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Government records need an admin regardless of ownership.
	gov, err := st.CreateSolicitation(context.Background(), &model.Solicitation{
		Title: "USDA Sourcing", Description: "Grains", ZipCode: "38614",
		SourceType: model.SourceGovernment, Categories: []string{"grains"},
	})
	require.NoError(t, err)

	rec = doRequest(t, h, http.MethodDelete, fmt.Sprintf("/api/solicitations/%d", gov.ID), nil, owner)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/auth/make-admin", map[string]any{"secret": "let-me-in"}, other)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, h, http.MethodDelete, fmt.Sprintf("/api/solicitations/%d", gov.ID), nil, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateAndListMatches(t *testing.T) {
	h, st := newTestServer(t)
	seedZipScore(t, st)
	seedSupplier(t, st, "Delta Fresh Foods")
	seedSupplier(t, st, "Riverside Cannery")
	token := registerUser(t, h, "ops@example.org")

	rec := doRequest(t, h, http.MethodPost, "/api/solicitations", map[string]any{
		"title":       "Emergency Produce Buy",
		"description": "Fresh produce for shelters",
		"zip_code":    "38614",
		"categories":  []string{"fresh produce"},
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sol model.Solicitation
	decodeResponse(t, rec, &sol)

	// Body without solicitation_id is a 400, unknown id a 404.
	rec = doRequest(t, h, http.MethodPost, "/api/matches/generate", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, h, http.MethodPost, "/api/matches/generate", map[string]any{"solicitation_id": 9999}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/matches/generate", map[string]any{"solicitation_id": sol.ID}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var results []model.MatchResult
	decodeResponse(t, rec, &results)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.NotNil(t, results[0].Organization)

	// Stored matches are queryable by organization.
	orgID := results[0].OrganizationID
	rec = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/matches?organization_id=%d", orgID), nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var filtered []model.MatchResult
	decodeResponse(t, rec, &filtered)
	require.Len(t, filtered, 1)
	assert.Equal(t, orgID, filtered[0].OrganizationID)

	// The solicitation detail now carries ranked matches.
	rec = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/solicitations/%d", sol.ID), nil, "")
	var detail struct {
		Matches []model.MatchResult `json:"matches"`
	}
	decodeResponse(t, rec, &detail)
	assert.Len(t, detail.Matches, 2)
}
