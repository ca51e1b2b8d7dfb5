package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/auth"
	"github.com/sakif/volunteerhub/internal/config"
	"github.com/sakif/volunteerhub/internal/repository/sqlite"
)

const testSecret = "test-secret-0123456789"

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	t      *testing.T
	srv    *Server
	tokens *auth.TokenService
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(context.Background()) })

	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	cfg := Config{
		Port:           0,
		CORSOrigins:    []string{"http://localhost:5173"},
		AuthRatePerSec: 100,
		AuthRateBurst:  100,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := New(cfg, db, tokens, zap.NewNop())
	require.NoError(t, err)
	return &harness{t: t, srv: srv, tokens: tokens}
}

// do sends a request, signed in as email when email is non-empty.
func (h *harness) do(method, path, email string, body any) *httptest.ResponseRecorder {
	h.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		tok, err := h.tokens.Generate(auth.Identity{Email: email})
		require.NoError(h.t, err)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tok})
	}

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) signUp(email, name string) {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/users", "", map[string]string{"email": email, "displayName": name})
	require.Contains(h.t, []int{http.StatusCreated, http.StatusOK}, rec.Code, rec.Body.String())
}

func (h *harness) createPost(organizer, title string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/posts/new", organizer, map[string]any{
		"title":            title,
		"category":         "Education",
		"deadline":         "2099-01-01",
		"organizerName":    "Org",
		"organizerEmail":   organizer,
		"volunteersNeeded": 5,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](h.t, rec)["_id"].(string)
}

// =============================================================================
// Surface
// =============================================================================

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/all-posts", "", nil)

	rec := h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `volunteerhub_http_requests_total{method="GET",route="/all-posts",status="200"} 1`)
}

func TestJWTAndSignOut(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/jwt", "", map[string]string{"email": "a@x.com", "name": "A"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.False(t, cookies[0].Secure)

	id, err := h.tokens.Validate(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", id.Email)

	rec = h.do(http.MethodPost, "/signout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestJWT_SecureCookieInProduction(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Production = true })
	rec := h.do(http.MethodPost, "/jwt", "", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rec.Result().Cookies()[0].Secure)
}

func TestJWT_MissingEmail(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/jwt", "", map[string]string{"name": "A"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJWT_RateLimited(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.AuthRatePerSec = 0.001
		c.AuthRateBurst = 2
	})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, h.do(http.MethodPost, "/jwt", "", map[string]string{"email": "a@x.com"}).Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/posts/new", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

// =============================================================================
// Users
// =============================================================================

func TestSignUp_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	body := map[string]string{"displayName": "A", "email": "a@x.com"}

	first := h.do(http.MethodPost, "/users", "", body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	created := decode[map[string]any](t, first)
	assert.Equal(t, []any{}, created["appliedCampaigns"])

	second := h.do(http.MethodPost, "/users", "", body)
	require.Equal(t, http.StatusOK, second.Code)
	existing := decode[struct {
		Message string         `json:"message"`
		User    map[string]any `json:"user"`
	}](t, second)
	assert.Equal(t, "User already exists", existing.Message)
	assert.Equal(t, created["_id"], existing.User["_id"])

	rec := h.do(http.MethodGet, "/users/a@x.com", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created["_id"], decode[map[string]any](t, rec)["_id"])
}

func TestGetUser_NotFound(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/users/ghost@x.com", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Posts
// =============================================================================

func TestGetPost(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createPost("org@x.com", "Beach cleanup")

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/post/"+id, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/post/missing", "v@x.com", nil).Code)

	rec := h.do(http.MethodGet, "/post/"+id, "v@x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Beach cleanup", decode[map[string]any](t, rec)["title"])
}

func TestListPosts(t *testing.T) {
	h := newHarness(t, nil)
	h.createPost("org@x.com", "Beach cleanup")
	h.createPost("org@x.com", "Tutoring")

	all := decode[[]map[string]any](t, h.do(http.MethodGet, "/all-posts", "", nil))
	assert.Len(t, all, 2)

	found := decode[[]map[string]any](t, h.do(http.MethodGet, "/all-posts?search=BEACH", "", nil))
	require.Len(t, found, 1)
	assert.Equal(t, "Beach cleanup", found[0]["title"])

	active := decode[[]map[string]any](t, h.do(http.MethodGet, "/active-posts", "", nil))
	assert.Len(t, active, 2)

	featured := decode[[]map[string]any](t, h.do(http.MethodGet, "/active-posts/featured", "", nil))
	assert.Len(t, featured, 2)
}

func TestListByOrganizer_EmailMustMatch(t *testing.T) {
	for _, strict := range []bool{false, true} {
		h := newHarness(t, func(c *Config) { c.StrictOwnership = strict })
		h.createPost("org@x.com", "Beach cleanup")

		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/posts/org@x.com", "", nil).Code)
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/posts/org@x.com", "other@x.com", nil).Code)

		rec := h.do(http.MethodGet, "/posts/org@x.com", "org@x.com", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]map[string]any](t, rec), 1)
	}
}

func TestCreatePost_Strict(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.StrictOwnership = true })
	body := map[string]any{
		"title":          "Beach cleanup",
		"category":       "Environment",
		"deadline":       "2099-01-01",
		"organizerEmail": "org@x.com",
	}

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/posts/new", "", body).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/posts/new", "other@x.com", body).Code)

	rec := h.do(http.MethodPost, "/posts/new", "org@x.com", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["interestedVolunteers"])
}

func TestCreatePost_Validation(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/posts/new", "org@x.com", map[string]any{
		"title":          "X",
		"category":       "Knitting",
		"deadline":       "2099-01-01",
		"organizerEmail": "org@x.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode[map[string]string](t, rec)["error"])
}

func TestCreatePost_InvalidJSON(t *testing.T) {
	h := newHarness(t, nil)
	tok, err := h.tokens.Generate(auth.Identity{Email: "org@x.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/posts/new", strings.NewReader("{not json"))
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tok})
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePost(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.StrictOwnership = true })
	id := h.createPost("org@x.com", "Beach cleanup")
	patch := map[string]any{"title": "River cleanup", "interestedVolunteers": 99}

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, "/post/"+id, "other@x.com", patch).Code)

	rec := h.do(http.MethodPut, "/post/"+id, "org@x.com", patch)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "River cleanup", got["title"])
	assert.EqualValues(t, 0, got["interestedVolunteers"])
}

func TestDeletePost(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.StrictOwnership = true })
	id := h.createPost("org@x.com", "Beach cleanup")

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/posts/missing", "org@x.com", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/posts/"+id, "other@x.com", nil).Code)

	rec := h.do(http.MethodDelete, "/posts/"+id, "org@x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Post deleted successfully"}`, rec.Body.String())

	assert.Empty(t, decode[[]map[string]any](t, h.do(http.MethodGet, "/all-posts", "", nil)))
}

func TestDefaultMode_MutationsOpen(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.StrictOwnership = config.Defaults().Server.StrictOwnership })

	rec := h.do(http.MethodPost, "/posts/new", "", map[string]any{
		"title":          "Beach cleanup",
		"category":       "Environment",
		"deadline":       "2099-01-01",
		"organizerEmail": "org@x.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]any](t, rec)["_id"].(string)

	rec = h.do(http.MethodPut, "/post/"+id, "", map[string]any{"title": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", decode[map[string]any](t, rec)["title"])

	// A session for someone else is read but not checked.
	rec = h.do(http.MethodPut, "/post/"+id, "other@x.com", map[string]any{"location": "Pier 4"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodDelete, "/posts/"+id, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The reads stay protected.
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/post/"+id, "", nil).Code)
}

// =============================================================================
// Applications
// =============================================================================

func TestApplicationFlow(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.StrictOwnership = true })
	h.signUp("org@x.com", "Organizer")
	h.signUp("vol@x.com", "Volunteer")
	postID := h.createPost("org@x.com", "Beach cleanup")
	body := map[string]string{"postId": postID, "applicantEmail": "vol@x.com"}

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/applications", "", body).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/applications", "org@x.com", body).Code)

	rec := h.do(http.MethodPost, "/applications", "vol@x.com", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app := decode[map[string]any](t, rec)
	assert.Equal(t, "pending", app["status"])
	assert.Equal(t, "org@x.com", app["postCreatorEmail"])
	appID := app["_id"].(string)

	dup := h.do(http.MethodPost, "/applications", "vol@x.com", body)
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, "You have already applied to this post", decode[map[string]string](t, dup)["message"])

	post := decode[map[string]any](t, h.do(http.MethodGet, "/post/"+postID, "vol@x.com", nil))
	assert.EqualValues(t, 1, post["interestedVolunteers"])

	user := decode[map[string]any](t, h.do(http.MethodGet, "/users/vol@x.com", "", nil))
	assert.Equal(t, []any{postID}, user["appliedCampaigns"])

	mine := decode[[]map[string]any](t, h.do(http.MethodGet, "/applications/applicant/vol@x.com", "", nil))
	require.Len(t, mine, 1)
	assert.Equal(t, "Beach cleanup", mine[0]["postTitle"])

	theirs := decode[[]map[string]any](t, h.do(http.MethodGet, "/applications/org@x.com", "", nil))
	require.Len(t, theirs, 1)
	assert.Equal(t, "Volunteer", theirs[0]["applicantName"])

	status := map[string]string{"status": "accepted"}
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, "/applications/"+appID, "vol@x.com", status).Code)
	assert.Equal(t, http.StatusBadRequest,
		h.do(http.MethodPut, "/applications/"+appID, "org@x.com", map[string]string{"status": "maybe"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		h.do(http.MethodPut, "/applications/"+appID, "org@x.com", map[string]string{}).Code)

	rec = h.do(http.MethodPut, "/applications/"+appID, "org@x.com", status)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "accepted", decode[map[string]any](t, rec)["status"])
}

func TestSubmitApplication_NotFound(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp("vol@x.com", "Volunteer")

	rec := h.do(http.MethodPost, "/applications", "vol@x.com",
		map[string]string{"postId": "missing", "applicantEmail": "vol@x.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Post not found", decode[map[string]string](t, rec)["message"])

	rec = h.do(http.MethodPost, "/applications", "ghost@x.com",
		map[string]string{"postId": "missing", "applicantEmail": "ghost@x.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found. Please sign up first.", decode[map[string]string](t, rec)["message"])

	assert.Empty(t, decode[[]map[string]any](t, h.do(http.MethodGet, "/applications/applicant/vol@x.com", "", nil)))
}

func TestDefaultMode_AnyStatusAccepted(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp("vol@x.com", "Volunteer")
	postID := h.createPost("org@x.com", "Beach cleanup")

	rec := h.do(http.MethodPost, "/applications", "",
		map[string]string{"postId": postID, "applicantEmail": "vol@x.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appID := decode[map[string]any](t, rec)["_id"].(string)

	rec = h.do(http.MethodPut, "/applications/"+appID, "", map[string]string{"status": "shortlisted"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shortlisted", decode[map[string]any](t, rec)["status"])

	assert.Equal(t, http.StatusBadRequest,
		h.do(http.MethodPut, "/applications/"+appID, "", map[string]string{}).Code)
	assert.Equal(t, http.StatusNotFound,
		h.do(http.MethodPut, "/applications/missing", "", map[string]string{"status": "accepted"}).Code)
}
