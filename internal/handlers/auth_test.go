package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomdekan/react-auth/internal/auth"
	"github.com/tomdekan/react-auth/internal/cache"
	dom "github.com/tomdekan/react-auth/internal/domain"
	"github.com/tomdekan/react-auth/internal/handlers"
	"github.com/tomdekan/react-auth/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	users  map[string]dom.User // by email
	nextID int64
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (dom.User, error) {
	u, ok := f.users[email]
	if !ok {
		return dom.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (dom.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return dom.User{}, pgx.ErrNoRows
}

func (f *fakeUserRepo) Create(_ context.Context, username, email, passwordHash string) (dom.User, error) {
	if _, ok := f.users[email]; ok {
		return dom.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	}
	f.nextID++
	u := dom.User{ID: f.nextID, Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	f.users[email] = u
	return u, nil
}

// newTestServer wires the auth routes exactly as internal/app does, with a
// miniredis session store and an in-memory user repo.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := auth.NewStore(rdb, time.Hour)
	userSvc := service.NewUserService(&fakeUserRepo{users: make(map[string]dom.User)}, cache.NewUserCache(rdb, time.Minute))
	h := handlers.NewAuthHandler(store, userSvc, store.TTL())

	r := gin.New()
	api := r.Group("/api")
	api.GET("/set-csrf-token", h.SetCSRFToken)
	csrf := auth.RequireCSRF()
	api.POST("/login", csrf, h.Login)
	api.POST("/register", csrf, h.Register)
	api.POST("/logout", csrf, auth.RequireSession(store), h.Logout)
	api.GET("/user", auth.RequireSession(store), h.CurrentUser)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// fetchCSRFToken hits /set-csrf-token; the cookie lands in the client's jar.
func fetchCSRFToken(t *testing.T, client *http.Client, base string) string {
	t.Helper()
	resp, err := client.Get(base + "/api/set-csrf-token")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		CSRFToken string `json:"csrftoken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.CSRFToken)
	return body.CSRFToken
}

func postJSON(t *testing.T, client *http.Client, url, csrfToken string, payload any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if csrfToken != "" {
		req.Header.Set(auth.CSRFHeaderName, csrfToken)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestRegisterLoginUserLogoutFlow(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)
	token := fetchCSRFToken(t, client, srv.URL)

	creds := map[string]string{"email": "a@x.com", "password": "p1"}

	resp := postJSON(t, client, srv.URL+"/api/register", token, creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User registered successfully", decodeBody(t, resp)["success"])

	resp = postJSON(t, client, srv.URL+"/api/login", token, creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	_, hasMessage := body["message"]
	assert.False(t, hasMessage)

	resp, err := client.Get(srv.URL + "/api/user")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "a@x.com", body["username"])
	assert.Equal(t, "a@x.com", body["email"])
	assert.Len(t, body["secret_fact"], 2)

	resp = postJSON(t, client, srv.URL+"/api/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out", decodeBody(t, resp)["message"])

	resp, err = client.Get(srv.URL + "/api/user")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginFailureDoesNotEnumerate(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)
	token := fetchCSRFToken(t, client, srv.URL)

	resp := postJSON(t, client, srv.URL+"/api/register", token, map[string]string{"email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	wrongPassword := postJSON(t, client, srv.URL+"/api/login", token, map[string]string{"email": "a@x.com", "password": "nope"})
	require.Equal(t, http.StatusOK, wrongPassword.StatusCode)
	wrongBody, err := io.ReadAll(wrongPassword.Body)
	require.NoError(t, err)
	wrongPassword.Body.Close()

	unknownEmail := postJSON(t, client, srv.URL+"/api/login", token, map[string]string{"email": "nobody@x.com", "password": "p1"})
	require.Equal(t, http.StatusOK, unknownEmail.StatusCode)
	unknownBody, err := io.ReadAll(unknownEmail.Body)
	require.NoError(t, err)
	unknownEmail.Body.Close()

	assert.JSONEq(t, `{"success": false, "message": "Invalid credentials"}`, string(wrongBody))
	assert.Equal(t, string(wrongBody), string(unknownBody))

	// A failed login leaves the caller logged out.
	resp, err = client.Get(srv.URL + "/api/user")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)
	token := fetchCSRFToken(t, client, srv.URL)

	resp := postJSON(t, client, srv.URL+"/api/register", token, map[string]string{"email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, client, srv.URL+"/api/register", token, map[string]string{"email": "a@x.com", "password": "p2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "email already registered", decodeBody(t, resp)["error"])

	// Original credentials still work.
	resp = postJSON(t, client, srv.URL+"/api/login", token, map[string]string{"email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["success"])
}

func TestRegisterMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)
	token := fetchCSRFToken(t, client, srv.URL)

	resp := postJSON(t, client, srv.URL+"/api/register", token, map[string]string{"email": "a@x.com"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCSRFRejectionIndependentOfSession(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)
	token := fetchCSRFToken(t, client, srv.URL)

	creds := map[string]string{"email": "a@x.com", "password": "p1"}

	// No header at all, cookie present.
	resp := postJSON(t, client, srv.URL+"/api/register", "", creds)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Header doesn't match the cookie.
	resp = postJSON(t, client, srv.URL+"/api/login", "bogus", creds)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Log in properly, then retry a POST without the token: still rejected.
	resp = postJSON(t, client, srv.URL+"/api/register", token, creds)
	resp.Body.Close()
	resp = postJSON(t, client, srv.URL+"/api/login", token, creds)
	resp.Body.Close()

	resp = postJSON(t, client, srv.URL+"/api/logout", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// No cookie either: a fresh client is rejected the same way.
	fresh := newClient(t)
	resp = postJSON(t, fresh, srv.URL+"/api/login", "some-token", creds)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogoutRequiresSession(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)
	token := fetchCSRFToken(t, client, srv.URL)

	resp := postJSON(t, client, srv.URL+"/api/logout", token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUserRequiresSession(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/api/user")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
