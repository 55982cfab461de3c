package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/ender-auth/internal/api"
	"github.com/isdelr/ender-auth/internal/auth"
	"github.com/isdelr/ender-auth/internal/database"
	"github.com/isdelr/ender-auth/internal/models"
	"github.com/isdelr/ender-auth/internal/services"
	"github.com/isdelr/ender-auth/internal/store"
)

const signingKey = "router-test-signing-key-0123456789abcdef"

func newServer(t *testing.T) (*httptest.Server, *auth.Issuer) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	issuer, err := auth.NewIssuer(auth.IssuerConfig{SigningKey: signingKey})
	require.NoError(t, err)

	events := services.NewEventService(store.NewSQLiteEventRepository(db))
	users, err := services.NewUserService(store.NewSQLiteUserRepository(db), auth.NewBcryptHasher(bcrypt.MinCost), events)
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}}, issuer, users, events))
	t.Cleanup(srv.Close)
	return srv, issuer
}

func postJSON(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(respBody)
}

func getWithToken(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAuthFlow(t *testing.T) {
	srv, issuer := newServer(t)
	base := srv.URL + "/api/v1"

	resp, body := postJSON(t, base+"/auth/register", `{"username":"Alice","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var registered struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &registered))

	resp, body = postJSON(t, base+"/auth/register", `{"username":"ALICE","password":"other"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Username already exists")

	resp, body = postJSON(t, base+"/auth/login", `{"username":"alice","password":"secret123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &login))

	claims, err := issuer.Validate(login.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	me := getWithToken(t, base+"/users/me", login.Token)
	require.Equal(t, http.StatusOK, me.StatusCode)
	var user models.User
	require.NoError(t, json.NewDecoder(me.Body).Decode(&user))
	assert.Equal(t, registered.ID, user.ID)

	events := getWithToken(t, base+"/events?limit=10", login.Token)
	require.Equal(t, http.StatusOK, events.StatusCode)
	var list []models.Event
	require.NoError(t, json.NewDecoder(events.Body).Decode(&list))
	assert.NotEmpty(t, list)
}

func TestEventsAreScopedToCaller(t *testing.T) {
	srv, _ := newServer(t)
	base := srv.URL + "/api/v1"

	resp, body := postJSON(t, base+"/auth/register", `{"username":"victim-admin","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var victim struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &victim))
	resp, _ = postJSON(t, base+"/auth/login", `{"username":"victim-admin","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = postJSON(t, base+"/auth/login", `{"username":"ghost-user","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = postJSON(t, base+"/auth/register", `{"username":"mallory","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	resp, body = postJSON(t, base+"/auth/login", `{"username":"mallory","password":"secret123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &login))

	events := getWithToken(t, base+"/events?limit=200", login.Token)
	require.Equal(t, http.StatusOK, events.StatusCode)
	raw, err := io.ReadAll(events.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "victim-admin")
	assert.NotContains(t, string(raw), "ghost-user")
	assert.NotContains(t, string(raw), victim.ID)

	var list []models.Event
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.NotEmpty(t, list)
	for _, e := range list {
		require.NotNil(t, e.UserID)
		assert.NotEqual(t, victim.ID, *e.UserID)
	}
}

func TestLoginFailuresLookIdentical(t *testing.T) {
	srv, _ := newServer(t)
	base := srv.URL + "/api/v1"

	resp, _ := postJSON(t, base+"/auth/register", `{"username":"bob","password":"correct"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	wrongResp, wrongBody := postJSON(t, base+"/auth/login", `{"username":"bob","password":"incorrect"}`)
	unknownResp, unknownBody := postJSON(t, base+"/auth/login", `{"username":"nobody","password":"incorrect"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongResp.StatusCode)
	assert.Equal(t, wrongResp.StatusCode, unknownResp.StatusCode)
	assert.Equal(t, wrongBody, unknownBody)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := newServer(t)

	foreign, err := auth.NewIssuer(auth.IssuerConfig{SigningKey: strings.Repeat("z", 40)})
	require.NoError(t, err)
	forged, err := foreign.Issue("id", "mallory")
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", forged} {
		resp := getWithToken(t, srv.URL+"/api/v1/users/me", token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := getWithToken(t, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
