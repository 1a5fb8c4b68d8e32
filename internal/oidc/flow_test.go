package oidc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/takagi/internal/codec"
	"github.com/sakif/takagi/internal/config"
	"github.com/sakif/takagi/internal/githubapi"
	"github.com/sakif/takagi/internal/keys"
)

// testGitHub fakes the three GitHub endpoints the flow touches: the token
// exchange and the /user, /user/orgs REST calls.
type testGitHub struct {
	srv *httptest.Server
}

func newTestGitHub(t *testing.T) *testGitHub {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "gho_fixture",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_fixture" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 1, "login": "octocat", "name": "The Octocat", "email": "octocat@github.com",
		})
	})
	mux.HandleFunc("/user/orgs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 99}})
	})
	return &testGitHub{srv: httptest.NewServer(mux)}
}

func (g *testGitHub) Close() { g.srv.Close() }

func newTestHandler(t *testing.T, cfg *config.Config, gh *testGitHub) *Handler {
	t.Helper()
	store := keys.New(t.TempDir(), "", "")
	require.NoError(t, store.Resolve())
	c := codec.New(store)
	client := githubapi.NewWithEndpoints(gh.srv.URL, gh.srv.URL+"/login/oauth/access_token")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(c, store, client, cfg, logger)
}

func newTestOP(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/authorize", h.Authorize)
	r.Get("/r/*", h.Callback)
	r.Post("/token", h.Token)
	r.Get("/userinfo", h.UserInfo)
	r.Get("/.well-known/jwks.json", h.JWKS)
	r.Get("/.well-known/openid-configuration", h.Discovery)
	r.Get("/.well-known/webfinger", h.WebFinger)
	return httptest.NewServer(r)
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func baseConfig() *config.Config {
	return &config.Config{
		AllowedClients:        []string{"*"},
		FixRedirectURIs:       true,
		TreatLoopbackAsSecure: true,
		ReturnToReferrer:      true,
		TokenLifetime:         time.Hour,
	}
}

// TestFullFlowHappyPath walks Phase A through D: /authorize -> (simulated
// GitHub redirect) -> /r/* callback -> /token -> /userinfo.
func TestFullFlowHappyPath(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()

	h := newTestHandler(t, baseConfig(), gh)
	op := newTestOP(t, h)
	defer op.Close()

	client := noRedirectClient()

	authorizeURL := op.URL + "/authorize?client_id=rp-client&scope=" + url.QueryEscape("openid profile groups") +
		"&redirect_uri=" + url.QueryEscape("http://localhost/cb") + "&state=rp-state&nonce=rp-nonce"

	resp, err := client.Get(authorizeURL)
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", loc.Host)
	stateJWT := loc.Query().Get("state")
	require.NotEmpty(t, stateJWT)
	wrappedRedirect := loc.Query().Get("redirect_uri")
	assert.Contains(t, wrappedRedirect, "/r/http://localhost/cb")

	callbackURL := wrappedRedirect + "?code=ghcode123&state=" + url.QueryEscape(stateJWT)
	resp2, err := client.Get(callbackURL)
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp2.StatusCode)

	loc2, err := url.Parse(resp2.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/cb", loc2.Scheme+"://"+loc2.Host+loc2.Path)
	assert.Equal(t, "rp-state", loc2.Query().Get("state"))
	authJWT := loc2.Query().Get("code")
	require.NotEmpty(t, authJWT)

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {authJWT},
		"redirect_uri": {"http://localhost/cb"},
	}
	req, err := http.NewRequest(http.MethodPost, op.URL+"/token", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("rp-client", "rp-secret")

	resp3, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp3.StatusCode)

	var tok tokenResponse
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&tok))
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.IDToken)

	userinfoReq, err := http.NewRequest(http.MethodGet, op.URL+"/userinfo", nil)
	require.NoError(t, err)
	userinfoReq.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp4, err := client.Do(userinfoReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp4.StatusCode)

	var claims map[string]any
	require.NoError(t, json.NewDecoder(resp4.Body).Decode(&claims))
	assert.Equal(t, "1", claims["sub"])
	assert.Equal(t, "octocat", claims["preferred_username"])
	assert.Contains(t, claims, "groups")
}

// TestAuthorizeMissingParamsIs400 covers spec.md S2: a required parameter
// absent from /authorize yields invalid_request.
func TestAuthorizeMissingParamsIs400(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	h := newTestHandler(t, baseConfig(), gh)
	op := newTestOP(t, h)
	defer op.Close()

	resp, err := http.Get(op.URL + "/authorize?client_id=rp-client&scope=openid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["detail"], "redirect_uri")
}

// TestAuthorizeDisallowedClientIs400 covers the client_id allow-list check.
func TestAuthorizeDisallowedClientIs400(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	cfg := baseConfig()
	cfg.AllowedClients = []string{"only-this-client"}
	h := newTestHandler(t, cfg, gh)
	op := newTestOP(t, h)
	defer op.Close()

	u := op.URL + "/authorize?client_id=someone-else&scope=openid&redirect_uri=" + url.QueryEscape("http://localhost/cb")
	resp, err := http.Get(u)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestCallbackAccessDeniedRedirectsToReferrer covers spec.md's
// access_denied + referrer short-circuit at Phase B.
func TestCallbackAccessDeniedRedirectsToReferrer(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	h := newTestHandler(t, baseConfig(), gh)
	op := newTestOP(t, h)
	defer op.Close()

	client := noRedirectClient()

	authorizeURL := op.URL + "/authorize?client_id=rp-client&scope=openid&redirect_uri=" +
		url.QueryEscape("http://localhost/cb")
	req, err := http.NewRequest(http.MethodGet, authorizeURL, nil)
	require.NoError(t, err)
	req.Header.Set("Referer", "http://localhost/login")

	resp, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	stateJWT := loc.Query().Get("state")
	wrappedRedirect := loc.Query().Get("redirect_uri")

	callbackURL := wrappedRedirect + "?error=access_denied&state=" + url.QueryEscape(stateJWT)
	resp2, err := client.Get(callbackURL)
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp2.StatusCode)
	assert.Equal(t, "http://localhost/login", resp2.Header.Get("Location"))
}

// TestCallbackMismatchingStateIs400 covers a tampered/garbage state token.
func TestCallbackMismatchingStateIs400(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	h := newTestHandler(t, baseConfig(), gh)
	op := newTestOP(t, h)
	defer op.Close()

	resp, err := http.Get(op.URL + "/r/http://localhost/cb?code=ghcode&state=garbage")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["detail"], "mismatching")
}

// TestTokenBothCredentialFormsIs400 covers spec.md S6.
func TestTokenBothCredentialFormsIs400(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	h := newTestHandler(t, baseConfig(), gh)
	op := newTestOP(t, h)
	defer op.Close()

	form := url.Values{"client_id": {"rp-client"}, "client_secret": {"s"}, "grant_type": {"authorization_code"}, "code": {"whatever"}}
	req, err := http.NewRequest(http.MethodPost, op.URL+"/token", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("rp-client", "s")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestUserInfoMissingBearerIs401 covers Phase D's empty-body 401.
func TestUserInfoMissingBearerIs401(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	h := newTestHandler(t, baseConfig(), gh)
	op := newTestOP(t, h)
	defer op.Close()

	resp, err := http.Get(op.URL + "/userinfo")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

// TestWebFingerWildcardHost covers spec.md §4.7's allow-listed WebFinger
// resolution over a wildcard host pattern.
func TestWebFingerWildcardHost(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	cfg := baseConfig()
	cfg.AllowedWebfingerHosts = []string{"*.example.com"}
	h := newTestHandler(t, cfg, gh)
	op := newTestOP(t, h)
	defer op.Close()

	resp, err := http.Get(op.URL + "/.well-known/webfinger?resource=" + url.QueryEscape("acct:alice@rp.example.com"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "acct:alice@rp.example.com", body["subject"])
}

func TestWebFingerUnknownHostIs404(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	cfg := baseConfig()
	cfg.AllowedWebfingerHosts = []string{"example.com"}
	h := newTestHandler(t, cfg, gh)
	op := newTestOP(t, h)
	defer op.Close()

	resp, err := http.Get(op.URL + "/.well-known/webfinger?resource=" + url.QueryEscape("acct:alice@evil.com"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDiscoveryDocument(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	h := newTestHandler(t, baseConfig(), gh)
	op := newTestOP(t, h)
	defer op.Close()

	resp, err := http.Get(op.URL + "/.well-known/openid-configuration")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, op.URL, doc["issuer"])
	assert.NotContains(t, doc, "revocation_endpoint")
	assert.NotContains(t, doc, "introspection_endpoint")
}

func TestJWKSServesPublicKeyOnly(t *testing.T) {
	gh := newTestGitHub(t)
	defer gh.Close()
	h := newTestHandler(t, baseConfig(), gh)
	op := newTestOP(t, h)
	defer op.Close()

	resp, err := http.Get(op.URL + "/.well-known/jwks.json")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "\"d\":")
}
