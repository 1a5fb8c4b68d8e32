// Package githubapi wraps GitHub's OAuth2 and REST surface (spec.md
// §4.4). Grounded on internal/auth/oauth.go's GitHubProvider, but
// generalized for multiple relying parties: the teacher's provider is
// single-tenant (ClientID/RedirectURL baked in at construction) because
// it only ever logs its own users in. Every RP supplies its own
// client_id/client_secret/redirect_uri here, so Client holds no OAuth2
// config and every method takes credentials as arguments.
package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/sakif/takagi/internal/apperror"
)

const (
	apiBase  = "https://api.github.com"
	tokenURL = "https://github.com/login/oauth/access_token"
)

// User is the portion of GitHub's /user response the claim builder needs
// (spec.md §4.6). It carries more fields than the teacher's GitHubUser —
// Name, HTMLURL, UpdatedAt feed the profile scope's claims.
type User struct {
	ID        int64     `json:"id"`
	Login     string    `json:"login"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	HTMLURL   string    `json:"html_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Organization is the portion of GitHub's /user/orgs entries the groups
// scope needs. The teacher has no org-fetching code; this is grounded on
// the same authenticated-REST-call idiom as User.
type Organization struct {
	ID int64 `json:"id"`
}

// Client issues the GitHub calls spec.md §4.4 describes. It is
// stateless — safe to share across concurrent requests, matching the
// overall "no cross-request shared mutable state" model in spec.md §5.
type Client struct {
	httpClient *http.Client

	// apiBaseURL and tokenURL default to GitHub's real endpoints; tests
	// override them to point at an httptest.Server fixture.
	apiBaseURL string
	tokenURL   string
}

// New builds a Client with a 15-second request timeout, pointed at
// GitHub's real endpoints.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiBaseURL: apiBase,
		tokenURL:   tokenURL,
	}
}

// NewWithEndpoints builds a Client pointed at the given API base and
// token endpoint instead of github.com — used to run the flow against a
// local fixture server in tests.
func NewWithEndpoints(apiBaseURL, tokenEndpoint string) *Client {
	c := New()
	c.apiBaseURL = apiBaseURL
	c.tokenURL = tokenEndpoint
	return c
}

// AuthorizationURL builds the GitHub authorization redirect URL for a
// given client_id/scopes/redirect_uri/state, with any additional RP query
// parameters passed through verbatim (spec.md Phase A: "pass through any
// other query params verbatim to GitHub except client_id and scope").
func (c *Client) AuthorizationURL(clientID string, githubScopes []string, redirectURI, state string, extra url.Values) string {
	cfg := oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      githubScopes,
		Endpoint:    githuboauth.Endpoint,
	}

	opts := make([]oauth2.AuthCodeOption, 0, len(extra))
	for k, values := range extra {
		for _, v := range values {
			opts = append(opts, oauth2.SetAuthURLParam(k, v))
		}
	}

	return cfg.AuthCodeURL(state, opts...)
}

// Exchange trades a GitHub authorization code for the full token response
// (spec.md Phase C). It deliberately does not use oauth2.Config.Exchange:
// that method narrows the response to the fixed oauth2.Token shape and
// would drop any field GitHub returns beyond access_token/token_type/
// scope. spec.md §9 requires the token be "carried through as an opaque
// map ... do not impose a schema beyond 'has access_token'", so this is a
// raw POST with HTTP Basic credentials — the same shape of manual call
// the teacher already makes for /user in oauth.go's Exchange.
func (c *Client) Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (map[string]any, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("githubapi: building exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(clientID, clientSecret)

	return c.doJSON(req)
}

// GetUser fetches GET /user using the Bearer token embedded in the token
// response obtained from Exchange.
func (c *Client) GetUser(ctx context.Context, token map[string]any) (*User, error) {
	body, err := c.authenticatedGet(ctx, c.apiBaseURL+"/user", token)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("githubapi: decoding /user response: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("githubapi: /user response missing id")
	}
	return &user, nil
}

// GetOrgs fetches GET /user/orgs, used when the groups scope was granted.
func (c *Client) GetOrgs(ctx context.Context, token map[string]any) ([]Organization, error) {
	body, err := c.authenticatedGet(ctx, c.apiBaseURL+"/user/orgs", token)
	if err != nil {
		return nil, err
	}

	var orgs []Organization
	if err := json.Unmarshal(body, &orgs); err != nil {
		return nil, fmt.Errorf("githubapi: decoding /user/orgs response: %w", err)
	}
	return orgs, nil
}

func (c *Client) authenticatedGet(ctx context.Context, target string, token map[string]any) ([]byte, error) {
	accessToken, _ := token["access_token"].(string)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("githubapi: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("githubapi: calling %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("githubapi: reading response from %s: %w", target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.NewUpstreamError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) doJSON(req *http.Request) (map[string]any, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("githubapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("githubapi: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.NewUpstreamError(resp.StatusCode, body)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("githubapi: decoding response: %w", err)
	}
	if _, ok := out["access_token"]; !ok {
		return nil, apperror.NewUpstreamError(resp.StatusCode, body)
	}
	return out, nil
}
