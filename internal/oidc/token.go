package oidc

import (
	"net/http"
	"time"

	"github.com/sakif/takagi/internal/apperror"
	"github.com/sakif/takagi/internal/claims"
	"github.com/sakif/takagi/internal/codec"
	"github.com/sakif/takagi/internal/envelope"
	"github.com/sakif/takagi/internal/githubapi"
	"github.com/sakif/takagi/internal/handler"
	"github.com/sakif/takagi/internal/scope"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
	IDToken     string `json:"id_token"`
}

// Token implements Phase C (spec.md §4.6): POST /token, form-encoded.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		handler.WriteError(w, apperror.InvalidRequest("malformed form body"))
		return
	}

	clientID, clientSecret, err := ResolveCredentials(r)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	if !ClientAllowed(clientID, h.Config.AllowedClients) {
		handler.WriteError(w, apperror.InvalidRequest("client_id is not allowed"))
		return
	}

	if r.FormValue("grant_type") != "authorization_code" {
		handler.WriteError(w, apperror.InvalidRequest("grant_type must be authorization_code"))
		return
	}

	codeJWT := r.FormValue("code")
	if codeJWT == "" {
		handler.WriteError(w, apperror.InvalidRequest("code is required"))
		return
	}

	authEnv, err := envelope.Decode[envelope.AuthorizationEnvelope](h.Codec, codeJWT, codec.ClaimExpectations{})
	if err != nil {
		handler.WriteError(w, apperror.InvalidRequest("unknown authorization code"))
		return
	}

	formRedirect := r.FormValue("redirect_uri")
	if authEnv.RedirectURI != "" && formRedirect == "" {
		handler.WriteError(w, apperror.InvalidRequest("redirect_uri is required"))
		return
	}

	githubToken, err := h.GitHub.Exchange(r.Context(), clientID, clientSecret, authEnv.Code, authEnv.RedirectURI)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	user, orgs, err := h.fetchProfile(r, githubToken, authEnv.Scopes)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	scheme, host := schemeHost(r)
	iss := h.issuer(scheme, host)
	now, exp := tokenWindow(h.Config.TokenLifetime)

	idClaims := claims.Build(user, orgs, authEnv.Scopes, authEnv.Nonce, iss, clientID, now, exp)
	idTokenJWT, err := h.Codec.Sign(idClaims)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	info := envelope.AccessInfo{
		Token:        githubToken,
		Scopes:       authEnv.Scopes,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
	accessEnv, err := envelope.NewAccessTokenEnvelope(h.Codec, iss, h.userinfoEndpoint(scheme, host), info, now, exp)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	accessJWT, err := envelope.Encode(h.Codec, accessEnv)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: accessJWT,
		TokenType:   "Bearer",
		ExpiresAt:   accessEnv.Exp,
		IDToken:     idTokenJWT,
	})
}

// fetchProfile fetches the GitHub user, and organizations when the
// groups scope was granted, per spec.md Phase C's minting rules.
func (h *Handler) fetchProfile(r *http.Request, githubToken map[string]any, scopes []string) (*githubapi.User, []githubapi.Organization, error) {
	user, err := h.GitHub.GetUser(r.Context(), githubToken)
	if err != nil {
		return nil, nil, err
	}

	var orgs []githubapi.Organization
	if scope.Contains(scopes, "groups") {
		orgs, err = h.GitHub.GetOrgs(r.Context(), githubToken)
		if err != nil {
			return nil, nil, err
		}
	}

	return user, orgs, nil
}

// tokenWindow returns the iat/exp pair shared by the ID token and the
// access token envelope (spec.md §3: "outward ID tokens and access
// tokens share an exp"): the operator-configured lifetime, or
// envelope.FarFutureSentinel when unset.
func tokenWindow(lifetime time.Duration) (iat, exp int64) {
	now := time.Now()
	expiry := envelope.FarFutureSentinel
	if lifetime > 0 {
		expiry = now.Add(lifetime)
	}
	return now.Unix(), expiry.Unix()
}
