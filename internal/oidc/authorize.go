package oidc

import (
	"net/http"
	"net/url"

	"github.com/sakif/takagi/internal/apperror"
	"github.com/sakif/takagi/internal/envelope"
	"github.com/sakif/takagi/internal/handler"
	"github.com/sakif/takagi/internal/redirect"
	"github.com/sakif/takagi/internal/scope"
)

// Authorize implements Phase A (spec.md §4.6): GET /authorize. Required
// query params: client_id, scope, redirect_uri. Optional: state, nonce.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	clientID := q.Get("client_id")
	rawScope := q.Get("scope")
	rawRedirect := q.Get("redirect_uri")

	if clientID == "" || rawScope == "" || rawRedirect == "" {
		handler.WriteError(w, apperror.InvalidRequest("client_id, scope, and redirect_uri are required"))
		return
	}

	if !ClientAllowed(clientID, h.Config.AllowedClients) {
		handler.WriteError(w, apperror.InvalidRequest("client_id is not allowed"))
		return
	}

	if !redirect.IsSecure(rawRedirect, h.Config.TreatLoopbackAsSecure) {
		handler.WriteError(w, apperror.InvalidRequest("redirect_uri must use HTTPS or be a loopback address"))
		return
	}

	scheme, host := schemeHost(r)
	wrapped := redirect.Normalize(h.callbackBase(scheme, host), rawRedirect)

	if wrapped != rawRedirect && !h.Config.FixRedirectURIs {
		handler.WriteError(w, apperror.InvalidRequest(
			"redirect_uri must already be wrapped under "+h.callbackBase(scheme, host).String()+"/r/; set TAKAGI_FIX_REDIRECT_URIS=true to rewrite it automatically"))
		return
	}

	oidcScopes := scope.Parse(rawScope)
	if !scope.Contains(oidcScopes, "openid") {
		handler.WriteError(w, apperror.InvalidRequest("scope must include openid"))
		return
	}

	stateEnv, err := envelope.NewStateEnvelope(wrapped, q.Get("state"), q.Get("nonce"), oidcScopes, r.Header.Get("Referer"))
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	stateJWT, err := envelope.Encode(h.Codec, stateEnv)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	githubScopes := scope.ToGitHub(oidcScopes)

	extra := url.Values{}
	for k, values := range q {
		if k == "client_id" || k == "scope" || k == "redirect_uri" || k == "state" {
			continue
		}
		extra[k] = values
	}

	dest := h.GitHub.AuthorizationURL(clientID, githubScopes, wrapped, stateJWT, extra)
	http.Redirect(w, r, dest, http.StatusFound)
}
