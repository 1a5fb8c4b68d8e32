package oidc

import (
	"net/http"

	"github.com/sakif/takagi/internal/handler"
)

// discoveryDocument builds the discovery document from the request's
// base URL, mirroring original_source/takagi/utils.py's
// get_discovery_info — except revocation_endpoint and
// introspection_endpoint are omitted per spec.md §9's resolved Open
// Question: the original wires those to handlers that 404
// unconditionally; this rebuild has no such dead routes to point at.
func (h *Handler) discoveryDocument(scheme, host string) map[string]any {
	return map[string]any{
		"issuer":                 h.issuer(scheme, host),
		"authorization_endpoint": h.authorizationEndpoint(scheme, host),
		"token_endpoint":         h.tokenEndpoint(scheme, host),
		"userinfo_endpoint":      h.userinfoEndpoint(scheme, host),
		"jwks_uri":               h.jwksURI(scheme, host),
		"claims_supported": []string{
			"sub", "preferred_username", "name", "nickname", "locale",
			"picture", "profile", "updated_at", "email", "email_verified", "groups",
		},
		"grant_types_supported":                    []string{"authorization_code"},
		"id_token_signing_alg_values_supported":     []string{"RS256"},
		"token_endpoint_auth_methods_supported":     []string{"client_secret_basic", "client_secret_post"},
		"response_types_supported":                  []string{"code"},
		"subject_types_supported":                   []string{"public"},
		"scopes_supported":                          []string{"openid", "profile", "email", "groups"},
		"code_challenge_methods_supported":          []string{"S256"},
	}
}

// Discovery serves GET /.well-known/openid-configuration.
func (h *Handler) Discovery(w http.ResponseWriter, r *http.Request) {
	scheme, host := schemeHost(r)
	handler.WriteJSON(w, http.StatusOK, h.discoveryDocument(scheme, host))
}

// JWKS serves GET /.well-known/jwks.json.
func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	handler.WriteJSON(w, http.StatusOK, h.Keys.JWKS())
}
