// Package oidc implements the stateless OIDC flow controller from
// spec.md §4.6: /authorize, /r/{uri}, /token, /userinfo, and the
// discovery/WebFinger endpoints, as one Handler holding the shared
// dependencies every phase needs. Grounded on internal/handler/auth.go's
// AuthHandler for the handler-struct-holds-dependencies shape and on
// original_source/takagi/app.py's route functions for exact step
// sequencing.
package oidc

import (
	"net/http"

	"github.com/sakif/takagi/internal/apperror"
)

// ResolveCredentials reads client credentials from either HTTP Basic or
// the parsed form body — never both — matching app.py's /token handler,
// which treats ClientCredentials(HTTPBasic) and the form fields as
// mutually exclusive.
func ResolveCredentials(r *http.Request) (clientID, clientSecret string, err error) {
	basicID, basicSecret, hasBasic := r.BasicAuth()

	formID := r.FormValue("client_id")
	formSecret := r.FormValue("client_secret")
	hasForm := formID != "" || formSecret != ""

	switch {
	case hasBasic && hasForm:
		return "", "", apperror.InvalidRequest("client credentials must be supplied via HTTP Basic or form fields, not both")
	case hasBasic:
		return basicID, basicSecret, nil
	case hasForm:
		return formID, formSecret, nil
	default:
		return "", "", apperror.InvalidRequest("missing client credentials")
	}
}

// ClientAllowed implements the "*" wildcard semantics spec.md §9 Open
// Questions resolves explicitly: the allow-list matches every client_id
// when it contains "*".
func ClientAllowed(clientID string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == clientID {
			return true
		}
	}
	return false
}
