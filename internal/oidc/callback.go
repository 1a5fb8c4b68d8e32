package oidc

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/takagi/internal/apperror"
	"github.com/sakif/takagi/internal/codec"
	"github.com/sakif/takagi/internal/envelope"
	"github.com/sakif/takagi/internal/handler"
	"github.com/sakif/takagi/internal/redirect"
)

// Callback implements Phase B (spec.md §4.6): GET /r/{redirect_uri:path}.
// chi's "/r/*" wildcard route plus chi.URLParam(r, "*") stands in for
// FastAPI's typed {redirect_uri:path} path parameter.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	pathURI := chi.URLParam(r, "*")
	q := r.URL.Query()
	stateJWT := q.Get("state")

	stateEnv, err := envelope.Decode[envelope.StateEnvelope](h.Codec, stateJWT, codec.ClaimExpectations{})
	if err != nil {
		handler.WriteError(w, apperror.MismatchingState("mismatching state"))
		return
	}

	if q.Get("error") == "access_denied" && stateEnv.Referrer != "" && h.Config.ReturnToReferrer {
		http.Redirect(w, r, stateEnv.Referrer, http.StatusFound)
		return
	}

	scheme, host := schemeHost(r)
	normalizedPath := redirect.Normalize(h.callbackBase(scheme, host), pathURI)
	if normalizedPath != stateEnv.RedirectURI {
		handler.WriteError(w, apperror.MismatchingState("redirect_uri does not match the one bound in state"))
		return
	}

	target, err := url.Parse(pathURI)
	if err != nil {
		handler.WriteError(w, apperror.InvalidRequest("redirect_uri path segment is not a valid URL"))
		return
	}

	dest := *target
	destQuery := url.Values{}
	for k, values := range q {
		if k == "state" {
			continue
		}
		destQuery[k] = values
	}
	if stateEnv.State != "" {
		destQuery.Set("state", stateEnv.State)
	}

	if code := q.Get("code"); code != "" && q.Get("error") == "" {
		authEnv, err := envelope.NewAuthorizationEnvelope(code, stateEnv.RedirectURI, stateEnv.Nonce, stateEnv.Scopes)
		if err != nil {
			handler.WriteError(w, err)
			return
		}
		authJWT, err := envelope.Encode(h.Codec, authEnv)
		if err != nil {
			handler.WriteError(w, err)
			return
		}
		destQuery.Set("code", authJWT)
	}

	dest.RawQuery = destQuery.Encode()
	http.Redirect(w, r, dest.String(), http.StatusFound)
}
