package oidc

import (
	"net/http"
	"strings"

	"github.com/sakif/takagi/internal/apperror"
	"github.com/sakif/takagi/internal/claims"
	"github.com/sakif/takagi/internal/codec"
	"github.com/sakif/takagi/internal/envelope"
	"github.com/sakif/takagi/internal/handler"
)

// UserInfo implements Phase D (spec.md §4.6): GET or POST /userinfo.
func (h *Handler) UserInfo(w http.ResponseWriter, r *http.Request) {
	accessJWT, ok := bearerToken(r)
	if !ok {
		handler.WriteError(w, apperror.Unauthorized())
		return
	}

	scheme, host := schemeHost(r)
	iss := h.issuer(scheme, host)
	aud := h.userinfoEndpoint(scheme, host)

	accessEnv, err := envelope.Decode[envelope.AccessTokenEnvelope](h.Codec, accessJWT, codec.ClaimExpectations{
		Issuer:   &iss,
		Audience: &aud,
	})
	if err != nil {
		handler.WriteError(w, apperror.Unauthorized())
		return
	}

	info, err := accessEnv.DecryptAccessInfo(h.Codec)
	if err != nil {
		handler.WriteError(w, apperror.Unauthorized())
		return
	}

	user, orgs, err := h.fetchProfile(r, info.Token, info.Scopes)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	now, exp := tokenWindow(h.Config.TokenLifetime)
	idClaims := claims.Build(user, orgs, info.Scopes, "", iss, info.ClientID, now, exp)

	handler.WriteJSON(w, http.StatusOK, idClaims)
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	return token, token != ""
}
