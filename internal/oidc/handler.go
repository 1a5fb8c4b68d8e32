package oidc

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/takagi/internal/codec"
	"github.com/sakif/takagi/internal/config"
	"github.com/sakif/takagi/internal/githubapi"
	"github.com/sakif/takagi/internal/keys"
)

// Handler holds the dependencies every phase of the flow needs, matching
// internal/handler/auth.go's AuthHandler shape: all collaborators are
// injected here, the handler has no knowledge of how they're constructed.
type Handler struct {
	Codec  *codec.Codec
	Keys   *keys.Store
	GitHub *githubapi.Client
	Config *config.Config
	Logger *slog.Logger
}

// New builds a Handler from its fully-constructed dependencies.
func New(c *codec.Codec, k *keys.Store, gh *githubapi.Client, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{Codec: c, Keys: k, GitHub: gh, Config: cfg, Logger: logger}
}

// baseURL derives the issuer base URL from the current request, per
// spec.md §4.7: "every endpoint URL is derived from request.base_url,
// not from any stored issuer". scheme falls back to X-Forwarded-Proto
// so the service works correctly behind a TLS-terminating proxy.
func (h *Handler) baseURL(scheme, host string) *url.URL {
	base := strings.TrimSuffix(h.Config.BasePath, "/")
	return &url.URL{Scheme: scheme, Host: host, Path: base}
}

func (h *Handler) issuer(scheme, host string) string {
	return h.baseURL(scheme, host).String()
}

func (h *Handler) authorizationEndpoint(scheme, host string) string {
	return h.issuer(scheme, host) + "/authorize"
}

func (h *Handler) tokenEndpoint(scheme, host string) string {
	return h.issuer(scheme, host) + "/token"
}

func (h *Handler) userinfoEndpoint(scheme, host string) string {
	return h.issuer(scheme, host) + "/userinfo"
}

func (h *Handler) jwksURI(scheme, host string) string {
	return h.issuer(scheme, host) + "/.well-known/jwks.json"
}

func (h *Handler) callbackBase(scheme, host string) *url.URL {
	return h.baseURL(scheme, host)
}

// requestScheme picks https unless the request is plain HTTP and not
// already flagged by a proxy.
func requestScheme(tls bool, forwardedProto string) string {
	if forwardedProto != "" {
		return forwardedProto
	}
	if tls {
		return "https"
	}
	return "http"
}

// schemeHost extracts (scheme, host) from an inbound request, honoring
// X-Forwarded-Proto from a TLS-terminating proxy.
func schemeHost(r *http.Request) (string, string) {
	return requestScheme(r.TLS != nil, r.Header.Get("X-Forwarded-Proto")), r.Host
}
