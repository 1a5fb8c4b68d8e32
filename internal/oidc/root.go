package oidc

import (
	"net/http"

	"github.com/sakif/takagi/internal/apperror"
	"github.com/sakif/takagi/internal/config"
	"github.com/sakif/takagi/internal/handler"
)

// Root implements GET / (spec.md §6): redirect to one of {repo URL,
// GitHub settings URL, docs URL} per root_redirect, or 404 when off.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	switch h.Config.RootRedirect {
	case config.RootRedirectRepo:
		http.Redirect(w, r, "https://github.com/celsiusnarhwal/takagi", http.StatusFound)
	case config.RootRedirectSettings:
		http.Redirect(w, r, "https://github.com/settings/connections/applications", http.StatusFound)
	case config.RootRedirectDocs:
		if !h.Config.EnableDocs {
			handler.WriteError(w, apperror.NotFound("docs are disabled"))
			return
		}
		http.Redirect(w, r, "/docs", http.StatusFound)
	default:
		handler.WriteError(w, apperror.NotFound("root redirect is disabled"))
	}
}

// Health implements GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
