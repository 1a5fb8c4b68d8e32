package oidc

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/takagi/internal/apperror"
	"github.com/sakif/takagi/internal/dnsname"
	"github.com/sakif/takagi/internal/handler"
)

const issuerRelation = "http://openid.net/specs/connect/1.0/issuer"

type webfingerLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []webfingerLink `json:"links"`
}

// WebFinger serves GET /.well-known/webfinger (spec.md §4.7): resolves
// acct:user@host to this service's issuer URL when host is on the
// configured allow-list.
func (h *Handler) WebFinger(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	rel := r.URL.Query().Get("rel")

	host, err := acctHost(resource)
	if err != nil {
		handler.WriteError(w, apperror.NotFound("unrecognized resource"))
		return
	}

	if !dnsname.Allowed(host, h.Config.AllowedWebfingerHosts) {
		handler.WriteError(w, apperror.NotFound("unknown webfinger host"))
		return
	}

	scheme, reqHost := schemeHost(r)
	resp := webfingerResponse{Subject: resource, Links: []webfingerLink{}}
	if rel == "" || rel == issuerRelation {
		resp.Links = []webfingerLink{{Rel: issuerRelation, Href: h.issuer(scheme, reqHost)}}
	}

	handler.WriteJSON(w, http.StatusOK, resp)
}

// acctHost extracts the host portion of an acct:user@host resource URI.
func acctHost(resource string) (string, error) {
	if !strings.HasPrefix(resource, "acct:") {
		return "", apperror.InvalidRequest("resource must be an acct: URI")
	}
	u, err := url.Parse(resource)
	if err != nil {
		return "", err
	}
	at := strings.LastIndex(u.Opaque, "@")
	if at < 0 {
		return "", apperror.InvalidRequest("resource must be acct:user@host")
	}
	return u.Opaque[at+1:], nil
}
