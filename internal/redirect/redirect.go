// Package redirect implements spec.md §4.5: wrapping/unwrapping RP
// redirect URIs under this service's own /r/ callback endpoint, and the
// secure-transport check. Grounded on
// original_source/takagi/utils.py's fix_redirect_uri/is_secure_transport,
// expressed as pure functions over net/url rather than FastAPI's
// request.url_for.
package redirect

import (
	"net/url"
	"strings"
)

// Normalize wraps raw under base's /r/ endpoint unless it is already
// wrapped, per spec.md §4.5: "If R already begins with <our base URL>/r/,
// return R unchanged. Otherwise return <our base URL>/r/<R>". Applying
// Normalize to an already-normalized URI is therefore idempotent (spec.md
// §8 property 5).
func Normalize(base *url.URL, raw string) string {
	prefix := callbackPrefix(base)
	if strings.HasPrefix(raw, prefix) {
		return raw
	}
	return prefix + raw
}

func callbackPrefix(base *url.URL) string {
	b := strings.TrimSuffix(base.String(), "/")
	return b + "/r/"
}

// IsSecure reports whether raw uses HTTPS, or is a loopback address and
// treatLoopbackAsSecure is enabled (TAKAGI_TREAT_LOOPBACK_AS_SECURE,
// default true, spec.md §6).
func IsSecure(raw string, treatLoopbackAsSecure bool) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme == "https" {
		return true
	}
	if treatLoopbackAsSecure && IsLoopbackHost(u.Hostname()) {
		return true
	}
	return false
}

// IsLoopbackHost reports whether host is one of the three loopback names
// spec.md uses throughout: localhost, 127.0.0.1, ::1.
func IsLoopbackHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
