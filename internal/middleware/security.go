package middleware

import (
	"net/http"
	"strings"
)

// SecureTransport rejects non-HTTPS requests with 400, unless the host is
// loopback and treatLoopbackAsSecure is enabled (spec.md §6's global
// middleware requirement). Honoring the X-Forwarded-Proto header lets this
// run correctly behind a TLS-terminating proxy.
func SecureTransport(treatLoopbackAsSecure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
				scheme = proto
			}

			if scheme == "https" {
				next.ServeHTTP(w, r)
				return
			}

			if treatLoopbackAsSecure && isLoopbackHost(hostOnly(r.Host)) {
				next.ServeHTTP(w, r)
				return
			}

			http.Error(w, `{"detail":"insecure transport"}`, http.StatusBadRequest)
		})
	}
}

// TrustedHost rejects requests whose Host header isn't on allowedHosts
// (always extended by config.Load with localhost/127.0.0.1/::1). An
// empty allowedHosts admits every host.
func TrustedHost(allowedHosts []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[h] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 || allowed[hostOnly(r.Host)] {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, `{"detail":"untrusted host"}`, http.StatusBadRequest)
		})
	}
}

func hostOnly(hostport string) string {
	if i := strings.LastIndex(hostport, ":"); i != -1 && !strings.Contains(hostport, "]") {
		return hostport[:i]
	}
	return strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
}

func isLoopbackHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
