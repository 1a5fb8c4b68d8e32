package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecureTransportRejectsPlainHTTP(t *testing.T) {
	h := SecureTransport(false)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "http://op.example/authorize", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecureTransportAllowsForwardedProtoHTTPS(t *testing.T) {
	h := SecureTransport(false)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "http://op.example/authorize", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecureTransportAllowsLoopbackWhenConfigured(t *testing.T) {
	h := SecureTransport(true)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "http://localhost:8080/authorize", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecureTransportRejectsLoopbackWhenNotConfigured(t *testing.T) {
	h := SecureTransport(false)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "http://localhost:8080/authorize", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrustedHostAllowsKnownHost(t *testing.T) {
	h := TrustedHost([]string{"op.example"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "http://op.example/authorize", nil)
	req.Host = "op.example"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrustedHostRejectsUnknownHost(t *testing.T) {
	h := TrustedHost([]string{"op.example"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "http://evil.example/authorize", nil)
	req.Host = "evil.example"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrustedHostStripsPort(t *testing.T) {
	h := TrustedHost([]string{"op.example"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "http://op.example:8443/authorize", nil)
	req.Host = "op.example:8443"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrustedHostEmptyAllowListAllowsAll(t *testing.T) {
	h := TrustedHost(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "http://anything.example/authorize", nil)
	req.Host = "anything.example"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
