package oidc

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/takagi/internal/apperror"
)

func TestResolveCredentialsBasic(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "/token", strings.NewReader(""))
	require.NoError(t, err)
	req.SetBasicAuth("abc", "secret")

	id, secret, err := ResolveCredentials(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "secret", secret)
}

func TestResolveCredentialsForm(t *testing.T) {
	body := url.Values{"client_id": {"abc"}, "client_secret": {"secret"}}
	req, err := http.NewRequest(http.MethodPost, "/token", strings.NewReader(body.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	id, secret, err := ResolveCredentials(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "secret", secret)
}

// TestResolveCredentialsBothFails is spec.md S6: both HTTP Basic and form
// credentials present must 400.
func TestResolveCredentialsBothFails(t *testing.T) {
	body := url.Values{"client_id": {"abc"}, "client_secret": {"secret"}}
	req, err := http.NewRequest(http.MethodPost, "/token", strings.NewReader(body.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("abc", "secret")

	_, _, err = ResolveCredentials(req)
	assert.ErrorIs(t, err, apperror.ErrInvalidRequest)
}

func TestResolveCredentialsNeitherFails(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "/token", strings.NewReader(""))
	require.NoError(t, err)

	_, _, err = ResolveCredentials(req)
	assert.ErrorIs(t, err, apperror.ErrInvalidRequest)
}

func TestClientAllowed(t *testing.T) {
	assert.True(t, ClientAllowed("abc", []string{"*"}))
	assert.True(t, ClientAllowed("abc", []string{"abc", "def"}))
	assert.False(t, ClientAllowed("abc", []string{"def"}))
}
