// Package envelope defines the three signed (and, for access tokens,
// partly encrypted) records that carry state across Takagi's redirect
// boundaries: StateEnvelope, AuthorizationEnvelope, and
// AccessTokenEnvelope (spec.md §3). Resolving the cyclic-import problem
// spec.md §9 calls out (the codec needs key material; envelopes need the
// codec to self-serialize), envelope types are pure data with no back
// reference to internal/codec — Encode/Decode are free functions that
// take a codec handle.
package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/sakif/takagi/internal/codec"
)

// EnvelopeTTL is the 300-second lifetime for StateEnvelope and
// AuthorizationEnvelope (spec.md §3).
const EnvelopeTTL = 300 * time.Second

// FarFutureSentinel is the "never expires" convention carried over from
// the original service so already-issued tokens stay wire-compatible
// (spec.md §9).
var FarFutureSentinel = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Envelope is the trait spec.md §9 mandates in place of a duck-typed
// envelope base class: anything that can describe itself as a claim map
// can be signed.
type Envelope interface {
	Claims() (map[string]any, error)
}

// NewRandomizer produces the 256-bit random claim spec.md requires on
// every signable envelope so that two otherwise-identical payloads never
// produce the same token string. crypto/rand is used directly rather than
// xid (time-ordered, and short of 256 bits of entropy) — the one
// standard-library carve-out in this module.
func NewRandomizer() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Encode signs an envelope's claim map and returns the compact JWT. The
// randomizer claim is replaced with a fresh value on every call, so two
// encodings of the same envelope never produce the same token string.
func Encode[T Envelope](c *codec.Codec, e T) (string, error) {
	claims, err := e.Claims()
	if err != nil {
		return "", err
	}
	r, err := NewRandomizer()
	if err != nil {
		return "", err
	}
	claims["randomizer"] = r
	return c.Sign(claims)
}

// Decode verifies token, then round-trips the resulting claim map through
// encoding/json into T — no reflection-based duck typing, per spec.md §9.
func Decode[T any](c *codec.Codec, token string, expect codec.ClaimExpectations) (T, error) {
	var zero T

	claims, err := c.Verify(token, expect)
	if err != nil {
		return zero, err
	}

	b, err := json.Marshal(claims)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// StateEnvelope is produced at /authorize and consumed at /r/{uri}
// (spec.md §3).
type StateEnvelope struct {
	RedirectURI string   `json:"redirect_uri"`
	State       string   `json:"state,omitempty"`
	Nonce       string   `json:"nonce,omitempty"`
	Scopes      []string `json:"scopes"`
	Referrer    string   `json:"referrer,omitempty"`
	Iat         int64    `json:"iat"`
	Exp         int64    `json:"exp"`
	Randomizer  string   `json:"randomizer"`
}

// NewStateEnvelope stamps iat/exp (300s TTL) and a fresh randomizer.
func NewStateEnvelope(redirectURI, state, nonce string, scopes []string, referrer string) (*StateEnvelope, error) {
	r, err := NewRandomizer()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &StateEnvelope{
		RedirectURI: redirectURI,
		State:       state,
		Nonce:       nonce,
		Scopes:      scopes,
		Referrer:    referrer,
		Iat:         now.Unix(),
		Exp:         now.Add(EnvelopeTTL).Unix(),
		Randomizer:  r,
	}, nil
}

func (e *StateEnvelope) Claims() (map[string]any, error) {
	return structToClaims(e)
}

// AuthorizationEnvelope is produced at /r/{uri} and consumed at /token
// (spec.md §3).
type AuthorizationEnvelope struct {
	Code        string   `json:"code"`
	RedirectURI string   `json:"redirect_uri"`
	Nonce       string   `json:"nonce,omitempty"`
	Scopes      []string `json:"scopes"`
	Iat         int64    `json:"iat"`
	Exp         int64    `json:"exp"`
	Randomizer  string   `json:"randomizer"`
}

// NewAuthorizationEnvelope stamps iat/exp (300s TTL) and a fresh
// randomizer.
func NewAuthorizationEnvelope(code, redirectURI, nonce string, scopes []string) (*AuthorizationEnvelope, error) {
	r, err := NewRandomizer()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &AuthorizationEnvelope{
		Code:        code,
		RedirectURI: redirectURI,
		Nonce:       nonce,
		Scopes:      scopes,
		Iat:         now.Unix(),
		Exp:         now.Add(EnvelopeTTL).Unix(),
		Randomizer:  r,
	}, nil
}

func (e *AuthorizationEnvelope) Claims() (map[string]any, error) {
	return structToClaims(e)
}

// AccessInfo is the confidential payload sealed inside an
// AccessTokenEnvelope's Token field (spec.md §3). It never leaves the
// service except encrypted. ClientID/ClientSecret mirror
// original_source/takagi/serializable.py's TakagiAccessInfo, which keeps
// the RP's credentials alongside the GitHub token so /userinfo can mint a
// fresh ID token without asking the RP again.
type AccessInfo struct {
	Token        map[string]any `json:"token"`
	Scopes       []string       `json:"scopes"`
	ClientID     string         `json:"client_id,omitempty"`
	ClientSecret string         `json:"client_secret,omitempty"`
}

// AccessTokenEnvelope is the outward access token (spec.md §3). Token
// holds AccessInfo serialized and sealed as a compact dir+A256GCM JWE;
// the envelope itself is signed, giving the two-layer design spec.md
// describes: anyone with the JWKS can verify authenticity, only this
// service can read the embedded GitHub credential.
type AccessTokenEnvelope struct {
	Iss        string `json:"iss"`
	Aud        string `json:"aud"`
	Iat        int64  `json:"iat"`
	Exp        int64  `json:"exp"`
	Token      string `json:"token"`
	Randomizer string `json:"randomizer"`
}

// NewAccessTokenEnvelope seals info as a JWE and wraps it with the given
// iat/exp — shared with the ID token minted in the same call, per
// spec.md §3 ("outward ID tokens and access tokens share an exp").
func NewAccessTokenEnvelope(c *codec.Codec, iss, aud string, info AccessInfo, iat, exp int64) (*AccessTokenEnvelope, error) {
	r, err := NewRandomizer()
	if err != nil {
		return nil, err
	}
	jwe, err := c.EncryptJSON(info)
	if err != nil {
		return nil, err
	}

	return &AccessTokenEnvelope{
		Iss:        iss,
		Aud:        aud,
		Iat:        iat,
		Exp:        exp,
		Token:      jwe,
		Randomizer: r,
	}, nil
}

func (e *AccessTokenEnvelope) Claims() (map[string]any, error) {
	return structToClaims(e)
}

// DecryptAccessInfo decrypts the envelope's sealed Token field.
func (e *AccessTokenEnvelope) DecryptAccessInfo(c *codec.Codec) (*AccessInfo, error) {
	var info AccessInfo
	if err := c.DecryptJSON(e.Token, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func structToClaims(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var claims map[string]any
	if err := json.Unmarshal(b, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}
