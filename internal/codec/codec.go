// Package codec implements spec.md §4.2's token codec: sign/verify RS256
// JWTs and encrypt/decrypt dir+A256GCM JWEs over the claim maps that
// internal/envelope serializes. Grounded on go-jose/v4 usage patterns
// confirmed in gravitational-teleport's lib/azuredevops and
// lib/auth/appauthconfig packages (jose.NewSigner with a SignerOptions
// builder, jwt.Signed(...).Claims(...).Serialize()).
package codec

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/sakif/takagi/internal/keys"
)

// ErrVerification is the single opaque failure kind spec.md §4.2 mandates
// for verify/decrypt failures — callers choose the HTTP status, the codec
// never leaks why verification failed. Sign and Encrypt return the
// underlying error unchanged.
var ErrVerification = errors.New("codec: verification failed")

// ClaimExpectations replaces the original Python codec's variadic keyword
// claim constraints (spec.md §9 design notes) with a small struct. A nil
// field means "don't check"; a non-nil field must match exactly.
type ClaimExpectations struct {
	Issuer   *string
	Audience *string
}

// Codec wraps a keys.Store and exposes sign/verify/encrypt/decrypt over
// plain claim maps. It holds no state of its own beyond the key store.
type Codec struct {
	store *keys.Store
}

// New builds a Codec over an already-resolved key store.
func New(store *keys.Store) *Codec {
	return &Codec{store: store}
}

// Sign marshals claims and signs them as a compact RS256 JWT, mirroring
// security.py's create_jwt.
func (c *Codec) Sign(claims map[string]any) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.RS256,
		Key:       c.store.SigningKey(),
	}, (&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", c.store.KeyID()))
	if err != nil {
		return "", err
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", err
	}
	return token, nil
}

// Verify parses a compact RS256 JWT, checks its signature against the
// current signing key, unmarshals its claims, and applies expect plus the
// wall-clock exp/iat/nbf checks spec.md §4.2 and §3 require. Any failure
// collapses to ErrVerification.
func (c *Codec) Verify(token string, expect ClaimExpectations) (map[string]any, error) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, ErrVerification
	}

	var claims map[string]any
	if err := parsed.Claims(&c.store.SigningKey().PublicKey, &claims); err != nil {
		return nil, ErrVerification
	}

	if err := checkTimes(claims); err != nil {
		return nil, err
	}
	if err := checkExpectations(claims, expect); err != nil {
		return nil, err
	}

	return claims, nil
}

func checkTimes(claims map[string]any) error {
	now := time.Now().Unix()

	if exp, ok := numericClaim(claims, "exp"); ok && int64(exp) <= now {
		return ErrVerification
	}
	if iat, ok := numericClaim(claims, "iat"); ok && int64(iat) > now {
		return ErrVerification
	}
	if nbf, ok := numericClaim(claims, "nbf"); ok && int64(nbf) > now {
		return ErrVerification
	}
	return nil
}

func checkExpectations(claims map[string]any, expect ClaimExpectations) error {
	if expect.Issuer != nil {
		if iss, _ := claims["iss"].(string); iss != *expect.Issuer {
			return ErrVerification
		}
	}
	if expect.Audience != nil {
		if aud, _ := claims["aud"].(string); aud != *expect.Audience {
			return ErrVerification
		}
	}
	return nil
}

// numericClaim reads a claim that, after a JSON round-trip, is a
// float64 — encoding/json's default number representation.
func numericClaim(claims map[string]any, key string) (float64, bool) {
	v, ok := claims[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Encrypt seals plaintext as a compact dir+A256GCM JWE, mirroring
// security.py's create_jwe.
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	encrypter, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{
		Algorithm: jose.DIRECT,
		Key:       c.store.EncryptionKey(),
	}, nil)
	if err != nil {
		return "", err
	}

	jwe, err := encrypter.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return jwe.CompactSerialize()
}

// Decrypt opens a compact dir+A256GCM JWE. Any parse or decrypt failure
// collapses to ErrVerification.
func (c *Codec) Decrypt(token string) ([]byte, error) {
	jwe, err := jose.ParseEncrypted(token,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return nil, ErrVerification
	}

	plaintext, err := jwe.Decrypt(c.store.EncryptionKey())
	if err != nil {
		return nil, ErrVerification
	}
	return plaintext, nil
}

// EncryptJSON is a convenience wrapper: marshal v to JSON, then encrypt.
func (c *Codec) EncryptJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return c.Encrypt(b)
}

// DecryptJSON decrypts token and unmarshals the plaintext into v.
func (c *Codec) DecryptJSON(token string, v any) error {
	b, err := c.Decrypt(token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return ErrVerification
	}
	return nil
}
