// Package keys implements the key-management lifecycle from spec.md §4.1:
// load an operator-supplied keyset, fall back to a locally persisted one,
// or generate and persist a fresh keyset on first use. Grounded on
// original_source/takagi/security.py's _get_key_file/_create_key/_get_key
// trio, which splits storage one JSON file per key type.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-jose/go-jose/v4"
	"github.com/rs/xid"
)

const (
	rsaKeyBits = 2048
	octKeyBits = 256
)

// Store holds both halves of KeyMaterial (spec.md §3) and exposes the
// public JWKS. Reads are lock-free after the first successful resolution;
// the mutex only guards the one-time load-or-generate path.
type Store struct {
	mu sync.Mutex

	signingKey    *rsa.PrivateKey
	encryptionKey []byte
	kid           string

	dataDir string
	keyset  string // raw TAKAGI_KEYSET JSON, if the operator supplied one
	keysetFile string
}

// New constructs a Store. dataDir is where generated keys are persisted
// (mirroring security.py's data/keys/ layout); keyset/keysetFile are the
// operator-supplied overrides from config, mutually exclusive by the time
// config.Load has validated them.
func New(dataDir, keyset, keysetFile string) *Store {
	return &Store{dataDir: dataDir, keyset: keyset, keysetFile: keysetFile}
}

// Resolve performs the precedence lookup described in spec.md §4.1:
// operator keyset wins, then the local keys directory, then generate and
// persist. It is idempotent and safe to call from multiple goroutines;
// only the first caller does any I/O.
func (s *Store) Resolve() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.signingKey != nil && s.encryptionKey != nil {
		return nil
	}

	if s.keyset != "" || s.keysetFile != "" {
		raw := []byte(s.keyset)
		if s.keysetFile != "" {
			b, err := os.ReadFile(s.keysetFile)
			if err != nil {
				return fmt.Errorf("keys: reading TAKAGI_KEYSET_FILE: %w", err)
			}
			raw = b
		}
		return s.loadOperatorKeyset(raw)
	}

	if err := s.loadLocal(); err == nil {
		return nil
	}

	return s.generateAndPersist()
}

// loadOperatorKeyset validates and adopts an operator-supplied keyset per
// settings.py's validate_keyset: exactly two keys, one RSA private
// (alg=RS256, use=sig), one octet (alg=A256GCM, use=enc).
func (s *Store) loadOperatorKeyset(raw []byte) error {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(raw, &set); err != nil {
		return fmt.Errorf("keys: parsing TAKAGI_KEYSET: %w", err)
	}

	rsaKey, octKey, err := splitKeyset(set)
	if err != nil {
		return fmt.Errorf("keys: invalid TAKAGI_KEYSET: %w", err)
	}

	priv, ok := rsaKey.Key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("keys: invalid TAKAGI_KEYSET: RSA key is not a private key")
	}

	s.signingKey = priv
	s.encryptionKey = octKey.Key.([]byte)
	s.kid = rsaKey.KeyID
	return nil
}

// splitKeyset enforces the exactly-one-RSA-one-octet shape shared by
// operator-supplied keysets and locally generated ones.
func splitKeyset(set jose.JSONWebKeySet) (rsaKey, octKey *jose.JSONWebKey, err error) {
	if len(set.Keys) != 2 {
		return nil, nil, fmt.Errorf("expected exactly 2 keys, got %d", len(set.Keys))
	}
	for i := range set.Keys {
		k := &set.Keys[i]
		switch {
		case k.Algorithm == string(jose.RS256) && k.Use == "sig":
			if _, ok := k.Key.(*rsa.PrivateKey); !ok {
				return nil, nil, fmt.Errorf("RS256/sig key is not an RSA private key")
			}
			rsaKey = k
		case k.Algorithm == string(jose.A256GCM) && k.Use == "enc":
			if _, ok := k.Key.([]byte); !ok {
				return nil, nil, fmt.Errorf("A256GCM/enc key is not an octet key")
			}
			octKey = k
		}
	}
	if rsaKey == nil {
		return nil, nil, fmt.Errorf("missing RSA key with alg=RS256, use=sig")
	}
	if octKey == nil {
		return nil, nil, fmt.Errorf("missing octet key with alg=A256GCM, use=enc")
	}
	return rsaKey, octKey, nil
}

func (s *Store) rsaPath() string { return filepath.Join(s.dataDir, "rsa_private_key.json") }
func (s *Store) octPath() string { return filepath.Join(s.dataDir, "oct_private_key.json") }

// loadLocal reads the two persisted per-key-type files. Any read or parse
// failure is treated as "not present" by the caller, which regenerates —
// per spec.md §7, key-file I/O retry is an internal-only failure.
func (s *Store) loadLocal() error {
	rsaJWK, err := readJWKFile(s.rsaPath())
	if err != nil {
		return err
	}
	octJWK, err := readJWKFile(s.octPath())
	if err != nil {
		return err
	}

	priv, ok := rsaJWK.Key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("keys: local rsa key is not a private key")
	}
	oct, ok := octJWK.Key.([]byte)
	if !ok {
		return fmt.Errorf("keys: local oct key is not an octet key")
	}

	s.signingKey = priv
	s.encryptionKey = oct
	s.kid = rsaJWK.KeyID
	return nil
}

func readJWKFile(path string) (*jose.JSONWebKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(b, &jwk); err != nil {
		return nil, err
	}
	return &jwk, nil
}

// generateAndPersist creates a fresh RSA signing key and octet encryption
// key, writes them to the data dir, and adopts them. A generate-then-write
// race between two first-use callers is tolerated (spec.md §4.1): both may
// generate, the last write wins, and it is harmless because neither keyset
// is in use yet.
func (s *Store) generateAndPersist() error {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return fmt.Errorf("keys: generating RSA key: %w", err)
	}

	oct := make([]byte, octKeyBits/8)
	if _, err := rand.Read(oct); err != nil {
		return fmt.Errorf("keys: generating encryption key: %w", err)
	}

	kid := xid.New().String()

	rsaJWK := jose.JSONWebKey{Key: priv, KeyID: kid, Algorithm: string(jose.RS256), Use: "sig"}
	octJWK := jose.JSONWebKey{Key: oct, KeyID: kid, Algorithm: string(jose.A256GCM), Use: "enc"}

	if err := os.MkdirAll(s.dataDir, 0o700); err != nil {
		return fmt.Errorf("keys: creating key directory: %w", err)
	}
	if err := writeJWKFile(s.rsaPath(), rsaJWK); err != nil {
		return fmt.Errorf("keys: persisting RSA key: %w", err)
	}
	if err := writeJWKFile(s.octPath(), octJWK); err != nil {
		return fmt.Errorf("keys: persisting encryption key: %w", err)
	}

	s.signingKey = priv
	s.encryptionKey = oct
	s.kid = kid
	return nil
}

func writeJWKFile(path string, jwk jose.JSONWebKey) error {
	b, err := json.Marshal(jwk)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// SigningKey returns the RSA private key used to sign JWTs. Resolve must
// have been called (and succeeded) first.
func (s *Store) SigningKey() *rsa.PrivateKey { return s.signingKey }

// EncryptionKey returns the 256-bit octet key used for dir+A256GCM JWE.
func (s *Store) EncryptionKey() []byte { return s.encryptionKey }

// KeyID returns the kid stamped on every JWT header and in the JWKS.
func (s *Store) KeyID() string { return s.kid }

// JWKS returns the public half of the signing key only, use=sig, matching
// security.py's get_jwks — the encryption key never appears here.
func (s *Store) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       &s.signingKey.PublicKey,
				KeyID:     s.kid,
				Algorithm: string(jose.RS256),
				Use:       "sig",
			},
		},
	}
}
