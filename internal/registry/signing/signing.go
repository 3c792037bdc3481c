// Package signing verifies the owner signature on sponsored registrations.
//
// A deployment picks one scheme. An identity's keys are either implied by
// the identity itself (a 64-character hex ed25519 public key) or listed in
// the registry's authorized-key directory.
package signing

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
)

// Scheme names a signature algorithm.
type Scheme string

const (
	Ed25519    Scheme = "ed25519"
	Dilithium3 Scheme = "dilithium3"
)

// ParseScheme accepts the configured scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case Ed25519, Dilithium3:
		return Scheme(s), nil
	default:
		return "", fmt.Errorf("unsupported signature scheme %q", s)
	}
}

// KeyDirectory lists the public keys an identity has authorized.
type KeyDirectory interface {
	AuthorizedKeys(ctx context.Context, id domain.Identity) ([][]byte, error)
}

// Verifier checks signatures for one scheme.
type Verifier struct {
	scheme Scheme
	keys   KeyDirectory
}

func New(scheme Scheme, keys KeyDirectory) (*Verifier, error) {
	if _, err := ParseScheme(string(scheme)); err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, fmt.Errorf("key directory is required")
	}
	return &Verifier{scheme: scheme, keys: keys}, nil
}

func (v *Verifier) Scheme() Scheme {
	return v.scheme
}

// Verify reports whether sig over digest was made by any key of claimed.
// Malformed signatures verify false; only directory failures are errors.
func (v *Verifier) Verify(ctx context.Context, claimed domain.Identity, digest, sig []byte) (bool, error) {
	if v.scheme == Ed25519 {
		if pub, ok := ImplicitKey(claimed); ok {
			return ed25519.Verify(pub, digest, sig), nil
		}
	}

	keys, err := v.keys.AuthorizedKeys(ctx, claimed)
	if err != nil {
		return false, fmt.Errorf("load authorized keys: %w", err)
	}
	for _, key := range keys {
		if v.verifyWith(key, digest, sig) {
			return true, nil
		}
	}
	return false, nil
}

func (v *Verifier) verifyWith(key, digest, sig []byte) bool {
	switch v.scheme {
	case Ed25519:
		if len(key) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(key, digest, sig)
	case Dilithium3:
		if len(sig) != mode3.SignatureSize {
			return false
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(key); err != nil {
			return false
		}
		return mode3.Verify(&pk, digest, sig)
	default:
		return false
	}
}

// ImplicitKey returns the ed25519 key an implicit identity names.
func ImplicitKey(id domain.Identity) (ed25519.PublicKey, bool) {
	s := string(id)
	if len(s) != 2*ed25519.PublicKeySize {
		return nil, false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return ed25519.PublicKey(raw), true
}

// ParsePublicKey validates key for scheme before it enters the directory.
func ParsePublicKey(scheme Scheme, key []byte) ([]byte, error) {
	switch scheme {
	case Ed25519:
		if len(key) != ed25519.PublicKeySize {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid ed25519 public key length")
		}
	case Dilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(key); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid dilithium3 public key")
		}
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported signature scheme")
	}
	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

// Fingerprint is a short stable label for a public key, used in events and
// logs instead of the key itself.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:8])
}

// Signer produces signatures for tests and client tooling.
type Signer struct {
	Scheme Scheme
	Public []byte
	sign   func(digest []byte) []byte
}

func (s *Signer) Sign(digest []byte) []byte {
	return s.sign(digest)
}

// GenerateSigner creates a fresh key pair for scheme from rand.
func GenerateSigner(scheme Scheme, rand io.Reader) (*Signer, error) {
	switch scheme {
	case Ed25519:
		pub, priv, err := ed25519.GenerateKey(rand)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		return &Signer{Scheme: scheme, Public: pub, sign: func(d []byte) []byte {
			return ed25519.Sign(priv, d)
		}}, nil
	case Dilithium3:
		pub, priv, err := mode3.GenerateKey(rand)
		if err != nil {
			return nil, fmt.Errorf("generate dilithium3 key: %w", err)
		}
		packed, err := pub.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal dilithium3 key: %w", err)
		}
		return &Signer{Scheme: scheme, Public: packed, sign: func(d []byte) []byte {
			sig := make([]byte, mode3.SignatureSize)
			mode3.SignTo(priv, d, sig)
			return sig
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported signature scheme %q", scheme)
	}
}

// ImplicitIdentity is the identity named by an ed25519 public key.
func ImplicitIdentity(pub ed25519.PublicKey) domain.Identity {
	return domain.Identity(hex.EncodeToString(pub))
}
