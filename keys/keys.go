// Package keys generates, encodes and stores the signing keypairs used to
// sign sealed envelopes.
//
// Two algorithms are supported: ed25519 and dilithium3 (post-quantum).
// Public keys travel as "<alg>:<base64>" strings; private keys are encoded
// "<alg>:<hex>" and only ever written to key files, never embedded in
// converted records.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

// Keypair holds one signing keypair. The zero value is unusable; construct
// via Generate or ParsePrivateKey.
type Keypair struct {
	Algorithm string
	PublicKey string // "<alg>:<base64>"

	ed25519Priv    ed25519.PrivateKey
	dilithium3Priv *mode3.PrivateKey
}

// Generate creates a new keypair for the given algorithm.
func Generate(algorithm string) (*Keypair, error) {
	switch algorithm {
	case AlgEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &Keypair{
			Algorithm:   AlgEd25519,
			PublicKey:   AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(pub),
			ed25519Priv: priv,
		}, nil
	case AlgDilithium3:
		pub, priv, err := mode3.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		pubBytes, err := pub.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return &Keypair{
			Algorithm:      AlgDilithium3,
			PublicKey:      AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(pubBytes),
			dilithium3Priv: priv,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", algorithm)
	}
}

// Sign returns a prefixed signature over sha256(message). Keypair satisfies
// the envelope signer contract.
func (k *Keypair) Sign(message []byte) (string, error) {
	sum := sha256.Sum256(message)
	switch k.Algorithm {
	case AlgEd25519:
		if k.ed25519Priv == nil {
			return "", fmt.Errorf("missing ed25519 private key")
		}
		sig := ed25519.Sign(k.ed25519Priv, sum[:])
		return AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(sig), nil
	case AlgDilithium3:
		if k.dilithium3Priv == nil {
			return "", fmt.Errorf("missing dilithium3 private key")
		}
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(k.dilithium3Priv, sum[:], sig)
		return AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(sig), nil
	default:
		return "", fmt.Errorf("unsupported algorithm: %q", k.Algorithm)
	}
}

// EncodePrivate returns the private key in "<alg>:<hex>" form. For ed25519
// the hex covers the 32-byte seed; for dilithium3 the packed private key.
func (k *Keypair) EncodePrivate() (string, error) {
	switch k.Algorithm {
	case AlgEd25519:
		if k.ed25519Priv == nil {
			return "", fmt.Errorf("missing ed25519 private key")
		}
		return AlgEd25519 + ":" + hex.EncodeToString(k.ed25519Priv.Seed()), nil
	case AlgDilithium3:
		if k.dilithium3Priv == nil {
			return "", fmt.Errorf("missing dilithium3 private key")
		}
		priv, err := k.dilithium3Priv.MarshalBinary()
		if err != nil {
			return "", err
		}
		return AlgDilithium3 + ":" + hex.EncodeToString(priv), nil
	default:
		return "", fmt.Errorf("unsupported algorithm: %q", k.Algorithm)
	}
}

// ParsePrivateKey decodes a "<alg>:<hex>" private key string into a usable
// keypair, recovering the public key.
func ParsePrivateKey(s string) (*Keypair, error) {
	alg, enc, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, fmt.Errorf("invalid private key encoding")
	}
	raw, err := hex.DecodeString(enc)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	switch alg {
	case AlgEd25519:
		if len(raw) != ed25519.SeedSize {
			return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(raw))
		}
		priv := ed25519.NewKeyFromSeed(raw)
		pub := priv.Public().(ed25519.PublicKey)
		return &Keypair{
			Algorithm:   AlgEd25519,
			PublicKey:   AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(pub),
			ed25519Priv: priv,
		}, nil
	case AlgDilithium3:
		var priv mode3.PrivateKey
		if err := priv.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("invalid dilithium3 private key: %w", err)
		}
		pub := priv.Public().(*mode3.PublicKey)
		pubBytes, err := pub.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return &Keypair{
			Algorithm:      AlgDilithium3,
			PublicKey:      AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(pubBytes),
			dilithium3Priv: &priv,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", alg)
	}
}
