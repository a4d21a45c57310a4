// Package envelope seals shadow payloads into encrypted, tamper-evident
// envelopes and opens them again.
//
// The cipher is AES-256-GCM with a 16-byte IV. The encryption key is derived
// with PBKDF2-SHA256 from the agent fingerprint and a per-envelope random
// salt, so an envelope can only be opened for the identity it was sealed
// under. The salt and the GCM auth tag together form the restoration key,
// which is returned to the caller exactly once at seal time and never stored.
//
// Envelopes are additionally signed over ciphertext, IV, auth tag and
// fingerprint. With no signer configured a keyless BLAKE3 integrity digest is
// recorded instead; it detects accidental corruption but proves no authorship.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/pbkdf2"

	"xdao.co/morph/digest"
)

// Algorithm identifies the only cipher this format version uses.
const Algorithm = "aes-256-gcm"

const (
	keyLength     = 32
	ivLength      = 16
	saltLength    = 16
	authTagLength = 16
	kdfIterations = 100_000
)

// Signer produces a prefixed signature string ("<alg>:<base64>") over a
// message. Implementations live in the keys package.
type Signer interface {
	Sign(message []byte) (string, error)
}

// Sealed is the wire form of an encrypted envelope. All binary fields are
// base64 (standard, padded).
type Sealed struct {
	Encrypted string `json:"encrypted"`
	Algorithm string `json:"algorithm"`
	IV        string `json:"iv"`
	AuthTag   string `json:"authTag"`
	Signature string `json:"signature"`
}

// Unsigned reports whether the envelope carries only a keyless integrity
// digest rather than a real signature.
func (s *Sealed) Unsigned() bool {
	return strings.HasPrefix(s.Signature, "blake3:")
}

// WellFormed checks field presence, encodings and lengths without touching
// any key material.
func (s *Sealed) WellFormed() error {
	if s.Algorithm != Algorithm {
		return newError(KindEncoding, "MORPH-CRYPTO-301", "unsupported algorithm")
	}
	ct, err := decodeField(s.Encrypted, "encrypted", "MORPH-CRYPTO-141")
	if err != nil {
		return err
	}
	if len(ct) == 0 {
		return newError(KindEncoding, "MORPH-CRYPTO-146", "empty ciphertext")
	}
	iv, err := decodeField(s.IV, "iv", "MORPH-CRYPTO-142")
	if err != nil {
		return err
	}
	if len(iv) != ivLength {
		return newError(KindEncoding, "MORPH-CRYPTO-143", "invalid iv length")
	}
	tag, err := decodeField(s.AuthTag, "authTag", "MORPH-CRYPTO-144")
	if err != nil {
		return err
	}
	if len(tag) != authTagLength {
		return newError(KindEncoding, "MORPH-CRYPTO-145", "invalid auth tag length")
	}
	if s.Signature == "" {
		return newError(KindSignature, "MORPH-CRYPTO-101", "missing signature")
	}
	if _, _, ok := strings.Cut(s.Signature, ":"); !ok {
		return newError(KindSignature, "MORPH-CRYPTO-111", "invalid signature encoding")
	}
	return nil
}

// Seal encrypts payload under a key derived from fingerprint and a fresh
// random salt, and returns the envelope together with the restoration key.
//
// The restoration key is the only copy of the salt and auth tag; without it
// the envelope cannot be opened. Callers must hand it to the user and forget
// it. A nil signer produces a keyless envelope.
func Seal(payload []byte, fingerprint string, signer Signer) (*Sealed, string, error) {
	if len(payload) == 0 {
		return nil, "", newError(KindInternal, "MORPH-CRYPTO-001", "empty payload")
	}
	if fingerprint == "" {
		return nil, "", newError(KindKey, "MORPH-CRYPTO-002", "empty fingerprint")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, "", wrapError(KindInternal, "MORPH-CRYPTO-011", "salt generation failed", err)
	}
	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, "", wrapError(KindInternal, "MORPH-CRYPTO-012", "iv generation failed", err)
	}

	gcm, err := newGCM(deriveKey(fingerprint, salt))
	if err != nil {
		return nil, "", err
	}
	sealed := gcm.Seal(nil, iv, payload, nil)
	ciphertext := sealed[:len(sealed)-authTagLength]
	authTag := sealed[len(sealed)-authTagLength:]

	signature, err := sign(signer, signedMessage(ciphertext, iv, authTag, fingerprint))
	if err != nil {
		return nil, "", err
	}

	env := &Sealed{
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
		Algorithm: Algorithm,
		IV:        base64.StdEncoding.EncodeToString(iv),
		AuthTag:   base64.StdEncoding.EncodeToString(authTag),
		Signature: signature,
	}
	restorationKey := base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(authTag)
	return env, restorationKey, nil
}

// Open verifies and decrypts a sealed envelope.
//
// Checks run in a fixed order: signature (for signed envelopes), restoration
// key parse, auth tag comparison, decryption. Unsigned envelopes carry only a
// keyless digest; it is compared after decryption so corruption in the
// ciphertext, IV or auth tag surfaces as an auth tag failure and only a
// corrupted digest itself surfaces as a signature failure. publicKey is
// optional ("<alg>:<base64>"); when supplied the envelope must carry a
// matching real signature.
func Open(s *Sealed, fingerprint, restorationKey, publicKey string) ([]byte, error) {
	if s == nil {
		return nil, newError(KindInternal, "MORPH-CRYPTO-003", "nil envelope")
	}
	if s.Algorithm != Algorithm {
		return nil, newError(KindEncoding, "MORPH-CRYPTO-301", "unsupported algorithm")
	}

	ciphertext, err := decodeField(s.Encrypted, "encrypted", "MORPH-CRYPTO-141")
	if err != nil {
		return nil, err
	}
	iv, err := decodeField(s.IV, "iv", "MORPH-CRYPTO-142")
	if err != nil {
		return nil, err
	}
	if len(iv) != ivLength {
		return nil, newError(KindEncoding, "MORPH-CRYPTO-143", "invalid iv length")
	}
	authTag, err := decodeField(s.AuthTag, "authTag", "MORPH-CRYPTO-144")
	if err != nil {
		return nil, err
	}
	if len(authTag) != authTagLength {
		return nil, newError(KindEncoding, "MORPH-CRYPTO-145", "invalid auth tag length")
	}

	message := signedMessage(ciphertext, iv, authTag, fingerprint)
	unsigned := s.Unsigned()
	if unsigned {
		if publicKey != "" {
			return nil, newError(KindSignature, "MORPH-CRYPTO-122", "public key supplied but envelope is unsigned")
		}
	} else {
		if err := VerifySignature(s.Signature, message, publicKey); err != nil {
			return nil, err
		}
	}

	salt, keyTag, err := ParseRestorationKey(restorationKey)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(keyTag, authTag) != 1 {
		return nil, newError(KindAuthTag, "MORPH-CRYPTO-411", "auth tag mismatch")
	}

	gcm, err := newGCM(deriveKey(fingerprint, salt))
	if err != nil {
		return nil, err
	}
	payload, err := gcm.Open(nil, iv, append(append([]byte{}, ciphertext...), authTag...), nil)
	if err != nil {
		return nil, wrapError(KindAuthTag, "MORPH-CRYPTO-412", "decryption failed", err)
	}
	if unsigned {
		if err := VerifySignature(s.Signature, message, ""); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// ParseRestorationKey splits a restoration key into its salt and auth tag.
func ParseRestorationKey(key string) (salt, authTag []byte, err error) {
	saltEnc, tagEnc, ok := strings.Cut(key, ":")
	if !ok {
		return nil, nil, newError(KindKey, "MORPH-CRYPTO-151", "invalid restoration key encoding")
	}
	salt, err = base64.StdEncoding.DecodeString(saltEnc)
	if err != nil {
		return nil, nil, wrapError(KindKey, "MORPH-CRYPTO-152", "invalid restoration key salt base64", err)
	}
	if len(salt) != saltLength {
		return nil, nil, newError(KindKey, "MORPH-CRYPTO-153", "invalid restoration key salt length")
	}
	authTag, err = base64.StdEncoding.DecodeString(tagEnc)
	if err != nil {
		return nil, nil, wrapError(KindKey, "MORPH-CRYPTO-154", "invalid restoration key tag base64", err)
	}
	if len(authTag) != authTagLength {
		return nil, nil, newError(KindKey, "MORPH-CRYPTO-155", "invalid restoration key tag length")
	}
	return salt, authTag, nil
}

// VerifySignature checks a prefixed signature string over message.
//
// Supported encodings:
// - ed25519:<base64>    requires a matching public key
// - dilithium3:<base64> requires a matching public key
// - blake3:<hex>        keyless integrity digest; rejects a supplied public key
func VerifySignature(signature string, message []byte, publicKey string) error {
	if signature == "" {
		return newError(KindSignature, "MORPH-CRYPTO-101", "missing signature")
	}
	alg, enc, ok := strings.Cut(signature, ":")
	if !ok {
		return newError(KindSignature, "MORPH-CRYPTO-111", "invalid signature encoding")
	}

	if alg == "blake3" {
		if publicKey != "" {
			return newError(KindSignature, "MORPH-CRYPTO-122", "public key supplied but envelope is unsigned")
		}
		if subtle.ConstantTimeCompare([]byte(enc), []byte(digest.BLAKE3Hex(message))) != 1 {
			return newError(KindSignature, "MORPH-CRYPTO-401", "signature invalid")
		}
		return nil
	}

	if publicKey == "" {
		return newError(KindSignature, "MORPH-CRYPTO-103", "missing public key for signed envelope")
	}
	keyAlg, keyEnc, ok := strings.Cut(publicKey, ":")
	if !ok {
		return newError(KindSignature, "MORPH-CRYPTO-112", "invalid public key encoding")
	}
	if keyAlg != alg {
		return newError(KindSignature, "MORPH-CRYPTO-121", "public key alg does not match signature alg")
	}
	pub, err := decodeBase64(keyEnc)
	if err != nil {
		return wrapError(KindSignature, "MORPH-CRYPTO-113", "invalid public key base64", err)
	}
	sig, err := decodeBase64(enc)
	if err != nil {
		return wrapError(KindSignature, "MORPH-CRYPTO-131", "invalid signature base64", err)
	}
	sum := sha256.Sum256(message)

	switch alg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return newError(KindSignature, "MORPH-CRYPTO-114", "invalid ed25519 public key length")
		}
		if len(sig) != ed25519.SignatureSize {
			return newError(KindSignature, "MORPH-CRYPTO-132", "invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), sum[:], sig) {
			return newError(KindSignature, "MORPH-CRYPTO-401", "signature invalid")
		}
		return nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return wrapError(KindSignature, "MORPH-CRYPTO-115", "invalid dilithium3 public key", err)
		}
		if len(sig) != mode3.SignatureSize {
			return newError(KindSignature, "MORPH-CRYPTO-133", "invalid dilithium3 signature length")
		}
		if !mode3.Verify(&pk, sum[:], sig) {
			return newError(KindSignature, "MORPH-CRYPTO-401", "signature invalid")
		}
		return nil
	default:
		return newError(KindSignature, "MORPH-CRYPTO-302", "unsupported signature alg")
	}
}

// signedMessage is the byte string signatures cover: ciphertext, IV, auth tag
// and fingerprint, in that order.
func signedMessage(ciphertext, iv, authTag []byte, fingerprint string) []byte {
	msg := make([]byte, 0, len(ciphertext)+len(iv)+len(authTag)+len(fingerprint))
	msg = append(msg, ciphertext...)
	msg = append(msg, iv...)
	msg = append(msg, authTag...)
	msg = append(msg, fingerprint...)
	return msg
}

func sign(signer Signer, message []byte) (string, error) {
	if signer == nil {
		return "blake3:" + digest.BLAKE3Hex(message), nil
	}
	sig, err := signer.Sign(message)
	if err != nil {
		return "", wrapError(KindSignature, "MORPH-CRYPTO-501", "signing failed", err)
	}
	if _, _, ok := strings.Cut(sig, ":"); !ok {
		return "", newError(KindSignature, "MORPH-CRYPTO-502", "signer produced an unprefixed signature")
	}
	return sig, nil
}

func deriveKey(fingerprint string, salt []byte) []byte {
	return pbkdf2.Key([]byte(fingerprint), salt, kdfIterations, keyLength, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapError(KindInternal, "MORPH-CRYPTO-021", "cipher init failed", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, wrapError(KindInternal, "MORPH-CRYPTO-022", "gcm init failed", err)
	}
	return gcm, nil
}

func decodeField(enc, name, ruleID string) ([]byte, error) {
	b, err := decodeBase64(enc)
	if err != nil {
		return nil, wrapError(KindEncoding, ruleID, "invalid "+name+" base64", err)
	}
	return b, nil
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
