package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

const testFingerprint = "8f3b2c9a8f3b2c9a8f3b2c9a8f3b2c9a8f3b2c9a8f3b2c9a8f3b2c9a8f3b2c9a"

var testPayload = []byte(`{"payloadVersion":"1","sourceRepresentation":"lmos","residue":{"model":"gpt-4o"}}`)

// ed25519TestSigner mirrors the signer contract without importing the keys
// package: sign sha256(message), prefix with the algorithm name.
type ed25519TestSigner struct {
	priv ed25519.PrivateKey
}

func (s *ed25519TestSigner) Sign(message []byte) (string, error) {
	sum := sha256.Sum256(message)
	sig := ed25519.Sign(s.priv, sum[:])
	return "ed25519:" + base64.StdEncoding.EncodeToString(sig), nil
}

func mustKeypair(t *testing.T) (string, *ed25519TestSigner) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub), &ed25519TestSigner{priv: priv}
}

func TestSealOpenRoundTrip_Keyless(t *testing.T) {
	env, key, err := Seal(testPayload, testFingerprint, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if env.Algorithm != Algorithm {
		t.Fatalf("algorithm: %s", env.Algorithm)
	}
	if !env.Unsigned() {
		t.Fatalf("nil signer must produce a keyless envelope: %s", env.Signature)
	}
	got, err := Open(env, testFingerprint, key, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != string(testPayload) {
		t.Fatalf("payload round trip: got %s", got)
	}
}

func TestSealOpenRoundTrip_Signed(t *testing.T) {
	pub, signer := mustKeypair(t)
	env, key, err := Seal(testPayload, testFingerprint, signer)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if env.Unsigned() {
		t.Fatalf("signed envelope reported as unsigned")
	}
	if _, err := Open(env, testFingerprint, key, pub); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Opening a signed envelope without the public key is refused.
	if err := mustFail(t, env, testFingerprint, key, ""); RuleID(err) != "MORPH-CRYPTO-103" {
		t.Fatalf("missing public key: got %v", err)
	}
	// A key from a different holder must not verify.
	otherPub, _ := mustKeypair(t)
	if err := mustFail(t, env, testFingerprint, key, otherPub); !IsKind(err, KindSignature) {
		t.Fatalf("wrong public key: got %v", err)
	}
}

func TestOpenRejectsWrongFingerprint(t *testing.T) {
	env, key, err := Seal(testPayload, testFingerprint, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	// The derived key is wrong, so decryption fails at the auth tag.
	err = mustFail(t, env, strings.Repeat("0", 64), key, "")
	if !IsKind(err, KindAuthTag) {
		t.Fatalf("wrong fingerprint: got %v, want an auth tag kind error", err)
	}

	// With a real signature the fingerprint mismatch is caught earlier.
	pub, signer := mustKeypair(t)
	env, key, err = Seal(testPayload, testFingerprint, signer)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	err = mustFail(t, env, strings.Repeat("0", 64), key, pub)
	if !IsKind(err, KindSignature) {
		t.Fatalf("wrong fingerprint, signed: got %v, want a signature kind error", err)
	}
}

func TestOpenRejectsWrongRestorationKey(t *testing.T) {
	env, _, err := Seal(testPayload, testFingerprint, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	_, otherKey, err := Seal(testPayload, testFingerprint, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	err = mustFail(t, env, testFingerprint, otherKey, "")
	if !IsKind(err, KindAuthTag) {
		t.Fatalf("foreign restoration key: got %v, want an auth tag kind error", err)
	}
}

func TestOpenDetectsTampering(t *testing.T) {
	env, key, err := Seal(testPayload, testFingerprint, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	flip := func(field *string) {
		b, err := base64.StdEncoding.DecodeString(*field)
		if err != nil {
			t.Fatalf("decode field: %v", err)
		}
		b[0] ^= 0x01
		*field = base64.StdEncoding.EncodeToString(b)
	}

	// Corruption of any encrypted material fails at the auth tag.
	for _, tc := range []struct {
		name   string
		mutate func(s *Sealed)
	}{
		{"ciphertext", func(s *Sealed) { flip(&s.Encrypted) }},
		{"iv", func(s *Sealed) { flip(&s.IV) }},
		{"auth tag", func(s *Sealed) { flip(&s.AuthTag) }},
	} {
		tampered := *env
		tc.mutate(&tampered)
		if err := mustFail(t, &tampered, testFingerprint, key, ""); !IsKind(err, KindAuthTag) {
			t.Fatalf("tampered %s: got %v, want an auth tag kind error", tc.name, err)
		}
	}

	// A corrupted integrity digest alone fails as a signature problem.
	tampered := *env
	tampered.Signature = "blake3:" + strings.Repeat("0", 64)
	if err := mustFail(t, &tampered, testFingerprint, key, ""); !IsKind(err, KindSignature) {
		t.Fatalf("tampered signature: got %v, want a signature kind error", err)
	}

	tampered = *env
	tampered.Algorithm = "aes-128-cbc"
	if err := mustFail(t, &tampered, testFingerprint, key, ""); RuleID(err) != "MORPH-CRYPTO-301" {
		t.Fatalf("foreign algorithm: got %v", err)
	}
}

func TestOpenDetectsTampering_Signed(t *testing.T) {
	pub, signer := mustKeypair(t)
	env, key, err := Seal(testPayload, testFingerprint, signer)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// The signature covers the ciphertext, so tampering is caught before
	// any key derivation.
	tampered := *env
	ct, _ := base64.StdEncoding.DecodeString(env.Encrypted)
	ct[0] ^= 0x01
	tampered.Encrypted = base64.StdEncoding.EncodeToString(ct)
	if err := mustFail(t, &tampered, testFingerprint, key, pub); !IsKind(err, KindSignature) {
		t.Fatalf("tampered ciphertext, signed: got %v", err)
	}
}

func TestOpenRejectsPublicKeyOnKeylessEnvelope(t *testing.T) {
	env, key, err := Seal(testPayload, testFingerprint, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	pub, _ := mustKeypair(t)
	if err := mustFail(t, env, testFingerprint, key, pub); RuleID(err) != "MORPH-CRYPTO-122" {
		t.Fatalf("public key on keyless envelope: got %v", err)
	}
}

func TestSealIsNotDeterministic(t *testing.T) {
	env1, key1, _ := Seal(testPayload, testFingerprint, nil)
	env2, key2, _ := Seal(testPayload, testFingerprint, nil)
	if key1 == key2 {
		t.Fatalf("two seals produced the same restoration key")
	}
	if env1.IV == env2.IV {
		t.Fatalf("two seals produced the same IV")
	}
	// Each envelope still opens only with its own key.
	if _, err := Open(env1, testFingerprint, key1, ""); err != nil {
		t.Fatalf("Open env1: %v", err)
	}
	if _, err := Open(env2, testFingerprint, key2, ""); err != nil {
		t.Fatalf("Open env2: %v", err)
	}
}

func TestParseRestorationKey(t *testing.T) {
	salt := base64.StdEncoding.EncodeToString(make([]byte, 16))
	tag := base64.StdEncoding.EncodeToString(make([]byte, 16))
	cases := []struct {
		name string
		key  string
		rule string
	}{
		{"valid", salt + ":" + tag, ""},
		{"no separator", salt + tag, "MORPH-CRYPTO-151"},
		{"bad salt base64", "!!!:" + tag, "MORPH-CRYPTO-152"},
		{"short salt", base64.StdEncoding.EncodeToString(make([]byte, 8)) + ":" + tag, "MORPH-CRYPTO-153"},
		{"bad tag base64", salt + ":!!!", "MORPH-CRYPTO-154"},
		{"short tag", salt + ":" + base64.StdEncoding.EncodeToString(make([]byte, 8)), "MORPH-CRYPTO-155"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseRestorationKey(tc.key)
			if tc.rule == "" {
				if err != nil {
					t.Fatalf("ParseRestorationKey: %v", err)
				}
				return
			}
			if RuleID(err) != tc.rule {
				t.Fatalf("got %v, want rule %s", err, tc.rule)
			}
		})
	}
}

func mustFail(t *testing.T, env *Sealed, fingerprint, key, pub string) error {
	t.Helper()
	payload, err := Open(env, fingerprint, key, pub)
	if err == nil {
		t.Fatalf("Open succeeded, payload %q", payload)
	}
	return err
}
