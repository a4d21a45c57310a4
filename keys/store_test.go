package keys

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFSStoreSaveLoad(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	kp, err := Generate(AlgEd25519)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := store.Save("signer", kp, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(store.PrivatePath("signer"))
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("private key permissions: %o", perm)
	}

	got, err := store.Load("signer")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.PublicKey != kp.PublicKey {
		t.Fatalf("loaded keypair differs: got %s want %s", got.PublicKey, kp.PublicKey)
	}

	pub, err := LoadPublicKeyFile(store.PublicPath("signer"))
	if err != nil {
		t.Fatalf("LoadPublicKeyFile: %v", err)
	}
	if pub != kp.PublicKey {
		t.Fatalf("public key file: got %s want %s", pub, kp.PublicKey)
	}
}

func TestStoreRefusesOverwrite(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())
	stores := map[string]Store{"fs": fs, "mem": NewMemStore()}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			kp, _ := Generate(AlgEd25519)
			if err := store.Save("signer", kp, false); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := store.Save("signer", kp, false); err == nil {
				t.Fatalf("second Save without overwrite succeeded")
			}
			if err := store.Save("signer", kp, true); err != nil {
				t.Fatalf("Save with overwrite: %v", err)
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())
	stores := map[string]Store{"fs": fs, "mem": NewMemStore()}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			for _, keyName := range []string{"zeta", "alpha"} {
				kp, _ := Generate(AlgEd25519)
				if err := store.Save(keyName, kp, false); err != nil {
					t.Fatalf("Save %s: %v", keyName, err)
				}
			}
			names, err := store.List()
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if !reflect.DeepEqual(names, []string{"alpha", "zeta"}) {
				t.Fatalf("List: %v", names)
			}
		})
	}
}

func TestMemStoreLoadRoundTrip(t *testing.T) {
	store := NewMemStore()
	kp, _ := Generate(AlgDilithium3)
	if err := store.Save("pq", kp, false); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load("pq")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.PublicKey != kp.PublicKey {
		t.Fatalf("loaded keypair differs")
	}
	if _, err := store.Load("absent"); err == nil {
		t.Fatalf("missing key accepted")
	}
}

func TestCheckKeyName(t *testing.T) {
	if err := CheckKeyName("release-signer_01"); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
	for _, name := range []string{"", "a/b", "a b", "../escape"} {
		if err := CheckKeyName(name); err == nil {
			t.Fatalf("invalid name %q accepted", name)
		}
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.key")); err == nil {
		t.Fatalf("missing key file accepted")
	}
}
