package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store is the injected persistence surface for named keypairs. The CLI uses
// FSStore; tests use MemStore.
type Store interface {
	// Save persists kp under name. Refuses to replace an existing key
	// unless overwrite is set.
	Save(name string, kp *Keypair, overwrite bool) error
	// Load returns the keypair stored under name.
	Load(name string) (*Keypair, error)
	// List returns the stored key names, sorted.
	List() ([]string, error)
}

// CheckKeyName restricts key names to [a-zA-Z0-9_-] so they stay safe as
// file names.
func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", char)
	}
	return nil
}

// FSStore is a simple local-first key directory. Each named keypair is two
// files: <name>.key holding the private key ("<alg>:<hex>") and <name>.pub
// holding the public key string. Key files are created 0600 inside 0700
// directories and are never overwritten unless asked.
type FSStore struct {
	Directory string
}

// DefaultDirectory returns ~/.morph/keys.
func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".morph", "keys"), nil
}

// NewFSStore opens a store rooted at directory, falling back to
// DefaultDirectory when directory is empty.
func NewFSStore(directory string) (*FSStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &FSStore{Directory: directory}, nil
}

// PrivatePath returns the private key file path for name.
func (s *FSStore) PrivatePath(name string) string { return filepath.Join(s.Directory, name+".key") }

// PublicPath returns the public key file path for name.
func (s *FSStore) PublicPath(name string) string { return filepath.Join(s.Directory, name+".pub") }

func (s *FSStore) Save(name string, kp *Keypair, overwrite bool) error {
	if err := CheckKeyName(name); err != nil {
		return err
	}
	priv, err := kp.EncodePrivate()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Directory, 0o700); err != nil {
		return err
	}
	if err := writeFile(s.PrivatePath(name), priv+"\n", 0o600, overwrite); err != nil {
		return err
	}
	return writeFile(s.PublicPath(name), kp.PublicKey+"\n", 0o644, overwrite)
}

func (s *FSStore) Load(name string) (*Keypair, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	return LoadFile(s.PrivatePath(name))
}

func (s *FSStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".key") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".key"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// MemStore keeps keypairs in memory. Safe for concurrent use.
type MemStore struct {
	mu   sync.RWMutex
	keys map[string]string // name -> encoded private key
}

func NewMemStore() *MemStore {
	return &MemStore{keys: make(map[string]string)}
}

func (s *MemStore) Save(name string, kp *Keypair, overwrite bool) error {
	if err := CheckKeyName(name); err != nil {
		return err
	}
	priv, err := kp.EncodePrivate()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[name]; exists && !overwrite {
		return fmt.Errorf("key %q already exists", name)
	}
	s.keys[name] = priv
	return nil
}

func (s *MemStore) Load(name string) (*Keypair, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	priv, ok := s.keys[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("key %q not found", name)
	}
	return ParsePrivateKey(priv)
}

func (s *MemStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.keys))
	for name := range s.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadFile reads a private key file ("<alg>:<hex>") from an arbitrary path.
func LoadFile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(strings.TrimSpace(string(data)))
}

// LoadPublicKeyFile reads a public key string ("<alg>:<base64>") from a file.
func LoadPublicKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	pub := strings.TrimSpace(string(data))
	if _, _, ok := strings.Cut(pub, ":"); !ok {
		return "", fmt.Errorf("invalid public key encoding in %s", path)
	}
	return pub, nil
}

func writeFile(path, contents string, perm os.FileMode, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(contents); err != nil {
		return err
	}
	return file.Close()
}
