// Package memcas is an in-memory archive, used by tests and short-lived
// pipelines.
package memcas

import (
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/morph/digest"
	"xdao.co/morph/storage"
)

// CAS keeps objects in a map keyed by CID string. Safe for concurrent use.
type CAS struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func New() *CAS {
	return &CAS{objects: make(map[string][]byte)}
}

func (c *CAS) Put(bytes []byte) (cid.Cid, error) {
	id, err := digest.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	stored := append([]byte(nil), bytes...)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.objects[id.String()]; ok {
		if string(existing) != string(bytes) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	c.objects[id.String()] = stored
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.objects[id.String()]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.objects[id.String()]
	return ok
}
