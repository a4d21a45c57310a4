package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint returns the stable identity hash for a: SHA-256 over the
// canonical JSON of {id, name, designation, createdAt}.
//
// Only those four fields participate. Editing content (bio, capabilities,
// beliefs, memory) must not change the fingerprint: identity is not content
// equality, and the fingerprint must survive edits across any morph chain.
func Fingerprint(a *Agent) string {
	core := map[string]string{
		"id":          a.Identity.ID,
		"name":        a.Identity.Name,
		"designation": a.Identity.Designation,
		"createdAt":   a.Identity.Created,
	}
	// encoding/json sorts map keys, so these bytes are canonical.
	b, err := json.Marshal(core)
	if err != nil {
		// Marshalling map[string]string cannot fail.
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
