// Package adapter defines the representation-adapter contract, the adapter
// registry, the protocol bridge, and representation version negotiation.
//
// An adapter converts between one external agent representation and the
// canonical form. Adapters are pure and total: no representation record may
// make ToCanonical fail; unrecognized fields become residue, never errors.
// The only permitted decoding failure is a structurally malformed record
// (input that is not a JSON object), reported by DecodeRecord.
package adapter

import (
	"encoding/json"
	"fmt"

	"xdao.co/morph/agent"
)

// Residue holds every field an adapter could not express in the canonical
// form, preserved verbatim. Residue is adapter-declared, not inferred.
type Residue map[string]any

// Adapter converts canonical <-> one external representation.
//
// Contract:
//   - ToCanonical and FromCanonical MUST NOT mutate their inputs.
//   - ToCanonical MUST be total over JSON objects: unrecognized or
//     oddly-shaped fields land in the residue.
//   - Versions MUST be non-empty and include DefaultVersion.
type Adapter interface {
	// Name is the registry key, e.g. "lmos".
	Name() string
	// Versions lists the representation versions this adapter understands,
	// possibly including pre-release markers ("2.0.0-beta.1").
	Versions() []string
	// DefaultVersion is the registry-declared fallback version.
	DefaultVersion() string
	// Detect reports whether record plausibly belongs to this representation.
	Detect(record map[string]any) bool
	ToCanonical(record map[string]any) (*agent.Agent, Residue)
	FromCanonical(a *agent.Agent) map[string]any
}

// DecodeRecord parses raw bytes into a representation record.
// A non-object is the one structurally malformed input adapters may reject.
func DecodeRecord(b []byte) (map[string]any, error) {
	var record map[string]any
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: null record", ErrMalformedRecord)
	}
	return record, nil
}
