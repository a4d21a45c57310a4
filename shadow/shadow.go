// Package shadow builds and verifies shadow payloads: the carrier for every
// field a representation cannot express, plus the verbatim source record so a
// restore can reproduce it byte for byte.
//
// A payload is plain JSON before sealing. Integrity is anchored in a CIDv1
// checksum computed over the canonical residue encoding followed by the raw
// source record; Decode recomputes and compares it, so a payload that parses
// but fails verification is surfaced as tampering, not as a decoding error.
package shadow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"xdao.co/morph/adapter"
	"xdao.co/morph/digest"
)

// PayloadVersion is the current shadow payload format version.
const PayloadVersion = "1"

var (
	// ErrIntegrityViolation reports a checksum mismatch between the payload
	// contents and its recorded checksum.
	ErrIntegrityViolation = errors.New("shadow: integrity violation")

	// ErrMalformedPayload reports a payload that cannot be parsed or is
	// missing required fields.
	ErrMalformedPayload = errors.New("shadow: malformed payload")
)

// Payload holds the non-mappable remainder of a conversion.
//
// OriginalRecord is the source record exactly as it was received. It travels
// base64-encoded so whitespace and field order survive serialization and a
// restore returns the input bytes unchanged, not a re-serialization.
type Payload struct {
	PayloadVersion       string          `json:"payloadVersion"`
	SourceRepresentation string          `json:"sourceRepresentation"`
	SourceVersion        string          `json:"sourceVersion,omitempty"`
	CreatedAt            string          `json:"createdAt"`
	Residue              adapter.Residue `json:"residue"`
	OriginalRecord       []byte          `json:"originalRecord"`
	Checksum             string          `json:"checksum"`
}

// Assemble builds a payload over residue and the verbatim original record and
// stamps its checksum. The residue map is not copied; callers hand over
// ownership.
func Assemble(sourceRepr, sourceVersion string, residue adapter.Residue, original []byte, now time.Time) (*Payload, error) {
	if sourceRepr == "" {
		return nil, fmt.Errorf("%w: empty source representation", ErrMalformedPayload)
	}
	if len(original) == 0 {
		return nil, fmt.Errorf("%w: empty original record", ErrMalformedPayload)
	}
	if residue == nil {
		residue = adapter.Residue{}
	}
	p := &Payload{
		PayloadVersion:       PayloadVersion,
		SourceRepresentation: sourceRepr,
		SourceVersion:        sourceVersion,
		CreatedAt:            now.UTC().Format(time.RFC3339),
		Residue:              residue,
		OriginalRecord:       original,
	}
	sum, err := p.checksum()
	if err != nil {
		return nil, err
	}
	p.Checksum = sum
	return p, nil
}

// checksum derives the payload CID from the canonical residue encoding
// followed by the raw original record.
func (p *Payload) checksum() (string, error) {
	residueJSON, err := json.Marshal(p.Residue)
	if err != nil {
		return "", fmt.Errorf("%w: encode residue: %v", ErrMalformedPayload, err)
	}
	msg := make([]byte, 0, len(residueJSON)+len(p.OriginalRecord))
	msg = append(msg, residueJSON...)
	msg = append(msg, p.OriginalRecord...)
	return digest.CIDv1RawSHA256(msg), nil
}

// Verify recomputes the payload checksum and compares it to the recorded one.
func (p *Payload) Verify() error {
	sum, err := p.checksum()
	if err != nil {
		return err
	}
	if sum != p.Checksum {
		return fmt.Errorf("%w: checksum mismatch: recorded %s, computed %s", ErrIntegrityViolation, p.Checksum, sum)
	}
	return nil
}

// Encode serializes the payload for sealing.
func (p *Payload) Encode() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", ErrMalformedPayload, err)
	}
	return b, nil
}

// Decode parses and verifies a payload. Any checksum mismatch is reported as
// ErrIntegrityViolation.
func Decode(b []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.SourceRepresentation == "" {
		return nil, fmt.Errorf("%w: missing source representation", ErrMalformedPayload)
	}
	if len(p.OriginalRecord) == 0 {
		return nil, fmt.Errorf("%w: missing original record", ErrMalformedPayload)
	}
	if p.Checksum == "" {
		return nil, fmt.Errorf("%w: missing checksum", ErrMalformedPayload)
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return &p, nil
}
