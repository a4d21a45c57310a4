// Package morph converts agent records between representations without
// losing information, and restores them byte for byte.
//
// Convert maps a record into the canonical agent model, seals everything the
// target representation cannot express (plus the verbatim source record) into
// an encrypted shadow, and embeds the shadow under the vendor-extension key
// "x-morph" in the converted record. Consumers unaware of the extension can
// ignore it. Restore opens the shadow and returns the original bytes.
//
// The restoration key returned by Convert is the only way back. It is handed
// to the caller once and never logged, cached or embedded in the record.
package morph

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"xdao.co/morph/adapter"
	"xdao.co/morph/agent"
	"xdao.co/morph/envelope"
	"xdao.co/morph/shadow"
)

// ExtensionKey is the vendor-extension key converted records carry their
// shadow and identity block under.
const ExtensionKey = "x-morph"

// Identity is the public identity block embedded next to the shadow. It
// carries what a later conversion needs to keep the fingerprint stable, and
// the public key a restorer needs to verify a signed envelope.
type Identity struct {
	AgentID               string `json:"agentId,omitempty"`
	Fingerprint           string `json:"fingerprint"`
	Created               string `json:"created,omitempty"`
	PublicKey             string `json:"publicKey,omitempty"`
	RepresentationVersion string `json:"representationVersion,omitempty"`
}

// Extension is the value stored under ExtensionKey.
type Extension struct {
	Shadow   *envelope.Sealed `json:"shadow"`
	Identity Identity         `json:"identity"`
}

// Engine runs conversions and restorations over a registry of adapters.
// Safe for concurrent use; the registry is the only shared state.
type Engine struct {
	registry *adapter.Registry
	now      func() time.Time
}

func NewEngine(registry *adapter.Registry) *Engine {
	return &Engine{registry: registry, now: time.Now}
}

// ConvertOptions tune a single conversion. The zero value converts unsigned
// with best-effort version negotiation against the target default.
type ConvertOptions struct {
	// Signer signs the sealed envelope. Nil seals keyless.
	Signer envelope.Signer
	// PublicKey ("<alg>:<base64>") is embedded in the identity block so a
	// restorer can verify the signature. Set it together with Signer.
	PublicKey string
	// RequestedVersion is the target representation version. Empty means the
	// registry default.
	RequestedVersion string
	// Strategy selects the negotiation strategy. Empty means best-effort.
	Strategy adapter.Strategy
}

// ConvertResult carries the converted record and its restoration material.
// RestorationKey must be delivered to the caller out of band and forgotten.
type ConvertResult struct {
	Record         []byte
	RestorationKey string
	Fingerprint    string
	Negotiation    adapter.Negotiation
}

// Convert transforms input from one representation to another, sealing all
// non-mappable fields and the verbatim input into the record's shadow.
//
// A record that already carries a shadow extension is converted from its
// current surface: the stale extension is stripped before sealing so shadows
// do not nest across repeated conversions, and the embedded identity block is
// used to keep the agent fingerprint stable.
func (e *Engine) Convert(input []byte, fromRepr, toRepr string, opts ConvertOptions) (*ConvertResult, error) {
	record, err := adapter.DecodeRecord(input)
	if err != nil {
		return nil, err
	}
	fromAd, err := e.registry.Get(fromRepr)
	if err != nil {
		return nil, err
	}
	toAd, err := e.registry.Get(toRepr)
	if err != nil {
		return nil, err
	}

	original := input
	var prior *Extension
	if raw, ok := record[ExtensionKey]; ok {
		prior = parseExtension(raw)
		delete(record, ExtensionKey)
		if original, err = json.Marshal(record); err != nil {
			return nil, fmt.Errorf("morph: re-encode record: %w", err)
		}
	}

	a, residue := fromAd.ToCanonical(record)
	e.ensureIdentity(a, prior)
	fingerprint := agent.Fingerprint(a)

	negotiation, err := e.negotiate(toRepr, opts)
	if err != nil {
		return nil, err
	}

	sourceVersion, err := e.registry.DefaultVersion(fromRepr)
	if err != nil {
		return nil, err
	}
	payload, err := shadow.Assemble(fromRepr, sourceVersion, residue, original, e.now())
	if err != nil {
		return nil, err
	}
	encoded, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	env, restorationKey, err := envelope.Seal(encoded, fingerprint, opts.Signer)
	if err != nil {
		return nil, err
	}

	out := toAd.FromCanonical(a)
	out[ExtensionKey] = &Extension{
		Shadow: env,
		Identity: Identity{
			AgentID:               a.Identity.ID,
			Fingerprint:           fingerprint,
			Created:               a.Identity.Created,
			PublicKey:             opts.PublicKey,
			RepresentationVersion: negotiation.Version,
		},
	}
	recordBytes, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("morph: encode record: %w", err)
	}
	return &ConvertResult{
		Record:         recordBytes,
		RestorationKey: restorationKey,
		Fingerprint:    fingerprint,
		Negotiation:    negotiation,
	}, nil
}

// Restore opens the shadow of a converted record and returns the original
// source record byte for byte.
//
// representation names the representation the caller expects the original to
// be in; a mismatch with the sealed source is rejected before any data is
// returned. publicKey is required when the envelope was signed.
func (e *Engine) Restore(input []byte, representation, restorationKey, publicKey string) ([]byte, error) {
	record, err := adapter.DecodeRecord(input)
	if err != nil {
		return nil, err
	}
	raw, ok := record[ExtensionKey]
	if !ok {
		return nil, ErrMissingShadow
	}
	ext := parseExtension(raw)
	if ext == nil || ext.Shadow == nil {
		return nil, fmt.Errorf("%w: malformed extension", ErrMissingShadow)
	}

	payloadBytes, err := envelope.Open(ext.Shadow, ext.Identity.Fingerprint, restorationKey, publicKey)
	if err != nil {
		return nil, err
	}
	payload, err := shadow.Decode(payloadBytes)
	if err != nil {
		return nil, err
	}
	if representation != "" && payload.SourceRepresentation != representation {
		return nil, fmt.Errorf("%w: shadow sealed from %q, restore requested for %q",
			ErrRepresentationMismatch, payload.SourceRepresentation, representation)
	}
	return payload.OriginalRecord, nil
}

// Report is the outcome of Validate.
type Report struct {
	// Representation that was validated against; detected when the caller
	// left it empty.
	Representation string
	Detected       bool
	Valid          bool
	HasShadow      bool
	Fingerprint    string
	Problems       []string
}

// Validate checks a record structurally against a representation and, when a
// shadow extension is present, checks envelope well-formedness. No key
// material is needed; the shadow is not opened.
func (e *Engine) Validate(input []byte, representation string) (*Report, error) {
	record, err := adapter.DecodeRecord(input)
	if err != nil {
		return nil, err
	}

	report := &Report{Representation: representation}
	var ad adapter.Adapter
	if representation == "" {
		detected, ok := e.registry.Detect(record)
		if !ok {
			return nil, fmt.Errorf("%w: no registered representation matches the record", adapter.ErrAdapterNotFound)
		}
		ad = detected
		report.Representation = detected.Name()
		report.Detected = true
	} else {
		if ad, err = e.registry.Get(representation); err != nil {
			return nil, err
		}
		if !ad.Detect(record) {
			report.Problems = append(report.Problems, fmt.Sprintf("record does not look like %q", representation))
		}
	}

	if raw, ok := record[ExtensionKey]; ok {
		report.HasShadow = true
		ext := parseExtension(raw)
		switch {
		case ext == nil || ext.Shadow == nil:
			report.Problems = append(report.Problems, "shadow extension is malformed")
		default:
			if err := ext.Shadow.WellFormed(); err != nil {
				report.Problems = append(report.Problems, "shadow envelope: "+err.Error())
			}
			if ext.Identity.Fingerprint == "" {
				report.Problems = append(report.Problems, "shadow identity block has no fingerprint")
			}
		}
		delete(record, ExtensionKey)
	}

	a, _ := ad.ToCanonical(record)
	if a.Identity.ID != "" {
		report.Fingerprint = agent.Fingerprint(a)
	}
	if err := a.Validate(); err != nil {
		report.Problems = append(report.Problems, err.Error())
	}
	report.Valid = len(report.Problems) == 0
	return report, nil
}

// ensureIdentity fills the identity fields the fingerprint depends on,
// preferring the identity block of a previous conversion so the fingerprint
// stays stable across morph chains.
func (e *Engine) ensureIdentity(a *agent.Agent, prior *Extension) {
	if prior != nil {
		if prior.Identity.AgentID != "" {
			a.Identity.ID = prior.Identity.AgentID
		}
		if prior.Identity.Created != "" {
			a.Identity.Created = prior.Identity.Created
		}
	}
	if a.Identity.ID == "" {
		a.Identity.ID = uuid.NewString()
	}
	if a.Identity.Created == "" {
		a.Identity.Created = e.now().UTC().Format(time.RFC3339)
	}
}

func (e *Engine) negotiate(toRepr string, opts ConvertOptions) (adapter.Negotiation, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = adapter.StrategyBestEffort
	}
	requested := opts.RequestedVersion
	if requested == "" {
		def, err := e.registry.DefaultVersion(toRepr)
		if err != nil {
			return adapter.Negotiation{}, err
		}
		requested = def
	}
	return e.registry.NegotiateVersion(toRepr, requested, strategy)
}

// parseExtension decodes the extension value through JSON so both map form
// (from decoded records) and struct form survive. Returns nil when the value
// does not parse.
func parseExtension(raw any) *Extension {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var ext Extension
	if err := json.Unmarshal(b, &ext); err != nil {
		return nil
	}
	return &ext
}
