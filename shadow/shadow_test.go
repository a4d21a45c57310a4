package shadow

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"xdao.co/morph/adapter"
)

var testTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testPayload(t *testing.T) *Payload {
	t.Helper()
	residue := adapter.Residue{
		"channels":    []any{map[string]any{"channel_id": "text-channel"}},
		"temperature": 0.2,
	}
	original := []byte(`{"agent_id":"agent-ada-001","name":"Ada","temperature":0.2}`)
	p, err := Assemble("lmos", "1.1.0", residue, original, testTime)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return p
}

func TestAssembleRoundTrip(t *testing.T) {
	p := testPayload(t)
	if p.PayloadVersion != PayloadVersion || p.CreatedAt != "2026-01-01T00:00:00Z" {
		t.Fatalf("payload header: %+v", p)
	}

	b, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SourceRepresentation != "lmos" || got.SourceVersion != "1.1.0" {
		t.Fatalf("source fields: %+v", got)
	}
	if string(got.OriginalRecord) != string(p.OriginalRecord) {
		t.Fatalf("original record changed across encode/decode")
	}
	if got.Checksum != p.Checksum {
		t.Fatalf("checksum changed across encode/decode")
	}
}

func TestChecksumIsDeterministic(t *testing.T) {
	a := testPayload(t)
	b := testPayload(t)
	if a.Checksum != b.Checksum {
		t.Fatalf("same inputs produced different checksums: %s vs %s", a.Checksum, b.Checksum)
	}
}

func TestDecodeDetectsTampering(t *testing.T) {
	p := testPayload(t)
	encoded, _ := p.Encode()

	cases := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"residue value flipped", func(m map[string]any) {
			m["residue"].(map[string]any)["temperature"] = 0.9
		}},
		{"residue key added", func(m map[string]any) {
			m["residue"].(map[string]any)["injected"] = true
		}},
		{"original record edited", func(m map[string]any) {
			m["originalRecord"] = base64.StdEncoding.EncodeToString([]byte(`{"agent_id":"agent-eve-666"}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m map[string]any
			if err := json.Unmarshal(encoded, &m); err != nil {
				t.Fatalf("reparse: %v", err)
			}
			tc.mutate(m)
			tampered, _ := json.Marshal(m)
			if _, err := Decode(tampered); !errors.Is(err, ErrIntegrityViolation) {
				t.Fatalf("got %v, want ErrIntegrityViolation", err)
			}
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not json", "{{"},
		{"missing representation", `{"payloadVersion":"1","originalRecord":"e30=","checksum":"x","residue":{}}`},
		{"missing original", `{"payloadVersion":"1","sourceRepresentation":"lmos","checksum":"x","residue":{}}`},
		{"missing checksum", `{"payloadVersion":"1","sourceRepresentation":"lmos","originalRecord":"e30=","residue":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.in)); !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("got %v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestAssembleRejectsEmptyInputs(t *testing.T) {
	if _, err := Assemble("", "", nil, []byte(`{}`), testTime); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("empty representation: got %v", err)
	}
	if _, err := Assemble("lmos", "", nil, nil, testTime); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("empty original: got %v", err)
	}
}

func TestAssembleAllowsEmptyResidue(t *testing.T) {
	p, err := Assemble("lmos", "", nil, []byte(`{"name":"Ada"}`), testTime)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if p.Residue == nil {
		t.Fatalf("nil residue must normalize to an empty map")
	}
	b, _ := p.Encode()
	if _, err := Decode(b); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}
