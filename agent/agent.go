// Package agent defines the canonical, framework-agnostic agent record that
// every representation adapter maps to and from, and the stable fingerprint
// identifying an agent across morphs.
//
// Invariant: every field is representation-agnostic. No field may carry
// representation-specific syntax; adapters keep such material as residue.
package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Identity names the agent. ID, Name, Designation and Created participate in
// the fingerprint; everything else in the record is mutable content.
type Identity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Designation string `json:"designation,omitempty"`
	Bio         Bio    `json:"bio,omitempty"`
	Created     string `json:"created,omitempty"` // RFC 3339, UTC
}

type Personality struct {
	CoreTraits []string `json:"coreTraits,omitempty"`
	Values     []string `json:"values,omitempty"`
	Quirks     []string `json:"quirks,omitempty"`
}

// Communication holds style rules keyed by context ("all", "chat", "post", ...).
type Communication struct {
	Style map[string][]string `json:"style,omitempty"`
}

type Tool struct {
	Name        string         `json:"name"`
	Protocol    string         `json:"protocol,omitempty"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

type Capabilities struct {
	Primary   []string `json:"primary,omitempty"`
	Secondary []string `json:"secondary,omitempty"`
	Tools     []Tool   `json:"tools,omitempty"`
}

type Knowledge struct {
	Facts     []string `json:"facts,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	Expertise []string `json:"expertise,omitempty"`
}

type Memory struct {
	Type     string         `json:"type,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Belief is a categorized statement the agent holds, with a conviction score
// in [0, 1] and a privacy tag ("public", "private", ...).
type Belief struct {
	Statement  string  `json:"statement"`
	Conviction float64 `json:"conviction"`
	Privacy    string  `json:"privacy,omitempty"`
}

// Agent is the canonical intermediate form.
type Agent struct {
	Identity      Identity            `json:"identity"`
	Personality   Personality         `json:"personality,omitempty"`
	Communication Communication       `json:"communication,omitempty"`
	Capabilities  Capabilities        `json:"capabilities,omitempty"`
	Knowledge     Knowledge           `json:"knowledge,omitempty"`
	Memory        Memory              `json:"memory,omitempty"`
	Beliefs       map[string][]Belief `json:"beliefs,omitempty"`
	Metadata      map[string]any      `json:"metadata,omitempty"`
}

// New constructs a fresh canonical agent with a generated identity.
func New(name, designation string) *Agent {
	return &Agent{
		Identity: Identity{
			ID:          uuid.NewString(),
			Name:        name,
			Designation: designation,
			Created:     time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Validate checks structural invariants of the canonical form.
func (a *Agent) Validate() error {
	if a == nil {
		return fmt.Errorf("agent: nil agent")
	}
	if a.Identity.Name == "" {
		return fmt.Errorf("agent: identity.name is required")
	}
	if a.Identity.Created != "" {
		if _, err := time.Parse(time.RFC3339, a.Identity.Created); err != nil {
			return fmt.Errorf("agent: identity.created is not RFC 3339: %w", err)
		}
	}
	for category, beliefs := range a.Beliefs {
		for _, b := range beliefs {
			if b.Conviction < 0 || b.Conviction > 1 {
				return fmt.Errorf("agent: belief conviction out of range in category %q: %v", category, b.Conviction)
			}
		}
	}
	return nil
}

// Bio is biography text. Representations carry it as either a single string
// or a list of lines; the canonical form normalizes to a list.
type Bio []string

func (b *Bio) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*b = nil
		} else {
			*b = Bio{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("agent: bio must be a string or a list of strings: %w", err)
	}
	*b = Bio(list)
	return nil
}

// Text joins the biography lines into a single string.
func (b Bio) Text() string {
	switch len(b) {
	case 0:
		return ""
	case 1:
		return b[0]
	}
	out := b[0]
	for _, line := range b[1:] {
		out += "\n" + line
	}
	return out
}
