// Package lmos adapts the LMOS agent representation (agent_id, system_prompt,
// skill and channel lists, memory configuration) to and from the canonical
// form.
//
// Skills map to canonical tools; the system prompt is synthesized from
// identity, personality and communication style on the way out and kept as
// biography text on the way in. Execution configuration (model, sampling
// parameters) and channels have no canonical slot and are preserved as
// residue.
package lmos

import (
	"strings"

	"xdao.co/morph/adapter"
	"xdao.co/morph/agent"
)

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (*Adapter) Name() string           { return "lmos" }
func (*Adapter) Versions() []string     { return []string{"1.0.0", "1.1.0", "2.0.0-beta.1"} }
func (*Adapter) DefaultVersion() string { return "1.1.0" }

// Detect reports whether record looks like an LMOS agent. At least two
// LMOS-specific indicators must be present.
func (*Adapter) Detect(record map[string]any) bool {
	indicators := 0
	if _, ok := record["agent_id"]; ok {
		indicators++
	}
	if _, ok := record["system_prompt"]; ok {
		indicators++
	}
	if _, ok := record["skills"].([]any); ok {
		indicators++
	}
	if _, ok := record["channels"].([]any); ok {
		indicators++
	}
	return indicators >= 2
}

// Fields ToCanonical consumes; everything else is residue.
var consumed = map[string]bool{
	"agent_id":      true,
	"name":          true,
	"description":   true,
	"system_prompt": true,
	"skills":        true,
	"memory":        true,
}

func (*Adapter) ToCanonical(record map[string]any) (*agent.Agent, adapter.Residue) {
	a := &agent.Agent{}
	a.Identity.ID = adapter.String(record, "agent_id")
	a.Identity.Name = adapter.String(record, "name")
	a.Identity.Designation = adapter.String(record, "description")
	if prompt := adapter.String(record, "system_prompt"); prompt != "" {
		a.Identity.Bio = agent.Bio{prompt}
	}

	residue := adapter.Residue{}

	var primary, secondary []string
	skillDetails := map[string]any{}
	for _, s := range adapter.Slice(record, "skills") {
		skill, ok := s.(map[string]any)
		if !ok {
			continue
		}
		name := adapter.String(skill, "name")
		tool := agent.Tool{
			Name:        name,
			Protocol:    "native",
			Description: adapter.String(skill, "description"),
		}
		if params := adapter.Map(skill, "parameters"); len(params) > 0 {
			tool.Config = adapter.CloneValue(params).(map[string]any)
		}
		a.Capabilities.Tools = append(a.Capabilities.Tools, tool)
		if len(primary) < 3 {
			primary = append(primary, name)
		} else {
			secondary = append(secondary, name)
		}

		// Skill versioning and prerequisites have no canonical slot.
		detail := map[string]any{}
		if v := adapter.String(skill, "version"); v != "" {
			detail["version"] = v
		}
		if reqs := adapter.Slice(skill, "required_capabilities"); len(reqs) > 0 {
			detail["required_capabilities"] = adapter.CloneValue(reqs)
		}
		if len(detail) > 0 && name != "" {
			skillDetails[name] = detail
		}
	}
	a.Capabilities.Primary = primary
	a.Capabilities.Secondary = secondary
	if len(skillDetails) > 0 {
		residue["skillDetails"] = skillDetails
	}

	if mem := adapter.Map(record, "memory"); mem != nil {
		a.Memory.Type = adapter.String(mem, "type")
		a.Memory.Provider = adapter.String(mem, "provider")
		settings := map[string]any{}
		for k, v := range mem {
			if k == "type" || k == "provider" {
				continue
			}
			settings[k] = adapter.CloneValue(v)
		}
		if len(settings) > 0 {
			a.Memory.Settings = settings
		}
	}

	for k, v := range record {
		if !consumed[k] {
			residue[k] = adapter.CloneValue(v)
		}
	}
	return a, residue
}

func (ad *Adapter) FromCanonical(a *agent.Agent) map[string]any {
	name := a.Identity.Name
	agentID := a.Identity.ID
	if agentID == "" && name != "" {
		agentID = "agent-" + strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	}

	skills := make([]any, 0, len(a.Capabilities.Tools))
	for _, t := range a.Capabilities.Tools {
		skill := map[string]any{
			"name":                  t.Name,
			"description":           t.Description,
			"parameters":            map[string]any{},
			"required_capabilities": []any{},
			"version":               "1.0.0",
		}
		if len(t.Config) > 0 {
			skill["parameters"] = adapter.CloneValue(t.Config)
		}
		skills = append(skills, skill)
	}

	memory := map[string]any{
		"type":     a.Memory.Type,
		"provider": a.Memory.Provider,
	}
	if memory["type"] == "" {
		memory["type"] = "vector"
	}
	if memory["provider"] == "" {
		memory["provider"] = "local"
	}
	for k, v := range a.Memory.Settings {
		memory[k] = adapter.CloneValue(v)
	}

	record := map[string]any{
		"agent_id":      agentID,
		"name":          name,
		"description":   a.Identity.Designation,
		"system_prompt": ad.systemPrompt(a),
		"skills":        skills,
		"channels": []any{
			map[string]any{"channel_id": "text-channel", "channel_type": "text", "config": map[string]any{}},
		},
		"memory":      memory,
		"model":       "gpt-4o",
		"temperature": 0.7,
		"max_tokens":  4096,
	}
	if len(a.Metadata) > 0 {
		record["metadata"] = adapter.CloneValue(a.Metadata)
	}
	return record
}

// systemPrompt composes the LMOS system prompt from identity, personality and
// communication style.
func (*Adapter) systemPrompt(a *agent.Agent) string {
	var parts []string
	switch {
	case a.Identity.Name != "" && a.Identity.Designation != "":
		parts = append(parts, "You are "+a.Identity.Name+", a "+a.Identity.Designation+".")
	case a.Identity.Name != "":
		parts = append(parts, "You are "+a.Identity.Name+".")
	}
	if bio := a.Identity.Bio.Text(); bio != "" {
		parts = append(parts, bio)
	}
	if traits := a.Personality.CoreTraits; len(traits) > 0 {
		parts = append(parts, "Your core traits are: "+strings.Join(traits, ", ")+".")
	}
	if values := a.Personality.Values; len(values) > 0 {
		parts = append(parts, "You value: "+strings.Join(values, ", ")+".")
	}
	if style := a.Communication.Style["all"]; len(style) > 0 {
		parts = append(parts, "Communication guidelines: "+strings.Join(style, "; "))
	}
	return strings.Join(parts, "\n\n")
}
