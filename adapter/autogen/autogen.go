// Package autogen adapts the AutoGen conversational-agent representation
// (name, system_message, llm_config, function-calling tools) to and from the
// canonical form.
//
// Functions map to canonical tools. LLM configuration, code-execution
// settings and conversation control (human_input_mode,
// max_consecutive_auto_reply) are representation-specific and preserved as
// residue.
package autogen

import (
	"strings"

	"xdao.co/morph/adapter"
	"xdao.co/morph/agent"
)

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (*Adapter) Name() string           { return "autogen" }
func (*Adapter) Versions() []string     { return []string{"0.2.0", "0.4.0", "0.4.1"} }
func (*Adapter) DefaultVersion() string { return "0.4.1" }

func (*Adapter) Detect(record map[string]any) bool {
	indicators := 0
	if _, ok := record["system_message"]; ok {
		indicators++
	}
	if _, ok := record["llm_config"]; ok {
		indicators++
	}
	if _, ok := record["human_input_mode"]; ok {
		indicators++
	}
	if _, ok := record["code_execution_config"]; ok {
		indicators++
	}
	return indicators >= 2
}

var consumed = map[string]bool{
	"name":           true,
	"description":    true,
	"system_message": true,
	"functions":      true,
}

func (*Adapter) ToCanonical(record map[string]any) (*agent.Agent, adapter.Residue) {
	a := &agent.Agent{}
	a.Identity.Name = adapter.String(record, "name")
	a.Identity.Designation = adapter.String(record, "description")
	if msg := adapter.String(record, "system_message"); msg != "" {
		a.Identity.Bio = agent.Bio{msg}
	}

	var primary []string
	for _, f := range adapter.Slice(record, "functions") {
		fn, ok := f.(map[string]any)
		if !ok {
			continue
		}
		tool := agent.Tool{
			Name:        adapter.String(fn, "name"),
			Protocol:    "function",
			Description: adapter.String(fn, "description"),
		}
		if params := adapter.Map(fn, "parameters"); len(params) > 0 {
			tool.Config = adapter.CloneValue(params).(map[string]any)
		}
		a.Capabilities.Tools = append(a.Capabilities.Tools, tool)
		if tool.Name != "" {
			primary = append(primary, tool.Name)
		}
	}
	a.Capabilities.Primary = primary

	residue := adapter.Residue{}
	for k, v := range record {
		if !consumed[k] {
			residue[k] = adapter.CloneValue(v)
		}
	}
	return a, residue
}

func (ad *Adapter) FromCanonical(a *agent.Agent) map[string]any {
	functions := make([]any, 0, len(a.Capabilities.Tools))
	for _, t := range a.Capabilities.Tools {
		fn := map[string]any{
			"name":        t.Name,
			"description": t.Description,
		}
		if len(t.Config) > 0 {
			fn["parameters"] = adapter.CloneValue(t.Config)
		} else {
			fn["parameters"] = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		functions = append(functions, fn)
	}

	record := map[string]any{
		"name":           a.Identity.Name,
		"description":    a.Identity.Designation,
		"system_message": ad.systemMessage(a),
		"llm_config": map[string]any{
			"config_list": []any{map[string]any{"model": "gpt-4o"}},
			"temperature": 0.7,
		},
		"human_input_mode":           "NEVER",
		"max_consecutive_auto_reply": 10,
		"code_execution_config":      false,
	}
	if len(functions) > 0 {
		record["functions"] = functions
	}
	return record
}

func (*Adapter) systemMessage(a *agent.Agent) string {
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
	if len(a.Knowledge.Expertise) > 0 {
		parts = append(parts, "Your expertise covers: "+strings.Join(a.Knowledge.Expertise, ", ")+".")
	}
	return strings.Join(parts, "\n\n")
}
