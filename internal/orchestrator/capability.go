package orchestrator

import (
	"context"

	"github.com/briefops/briefops/internal/provider"
)

// Handler executes one capability with the decoded argument map. Handlers
// validate their own arguments (missing or unknown parameters are a handler
// error, not a dispatcher error) and own any external side effects.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Param declares one parameter of a capability. Optional parameters are not
// listed in the schema's required set; Default, when set, is surfaced to the
// model as documentation.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Optional    bool
	Default     any
	Items       *Param // element schema for array params
}

// Capability is one invocable tool exposed to the model: a unique name, a
// description the model reads, a declarative parameter list, and the handler.
// Capabilities are assembled once at startup and never mutated afterward.
type Capability struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Schema derives the JSON-Schema-shaped tool descriptor from the declared
// parameter list. Derivation is deterministic: the same capability always
// yields an identical schema.
func (c *Capability) Schema() provider.ToolSchema {
	properties := make(map[string]any, len(c.Params))
	required := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		properties[p.Name] = p.schema()
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	return provider.ToolSchema{
		Name:        c.Name,
		Description: c.Description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

func (p Param) schema() map[string]any {
	out := map[string]any{"type": string(p.typeOrDefault())}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if p.Default != nil {
		out["default"] = p.Default
	}
	if p.typeOrDefault() == TypeArray {
		if p.Items != nil {
			out["items"] = p.Items.schema()
		} else {
			out["items"] = map[string]any{"type": string(TypeString)}
		}
	}
	return out
}

// typeOrDefault maps unrecognized declarations to string, the safe wire type.
func (p Param) typeOrDefault() ParamType {
	switch p.Type {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return p.Type
	default:
		return TypeString
	}
}
