package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

var (
	itemKeys  = []string{"name", "path", "paths", "expr", "multiext", "rule", "output", "flags", "unpack", "report", "subworkflow"}
	paramKeys = []string{"name", "value", "expr", "unpack"}
	specKeys  = []string{"value", "expr"}
)

// checkKeys rejects mapping keys outside allowed, mirroring the strict
// decoder for union types that decode themselves.
func checkKeys(node *yaml.Node, typ string, allowed []string) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i]
		if !slices.Contains(allowed, k.Value) {
			return fmt.Errorf("line %d: field %s not found in type %s", k.Line, k.Value, typ)
		}
	}
	return nil
}

func hasKey(node *yaml.Node, keys ...string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if slices.Contains(keys, node.Content[i].Value) {
			return true
		}
	}
	return false
}

func keysWithin(node *yaml.Node, allowed []string) bool {
	return checkKeys(node, "", allowed) == nil
}

// ---------------------------------------------------------------------------
// Item
// ---------------------------------------------------------------------------

type itemObject Item

// UnmarshalYAML accepts a bare path or an item mapping.
func (it *Item) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*it = Item{Path: s}
		return nil
	case yaml.MappingNode:
		if err := checkKeys(node, "schema.Item", itemKeys); err != nil {
			return err
		}
		var obj itemObject
		if err := node.Decode(&obj); err != nil {
			return err
		}
		*it = Item(obj)
		return nil
	}
	return fmt.Errorf("line %d: item must be a path or a mapping", node.Line)
}

// MarshalJSON writes a plain path item back as a string.
func (it Item) MarshalJSON() ([]byte, error) {
	if it.Path != "" && it.Kind() == "path" && it.Name == "" && len(it.Flags) == 0 &&
		it.Report == nil && it.Subworkflow == "" && !it.Unpack {
		return json.Marshal(it.Path)
	}
	return json.Marshal(itemObject(it))
}

// JSONSchema describes the string-or-object union.
func (Item) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", Description: "path template"},
			objectSchema(&itemObject{}),
		},
	}
}

// ---------------------------------------------------------------------------
// Param
// ---------------------------------------------------------------------------

type paramObject Param

// UnmarshalYAML accepts a literal value or a param mapping. A mapping is a
// param mapping when its keys are param fields and it names a value, an
// expression or a name; any other mapping is a literal value.
func (p *Param) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode && keysWithin(node, paramKeys) && hasKey(node, "value", "expr", "name") {
		var obj paramObject
		if err := node.Decode(&obj); err != nil {
			return err
		}
		*p = Param(obj)
		return nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	*p = Param{Value: v}
	return nil
}

// JSONSchema describes the literal-or-object union.
func (Param) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "number"},
			{Type: "boolean"},
			{Type: "null"},
			{Type: "array"},
			objectSchema(&paramObject{}),
			{Type: "object", Description: "literal mapping value"},
		},
	}
}

// ---------------------------------------------------------------------------
// Spec
// ---------------------------------------------------------------------------

type specObject Spec

// UnmarshalYAML accepts a scalar constant or {expr: ...}.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = Spec{Value: v}
		return nil
	case yaml.MappingNode:
		if err := checkKeys(node, "schema.Spec", specKeys); err != nil {
			return err
		}
		var obj specObject
		if err := node.Decode(&obj); err != nil {
			return err
		}
		*s = Spec(obj)
		return nil
	}
	return fmt.Errorf("line %d: expected a scalar or {expr: ...}", node.Line)
}

// MarshalJSON writes constants back as scalars.
func (s Spec) MarshalJSON() ([]byte, error) {
	if s.Expr == "" {
		return json.Marshal(s.Value)
	}
	return json.Marshal(specObject(s))
}

// JSONSchema describes the scalar-or-expression union.
func (Spec) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "number"},
			{Type: "boolean"},
			{Type: "null"},
			objectSchema(&specObject{}),
		},
	}
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

// UnmarshalYAML decodes a mapping keeping declaration order.
func (r *Resources) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: resources must be a mapping", node.Line)
	}
	out := make(Resources, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var s Spec
		if err := node.Content[i+1].Decode(&s); err != nil {
			return err
		}
		out = append(out, NamedSpec{Name: node.Content[i].Value, Spec: s})
	}
	*r = out
	return nil
}

// MarshalJSON writes an object with keys in declaration order.
func (r Resources) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, ns := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(ns.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(ns.Spec)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// JSONSchema describes a mapping of resource names to specs.
func (Resources) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: Spec{}.JSONSchema(),
	}
}

// objectSchema reflects the object variant of a union inline.
func objectSchema(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true, Anonymous: true}
	s := r.Reflect(v)
	s.Version = ""
	return s
}
