package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID is the canonical identifier of the generated schema.
const SchemaID = "https://github.com/ormasoftchile/rulekit/schemas/workflow-v0.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from the
// rulekit/v0 Workflow Go types.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Workflow{})
	s.ID = SchemaID
	s.Title = "rulekit workflow (rulekit/v0)"
	s.Description = "Schema for rulekit/v0 workflow documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal workflow schema: %w", err)
	}
	return data, nil
}
