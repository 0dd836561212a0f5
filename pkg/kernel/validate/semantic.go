package validate

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ormasoftchile/rulekit/pkg/kernel/schema"
)

const schemaResource = "workflow-v0.json"

var (
	compileOnce sync.Once
	compiled    *sjsonschema.Schema
	compileErr  error
	printer     = message.NewPrinter(language.English)
)

// workflowSchema compiles the generated schema once per process.
func workflowSchema() (*sjsonschema.Schema, error) {
	compileOnce.Do(func() {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			compileErr = err
			return
		}
		doc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(data)))
		if err != nil {
			compileErr = err
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(schemaResource, doc); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile(schemaResource)
	})
	return compiled, compileErr
}

// validateSemantic validates a decoded document against the JSON Schema.
func validateSemantic(doc *schema.Workflow) []*ValidationError {
	data, err := json.Marshal(doc)
	if err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "marshal for schema validation: %v", err)}
	}
	return validateJSON(data)
}

// validateTree validates a raw document tree. The tree goes through JSON so
// YAML and TOML scalars reach the validator in the same shapes.
func validateTree(tree any) []*ValidationError {
	data, err := json.Marshal(tree)
	if err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "document is not representable as JSON: %v", err)}
	}
	return validateJSON(data)
}

func validateJSON(data []byte) []*ValidationError {
	sch, err := workflowSchema()
	if err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "compile schema: %v", err)}
	}
	inst, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "unmarshal document: %v", err)}
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *sjsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []*ValidationError{errorf(PhaseSemantic, "", "%s", err)}
	}
	var errs []*ValidationError
	for _, cause := range flattenValidationErrors(ve) {
		errs = append(errs, &ValidationError{
			Phase:    PhaseSemantic,
			Path:     instancePath(cause.InstanceLocation),
			Message:  cause.ErrorKind.LocalizedString(printer),
			Severity: "error",
		})
	}
	return errs
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// instancePath renders a JSON pointer location as rules[0].input[1].
func instancePath(loc []string) string {
	var b strings.Builder
	for _, seg := range loc {
		if isIndex(seg) {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
