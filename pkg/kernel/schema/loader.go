package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// IsTOML reports whether path names a TOML document.
func IsTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadFile reads and structurally decodes a rulekit/v0 document. Files
// ending in .toml are read as TOML, everything else as YAML.
func LoadFile(path string) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow: %w", err)
	}
	defer f.Close()
	if IsTOML(path) {
		return LoadTOML(f)
	}
	return Load(f)
}

// Load reads a YAML document from a reader.
// Returns a structural error if the YAML contains unknown fields.
func Load(r io.Reader) (*Workflow, error) {
	var wf Workflow
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // strict: reject unknown fields
	if err := dec.Decode(&wf); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("structural decode: empty document")
		}
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	return &wf, nil
}

// LoadTOML reads a TOML document. The TOML tree is re-read through the
// strict YAML decoder so both syntaxes share one set of decoding rules.
// TOML tables carry no key order, so resources declared in TOML are
// registered in key order.
func LoadTOML(r io.Reader) (*Workflow, error) {
	var raw map[string]any
	if _, err := toml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// DecodeTree reads a document into a generic tree of maps, slices and
// scalars, as needed for JSON Schema validation.
func DecodeTree(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow: %w", err)
	}
	var tree any
	if IsTOML(path) {
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("decode tree: %w", err)
		}
		tree = m
	} else if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return tree, nil
}
