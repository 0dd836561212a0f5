// Package schema defines the rulekit/v0 workflow definition document.
package schema

// APIVersion is the document version understood by this package.
const APIVersion = "rulekit/v0"

// ---------------------------------------------------------------------------
// Workflow
// ---------------------------------------------------------------------------

// Workflow is the top-level rulekit/v0 document.
type Workflow struct {
	APIVersion string     `yaml:"apiVersion" json:"apiVersion"`
	Config     *Config    `yaml:"config,omitempty" json:"config,omitempty"`
	Ruleorder  [][]string `yaml:"ruleorder,omitempty" json:"ruleorder,omitempty" jsonschema:"description=Priority clauses; earlier rule names win within a clause and later clauses override earlier ones"`
	Rules      []Rule     `yaml:"rules" json:"rules"`
}

// Rule returns the rule named name.
func (w *Workflow) Rule(name string) (*Rule, bool) {
	for i := range w.Rules {
		if w.Rules[i].Name == name {
			return &w.Rules[i], true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds the workflow-wide settings.
type Config struct {
	MaxThreads          int               `yaml:"max_threads,omitempty" json:"max_threads,omitempty" jsonschema:"minimum=0"`
	GlobalResources     map[string]any    `yaml:"global_resources,omitempty" json:"global_resources,omitempty"`
	WildcardConstraints map[string]string `yaml:"wildcard_constraints,omitempty" json:"wildcard_constraints,omitempty"`
	CacheRules          []string          `yaml:"cache_rules,omitempty" json:"cache_rules,omitempty"`
	AllTemp             bool              `yaml:"all_temp,omitempty" json:"all_temp,omitempty"`
	PathModifier        *PathModifier     `yaml:"path_modifier,omitempty" json:"path_modifier,omitempty"`
}

// PathModifier relocates the relative paths of every rule.
type PathModifier struct {
	Prefix        string            `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	ReplacePrefix map[string]string `yaml:"replace_prefix,omitempty" json:"replace_prefix,omitempty"`
}

// ---------------------------------------------------------------------------
// Rule
// ---------------------------------------------------------------------------

// Rule is one rule template.
type Rule struct {
	Name                string            `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Docstring           string            `yaml:"docstring,omitempty" json:"docstring,omitempty"`
	Message             string            `yaml:"message,omitempty" json:"message,omitempty"`
	Input               []Item            `yaml:"input,omitempty" json:"input,omitempty"`
	Output              []Item            `yaml:"output,omitempty" json:"output,omitempty"`
	Log                 []Item            `yaml:"log,omitempty" json:"log,omitempty"`
	Benchmark           *Item             `yaml:"benchmark,omitempty" json:"benchmark,omitempty"`
	Params              []Param           `yaml:"params,omitempty" json:"params,omitempty"`
	Threads             *Spec             `yaml:"threads,omitempty" json:"threads,omitempty"`
	Resources           Resources         `yaml:"resources,omitempty" json:"resources,omitempty"`
	WildcardConstraints map[string]string `yaml:"wildcard_constraints,omitempty" json:"wildcard_constraints,omitempty"`
	Group               *Spec             `yaml:"group,omitempty" json:"group,omitempty"`
	Priority            int               `yaml:"priority,omitempty" json:"priority,omitempty"`
	Checkpoint          bool              `yaml:"checkpoint,omitempty" json:"checkpoint,omitempty"`
	Version             string            `yaml:"version,omitempty" json:"version,omitempty"`
	PathModifier        *PathModifier     `yaml:"path_modifier,omitempty" json:"path_modifier,omitempty"`
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

// Item is one input, output, log or benchmark entry. In documents a bare
// string is shorthand for {path: ...}.
type Item struct {
	Name        string    `yaml:"name,omitempty" json:"name,omitempty"`
	Path        string    `yaml:"path,omitempty" json:"path,omitempty"`
	Paths       []string  `yaml:"paths,omitempty" json:"paths,omitempty"`
	Expr        string    `yaml:"expr,omitempty" json:"expr,omitempty"`
	Multiext    *Multiext `yaml:"multiext,omitempty" json:"multiext,omitempty"`
	Rule        string    `yaml:"rule,omitempty" json:"rule,omitempty"`
	Output      string    `yaml:"output,omitempty" json:"output,omitempty"`
	Flags       []string  `yaml:"flags,omitempty" json:"flags,omitempty"`
	Unpack      bool      `yaml:"unpack,omitempty" json:"unpack,omitempty"`
	Report      *Report   `yaml:"report,omitempty" json:"report,omitempty"`
	Subworkflow string    `yaml:"subworkflow,omitempty" json:"subworkflow,omitempty"`
}

// Kind names the variant an item carries, or "" when it carries none or
// several.
func (it Item) Kind() string {
	kinds := it.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (it Item) kinds() []string {
	var k []string
	if it.Path != "" {
		k = append(k, "path")
	}
	if it.Paths != nil {
		k = append(k, "paths")
	}
	if it.Expr != "" {
		k = append(k, "expr")
	}
	if it.Multiext != nil {
		k = append(k, "multiext")
	}
	if it.Rule != "" {
		k = append(k, "rule")
	}
	return k
}

// Multiext declares one output per extension sharing a prefix.
type Multiext struct {
	Prefix string   `yaml:"prefix" json:"prefix"`
	Exts   []string `yaml:"exts" json:"exts" jsonschema:"minItems=1"`
}

// Report annotates a file for reports.
type Report struct {
	Caption     string            `yaml:"caption,omitempty" json:"caption,omitempty"`
	Category    string            `yaml:"category,omitempty" json:"category,omitempty"`
	Subcategory string            `yaml:"subcategory,omitempty" json:"subcategory,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Patterns    []string          `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	HTMLIndex   string            `yaml:"htmlindex,omitempty" json:"htmlindex,omitempty"`
}

// ---------------------------------------------------------------------------
// Params and specs
// ---------------------------------------------------------------------------

// Param is one parameter. In documents a bare scalar or list is a literal
// value.
type Param struct {
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Value  any    `yaml:"value,omitempty" json:"value,omitempty"`
	Expr   string `yaml:"expr,omitempty" json:"expr,omitempty"`
	Unpack bool   `yaml:"unpack,omitempty" json:"unpack,omitempty"`
}

// Spec is a constant or an expression evaluated per job. In documents a
// bare scalar is a constant.
type Spec struct {
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
	Expr  string `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// NamedSpec is one declared resource.
type NamedSpec struct {
	Name string
	Spec Spec
}

// Resources keeps resource declarations in document order.
type Resources []NamedSpec

// Get returns the named resource specification.
func (r Resources) Get(name string) (Spec, bool) {
	for _, ns := range r {
		if ns.Name == name {
			return ns.Spec, true
		}
	}
	return Spec{}, false
}
