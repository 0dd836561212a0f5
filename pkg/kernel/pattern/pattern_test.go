package pattern

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompile_Names(t *testing.T) {
	p := MustCompile("results/{sample}/{chunk,\\d+}.{sample}.bam")
	if diff := cmp.Diff([]string{"sample", "chunk"}, p.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if got := p.Constraints()["chunk"]; got != `\d+` {
		t.Errorf("chunk constraint = %q", got)
	}
	if !p.HasWildcards() {
		t.Error("expected wildcards")
	}
}

func TestCompile_Errors(t *testing.T) {
	cases := []struct {
		name     string
		template string
	}{
		{"unterminated", "a/{sample"},
		{"stray close", "a/sample}.txt"},
		{"empty name", "a/{}.txt"},
		{"bad name", "a/{sam-ple}.txt"},
		{"bad regex", "a/{x,[}.txt"},
		{"conflicting constraint", "{x,\\d+}/{x,[a-z]+}"},
		{"constraint on later occurrence", "{x}/{x,\\d+}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.template)
			var pe *PatternError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PatternError, got %v", err)
			}
		})
	}
}

func TestCompile_QuantifierInConstraint(t *testing.T) {
	p := MustCompile("{id,[0-9]{3}}.txt")
	if _, ok := p.Match("123.txt"); !ok {
		t.Error("123.txt should match")
	}
	if _, ok := p.Match("1234.txt"); ok {
		t.Error("1234.txt should not match")
	}
}

func TestCompile_LiteralBraces(t *testing.T) {
	p := MustCompile("a/{{x}}/{y}.txt")
	if diff := cmp.Diff([]string{"y"}, p.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	got, err := p.Apply(Wildcards{"y": "1"}, ApplyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "a/{x}/1.txt" {
		t.Errorf("got %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		template string
		wc       Wildcards
	}{
		{"results/{sample}.bam", Wildcards{"sample": "S1"}},
		{"{a}/{b}/{c}.txt", Wildcards{"a": "x", "b": "y.z", "c": "w"}},
		{"out/{n,\\d+}_{name}.csv", Wildcards{"n": "42", "name": "foo_bar"}},
		{"{x}/{x}.txt", Wildcards{"x": "dir"}},
		{"plain.txt", Wildcards{}},
	}
	for _, tc := range cases {
		t.Run(tc.template, func(t *testing.T) {
			p := MustCompile(tc.template)
			path, err := p.Apply(tc.wc, ApplyOptions{})
			if err != nil {
				t.Fatal(err)
			}
			got, ok := p.Match(path)
			if !ok {
				t.Fatalf("%q does not match its own expansion %q", tc.template, path)
			}
			if diff := cmp.Diff(tc.wc, got); diff != "" {
				t.Errorf("wildcards (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatch_FullString(t *testing.T) {
	p := MustCompile("out/{x}.txt")
	if _, ok := p.Match("prefix/out/A.txt"); ok {
		t.Error("match must be anchored at the start")
	}
	if _, ok := p.Match("out/A.txt.gz"); ok {
		t.Error("match must be anchored at the end")
	}
	wc, ok := p.Match("out/A.txt")
	if !ok || wc["x"] != "A" {
		t.Errorf("got %v, %v", wc, ok)
	}
}

func TestMatch_RepeatedWildcardMustAgree(t *testing.T) {
	p := MustCompile("{x}/{x}.txt")
	if _, ok := p.Match("a/b.txt"); ok {
		t.Error("differing values for a repeated wildcard must not match")
	}
}

func TestMatch_Constraint(t *testing.T) {
	p := MustCompile("chunk_{i,\\d+}.txt")
	if _, ok := p.Match("chunk_ab.txt"); ok {
		t.Error("constraint violated but matched")
	}
}

func TestApply_Missing(t *testing.T) {
	p := MustCompile("{a}/{b}.txt")

	_, err := p.Apply(Wildcards{"a": "1"}, ApplyOptions{})
	var we *WildcardError
	if !errors.As(err, &we) || we.Name != "b" {
		t.Fatalf("expected WildcardError for b, got %v", err)
	}

	got, err := p.Apply(Wildcards{"a": "1"}, ApplyOptions{FillMissing: true})
	if err != nil {
		t.Fatal(err)
	}
	if got != "1/"+DynamicFill+".txt" {
		t.Errorf("got %q", got)
	}

	got, err = p.Apply(Wildcards{"a": "1"}, ApplyOptions{KeepMissing: true})
	if err != nil {
		t.Fatal(err)
	}
	if got != "1/{b}.txt" {
		t.Errorf("got %q", got)
	}
}

func TestApply_FailDynamic(t *testing.T) {
	p := MustCompile("{a}.txt")
	_, err := p.Apply(Wildcards{"a": DynamicFill}, ApplyOptions{FailDynamic: true})
	var we *WildcardError
	if !errors.As(err, &we) {
		t.Fatalf("expected WildcardError, got %v", err)
	}
}

func TestSubstitute(t *testing.T) {
	wc := Wildcards{"s": "A", "n": "7"}
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "no braces", "no braces"},
		{"wildcard", "tmp/{s}", "tmp/A"},
		{"constrained", "run-{n,\\d+}", "run-7"},
		{"awk", "awk '{print $1}' {s}", "awk '{print $1}' A"},
		{"json", `{"k": 1}`, `{"k": 1}`},
		{"empty braces", "x{}y", "x{}y"},
		{"stray close", "a} {s}", "a} A"},
		{"unterminated", "{s", "{s"},
		{"doubled", "{{s}} {s}", "{s} A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Substitute(tt.text, wc, ApplyOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}

	var we *WildcardError
	if _, err := Substitute("echo {missing}", wc, ApplyOptions{}); !errors.As(err, &we) || we.Name != "missing" {
		t.Errorf("expected wildcard error for missing, got %v", err)
	}
	got, err := Substitute("g-{missing}", wc, ApplyOptions{FillMissing: true})
	if err != nil || got != "g-"+DynamicFill {
		t.Errorf("fill missing = %q, %v", got, err)
	}
}

func TestFlags_CopiedOnDerive(t *testing.T) {
	p, err := New(Temp(Protected("a/{x}.txt")))
	if err != nil {
		t.Fatal(err)
	}
	q := p.WithOwner("align").WithFlag(FlagModifiedBy, "prefix")
	for _, f := range []string{FlagTemp, FlagProtected, FlagModifiedBy} {
		if !q.HasFlag(f) {
			t.Errorf("derived pattern lost flag %s", f)
		}
	}
	if p.HasFlag(FlagModifiedBy) {
		t.Error("original pattern was mutated")
	}
	f, err := q.Concretize(Wildcards{"x": "1"}, ApplyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !f.Is("temporary") || f.Owner != "align" {
		t.Errorf("concrete file = %+v", f)
	}
}

func TestMultiext(t *testing.T) {
	items := Multiext("results/{s}", ".bai", ".csi")
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	if items[1].Text != "results/{s}.csi" || items[1].Flags.Value(FlagMultiext) != "results/{s}" {
		t.Errorf("got %+v", items[1])
	}
}

func TestSatisfiesConstraints(t *testing.T) {
	p := MustCompile("{n,\\d+}.txt")
	if !p.SatisfiesConstraints(Wildcards{"n": "12"}) {
		t.Error("12 should satisfy \\d+")
	}
	if p.SatisfiesConstraints(Wildcards{"n": "12a"}) {
		t.Error("12a should not satisfy \\d+")
	}
}

func TestUpdateConstraints(t *testing.T) {
	got, err := UpdateConstraints(
		"{sample}/{sample}.{chunk,\\d+}.{ext}",
		map[string]string{"sample": "S[0-9]+"},
		map[string]string{"sample": "ignored", "chunk": "ignored", "ext": "[a-z]+"},
	)
	if err != nil {
		t.Fatal(err)
	}
	want := "{sample,S[0-9]+}/{sample}.{chunk,\\d+}.{ext,[a-z]+}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if _, err := Compile(got); err != nil {
		t.Errorf("rewritten template does not compile: %v", err)
	}
}

func TestStripConstraints(t *testing.T) {
	got, err := StripConstraints("a/{x,\\d+}/{{lit}}/{y}")
	if err != nil {
		t.Fatal(err)
	}
	if got != "a/{x}/{{lit}}/{y}" {
		t.Errorf("got %q", got)
	}
	if HasConstraints(got) {
		t.Error("constraints remain")
	}
}

func TestExpand(t *testing.T) {
	values := map[string][]string{"a": {"1", "2"}, "b": {"x", "y", "z"}}

	zip, err := Expand("{a}-{b}", values, Zip)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1-x", "2-y"}, zip); diff != "" {
		t.Errorf("zip (-want +got):\n%s", diff)
	}

	prod, err := Expand("{a}-{b}", values, Product)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1-x", "1-y", "1-z", "2-x", "2-y", "2-z"}
	if diff := cmp.Diff(want, prod); diff != "" {
		t.Errorf("product (-want +got):\n%s", diff)
	}

	if _, err := Expand("{a}-{c}", values, Zip); err == nil {
		t.Error("expected error for wildcard without values")
	}
}

func TestEscapeExcept(t *testing.T) {
	tmpl, err := EscapeExcept("{sample}/{chunk,\\d+}.txt", map[string][]string{"chunk": {"1", "2"}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Expand(tmpl, map[string][]string{"chunk": {"1", "2"}}, Zip)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"{sample}/1.txt", "{sample}/2.txt"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestCheckPath(t *testing.T) {
	cases := []struct {
		file File
		want string
	}{
		{File{Path: "./a.txt"}, "starts with './'"},
		{File{Path: "a//b.txt"}, "double '/'"},
		{File{Path: "a.txt "}, "ends with whitespace"},
		{File{Path: "out/"}, "not flagged as a directory"},
	}
	for _, tc := range cases {
		t.Run(tc.file.Path, func(t *testing.T) {
			warnings := CheckPath(tc.file)
			if len(warnings) == 0 || !strings.Contains(strings.Join(warnings, "\n"), tc.want) {
				t.Errorf("warnings = %v, want substring %q", warnings, tc.want)
			}
		})
	}
	if w := CheckPath(File{Path: "https://example.org//x"}); len(w) != 0 {
		t.Errorf("urls should not warn: %v", w)
	}
	if w := CheckPath(File{Path: "out/", Flags: Flags{FlagDirectory: true}}); len(w) != 0 {
		t.Errorf("directories should not warn: %v", w)
	}
}
