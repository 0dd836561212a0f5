package pattern

import (
	"fmt"
	"strings"
)

const checkHint = "It can also lead to inconsistent results of the file-matching approach."

// CheckPath returns warnings about a concrete path that is legal but likely
// to confuse path matching.
func CheckPath(f File) []string {
	var warnings []string
	p := f.Path
	if strings.HasPrefix(p, "./") {
		warnings = append(warnings, fmt.Sprintf("relative file path %q starts with './'; this is redundant. %s", p, checkHint))
	}
	if strings.HasPrefix(p, " ") {
		warnings = append(warnings, fmt.Sprintf("file path %q starts with whitespace. %s", p, checkHint))
	}
	if strings.HasSuffix(p, " ") {
		warnings = append(warnings, fmt.Sprintf("file path %q ends with whitespace. %s", p, checkHint))
	}
	if strings.Contains(p, "\n") {
		warnings = append(warnings, fmt.Sprintf("file path %q contains a line break. %s", p, checkHint))
	}
	if strings.Contains(p, "//") && !isURL(p) {
		warnings = append(warnings, fmt.Sprintf("file path %q contains a double '/'. %s", p, checkHint))
	}
	if strings.HasSuffix(p, "/") && !f.Is(FlagDirectory) && len(p) > 1 {
		warnings = append(warnings, fmt.Sprintf("file path %q ends with '/' but is not flagged as a directory", p))
	}
	return warnings
}

func isURL(p string) bool {
	i := strings.Index(p, "://")
	return i > 0 && !strings.ContainsAny(p[:i], "/{}")
}
