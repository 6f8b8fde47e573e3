package sqltext

import (
	"fmt"
	"regexp"
	"strings"
)

// Type names are interpolated bare, so they are restricted to words, an
// optional (n) or (p,s) modifier and optional array brackets.
var typeNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*( [a-z][a-z0-9_]*)*( ?\(\s*\d+\s*(,\s*\d+\s*)?\))?( [a-z][a-z0-9_]*)*(\[\])*$`)

// TypeName is a column type that is safe to place in DDL text.
type TypeName struct {
	name string
}

// ParseTypeName validates a native type spelling.
func ParseTypeName(name string) (TypeName, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if normalized == "" {
		return TypeName{}, fmt.Errorf("datatype is required")
	}
	if !typeNamePattern.MatchString(normalized) {
		return TypeName{}, fmt.Errorf("invalid datatype %q", name)
	}
	return TypeName{name: normalized}, nil
}

func (t TypeName) String() string {
	return t.name
}

// Base returns the type without modifiers or array brackets.
func (t TypeName) Base() string {
	base := t.name
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i] + base[strings.IndexByte(base, ')')+1:]
	}
	base = strings.TrimSuffix(strings.ReplaceAll(base, "[]", ""), " ")
	return strings.Join(strings.Fields(base), " ")
}

func (t TypeName) IsZero() bool {
	return t.name == ""
}
