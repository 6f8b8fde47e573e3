package schema

import (
	"fmt"
	"regexp"
	"strings"
)

var integerTypes = map[string]bool{
	"smallint": true,
	"integer":  true,
	"bigint":   true,
	"int":      true,
	"int2":     true,
	"int4":     true,
	"int8":     true,
}

var dateTimeTypes = map[string]bool{
	"date":                        true,
	"time":                        true,
	"time without time zone":      true,
	"time with time zone":         true,
	"timetz":                      true,
	"timestamp":                   true,
	"timestamp without time zone": true,
	"timestamp with time zone":    true,
	"timestamptz":                 true,
}

// IsIntegerType reports whether the base native type can own a sequence.
func IsIntegerType(base string) bool {
	return integerTypes[strings.ToLower(strings.TrimSpace(base))]
}

func IsDateTimeType(base string) bool {
	return dateTimeTypes[strings.ToLower(strings.TrimSpace(base))]
}

var nativeAliases = map[string]string{
	"mediumtext": "text",
	"binary":     "boolean",
}

var varcharSpelling = regexp.MustCompile(`^(varchar|character varying|char varying|nvarchar|varchar2)\s*(\(\s*(\d+)\s*\))?$`)

// ToNative maps a designer type onto its PostgreSQL spelling. Unrecognized
// input is returned unchanged.
func ToNative(designer string) string {
	trimmed := strings.TrimSpace(designer)
	lower := strings.ToLower(trimmed)

	if native, ok := nativeAliases[lower]; ok {
		return native
	}

	if m := varcharSpelling.FindStringSubmatch(lower); m != nil {
		if m[3] != "" {
			return fmt.Sprintf("character varying(%s)", m[3])
		}
		return "character varying"
	}

	return trimmed
}

var designerNames = map[string]string{
	"character varying":           "VARCHAR",
	"character":                   "CHAR",
	"timestamp without time zone": "TIMESTAMP",
	"numeric":                     "DECIMAL",
	"binary":                      "BOOLEAN",
}

var sizedTypes = map[string]bool{
	"VARCHAR":   true,
	"CHAR":      true,
	"TIME":      true,
	"TIMESTAMP": true,
	"NUMERIC":   true,
	"DECIMAL":   true,
}

// ToDesigner renders a catalog column type in designer vocabulary, appending
// the field size for the sized types when the catalog reports one.
func ToDesigner(col Column) string {
	name, ok := designerNames[col.DataType]
	if !ok {
		return col.DataType
	}

	if !sizedTypes[name] {
		return name
	}

	if size := fieldSize(col, name == "DECIMAL" || name == "NUMERIC"); size != "" {
		return fmt.Sprintf("%s(%s)", name, size)
	}
	return name
}

func fieldSize(col Column, numeric bool) string {
	if numeric {
		if col.NumericPrecision == nil {
			return ""
		}
		if col.NumericScale == nil {
			return fmt.Sprintf("%d", *col.NumericPrecision)
		}
		return fmt.Sprintf("%d,%d", *col.NumericPrecision, *col.NumericScale)
	}
	if col.MaxLength == nil {
		return ""
	}
	return fmt.Sprintf("%d", *col.MaxLength)
}

var (
	emptyTextDefault = regexp.MustCompile(`^''(::[a-z ]+)?$`)
	nullDefault      = regexp.MustCompile(`(?i)^NULL(::.*)?$`)
)

// NormalizeDefault turns a catalog default expression into its presentation
// form. A nextval() default is reported as an empty string with
// autoIncrement set; a typed NULL becomes absent.
func NormalizeDefault(raw *string) (value *string, autoIncrement bool) {
	if raw == nil {
		return nil, false
	}

	text := strings.TrimSpace(*raw)
	empty := ""

	switch {
	case strings.HasPrefix(text, "nextval("):
		return &empty, true
	case nullDefault.MatchString(text):
		return nil, false
	case emptyTextDefault.MatchString(text):
		return &empty, false
	}

	return &text, false
}
