package sqltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdent(t *testing.T) {
	cases := map[string]string{
		`simple`:         `"simple"`,
		`needs"escape`:   `"needs""escape"`,
		``:               `""`,
		`x"; DROP TABLE`: `"x""; DROP TABLE"`,
		`MixedCase`:      `"MixedCase"`,
	}
	for input, expected := range cases {
		assert.Equal(t, expected, QuoteIdent(input).String(), "input %q", input)
	}
}

func TestZeroIdent(t *testing.T) {
	var zero Ident
	assert.Equal(t, `""`, zero.String())
}

func TestQuoteLiteral(t *testing.T) {
	cases := map[string]string{
		`banana`:           `'banana'`,
		`it's`:             `'it''s'`,
		``:                 `''`,
		`'); DROP TABLE t`: `'''); DROP TABLE t'`,
		`back\slash`:       `'back\slash'`,
	}
	for input, expected := range cases {
		assert.Equal(t, expected, QuoteLiteral(input), "input %q", input)
	}
}

func TestQuoteNullable(t *testing.T) {
	assert.Nil(t, QuoteNullable(nil))

	value := "o'clock"
	quoted := QuoteNullable(&value)
	if assert.NotNil(t, quoted) {
		assert.Equal(t, `'o''clock'`, *quoted)
	}

	assert.Equal(t, "NULL", LiteralOrNull(nil))
	assert.Equal(t, `'o''clock'`, LiteralOrNull(&value))
}

func TestJoinIdents(t *testing.T) {
	assert.Equal(t, `"a", "b""c"`, JoinIdents([]string{"a", `b"c`}))
	assert.Equal(t, "", JoinIdents(nil))
}

func TestParseTypeName(t *testing.T) {
	valid := map[string]string{
		"integer":                     "integer",
		"  Character   Varying(20)":   "character varying(20)",
		"numeric(10, 2)":              "numeric(10, 2)",
		"timestamp(3) with time zone": "timestamp(3) with time zone",
		"text[]":                      "text[]",
	}
	for input, expected := range valid {
		typ, err := ParseTypeName(input)
		if assert.NoError(t, err, "input %q", input) {
			assert.Equal(t, expected, typ.String())
		}
	}

	for _, input := range []string{"", "int; DROP TABLE x", "text default 'a'", "int)", "\"quoted\""} {
		_, err := ParseTypeName(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestTypeNameBase(t *testing.T) {
	cases := map[string]string{
		"character varying(20)":       "character varying",
		"numeric(10,2)":               "numeric",
		"timestamp(3) with time zone": "timestamp with time zone",
		"integer[]":                   "integer",
		"bigint":                      "bigint",
	}
	for input, expected := range cases {
		typ, err := ParseTypeName(input)
		if assert.NoError(t, err) {
			assert.Equal(t, expected, typ.Base(), "input %q", input)
		}
	}
}
