package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToNative(t *testing.T) {
	cases := map[string]string{
		"mediumtext":            "text",
		"MEDIUMTEXT":            "text",
		"binary":                "boolean",
		"varchar":               "character varying",
		"VARCHAR(32)":           "character varying(32)",
		"varchar (8)":           "character varying(8)",
		"character varying(20)": "character varying(20)",
		"integer":               "integer",
		"Timestamp":             "Timestamp",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, ToNative(input), "input %q", input)
	}
}

func TestToDesigner(t *testing.T) {
	length := 64
	precision, scale := 10, 2

	cases := []struct {
		col      Column
		expected string
	}{
		{Column{DataType: "character varying", MaxLength: &length}, "VARCHAR(64)"},
		{Column{DataType: "character varying"}, "VARCHAR"},
		{Column{DataType: "character", MaxLength: &length}, "CHAR(64)"},
		{Column{DataType: "timestamp without time zone"}, "TIMESTAMP"},
		{Column{DataType: "numeric", NumericPrecision: &precision, NumericScale: &scale}, "DECIMAL(10,2)"},
		{Column{DataType: "numeric", NumericPrecision: &precision}, "DECIMAL(10)"},
		{Column{DataType: "binary"}, "BOOLEAN"},
		{Column{DataType: "integer", NumericPrecision: &precision}, "integer"},
		{Column{DataType: "text"}, "text"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, ToDesigner(tc.col), "type %s", tc.col.DataType)
	}
}

func TestTypeClasses(t *testing.T) {
	for _, typ := range []string{"smallint", "integer", "bigint", "INT4", "int8"} {
		assert.True(t, IsIntegerType(typ), typ)
	}
	for _, typ := range []string{"numeric", "text", "serial", "character varying"} {
		assert.False(t, IsIntegerType(typ), typ)
	}
	for _, typ := range []string{"date", "timestamp without time zone", "timestamptz", "time"} {
		assert.True(t, IsDateTimeType(typ), typ)
	}
	assert.False(t, IsDateTimeType("interval"))
}

func TestNormalizeDefault(t *testing.T) {
	str := func(s string) *string { return &s }

	cases := []struct {
		raw           *string
		value         *string
		autoIncrement bool
	}{
		{nil, nil, false},
		{str("nextval('t_id_seq'::regclass)"), str(""), true},
		{str("NULL::character varying"), nil, false},
		{str("''::character varying"), str(""), false},
		{str("''::text"), str(""), false},
		{str("'banana'::character varying"), str("'banana'::character varying"), false},
		{str("42"), str("42"), false},
	}
	for _, tc := range cases {
		value, autoIncrement := NormalizeDefault(tc.raw)
		assert.Equal(t, tc.value, value)
		assert.Equal(t, tc.autoIncrement, autoIncrement)
	}
}
