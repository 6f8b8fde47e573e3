// Package sqltext holds the only sanctioned way of placing caller supplied
// names and values into DDL text.
//
// DDL positions such as table names, column types and DEFAULT clauses cannot be
// bound as parameters, so statement builders accept Ident values, which can
// only be produced by QuoteIdent, and literals produced by QuoteLiteral.
package sqltext

import (
	"strings"

	"github.com/lib/pq"
)

// Ident is a quoted SQL identifier. The zero value renders as an empty
// quoted name and is never valid DDL.
type Ident struct {
	quoted string
}

// QuoteIdent wraps name in double quotes, doubling embedded quotes.
func QuoteIdent(name string) Ident {
	return Ident{quoted: pq.QuoteIdentifier(name)}
}

func (i Ident) String() string {
	if i.quoted == "" {
		return `""`
	}
	return i.quoted
}

// Idents quotes every name.
func Idents(names []string) []Ident {
	out := make([]Ident, len(names))
	for i, name := range names {
		out[i] = QuoteIdent(name)
	}
	return out
}

// JoinIdents renders names as a comma separated identifier list.
func JoinIdents(names []string) string {
	parts := make([]string, len(names))
	for i, ident := range Idents(names) {
		parts[i] = ident.String()
	}
	return strings.Join(parts, ", ")
}

// QuoteLiteral wraps value in single quotes, doubling embedded quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QuoteNullable quotes a present value and passes an absent one through.
func QuoteNullable(value *string) *string {
	if value == nil {
		return nil
	}
	quoted := QuoteLiteral(*value)
	return &quoted
}

// LiteralOrNull renders value as a literal, or the NULL keyword when absent.
func LiteralOrNull(value *string) string {
	if quoted := QuoteNullable(value); quoted != nil {
		return *quoted
	}
	return "NULL"
}
