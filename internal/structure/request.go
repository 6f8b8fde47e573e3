package structure

// ColumnRequest describes a column to create or the changes to apply to one.
// Pointer fields are tri-state: nil leaves the attribute unchanged.
type ColumnRequest struct {
	Name          *string `json:"name,omitempty" yaml:"name,omitempty"`
	Nullable      *bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Datatype      *string `json:"datatype,omitempty" yaml:"datatype,omitempty"`
	Default       *string `json:"default,omitempty" yaml:"default,omitempty"`
	DropDefault   bool    `json:"drop_default,omitempty" yaml:"drop_default,omitempty"`
	AutoIncrement *bool   `json:"autoincrement,omitempty" yaml:"autoincrement,omitempty"`
	Comment       *string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

func (r ColumnRequest) isEmpty() bool {
	return r.Name == nil && r.Nullable == nil && r.Datatype == nil && r.Default == nil &&
		!r.DropDefault && r.AutoIncrement == nil && r.Comment == nil
}

// ConstraintRequest describes a unique, primary key or foreign key constraint.
type ConstraintRequest struct {
	Name             string   `json:"name" yaml:"name"`
	Unique           *bool    `json:"unique,omitempty" yaml:"unique,omitempty"`
	Primary          *bool    `json:"primary,omitempty" yaml:"primary,omitempty"`
	Foreign          *bool    `json:"foreign,omitempty" yaml:"foreign,omitempty"`
	Columns          []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	ReferencedTable  *string  `json:"referenced_table,omitempty" yaml:"referenced_table,omitempty"`
	ReferencedColumn *string  `json:"referenced_column,omitempty" yaml:"referenced_column,omitempty"`
	Check            *string  `json:"check,omitempty" yaml:"check,omitempty"`
}

type IndexRequest struct {
	Name    string   `json:"name" yaml:"name"`
	Unique  *bool    `json:"unique,omitempty" yaml:"unique,omitempty"`
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// touchesDefault reports whether the request changes nullability or the
// default state of the column.
func (r ColumnRequest) touchesDefault() bool {
	return r.Nullable != nil || r.Default != nil || r.DropDefault || r.AutoIncrement != nil
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

func isSet(s *string) bool {
	return s != nil && *s != ""
}
