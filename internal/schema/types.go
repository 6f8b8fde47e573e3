package schema

// Column is one row of information_schema.columns.
type Column struct {
	Name             string
	DataType         string
	MaxLength        *int
	NumericPrecision *int
	NumericScale     *int
	DefaultValue     *string
	IsNullable       bool
	Position         int
}

type ForeignKey struct {
	Name             string
	ColumnName       string
	ReferencedTable  string
	ReferencedColumn string
}

type Index struct {
	Name      string
	Columns   []string
	IsUnique  bool
	IsPrimary bool
}

// Kind classifies the index for presentation.
func (i Index) Kind() string {
	switch {
	case i.IsPrimary:
		return IndexPrimary
	case i.IsUnique:
		return IndexUnique
	default:
		return IndexPlain
	}
}

const (
	IndexPrimary = "PRIMARY"
	IndexUnique  = "UNIQUE"
	IndexPlain   = "INDEX"
)

// Comments holds the table comment and the non-empty column comments.
type Comments struct {
	Table   *string
	Columns map[string]string
}

// Position is the canvas location of a table.
type Position struct {
	Table string  `json:"table" yaml:"table"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
}

// ColumnView is the presentation form of a column.
type ColumnView struct {
	Position      int     `json:"position"`
	Default       *string `json:"default"`
	Nullable      bool    `json:"nullable"`
	Datatype      string  `json:"datatype"`
	AutoIncrement bool    `json:"autoincrement"`
	Comment       *string `json:"comment"`
}

type IndexView struct {
	Type    string   `json:"type"`
	Columns []string `json:"columns"`
}

type RelationView struct {
	Column            string                `json:"column"`
	ReferencedTable   string                `json:"referenced_table"`
	ReferencedColumn  string                `json:"referenced_column"`
	ReferencedColumns map[string]ColumnView `json:"referenced_columns"`
}

// TableView is the Table Metadata View: rebuilt from the catalog on every
// read and never cached.
type TableView struct {
	Name      string                  `json:"name"`
	Comment   *string                 `json:"comment"`
	Columns   map[string]ColumnView   `json:"columns"`
	Indexes   map[string]IndexView    `json:"indexes"`
	Relations map[string]RelationView `json:"relations"`
	X         float64                 `json:"x"`
	Y         float64                 `json:"y"`
}
