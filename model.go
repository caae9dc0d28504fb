package main

// ColumnKey is the INFORMATION_SCHEMA.COLUMNS.COLUMN_KEY classification.
type ColumnKey string

const (
	KeyNone     ColumnKey = ""
	KeyPrimary  ColumnKey = "PRI"
	KeyUnique   ColumnKey = "UNI"
	KeyMultiple ColumnKey = "MUL"
)

// Column describes one column as reported by the catalog.
type Column struct {
	Table             string
	Name              string
	DataType          string // e.g. "int", "varchar", "datetime"
	ColumnType        string // full type e.g. "int(10) unsigned", "enum('a','b')"
	CharMaxLen        int64
	HasCharLen        bool // CHARACTER_MAXIMUM_LENGTH was non-NULL
	Precision         int64
	Scale             int64
	HasScale          bool // NUMERIC_SCALE was non-NULL
	DatetimePrecision int64
	Key               ColumnKey
	Extra             string // e.g. "auto_increment", "DEFAULT_GENERATED"
	Nullable          bool
	OrdinalPos        int
}

// ForeignKey is one referencing column of a foreign key constraint.
type ForeignKey struct {
	Constraint string
	Table      string
	Column     string
	RefTable   string
	RefColumn  string
}

// UniqueConstraint is a UNIQUE constraint and the columns it covers.
type UniqueConstraint struct {
	Table   string
	Name    string
	Columns []string
}

// Table holds the introspected columns of a base table, in ordinal order.
type Table struct {
	Name    string
	Columns []Column
}

// Schema holds everything the engine needs from the catalog for one run.
type Schema struct {
	Tables      []Table
	ForeignKeys []ForeignKey
	Uniques     []UniqueConstraint
}

// TableNames returns the names of all tables in catalog order.
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}
