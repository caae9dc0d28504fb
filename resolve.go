package main

import (
	"fmt"
	"strings"
)

// ResolveOptions are the run-wide switches that influence column resolution.
type ResolveOptions struct {
	ProcessIntFKs        bool
	CompositePKIncrement bool
	ComplexJSON          bool
	Float                FloatConfig
}

// ResolveAction says what the worker does with a resolved column.
type ResolveAction int

const (
	ActionEmit ResolveAction = iota
	ActionSkip
	ActionUnsupported
)

func (a ResolveAction) String() string {
	switch a {
	case ActionEmit:
		return "emit"
	case ActionSkip:
		return "skip"
	case ActionUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("ResolveAction(%d)", int(a))
}

// Resolution is the outcome of resolving one column.
type Resolution struct {
	Column Column
	Spec   TypeSpec // set when Action == ActionEmit
	Action ResolveAction
	Reason string // why the column was skipped
	// Warning is a non-fatal event to report: ErrUnsupportedType for
	// unsupported columns, ErrEmptyReferencedTable for FK fallbacks.
	Warning error
}

// fkSeed is the current maximum of a referenced key column. Found is false
// when the referenced table is empty.
type fkSeed struct {
	Max   int64
	Found bool
}

type intRange struct {
	min, max int64
	umax     uint64
}

var integerRanges = map[string]intRange{
	"tinyint":   {-128, 127, 255},
	"smallint":  {-32768, 32767, 65535},
	"mediumint": {-8388608, 8388607, 16777215},
	"int":       {-2147483648, 2147483647, 4294967295},
	"integer":   {-2147483648, 2147483647, 4294967295},
	"bigint":    {-9223372036854775808, 9223372036854775807, 18446744073709551615},
}

var spatialTypes = map[string]bool{
	"geometry": true, "point": true, "linestring": true, "polygon": true,
	"multipoint": true, "multilinestring": true, "multipolygon": true,
	"geometrycollection": true,
}

var textTypes = map[string]bool{
	"text": true, "tinytext": true, "mediumtext": true, "longtext": true,
}

var blobTypes = map[string]bool{
	"tinyblob": true, "blob": true, "mediumblob": true, "longblob": true,
}

// maxGeneratedLength caps character and binary generators.
const maxGeneratedLength = 255

func isIntegerType(dataType string) bool {
	_, ok := integerRanges[dataType]
	return ok
}

func isUnsigned(col Column) bool {
	return strings.Contains(col.ColumnType, "unsigned")
}

// resolveTable resolves every column of t in ordinal order.
func resolveTable(t Table, fks ForeignKeyIndex, seeds map[string]fkSeed, opts ResolveOptions) []Resolution {
	out := make([]Resolution, 0, len(t.Columns))
	for _, col := range t.Columns {
		out = append(out, resolveColumn(col, fks, seeds, opts))
	}
	return out
}

// resolveColumn maps one column to its generation strategy. It performs no
// I/O: integer foreign keys read their referenced maximum from seeds.
func resolveColumn(col Column, fks ForeignKeyIndex, seeds map[string]fkSeed, opts ResolveOptions) Resolution {
	r := Resolution{Column: col, Action: ActionEmit}
	skip := func(reason string) Resolution {
		r.Action, r.Reason = ActionSkip, reason
		return r
	}

	// 1. values the database assigns itself
	if col.Key == KeyPrimary {
		if strings.Contains(col.Extra, "auto_increment") {
			return skip("auto-increment primary key")
		}
		if strings.Contains(col.Extra, "DEFAULT_GENERATED") {
			return skip("database-generated primary key")
		}
	}
	if isGeneratedColumn(col) {
		return skip("generated column")
	}

	// 2. spatial
	if spatialTypes[col.DataType] {
		return skip("spatial type")
	}

	dt := col.DataType
	switch {
	// 3. character
	case dt == "char" || dt == "varchar":
		length := capLength(col)
		if col.Key == KeyPrimary || col.Key == KeyUnique {
			r.Spec = CharKeySpec{Length: length, Table: col.Table, Column: col.Name}
		} else {
			r.Spec = StringSpec{Length: length}
		}

	// 4. text
	case textTypes[dt]:
		r.Spec = StringSpec{Length: maxGeneratedLength}

	// 5. integers
	case isIntegerType(dt):
		r.Spec, r.Warning = resolveInteger(col, fks, seeds, opts)

	// 6. floats
	case dt == "float" || dt == "double" || dt == "real":
		r.Spec = resolveFloat(col, opts.Float)

	// 7. decimals
	case dt == "decimal" || dt == "numeric":
		r.Spec = DecimalSpec{Scale: int(col.Scale)}

	// 8. temporal
	case dt == "date":
		r.Spec = DateSpec{}
	case dt == "year":
		r.Spec = YearSpec{}
	case dt == "datetime":
		r.Spec = DatetimeSpec{Fraction: int(col.DatetimePrecision)}
	case dt == "timestamp":
		r.Spec = TimestampSpec{}
	case dt == "time":
		r.Spec = TimeSpec{Fraction: int(col.DatetimePrecision)}

	// 9. everything else with a generator
	case dt == "enum" || dt == "set":
		choices, err := parseEnumChoices(col.ColumnType)
		if err != nil {
			return unsupported(r, err.Error())
		}
		r.Spec = EnumSpec{Choices: choices}
	case dt == "bit":
		r.Spec = BitSpec{}
	case blobTypes[dt]:
		r.Spec = BlobSpec{}
	case dt == "binary" || dt == "varbinary":
		if col.HasCharLen && col.CharMaxLen == 16 {
			r.Spec = UUIDSpec{}
		} else {
			r.Spec = BinarySpec{Length: capLength(col)}
		}
	case dt == "json":
		r.Spec = JSONSpec{Composite: opts.ComplexJSON}
	case dt == "boolean":
		r.Spec = BoolSpec{}
	case dt == "uuid":
		r.Spec = UUIDSpec{Text: true}

	// 10. no generator
	default:
		return unsupported(r, "no generator for type "+dt)
	}
	return r
}

func unsupported(r Resolution, detail string) Resolution {
	r.Action = ActionUnsupported
	r.Reason = detail
	r.Warning = fmt.Errorf("%w: %s.%s (%s): %s", ErrUnsupportedType, r.Column.Table, r.Column.Name, r.Column.ColumnType, detail)
	return r
}

// capLength bounds a declared length to the generator cap; an undeclared
// length uses the cap. A declared zero length stays zero.
func capLength(col Column) int {
	if !col.HasCharLen || col.CharMaxLen > maxGeneratedLength {
		return maxGeneratedLength
	}
	return int(max(col.CharMaxLen, 0))
}

func resolveInteger(col Column, fks ForeignKeyIndex, seeds map[string]fkSeed, opts ResolveOptions) (TypeSpec, error) {
	if target, ok := fks.lookup(col.Name); ok && opts.ProcessIntFKs {
		seed := seeds[col.Name]
		if col.Key == KeyPrimary {
			if !seed.Found {
				// an empty parent starts the sequence at 1
				return IntPKSpec{Seed: 0}, fmt.Errorf("%w: %s.%s references empty %s.%s, counting from 1",
					ErrEmptyReferencedTable, col.Table, col.Name, target.Table, target.Column)
			}
			return IntPKSpec{Seed: seed.Max}, nil
		}
		if !seed.Found {
			return IntFKSpec{Value: 1}, fmt.Errorf("%w: %s.%s references empty %s.%s, using 1",
				ErrEmptyReferencedTable, col.Table, col.Name, target.Table, target.Column)
		}
		return IntFKSpec{Value: seed.Max, Increment: opts.CompositePKIncrement}, nil
	}

	rng := integerRanges[col.DataType]
	if isUnsigned(col) {
		return UintSpec{Min: 0, Max: rng.umax}, nil
	}
	return IntSpec{Min: rng.min, Max: rng.max}, nil
}

// resolveFloat derives the float bound from precision and scale. Bounds above
// AmplifyThreshold digits are multiplied by AmplifyFactor so wide columns get
// proportionate magnitudes.
func resolveFloat(col Column, fc FloatConfig) FloatSpec {
	decimals := 1
	if col.HasScale && col.Scale > 0 {
		decimals = int(col.Scale)
	}

	bound := fc.DefaultBound
	if col.Precision > 0 {
		if l := float64(col.Precision - col.Scale); l > 0 {
			bound = l
		}
	}
	if bound > fc.AmplifyThreshold {
		bound *= fc.AmplifyFactor
	}
	return FloatSpec{Bound: bound, Decimals: decimals, Signed: !isUnsigned(col)}
}
