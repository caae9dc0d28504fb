package main

// TypeSpec is the generation strategy resolved for one column. The set of
// variants is closed: only types in this file implement it.
type TypeSpec interface {
	typeSpec()
}

// StringSpec is a random letter string of exactly Length characters.
type StringSpec struct {
	Length int
}

// CharKeySpec is a character primary/unique key. Table and Column identify
// where existing values are looked up before a candidate is used.
type CharKeySpec struct {
	Length int
	Table  string
	Column string
}

// IntSpec is a uniform signed integer in [Min, Max].
type IntSpec struct {
	Min, Max int64
}

// UintSpec is a uniform unsigned integer in [Min, Max].
type UintSpec struct {
	Min, Max uint64
}

// IntPKSpec is an integer key that increments by one per row, starting at Seed+1.
type IntPKSpec struct {
	Seed int64
}

// IntFKSpec is an integer foreign key. With Increment unset every row gets
// Value; otherwise rows count up from Value.
type IntFKSpec struct {
	Value     int64
	Increment bool
}

// FloatSpec is a float in [start, Bound] rounded to Decimals places, where
// start is negative only when Signed.
type FloatSpec struct {
	Bound    float64
	Decimals int
	Signed   bool
}

// DecimalSpec is a value in a fixed 10..99 band rounded to Scale places.
type DecimalSpec struct {
	Scale int
}

type DateSpec struct{}

type YearSpec struct{}

// DatetimeSpec carries the number of fractional-second digits.
type DatetimeSpec struct {
	Fraction int
}

type TimestampSpec struct{}

// TimeSpec carries the number of fractional-second digits.
type TimeSpec struct {
	Fraction int
}

// EnumSpec picks one of the literal choices of an enum or set column.
type EnumSpec struct {
	Choices []string
}

type BitSpec struct{}

type BlobSpec struct{}

// BinarySpec is a punctuation-derived byte string of at most Length bytes.
type BinarySpec struct {
	Length int
}

// UUIDSpec is a random v4 UUID. Text selects the canonical string form for
// native uuid columns instead of 16 raw bytes.
type UUIDSpec struct {
	Text bool
}

// JSONSpec is a constant document, or a generated city/state/zips object
// when Composite is set.
type JSONSpec struct {
	Composite bool
}

// BoolSpec is a random boolean for native boolean columns.
type BoolSpec struct{}

func (StringSpec) typeSpec()    {}
func (CharKeySpec) typeSpec()   {}
func (IntSpec) typeSpec()       {}
func (UintSpec) typeSpec()      {}
func (IntPKSpec) typeSpec()     {}
func (IntFKSpec) typeSpec()     {}
func (FloatSpec) typeSpec()     {}
func (DecimalSpec) typeSpec()   {}
func (DateSpec) typeSpec()      {}
func (YearSpec) typeSpec()      {}
func (DatetimeSpec) typeSpec()  {}
func (TimestampSpec) typeSpec() {}
func (TimeSpec) typeSpec()      {}
func (EnumSpec) typeSpec()      {}
func (BitSpec) typeSpec()       {}
func (BlobSpec) typeSpec()      {}
func (BinarySpec) typeSpec()    {}
func (UUIDSpec) typeSpec()      {}
func (JSONSpec) typeSpec()      {}
func (BoolSpec) typeSpec()      {}

// incrementing reports whether a TypeSpec draws from RunningKeyState.
func incrementing(spec TypeSpec) bool {
	switch s := spec.(type) {
	case IntPKSpec:
		return true
	case IntFKSpec:
		return s.Increment
	default:
		return false
	}
}
