package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	letters     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	lowercase   = "abcdefghijklmnopqrstuvwxyz"
	uppercase   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits      = "0123456789"
	punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

	startYear = 1970

	decimalMin = 10
	decimalMax = 99

	zipMin   = 1000
	zipMax   = 99950
	zipCount = 5
)

// blobSentinel is the fixed blob payload, the binary literal of 291.
var blobSentinel = []byte("0b100100011")

// simpleJSON is the constant document used when composite JSON is off.
const simpleJSON = `{"json": "foobar"}`

// keyLookup finds an existing value of a character key column.
type keyLookup interface {
	existingKey(ctx context.Context, table, column, candidate string) (string, bool, error)
}

// generator produces one random value per TypeSpec. It is owned by a single
// worker and is not safe for concurrent use.
type generator struct {
	src    *rand.ChaCha8
	rng    *rand.Rand
	endYr  int
	lookup keyLookup
}

func newGenerator(seed int64, lookup keyLookup) *generator {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], uint64(seed))
	src := rand.NewChaCha8(key)
	return &generator{
		src:    src,
		rng:    rand.New(src),
		endYr:  time.Now().Year(),
		lookup: lookup,
	}
}

// value generates a value for every non-incrementing TypeSpec. Incrementing keys
// come from RunningKeyState.
func (g *generator) value(ctx context.Context, spec TypeSpec) (any, error) {
	switch s := spec.(type) {
	case StringSpec:
		return g.pick(letters, s.Length), nil
	case CharKeySpec:
		return g.charKey(ctx, s)
	case IntSpec:
		return g.int64Between(s.Min, s.Max), nil
	case UintSpec:
		return g.uint64Between(s.Min, s.Max), nil
	case IntPKSpec:
		return nil, fmt.Errorf("primary key sequence needs key state")
	case IntFKSpec:
		if s.Increment {
			return nil, fmt.Errorf("incrementing foreign key needs key state")
		}
		return s.Value, nil
	case FloatSpec:
		return g.float(s), nil
	case DecimalSpec:
		return roundTo(decimalMin+g.rng.Float64()*(decimalMax-decimalMin), s.Scale), nil
	case DateSpec:
		return g.date().Format("2006-01-02"), nil
	case YearSpec:
		return int64(g.year()), nil
	case DatetimeSpec:
		return g.datetime(s.Fraction), nil
	case TimestampSpec:
		return g.datetime(0), nil
	case TimeSpec:
		return g.timeOfDay(s.Fraction), nil
	case EnumSpec:
		if len(s.Choices) == 0 {
			return nil, fmt.Errorf("enum without choices")
		}
		return s.Choices[g.rng.IntN(len(s.Choices))], nil
	case BitSpec:
		return []byte{0x01}, nil
	case BlobSpec:
		return append([]byte(nil), blobSentinel...), nil
	case BinarySpec:
		return decodeQuotedPrintable(g.pick(punctuation, min(s.Length, maxGeneratedLength))), nil
	case UUIDSpec:
		return g.newUUID(s)
	case JSONSpec:
		if !s.Composite {
			return simpleJSON, nil
		}
		return g.compositeJSON()
	case BoolSpec:
		return g.rng.IntN(2) == 1, nil
	default:
		return nil, fmt.Errorf("no generator for %T", spec)
	}
}

// pick returns n characters drawn uniformly from alphabet.
func (g *generator) pick(alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[g.rng.IntN(len(alphabet))]
	}
	return string(b)
}

// charKey draws a candidate and, if the owning table already holds it,
// redraws at least once and until the value differs from the one found,
// ignoring case. Best-effort only: the new candidate is not looked up again.
func (g *generator) charKey(ctx context.Context, s CharKeySpec) (string, error) {
	candidate := g.pick(letters, s.Length)
	if g.lookup == nil || s.Length == 0 {
		return candidate, nil
	}
	found, ok, err := g.lookup.existingKey(ctx, s.Table, s.Column, candidate)
	if err != nil {
		return "", fmt.Errorf("char key lookup %s.%s: %w", s.Table, s.Column, err)
	}
	if !ok {
		return candidate, nil
	}
	candidate = g.pick(letters, s.Length)
	for strings.EqualFold(candidate, found) {
		candidate = g.pick(letters, s.Length)
	}
	return candidate, nil
}

// int64Between is uniform over [lo, hi] inclusive, including the full int64 range.
func (g *generator) int64Between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	span := uint64(hi) - uint64(lo)
	if span == math.MaxUint64 {
		return int64(g.rng.Uint64())
	}
	return lo + int64(g.rng.Uint64N(span+1))
}

func (g *generator) uint64Between(lo, hi uint64) uint64 {
	if hi <= lo {
		return lo
	}
	span := hi - lo
	if span == math.MaxUint64 {
		return g.rng.Uint64()
	}
	return lo + g.rng.Uint64N(span+1)
}

// float is uniform in [start, Bound], where start is -99 for signed columns
// (or -Bound when the bound is narrower) and 0 otherwise.
func (g *generator) float(s FloatSpec) float64 {
	start := 0.0
	if s.Signed {
		start = -math.Min(99, s.Bound)
	}
	return roundTo(start+g.rng.Float64()*(s.Bound-start), s.Decimals)
}

func (g *generator) year() int {
	return startYear + g.rng.IntN(g.endYr-startYear+1)
}

func (g *generator) date() time.Time {
	return time.Date(g.year(), time.Month(1+g.rng.IntN(12)), 1+g.rng.IntN(28), 0, 0, 0, 0, time.UTC)
}

// datetime adds an hour in [1,23], minute and second in [0,59] and an
// optional fraction of the given digit count.
func (g *generator) datetime(fraction int) time.Time {
	d := g.date()
	micros := 0
	if fraction > 0 {
		micros = reversedFraction(g.randomDigits(fraction))
	}
	return time.Date(d.Year(), d.Month(), d.Day(),
		1+g.rng.IntN(23), g.rng.IntN(60), g.rng.IntN(60), micros*1000, time.UTC)
}

func (g *generator) timeOfDay(fraction int) string {
	s := fmt.Sprintf("%02d:%02d:%02d", 1+g.rng.IntN(23), g.rng.IntN(60), g.rng.IntN(60))
	if fraction > 0 {
		s += fmt.Sprintf(".%06d", reversedFraction(g.randomDigits(fraction)))
	}
	return s
}

func (g *generator) randomDigits(n int) string {
	return g.pick(digits, min(n, 6))
}

// reversedFraction zero-pads a digit string to 6 places, reverses it and
// reads it as microseconds: "37" -> "000037" -> "730000" -> 730000.
func reversedFraction(digitString string) int {
	padded := []byte(digitString)
	if len(padded) < 6 {
		padded = append([]byte(strings.Repeat("0", 6-len(padded))), padded...)
	}
	for i, j := 0, len(padded)-1; i < j; i, j = i+1, j-1 {
		padded[i], padded[j] = padded[j], padded[i]
	}
	n, _ := strconv.Atoi(string(padded))
	return n
}

// newUUID draws a version 4 UUID from the generator's stream. Raw form is the
// 16 bytes in RFC 4122 (big-endian) order.
func (g *generator) newUUID(s UUIDSpec) (any, error) {
	u, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		return nil, fmt.Errorf("uuid: %w", err)
	}
	if s.Text {
		return u.String(), nil
	}
	return u[:], nil
}

func (g *generator) compositeJSON() (string, error) {
	city := g.pick(lowercase, 12)
	zips := make([]int, zipCount)
	for i := range zips {
		zips[i] = zipMin + g.rng.IntN(zipMax-zipMin+1)
	}
	doc := map[string]any{
		"city":  strings.ToUpper(city[:1]) + city[1:],
		"state": g.pick(uppercase, 2),
		"zips":  zips,
	}
	// map keys are marshalled in sorted order
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("composite json: %w", err)
	}
	return string(b), nil
}

func roundTo(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	if decimals > 15 {
		return v
	}
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// decodeQuotedPrintable decodes =XX escapes and soft line breaks, keeping
// any other '=' literally. Unlike mime/quotedprintable it never fails.
func decodeQuotedPrintable(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '=' {
			out = append(out, c)
			continue
		}
		switch {
		case i+1 >= len(s):
			// trailing '=' is a soft line break
		case s[i+1] == '\n':
			i++
		case s[i+1] == '\r' && i+2 < len(s) && s[i+2] == '\n':
			i += 2
		case i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			v, _ := strconv.ParseUint(s[i+1:i+3], 16, 8)
			out = append(out, byte(v))
			i += 2
		default:
			out = append(out, c)
		}
	}
	return out
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
