package schema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ipvc/tabx/errors"
)

// DateFormats is the fixed set of layouts a value is tried against when
// classifying or coercing dates. Year-first forms only: day-first and
// month-first locale layouts are ambiguous with each other, and a value
// like 11/08/2016 must widen to string rather than silently pick one
// reading.
var DateFormats = []string{
	"2006-01-02", // ISO 8601 first
	"2006/01/02",
	"2006.01.02",
	"20060102",
}

// DateTimeFormats is the fixed layout set for datetime classification.
var DateTimeFormats = []string{
	time.RFC3339, // ISO 8601 first
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Value is a closed tagged variant over the six semantic kinds plus null.
// Records hold Values; the variant being closed makes type widening and
// serialization exhaustive.
type Value struct {
	kind Kind
	null bool

	b bool
	i int64
	f float64
	t time.Time
	s string
}

// Null returns a null Value of the given kind.
func Null(kind Kind) Value { return Value{kind: kind, null: true} }

func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }
func IntValue(i int64) Value      { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value  { return Value{kind: KindFloat, f: f} }
func DateValue(t time.Time) Value { return Value{kind: KindDate, t: t} }
func StringValue(s string) Value  { return Value{kind: KindString, s: s} }
func DateTimeValue(t time.Time) Value {
	return Value{kind: KindDateTime, t: t}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.null }
func (v Value) Bool() bool      { return v.b }
func (v Value) Int() int64      { return v.i }
func (v Value) Float() float64  { return v.f }
func (v Value) Time() time.Time { return v.t }

// Text returns the canonical textual representation of the value: ISO
// 8601 for date/datetime, minimal decimal form for float (xs:decimal
// forbids exponents), "true"/"false" for boolean. The same value always
// serializes identically. Null values return the empty string.
func (v Value) Text() string {
	if v.null {
		return ""
	}
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindDateTime:
		return v.t.Format("2006-01-02T15:04:05")
	default:
		return v.s
	}
}

// Native returns the value as the JSON-native type used for row storage:
// bool, int64, float64, string, or nil for null.
func (v Value) Native() interface{} {
	if v.null {
		return nil
	}
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	default:
		return v.Text()
	}
}

// MatchesKind reports whether raw parses as the given kind. Used by
// inference to find the narrowest candidate covering every value.
func MatchesKind(kind Kind, raw string) bool {
	_, err := Parse(kind, raw)
	return err == nil
}

// Parse coerces raw text to a Value of the given kind. Empty input is
// the null value of that kind. A cell that cannot be coerced returns
// ErrSchemaMismatch; the importer handles it locally via the string
// fallback and it never propagates.
func Parse(kind Kind, raw string) (Value, error) {
	if raw == "" {
		return Null(kind), nil
	}
	switch kind {
	case KindBool:
		if b, ok := parseBool(raw); ok {
			return BoolValue(b), nil
		}
	case KindInt:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return IntValue(i), nil
		}
	case KindFloat:
		// NaN/Inf spellings are not tabular numbers
		if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return FloatValue(f), nil
		}
	case KindDate:
		for _, layout := range DateFormats {
			if t, err := time.Parse(layout, raw); err == nil {
				return DateValue(t), nil
			}
		}
	case KindDateTime:
		for _, layout := range DateTimeFormats {
			if t, err := time.Parse(layout, raw); err == nil {
				return DateTimeValue(t), nil
			}
		}
	default:
		return StringValue(raw), nil
	}
	return Value{}, errors.Wrapf(errors.ErrSchemaMismatch, "%q is not a valid %s", raw, kind)
}

// parseBool accepts true/false in any case plus the 0/1 spellings the
// source data commonly uses for flags.
func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}

// FromNative rebuilds a Value of the given kind from the JSON-native
// representation produced by Native(). Unknown shapes degrade to string.
func FromNative(kind Kind, native interface{}) Value {
	if native == nil {
		return Null(kind)
	}
	switch n := native.(type) {
	case bool:
		if kind == KindBool {
			return BoolValue(n)
		}
	case int64:
		if kind == KindInt {
			return IntValue(n)
		}
	case float64:
		switch kind {
		case KindInt:
			return IntValue(int64(n))
		case KindFloat:
			return FloatValue(n)
		}
	case string:
		if v, err := Parse(kind, n); err == nil {
			return v
		}
		return StringValue(n)
	}
	if v, err := Parse(kind, toString(native)); err == nil {
		return v
	}
	return StringValue(toString(native))
}

func toString(native interface{}) string {
	switch n := native.(type) {
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return ""
	}
}
