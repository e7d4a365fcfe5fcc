// Package attrvalue models the DynamoDB attribute value: a tagged variant
// with ten cases and the comparison, equality and wire-encoding rules the
// expression engine builds on. Numbers are kept as decimal strings at rest
// and compared with arbitrary precision.
package attrvalue

import (
	"fmt"
	"math/big"
	"sort"
)

// Type is the two-letter (or shorter) wire tag of an attribute value.
type Type string

const (
	TypeString    Type = "S"
	TypeNumber    Type = "N"
	TypeBinary    Type = "B"
	TypeBool      Type = "BOOL"
	TypeNull      Type = "NULL"
	TypeList      Type = "L"
	TypeMap       Type = "M"
	TypeStringSet Type = "SS"
	TypeNumberSet Type = "NS"
	TypeBinarySet Type = "BS"
)

// numPrec is the mantissa precision used for number parsing and arithmetic.
// 128 bits covers the 38 significant decimal digits DynamoDB stores.
const numPrec = 128

// Value is one DynamoDB attribute value. Exactly the field selected by Type
// is meaningful; the zero Value is invalid.
type Value struct {
	Type Type

	S    string
	N    string
	B    []byte
	Bool bool
	List []Value
	Map  map[string]Value
	SS   []string
	NS   []string
	BS   [][]byte
}

// Item is a named collection of attribute values, the unit the item store
// and the expression engine operate on.
type Item map[string]Value

// Constructors. Engines build values through these so the tag and payload
// never disagree.

func String(s string) Value          { return Value{Type: TypeString, S: s} }
func Number(n string) Value          { return Value{Type: TypeNumber, N: n} }
func Binary(b []byte) Value          { return Value{Type: TypeBinary, B: b} }
func Boolean(b bool) Value           { return Value{Type: TypeBool, Bool: b} }
func Null() Value                    { return Value{Type: TypeNull} }
func List(vs ...Value) Value         { return Value{Type: TypeList, List: vs} }
func MapVal(m map[string]Value) Value { return Value{Type: TypeMap, Map: m} }
func StringSet(ss ...string) Value   { return Value{Type: TypeStringSet, SS: ss} }
func NumberSet(ns ...string) Value   { return Value{Type: TypeNumberSet, NS: ns} }
func BinarySet(bs ...[]byte) Value   { return Value{Type: TypeBinarySet, BS: bs} }

// IsSet reports whether the value is one of the three set types.
func (v Value) IsSet() bool {
	return v.Type == TypeStringSet || v.Type == TypeNumberSet || v.Type == TypeBinarySet
}

// IsKeyType reports whether the value has a type usable as a key attribute.
func (v Value) IsKeyType() bool {
	return v.Type == TypeString || v.Type == TypeNumber || v.Type == TypeBinary
}

// Float parses an N value with 128-bit precision.
func (v Value) Float() (*big.Float, error) {
	if v.Type != TypeNumber {
		return nil, fmt.Errorf("attribute value is %s, not N", v.Type)
	}
	return ParseNumber(v.N)
}

// ParseNumber parses a decimal string the way the engine treats N payloads.
func ParseNumber(s string) (*big.Float, error) {
	f, _, err := big.ParseFloat(s, 10, numPrec, big.ToNearestEven)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

// FormatNumber renders an arithmetic result back into the decimal-string
// form stored at rest.
func FormatNumber(f *big.Float) string {
	return f.Text('f', -1)
}

// NormalizeNumber maps numerically equal encodings ("1", "1.0", "+1") to one
// representative, used for set membership and key encoding.
func NormalizeNumber(s string) string {
	f, err := ParseNumber(s)
	if err != nil {
		return s
	}
	return FormatNumber(f)
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	out := v
	switch v.Type {
	case TypeBinary:
		out.B = append([]byte(nil), v.B...)
	case TypeList:
		out.List = make([]Value, len(v.List))
		for i, el := range v.List {
			out.List[i] = el.Clone()
		}
	case TypeMap:
		out.Map = make(map[string]Value, len(v.Map))
		for k, el := range v.Map {
			out.Map[k] = el.Clone()
		}
	case TypeStringSet:
		out.SS = append([]string(nil), v.SS...)
	case TypeNumberSet:
		out.NS = append([]string(nil), v.NS...)
	case TypeBinarySet:
		out.BS = make([][]byte, len(v.BS))
		for i, b := range v.BS {
			out.BS[i] = append([]byte(nil), b...)
		}
	}
	return out
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	if it == nil {
		return nil
	}
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports deep equality between two items.
func (it Item) Equal(other Item) bool {
	if len(it) != len(other) {
		return false
	}
	for k, v := range it {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// sortedKeys returns the map keys in lexicographic order, for deterministic
// walks over map-typed values.
func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
