package attrvalue

import (
	"bytes"
	"fmt"
	"strings"
)

// Equal reports value equality. Values of different types are never equal,
// lists compare element-wise in order, maps compare entry-wise, and sets
// compare as sets: element order is irrelevant and numbers compare
// numerically.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeString:
		return v.S == other.S
	case TypeNumber:
		return numberEqual(v.N, other.N)
	case TypeBinary:
		return bytes.Equal(v.B, other.B)
	case TypeBool:
		return v.Bool == other.Bool
	case TypeNull:
		return true
	case TypeList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, el := range v.Map {
			oel, ok := other.Map[k]
			if !ok || !el.Equal(oel) {
				return false
			}
		}
		return true
	case TypeStringSet:
		return stringSetEqual(v.SS, other.SS)
	case TypeNumberSet:
		return stringSetEqual(normalizeNumbers(v.NS), normalizeNumbers(other.NS))
	case TypeBinarySet:
		return binarySetEqual(v.BS, other.BS)
	}
	return false
}

// Compare orders two values. Ordering is defined only between two strings
// (lexicographic by byte), two numbers (numeric) or two binaries (unsigned
// byte-wise); every other pairing reports ok=false and the caller treats the
// comparison as not satisfied.
func (v Value) Compare(other Value) (cmp int, ok bool) {
	if v.Type != other.Type {
		return 0, false
	}
	switch v.Type {
	case TypeString:
		return strings.Compare(v.S, other.S), true
	case TypeNumber:
		a, err := ParseNumber(v.N)
		if err != nil {
			return 0, false
		}
		b, err := ParseNumber(other.N)
		if err != nil {
			return 0, false
		}
		return a.Cmp(b), true
	case TypeBinary:
		return bytes.Compare(v.B, other.B), true
	}
	return 0, false
}

// Validate checks the structural rules enforced at the write boundary:
// numbers must parse, sets must be non-empty and duplicate-free, and nested
// containers must validate recursively.
func (v Value) Validate() error {
	switch v.Type {
	case TypeString, TypeBinary, TypeBool, TypeNull:
		return nil
	case TypeNumber:
		_, err := ParseNumber(v.N)
		return err
	case TypeList:
		for i, el := range v.List {
			if err := el.Validate(); err != nil {
				return fmt.Errorf("list element %d: %w", i, err)
			}
		}
		return nil
	case TypeMap:
		for _, k := range sortedKeys(v.Map) {
			if err := v.Map[k].Validate(); err != nil {
				return fmt.Errorf("map entry %q: %w", k, err)
			}
		}
		return nil
	case TypeStringSet:
		if len(v.SS) == 0 {
			return fmt.Errorf("string set must not be empty")
		}
		seen := make(map[string]struct{}, len(v.SS))
		for _, s := range v.SS {
			if _, dup := seen[s]; dup {
				return fmt.Errorf("duplicate string set element %q", s)
			}
			seen[s] = struct{}{}
		}
		return nil
	case TypeNumberSet:
		if len(v.NS) == 0 {
			return fmt.Errorf("number set must not be empty")
		}
		seen := make(map[string]struct{}, len(v.NS))
		for _, n := range v.NS {
			if _, err := ParseNumber(n); err != nil {
				return err
			}
			norm := NormalizeNumber(n)
			if _, dup := seen[norm]; dup {
				return fmt.Errorf("duplicate number set element %q", n)
			}
			seen[norm] = struct{}{}
		}
		return nil
	case TypeBinarySet:
		if len(v.BS) == 0 {
			return fmt.Errorf("binary set must not be empty")
		}
		seen := make(map[string]struct{}, len(v.BS))
		for _, b := range v.BS {
			if _, dup := seen[string(b)]; dup {
				return fmt.Errorf("duplicate binary set element")
			}
			seen[string(b)] = struct{}{}
		}
		return nil
	}
	return fmt.Errorf("unknown attribute value type %q", v.Type)
}

// Contains implements the membership half of the contains() function: set
// values check element membership, strings check substring, lists check
// element equality.
func (v Value) Contains(operand Value) bool {
	switch v.Type {
	case TypeString:
		if operand.Type != TypeString {
			return false
		}
		return strings.Contains(v.S, operand.S)
	case TypeStringSet:
		if operand.Type != TypeString {
			return false
		}
		for _, s := range v.SS {
			if s == operand.S {
				return true
			}
		}
		return false
	case TypeNumberSet:
		if operand.Type != TypeNumber {
			return false
		}
		for _, n := range v.NS {
			if numberEqual(n, operand.N) {
				return true
			}
		}
		return false
	case TypeBinarySet:
		if operand.Type != TypeBinary {
			return false
		}
		for _, b := range v.BS {
			if bytes.Equal(b, operand.B) {
				return true
			}
		}
		return false
	case TypeList:
		for _, el := range v.List {
			if el.Equal(operand) {
				return true
			}
		}
		return false
	}
	return false
}

func numberEqual(a, b string) bool {
	fa, err := ParseNumber(a)
	if err != nil {
		return a == b
	}
	fb, err := ParseNumber(b)
	if err != nil {
		return a == b
	}
	return fa.Cmp(fb) == 0
}

func normalizeNumbers(ns []string) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = NormalizeNumber(n)
	}
	return out
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
		if seen[s] < 0 {
			return false
		}
	}
	return true
}

func binarySetEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, el := range a {
		seen[string(el)]++
	}
	for _, el := range b {
		seen[string(el)]--
		if seen[string(el)] < 0 {
			return false
		}
	}
	return true
}
