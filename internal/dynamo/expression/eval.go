package expression

import (
	"bytes"
	"strings"

	"ruststack/internal/dynamo/attrvalue"
)

// EvalCondition evaluates a parsed condition tree against an item. Missing
// attributes and type mismatches make the enclosing predicate false rather
// than failing the request, so evaluation itself cannot error.
func EvalCondition(node *ConditionNode, item attrvalue.Item) bool {
	switch node.Kind {
	case CondAnd:
		for _, c := range node.Children {
			if !EvalCondition(c, item) {
				return false
			}
		}
		return true
	case CondOr:
		for _, c := range node.Children {
			if EvalCondition(c, item) {
				return true
			}
		}
		return false
	case CondNot:
		return !EvalCondition(node.Children[0], item)
	case CondCompare:
		val, ok := node.Path.Resolve(item)
		if !ok {
			return false
		}
		return evalCompare(val, node.Op, node.Values[0])
	case CondBetween:
		val, ok := node.Path.Resolve(item)
		if !ok {
			return false
		}
		return evalBetween(val, node.Values[0], node.Values[1])
	case CondIn:
		val, ok := node.Path.Resolve(item)
		if !ok {
			return false
		}
		for _, candidate := range node.Values {
			if val.Equal(candidate) {
				return true
			}
		}
		return false
	case CondAttrExists:
		_, ok := node.Path.Resolve(item)
		return ok
	case CondAttrNotExists:
		_, ok := node.Path.Resolve(item)
		return !ok
	case CondAttrType:
		val, ok := node.Path.Resolve(item)
		return ok && string(val.Type) == node.Values[0].S
	case CondBeginsWith:
		val, ok := node.Path.Resolve(item)
		if !ok {
			return false
		}
		return evalBeginsWith(val, node.Values[0])
	case CondContains:
		val, ok := node.Path.Resolve(item)
		if !ok {
			return false
		}
		return val.Contains(node.Values[0])
	}
	return false
}

// evalCompare applies one comparator. Equality works across every type,
// ordering only within S, N and B pairs; a cross-type ordering comparison is
// false, and cross-type equality is simply "not equal".
func evalCompare(left attrvalue.Value, op string, right attrvalue.Value) bool {
	switch op {
	case "=":
		return left.Equal(right)
	case "<>":
		return !left.Equal(right)
	}
	cmp, ok := left.Compare(right)
	if !ok {
		return false
	}
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// evalBetween is inclusive on both bounds.
func evalBetween(val, lo, hi attrvalue.Value) bool {
	cl, ok := val.Compare(lo)
	if !ok || cl < 0 {
		return false
	}
	ch, ok := val.Compare(hi)
	return ok && ch <= 0
}

func evalBeginsWith(val, prefix attrvalue.Value) bool {
	switch {
	case val.Type == attrvalue.TypeString && prefix.Type == attrvalue.TypeString:
		return strings.HasPrefix(val.S, prefix.S)
	case val.Type == attrvalue.TypeBinary && prefix.Type == attrvalue.TypeBinary:
		return bytes.HasPrefix(val.B, prefix.B)
	}
	return false
}

// MatchKeyClause evaluates one key condition clause against a key attribute
// value, with the same comparison semantics as filter predicates.
func MatchKeyClause(clause KeyClause, val attrvalue.Value) bool {
	switch clause.Op {
	case "BETWEEN":
		return evalBetween(val, clause.Values[0], clause.Values[1])
	case "begins_with":
		return evalBeginsWith(val, clause.Values[0])
	default:
		return evalCompare(val, clause.Op, clause.Values[0])
	}
}

// Project builds a new item containing only the given paths. Paths that do
// not resolve are skipped; nested projections rebuild the enclosing maps.
func Project(item attrvalue.Item, paths []Path) attrvalue.Item {
	out := attrvalue.Item{}
	for _, p := range paths {
		val, ok := p.Resolve(item)
		if !ok {
			continue
		}
		if len(p.Segments) == 1 {
			out[p.Top()] = val.Clone()
			continue
		}
		cur := out
		for _, seg := range p.Segments[:len(p.Segments)-1] {
			next, ok := cur[seg]
			if !ok || next.Type != attrvalue.TypeMap {
				next = attrvalue.MapVal(map[string]attrvalue.Value{})
				cur[seg] = next
			}
			cur = next.Map
		}
		cur[p.Segments[len(p.Segments)-1]] = val.Clone()
	}
	return out
}
