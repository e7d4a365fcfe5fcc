// Package expression parses and evaluates the DynamoDB expression
// sublanguage: key conditions, condition and filter expressions, update
// expressions and projections. Parsing resolves #name and :value
// placeholders eagerly, so evaluation needs only the item.
package expression

import (
	"fmt"
	"strings"

	"ruststack/internal/dynamo/attrvalue"
)

// Context carries the per-request placeholder maps. Both maps are optional;
// referencing an undefined placeholder is a parse error.
type Context struct {
	Names  map[string]string
	Values map[string]attrvalue.Value
}

func (c Context) resolveName(ref string) (string, error) {
	name, ok := c.Names[ref]
	if !ok {
		return "", fmt.Errorf("expression attribute name %s is undefined", ref)
	}
	return name, nil
}

func (c Context) resolveValue(ref string) (attrvalue.Value, error) {
	v, ok := c.Values[ref]
	if !ok {
		return attrvalue.Value{}, fmt.Errorf("expression attribute value %s is undefined", ref)
	}
	return v, nil
}

// Path is a document path: one attribute name per segment, placeholders
// already substituted. Key attributes always use single-segment paths.
type Path struct {
	Segments []string
}

func (p Path) String() string { return strings.Join(p.Segments, ".") }

// Top returns the top-level attribute name the path starts at.
func (p Path) Top() string { return p.Segments[0] }

// Resolve walks the path through an item. Intermediate segments must be
// map-typed for the walk to continue.
func (p Path) Resolve(item attrvalue.Item) (attrvalue.Value, bool) {
	if item == nil || len(p.Segments) == 0 {
		return attrvalue.Value{}, false
	}
	cur, ok := item[p.Segments[0]]
	if !ok {
		return attrvalue.Value{}, false
	}
	for _, seg := range p.Segments[1:] {
		if cur.Type != attrvalue.TypeMap {
			return attrvalue.Value{}, false
		}
		cur, ok = cur.Map[seg]
		if !ok {
			return attrvalue.Value{}, false
		}
	}
	return cur, true
}

// CondKind discriminates condition tree nodes.
type CondKind int

const (
	CondAnd CondKind = iota
	CondOr
	CondNot
	CondCompare
	CondBetween
	CondIn
	CondAttrExists
	CondAttrNotExists
	CondAttrType
	CondBeginsWith
	CondContains
)

// ConditionNode is one node of a parsed condition or filter expression.
// Which fields are set depends on Kind: boolean connectives use Children,
// the leaf predicates use Path, Op and Values.
type ConditionNode struct {
	Kind     CondKind
	Children []*ConditionNode
	Path     Path
	Op       string
	Values   []attrvalue.Value
}

// KeyClause is one clause of a key condition: an equality or range
// restriction on a single key attribute.
type KeyClause struct {
	Path   Path
	Op     string // "=", "<", "<=", ">", ">=", "BETWEEN", "begins_with"
	Values []attrvalue.Value
}

// KeyCondition is a parsed key condition: one or two clauses joined by AND.
// Binding clauses to the partition and sort attributes happens against the
// table schema, outside the parser.
type KeyCondition struct {
	Clauses []KeyClause
}

// UpdateValueKind discriminates the value operands on the right-hand side of
// a SET action.
type UpdateValueKind int

const (
	UpdateValueLiteral UpdateValueKind = iota
	UpdateValuePath
	UpdateValueIfNotExists
	UpdateValueListAppend
	UpdateValueArith
)

// UpdateValueNode is a SET operand tree. Literal nodes hold the resolved
// attribute value; the function and arithmetic nodes hold their operands.
type UpdateValueNode struct {
	Kind    UpdateValueKind
	Literal attrvalue.Value
	Path    Path
	Op      string // "+" or "-" for UpdateValueArith
	Args    []*UpdateValueNode
}

// SetAction assigns the evaluated value expression to a document path.
type SetAction struct {
	Path  Path
	Value *UpdateValueNode
}

// AddAction applies numeric addition or set union at a path.
type AddAction struct {
	Path  Path
	Value attrvalue.Value
}

// DeleteAction removes elements from a set-typed attribute.
type DeleteAction struct {
	Path  Path
	Value attrvalue.Value
}

// UpdateExpression is the parsed form of an update expression, actions
// grouped by clause. Application order is fixed: SET, REMOVE, ADD, DELETE.
type UpdateExpression struct {
	Sets    []SetAction
	Removes []Path
	Adds    []AddAction
	Deletes []DeleteAction
}

// Paths returns every document path the update writes, in clause order.
func (u *UpdateExpression) Paths() []Path {
	out := make([]Path, 0, len(u.Sets)+len(u.Removes)+len(u.Adds)+len(u.Deletes))
	for _, a := range u.Sets {
		out = append(out, a.Path)
	}
	out = append(out, u.Removes...)
	for _, a := range u.Adds {
		out = append(out, a.Path)
	}
	for _, a := range u.Deletes {
		out = append(out, a.Path)
	}
	return out
}
