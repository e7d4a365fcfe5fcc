package expression

import (
	"fmt"

	"ruststack/internal/dynamo/attrvalue"
)

// conditionFuncs are the predicate functions accepted inside condition and
// filter expressions. Function names are case-sensitive on the wire.
var conditionFuncs = map[string]CondKind{
	"attribute_exists":     CondAttrExists,
	"attribute_not_exists": CondAttrNotExists,
	"attribute_type":       CondAttrType,
	"begins_with":          CondBeginsWith,
	"contains":             CondContains,
}

var validTypeTags = map[string]struct{}{
	"S": {}, "N": {}, "B": {}, "BOOL": {}, "NULL": {},
	"L": {}, "M": {}, "SS": {}, "NS": {}, "BS": {},
}

type parser struct {
	toks []token
	pos  int
	ctx  Context
}

func newParser(expr string, ctx Context) (*parser, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks, ctx: ctx}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("expected %s but found %q at position %d", kind, t.text, t.pos)
	}
	return t, nil
}

func (p *parser) expectKeyword(word string) error {
	t := p.next()
	if !t.isKeyword(word) {
		return fmt.Errorf("expected %s but found %q at position %d", word, t.text, t.pos)
	}
	return nil
}

func (p *parser) atEOF() bool { return p.peek().kind == tokEOF }

// parsePath reads name ("." name)* with placeholder substitution.
func (p *parser) parsePath() (Path, error) {
	seg, err := p.parseSegment()
	if err != nil {
		return Path{}, err
	}
	path := Path{Segments: []string{seg}}
	for p.peek().kind == tokDot {
		p.next()
		seg, err := p.parseSegment()
		if err != nil {
			return Path{}, err
		}
		path.Segments = append(path.Segments, seg)
	}
	return path, nil
}

func (p *parser) parseSegment() (string, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		return t.text, nil
	case tokNameRef:
		return p.ctx.resolveName(t.text)
	default:
		return "", fmt.Errorf("expected attribute name but found %q at position %d", t.text, t.pos)
	}
}

// parseValueRef reads a :placeholder and resolves it.
func (p *parser) parseValueRef() (attrvalue.Value, error) {
	t, err := p.expect(tokValueRef)
	if err != nil {
		return attrvalue.Value{}, err
	}
	return p.ctx.resolveValue(t.text)
}

// ParseCondition parses a condition or filter expression. The two share one
// grammar: OR binds loosest, then AND, then NOT, with parentheses grouping.
func ParseCondition(expr string, ctx Context) (*ConditionNode, error) {
	p, err := newParser(expr, ctx)
	if err != nil {
		return nil, err
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		t := p.peek()
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	return node, nil
}

func (p *parser) parseOr() (*ConditionNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().isKeyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ConditionNode{Kind: CondOr, Children: []*ConditionNode{left, right}}
	}
	return left, nil
}

func (p *parser) parseAnd() (*ConditionNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().isKeyword("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ConditionNode{Kind: CondAnd, Children: []*ConditionNode{left, right}}
	}
	return left, nil
}

func (p *parser) parseNot() (*ConditionNode, error) {
	if p.peek().isKeyword("NOT") {
		p.next()
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ConditionNode{Kind: CondNot, Children: []*ConditionNode{child}}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (*ConditionNode, error) {
	t := p.peek()
	if t.kind == tokLParen {
		p.next()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return node, nil
	}
	if t.kind == tokIdent && p.toks[p.pos+1].kind == tokLParen {
		return p.parseFunction()
	}
	return p.parsePredicate()
}

func (p *parser) parseFunction() (*ConditionNode, error) {
	name := p.next()
	kind, ok := conditionFuncs[name.text]
	if !ok {
		if name.text == "size" {
			return nil, fmt.Errorf("size() is not supported in this expression at position %d", name.pos)
		}
		return nil, fmt.Errorf("unknown function %q at position %d", name.text, name.pos)
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	node := &ConditionNode{Kind: kind, Path: path}
	if kind != CondAttrExists && kind != CondAttrNotExists {
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		val, err := p.parseValueRef()
		if err != nil {
			return nil, err
		}
		if kind == CondAttrType {
			if val.Type != attrvalue.TypeString {
				return nil, fmt.Errorf("attribute_type expects a string type tag")
			}
			if _, ok := validTypeTags[val.S]; !ok {
				return nil, fmt.Errorf("attribute_type: unknown type tag %q", val.S)
			}
		}
		node.Values = []attrvalue.Value{val}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return node, nil
}

// parsePredicate handles the path-rooted leaf forms: comparison, BETWEEN and
// IN. The AND inside a BETWEEN belongs to the BETWEEN, not to a conjunction.
func (p *parser) parsePredicate() (*ConditionNode, error) {
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	t := p.next()
	switch {
	case t.kind == tokCompare:
		val, err := p.parseValueRef()
		if err != nil {
			return nil, err
		}
		return &ConditionNode{Kind: CondCompare, Path: path, Op: t.text, Values: []attrvalue.Value{val}}, nil
	case t.isKeyword("BETWEEN"):
		lo, err := p.parseValueRef()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseValueRef()
		if err != nil {
			return nil, err
		}
		return &ConditionNode{Kind: CondBetween, Path: path, Values: []attrvalue.Value{lo, hi}}, nil
	case t.isKeyword("IN"):
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		var vals []attrvalue.Value
		for {
			val, err := p.parseValueRef()
			if err != nil {
				return nil, err
			}
			vals = append(vals, val)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &ConditionNode{Kind: CondIn, Path: path, Values: vals}, nil
	default:
		return nil, fmt.Errorf("expected comparator, BETWEEN or IN but found %q at position %d", t.text, t.pos)
	}
}

// ParseKeyCondition parses a key condition: one or two clauses joined by a
// top-level AND. BETWEEN consumes its own AND, so "sk BETWEEN :a AND :b"
// stays a single clause.
func ParseKeyCondition(expr string, ctx Context) (*KeyCondition, error) {
	p, err := newParser(expr, ctx)
	if err != nil {
		return nil, err
	}
	first, err := p.parseKeyClause()
	if err != nil {
		return nil, err
	}
	cond := &KeyCondition{Clauses: []KeyClause{first}}
	if p.peek().isKeyword("AND") {
		p.next()
		second, err := p.parseKeyClause()
		if err != nil {
			return nil, err
		}
		cond.Clauses = append(cond.Clauses, second)
	}
	if !p.atEOF() {
		t := p.peek()
		if t.isKeyword("AND") {
			return nil, fmt.Errorf("key condition supports at most two clauses")
		}
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	return cond, nil
}

func (p *parser) parseKeyClause() (KeyClause, error) {
	if t := p.peek(); t.kind == tokIdent && p.toks[p.pos+1].kind == tokLParen {
		if t.text != "begins_with" {
			return KeyClause{}, fmt.Errorf("function %q is not allowed in a key condition", t.text)
		}
		p.next()
		p.next()
		path, err := p.parseKeyPath()
		if err != nil {
			return KeyClause{}, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return KeyClause{}, err
		}
		val, err := p.parseValueRef()
		if err != nil {
			return KeyClause{}, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return KeyClause{}, err
		}
		return KeyClause{Path: path, Op: "begins_with", Values: []attrvalue.Value{val}}, nil
	}

	path, err := p.parseKeyPath()
	if err != nil {
		return KeyClause{}, err
	}
	t := p.next()
	switch {
	case t.kind == tokCompare:
		if t.text == "<>" {
			return KeyClause{}, fmt.Errorf("key condition does not support <>")
		}
		val, err := p.parseValueRef()
		if err != nil {
			return KeyClause{}, err
		}
		return KeyClause{Path: path, Op: t.text, Values: []attrvalue.Value{val}}, nil
	case t.isKeyword("BETWEEN"):
		lo, err := p.parseValueRef()
		if err != nil {
			return KeyClause{}, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return KeyClause{}, err
		}
		hi, err := p.parseValueRef()
		if err != nil {
			return KeyClause{}, err
		}
		return KeyClause{Path: path, Op: "BETWEEN", Values: []attrvalue.Value{lo, hi}}, nil
	default:
		return KeyClause{}, fmt.Errorf("expected comparator or BETWEEN but found %q at position %d", t.text, t.pos)
	}
}

func (p *parser) parseKeyPath() (Path, error) {
	path, err := p.parsePath()
	if err != nil {
		return Path{}, err
	}
	if len(path.Segments) != 1 {
		return Path{}, fmt.Errorf("key condition paths must be top-level attribute names, got %q", path)
	}
	return path, nil
}

// ParseProjection parses a projection expression: a comma-separated list of
// document paths.
func ParseProjection(expr string, ctx Context) ([]Path, error) {
	p, err := newParser(expr, ctx)
	if err != nil {
		return nil, err
	}
	var paths []Path
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if !p.atEOF() {
		t := p.peek()
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	return paths, nil
}
