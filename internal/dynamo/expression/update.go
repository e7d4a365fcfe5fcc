package expression

import (
	"fmt"
	"strings"
)

var updateClauses = []string{"SET", "REMOVE", "ADD", "DELETE"}

// ParseUpdate parses an update expression. Clauses may appear in any order;
// SET may repeat and its actions concatenate, the other clauses may appear
// once. Clause keywords are recognized only where a new clause may start,
// never inside an action.
func ParseUpdate(expr string, ctx Context) (*UpdateExpression, error) {
	p, err := newParser(expr, ctx)
	if err != nil {
		return nil, err
	}
	upd := &UpdateExpression{}
	seen := map[string]bool{}
	for !p.atEOF() {
		t := p.next()
		if t.kind != tokIdent || !t.isAnyKeyword(updateClauses...) {
			return nil, fmt.Errorf("expected update clause keyword but found %q at position %d", t.text, t.pos)
		}
		clause := strings.ToUpper(t.text)
		if clause != "SET" && seen[clause] {
			return nil, fmt.Errorf("the %s clause may appear only once", clause)
		}
		seen[clause] = true
		if err := p.parseClauseActions(clause, upd); err != nil {
			return nil, err
		}
	}
	if len(upd.Sets)+len(upd.Removes)+len(upd.Adds)+len(upd.Deletes) == 0 {
		return nil, fmt.Errorf("update expression contains no actions")
	}
	return upd, nil
}

func (p *parser) parseClauseActions(clause string, upd *UpdateExpression) error {
	for {
		switch clause {
		case "SET":
			action, err := p.parseSetAction()
			if err != nil {
				return err
			}
			upd.Sets = append(upd.Sets, action)
		case "REMOVE":
			path, err := p.parsePath()
			if err != nil {
				return err
			}
			upd.Removes = append(upd.Removes, path)
		case "ADD":
			path, err := p.parsePath()
			if err != nil {
				return err
			}
			val, err := p.parseValueRef()
			if err != nil {
				return err
			}
			upd.Adds = append(upd.Adds, AddAction{Path: path, Value: val})
		case "DELETE":
			path, err := p.parsePath()
			if err != nil {
				return err
			}
			val, err := p.parseValueRef()
			if err != nil {
				return err
			}
			upd.Deletes = append(upd.Deletes, DeleteAction{Path: path, Value: val})
		}
		if p.peek().kind != tokComma {
			return nil
		}
		p.next()
	}
}

func (p *parser) parseSetAction() (SetAction, error) {
	path, err := p.parsePath()
	if err != nil {
		return SetAction{}, err
	}
	eq, err := p.expect(tokCompare)
	if err != nil {
		return SetAction{}, err
	}
	if eq.text != "=" {
		return SetAction{}, fmt.Errorf("expected = but found %q at position %d", eq.text, eq.pos)
	}
	value, err := p.parseUpdateValue()
	if err != nil {
		return SetAction{}, err
	}
	return SetAction{Path: path, Value: value}, nil
}

// parseUpdateValue reads value_atom (("+"|"-") value_atom)?. Arithmetic does
// not chain: a + b + c is rejected just like on the real service.
func (p *parser) parseUpdateValue() (*UpdateValueNode, error) {
	left, err := p.parseUpdateAtom()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokPlus && t.kind != tokMinus {
		return left, nil
	}
	p.next()
	right, err := p.parseUpdateAtom()
	if err != nil {
		return nil, err
	}
	if next := p.peek(); next.kind == tokPlus || next.kind == tokMinus {
		return nil, fmt.Errorf("only one arithmetic operator is allowed per SET value at position %d", next.pos)
	}
	return &UpdateValueNode{
		Kind: UpdateValueArith,
		Op:   t.text,
		Args: []*UpdateValueNode{left, right},
	}, nil
}

func (p *parser) parseUpdateAtom() (*UpdateValueNode, error) {
	t := p.peek()
	switch {
	case t.kind == tokValueRef:
		val, err := p.parseValueRef()
		if err != nil {
			return nil, err
		}
		return &UpdateValueNode{Kind: UpdateValueLiteral, Literal: val}, nil
	case t.kind == tokIdent && p.toks[p.pos+1].kind == tokLParen:
		return p.parseUpdateFunction()
	case t.kind == tokIdent || t.kind == tokNameRef:
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &UpdateValueNode{Kind: UpdateValuePath, Path: path}, nil
	default:
		return nil, fmt.Errorf("expected value placeholder, path or function but found %q at position %d", t.text, t.pos)
	}
}

func (p *parser) parseUpdateFunction() (*UpdateValueNode, error) {
	name := p.next()
	switch name.text {
	case "if_not_exists":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		fallback, err := p.parseUpdateValue()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &UpdateValueNode{Kind: UpdateValueIfNotExists, Path: path, Args: []*UpdateValueNode{fallback}}, nil
	case "list_append":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		first, err := p.parseUpdateAtom()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		second, err := p.parseUpdateAtom()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &UpdateValueNode{Kind: UpdateValueListAppend, Args: []*UpdateValueNode{first, second}}, nil
	case "size":
		return nil, fmt.Errorf("size() is not supported in this expression at position %d", name.pos)
	default:
		return nil, fmt.Errorf("unknown function %q at position %d", name.text, name.pos)
	}
}
