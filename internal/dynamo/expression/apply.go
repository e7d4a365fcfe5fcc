package expression

import (
	"fmt"

	"ruststack/internal/dynamo/attrvalue"
)

// ApplyUpdate applies a parsed update expression to an item and returns the
// resulting item plus the top-level attribute names the update touched. The
// input item is never mutated: every read of a document path resolves
// against the pre-update state, so "SET a = b, b = a" swaps cleanly. Clauses
// apply in a fixed order: SET, REMOVE, ADD, DELETE.
func ApplyUpdate(upd *UpdateExpression, item attrvalue.Item) (attrvalue.Item, []string, error) {
	snapshot := item.Clone()
	result := item.Clone()
	if result == nil {
		result = attrvalue.Item{}
	}

	var touched []string
	touch := func(p Path) {
		for _, name := range touched {
			if name == p.Top() {
				return
			}
		}
		touched = append(touched, p.Top())
	}

	for _, action := range upd.Sets {
		val, err := evalUpdateValue(action.Value, snapshot)
		if err != nil {
			return nil, nil, err
		}
		if err := setPath(result, action.Path, val); err != nil {
			return nil, nil, err
		}
		touch(action.Path)
	}
	for _, path := range upd.Removes {
		removePath(result, path)
		touch(path)
	}
	for _, action := range upd.Adds {
		if err := applyAdd(snapshot, result, action); err != nil {
			return nil, nil, err
		}
		touch(action.Path)
	}
	for _, action := range upd.Deletes {
		if err := applyDelete(snapshot, result, action); err != nil {
			return nil, nil, err
		}
		touch(action.Path)
	}
	return result, touched, nil
}

// evalUpdateValue resolves a SET operand tree against the pre-update
// snapshot.
func evalUpdateValue(node *UpdateValueNode, snapshot attrvalue.Item) (attrvalue.Value, error) {
	switch node.Kind {
	case UpdateValueLiteral:
		return node.Literal, nil
	case UpdateValuePath:
		val, ok := node.Path.Resolve(snapshot)
		if !ok {
			return attrvalue.Value{}, fmt.Errorf("document path %s does not exist", node.Path)
		}
		return val, nil
	case UpdateValueIfNotExists:
		if val, ok := node.Path.Resolve(snapshot); ok {
			return val, nil
		}
		return evalUpdateValue(node.Args[0], snapshot)
	case UpdateValueListAppend:
		left, err := evalUpdateValue(node.Args[0], snapshot)
		if err != nil {
			return attrvalue.Value{}, err
		}
		right, err := evalUpdateValue(node.Args[1], snapshot)
		if err != nil {
			return attrvalue.Value{}, err
		}
		if left.Type != attrvalue.TypeList || right.Type != attrvalue.TypeList {
			return attrvalue.Value{}, fmt.Errorf("list_append operands must both be lists")
		}
		joined := make([]attrvalue.Value, 0, len(left.List)+len(right.List))
		joined = append(joined, left.List...)
		joined = append(joined, right.List...)
		return attrvalue.List(joined...), nil
	case UpdateValueArith:
		left, err := evalUpdateValue(node.Args[0], snapshot)
		if err != nil {
			return attrvalue.Value{}, err
		}
		right, err := evalUpdateValue(node.Args[1], snapshot)
		if err != nil {
			return attrvalue.Value{}, err
		}
		return arith(left, node.Op, right)
	}
	return attrvalue.Value{}, fmt.Errorf("unknown update value node")
}

func arith(left attrvalue.Value, op string, right attrvalue.Value) (attrvalue.Value, error) {
	if left.Type != attrvalue.TypeNumber || right.Type != attrvalue.TypeNumber {
		return attrvalue.Value{}, fmt.Errorf("arithmetic operands must both be numbers, got %s %s %s", left.Type, op, right.Type)
	}
	a, err := left.Float()
	if err != nil {
		return attrvalue.Value{}, err
	}
	b, err := right.Float()
	if err != nil {
		return attrvalue.Value{}, err
	}
	if op == "+" {
		a.Add(a, b)
	} else {
		a.Sub(a, b)
	}
	return attrvalue.Number(attrvalue.FormatNumber(a)), nil
}

// applyAdd implements ADD: numeric addition for N, union for sets, and
// plain assignment when the attribute is absent. Other target types are a
// type mismatch.
func applyAdd(snapshot, result attrvalue.Item, action AddAction) error {
	operand := action.Value
	if operand.Type != attrvalue.TypeNumber && !operand.IsSet() {
		return fmt.Errorf("ADD supports only number and set operands, got %s", operand.Type)
	}
	cur, ok := action.Path.Resolve(snapshot)
	if !ok {
		return setPath(result, action.Path, operand.Clone())
	}
	switch {
	case cur.Type == attrvalue.TypeNumber && operand.Type == attrvalue.TypeNumber:
		sum, err := arith(cur, "+", operand)
		if err != nil {
			return err
		}
		return setPath(result, action.Path, sum)
	case cur.IsSet() && cur.Type == operand.Type:
		return setPath(result, action.Path, setUnion(cur, operand))
	default:
		return fmt.Errorf("ADD cannot combine %s with %s at %s", operand.Type, cur.Type, action.Path)
	}
}

// applyDelete removes operand elements from a set attribute. Deleting from
// an absent attribute is a no-op; deleting the last element removes the
// attribute entirely.
func applyDelete(snapshot, result attrvalue.Item, action DeleteAction) error {
	operand := action.Value
	if !operand.IsSet() {
		return fmt.Errorf("DELETE supports only set operands, got %s", operand.Type)
	}
	cur, ok := action.Path.Resolve(snapshot)
	if !ok {
		return nil
	}
	if !cur.IsSet() || cur.Type != operand.Type {
		return fmt.Errorf("DELETE cannot remove %s elements from %s at %s", operand.Type, cur.Type, action.Path)
	}
	remaining := setDifference(cur, operand)
	if setLen(remaining) == 0 {
		removePath(result, action.Path)
		return nil
	}
	return setPath(result, action.Path, remaining)
}

func setLen(v attrvalue.Value) int {
	switch v.Type {
	case attrvalue.TypeStringSet:
		return len(v.SS)
	case attrvalue.TypeNumberSet:
		return len(v.NS)
	case attrvalue.TypeBinarySet:
		return len(v.BS)
	}
	return 0
}

func setUnion(a, b attrvalue.Value) attrvalue.Value {
	out := a.Clone()
	switch a.Type {
	case attrvalue.TypeStringSet:
		for _, el := range b.SS {
			if !out.Contains(attrvalue.String(el)) {
				out.SS = append(out.SS, el)
			}
		}
	case attrvalue.TypeNumberSet:
		for _, el := range b.NS {
			if !out.Contains(attrvalue.Number(el)) {
				out.NS = append(out.NS, el)
			}
		}
	case attrvalue.TypeBinarySet:
		for _, el := range b.BS {
			if !out.Contains(attrvalue.Binary(el)) {
				out.BS = append(out.BS, append([]byte(nil), el...))
			}
		}
	}
	return out
}

func setDifference(a, b attrvalue.Value) attrvalue.Value {
	out := attrvalue.Value{Type: a.Type}
	switch a.Type {
	case attrvalue.TypeStringSet:
		for _, el := range a.SS {
			if !b.Contains(attrvalue.String(el)) {
				out.SS = append(out.SS, el)
			}
		}
	case attrvalue.TypeNumberSet:
		for _, el := range a.NS {
			if !b.Contains(attrvalue.Number(el)) {
				out.NS = append(out.NS, el)
			}
		}
	case attrvalue.TypeBinarySet:
		for _, el := range a.BS {
			if !b.Contains(attrvalue.Binary(el)) {
				out.BS = append(out.BS, append([]byte(nil), el...))
			}
		}
	}
	return out
}

// setPath writes a value at a document path. Intermediate segments must
// already exist and be map-typed; only the leaf is created.
func setPath(item attrvalue.Item, path Path, val attrvalue.Value) error {
	if len(path.Segments) == 1 {
		item[path.Top()] = val
		return nil
	}
	cur, ok := item[path.Top()]
	if !ok || cur.Type != attrvalue.TypeMap {
		return fmt.Errorf("document path %s is invalid: %s is not a map", path, path.Top())
	}
	m := cur.Map
	for _, seg := range path.Segments[1 : len(path.Segments)-1] {
		next, ok := m[seg]
		if !ok || next.Type != attrvalue.TypeMap {
			return fmt.Errorf("document path %s is invalid: %s is not a map", path, seg)
		}
		m = next.Map
	}
	m[path.Segments[len(path.Segments)-1]] = val
	return nil
}

// removePath deletes the attribute at a path. Paths that do not resolve are
// left alone.
func removePath(item attrvalue.Item, path Path) {
	if len(path.Segments) == 1 {
		delete(item, path.Top())
		return
	}
	cur, ok := item[path.Top()]
	if !ok || cur.Type != attrvalue.TypeMap {
		return
	}
	m := cur.Map
	for _, seg := range path.Segments[1 : len(path.Segments)-1] {
		next, ok := m[seg]
		if !ok || next.Type != attrvalue.TypeMap {
			return
		}
		m = next.Map
	}
	delete(m, path.Segments[len(path.Segments)-1])
}
