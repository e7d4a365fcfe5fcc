package expression

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNameRef
	tokValueRef
	tokCompare
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokPlus
	tokMinus
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return "name"
	case tokNameRef:
		return "attribute name placeholder"
	case tokValueRef:
		return "attribute value placeholder"
	case tokCompare:
		return "comparator"
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	case tokComma:
		return ","
	case tokDot:
		return "."
	case tokPlus:
		return "+"
	case tokMinus:
		return "-"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// isKeyword matches grammar keywords case-insensitively. Attribute names are
// matched whole, so a name like "settled" never triggers SET.
func (t token) isKeyword(word string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func (t token) isAnyKeyword(words ...string) bool {
	for _, w := range words {
		if t.isKeyword(w) {
			return true
		}
	}
	return false
}

// tokenize splits an expression into tokens. Expressions carry no literals:
// values always arrive through :placeholders, so the alphabet is small.
func tokenize(expr string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '.':
			toks = append(toks, token{tokDot, ".", i})
			i++
		case c == '+':
			toks = append(toks, token{tokPlus, "+", i})
			i++
		case c == '-':
			toks = append(toks, token{tokMinus, "-", i})
			i++
		case c == '=':
			toks = append(toks, token{tokCompare, "=", i})
			i++
		case c == '<':
			switch {
			case strings.HasPrefix(expr[i:], "<>"):
				toks = append(toks, token{tokCompare, "<>", i})
				i += 2
			case strings.HasPrefix(expr[i:], "<="):
				toks = append(toks, token{tokCompare, "<=", i})
				i += 2
			default:
				toks = append(toks, token{tokCompare, "<", i})
				i++
			}
		case c == '>':
			if strings.HasPrefix(expr[i:], ">=") {
				toks = append(toks, token{tokCompare, ">=", i})
				i += 2
			} else {
				toks = append(toks, token{tokCompare, ">", i})
				i++
			}
		case c == '#' || c == ':':
			start := i
			i++
			for i < len(expr) && isIdentChar(expr[i]) {
				i++
			}
			if i == start+1 {
				return nil, fmt.Errorf("dangling %q at position %d", string(c), start)
			}
			kind := tokNameRef
			if c == ':' {
				kind = tokValueRef
			}
			toks = append(toks, token{kind, expr[start:i], start})
		case isIdentStart(c):
			start := i
			for i < len(expr) && isIdentChar(expr[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, expr[start:i], start})
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", string(c), i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(expr)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
