package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

var operators = []struct {
	text string
	kind tokenKind
}{
	{"==", tokenEq},
	{"!=", tokenNeq},
	{"<=", tokenLte},
	{">=", tokenGte},
	{"&&", tokenAnd},
	{"||", tokenOr},
	{"<", tokenLt},
	{">", tokenGt},
	{"!", tokenNot},
	{"(", tokenLParen},
	{")", tokenRParen},
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
outer:
	for i < len(input) {
		ch := input[i]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			i++
			continue
		}
		for _, op := range operators {
			if strings.HasPrefix(input[i:], op.text) {
				tokens = append(tokens, token{kind: op.kind, raw: op.text})
				i += len(op.text)
				continue outer
			}
		}
		switch ch {
		case '=':
			return nil, errors.New("unexpected '='; use '=='")
		case '&':
			return nil, errors.New("unexpected '&'; use '&&'")
		case '|':
			return nil, errors.New("unexpected '|'; use '||'")
		case '"', '\'':
			end := i + 1
			for end < len(input) && input[end] != ch {
				if input[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(input) {
				return nil, errors.New("unterminated string literal")
			}
			body := input[i+1 : end]
			if ch == '\'' {
				body = strings.ReplaceAll(body, `"`, `\"`)
				body = strings.ReplaceAll(body, `\'`, `'`)
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return nil, fmt.Errorf("invalid string literal: %w", err)
			}
			tokens = append(tokens, token{kind: tokenString, raw: value})
			i = end + 1
			continue
		}

		start := i
		for i < len(input) && !strings.ContainsRune(" \t\r\n()!=<>&|\"'", rune(input[i])) {
			i++
		}
		raw := input[start:i]
		switch strings.ToLower(raw) {
		case "true", "false":
			tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
		case "null", "nil", "undefined":
			tokens = append(tokens, token{kind: tokenNull, raw: "null"})
		default:
			if _, err := strconv.ParseFloat(raw, 64); err == nil {
				tokens = append(tokens, token{kind: tokenNumber, raw: raw})
			} else {
				tokens = append(tokens, token{kind: tokenIdent, raw: raw})
			}
		}
	}
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
}

func parse(tokens []token) (node, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	p := &parser{tokens: tokens}
	out, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q", p.tokens[p.pos].raw)
	}
	return out, nil
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.match(tokenOr) {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.match(tokenAnd) {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.match(tokenNot) {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	if p.match(tokenLParen) {
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if !p.match(tokenRParen) {
			return nil, errors.New("missing closing ')'")
		}
		return inner, nil
	}

	if p.pos >= len(p.tokens) {
		return nil, errors.New("unexpected end of rule")
	}
	ident := p.tokens[p.pos]
	if ident.kind != tokenIdent {
		return nil, fmt.Errorf("expected identifier, got %q", ident.raw)
	}
	p.pos++

	for _, op := range []tokenKind{tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte} {
		if !p.match(op) {
			continue
		}
		lit, err := p.literal()
		if err != nil {
			return nil, err
		}
		if op != tokenEq && op != tokenNeq {
			if _, isNumber := lit.(float64); !isNumber {
				return nil, fmt.Errorf("ordering comparison on %q needs a number", ident.raw)
			}
		}
		return compareNode{path: ident.raw, op: op, literal: lit}, nil
	}
	return truthyNode{path: ident.raw}, nil
}

func (p *parser) literal() (any, error) {
	if p.pos >= len(p.tokens) {
		return nil, errors.New("missing literal")
	}
	tok := p.tokens[p.pos]
	p.pos++
	switch tok.kind {
	case tokenString, tokenIdent:
		// Bare words compare as strings.
		return tok.raw, nil
	case tokenNumber:
		return strconv.ParseFloat(tok.raw, 64)
	case tokenBool:
		return tok.raw == "true", nil
	case tokenNull:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected literal, got %q", tok.raw)
	}
}

func (p *parser) match(kind tokenKind) bool {
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == kind {
		p.pos++
		return true
	}
	return false
}
