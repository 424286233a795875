package xquery

import (
	"strconv"

	"github.com/ipvc/tabx/errors"
)

// The parsed query is an arena of selector and predicate nodes linked
// by integer indices. Steps form singly linked chains through next;
// predicate expressions reference operands by expr id.

type stepAxis int

const (
	axisChild stepAxis = iota
	axisDescendant
	axisSelf      // .
	axisText      // text()
	axisPreceding // preceding::Name
)

type step struct {
	axis  stepAxis
	name  string
	preds []int
	next  int // next step id or noStep
}

const noStep = -1

type exprKind int

const (
	exprOr exprKind = iota
	exprAnd
	exprNot
	exprCmp
	exprMod
	exprNumber
	exprString
	exprLast
	exprPosition
	exprCount
	exprContains
	exprPath
	exprSelf
)

type cmpOp int

const (
	cmpEq cmpOp = iota
	cmpNeq
	cmpLt
	cmpLe
	cmpGt
	cmpGe
)

type expr struct {
	kind        exprKind
	op          cmpOp
	left, right int
	num         float64
	str         string
	path        int // first step id for exprPath/exprCount
	absolute    bool
}

// Query is a compiled path expression, optionally wrapped in a
// top-level count().
type Query struct {
	source       string
	steps        []step
	exprs        []expr
	root         int
	count        bool
	condition    int
	hasCondition bool
}

// Source returns the original query text.
func (q *Query) Source() string { return q.source }

// Parse compiles a path expression. Syntax errors surface as
// InvalidQuery; they are the only failure mode.
func Parse(query string) (*Query, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, q: &Query{source: query, root: noStep}}

	// count(//path) as a whole-query form
	if p.peek().kind == tokName && p.peek().text == "count" && p.at(1).kind == tokLParen {
		p.next()
		p.next()
		p.q.count = true
		p.q.root, err = p.parsePath(true)
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	} else {
		p.q.root, err = p.parsePath(true)
		if err != nil {
			return nil, err
		}
	}
	if p.peek().kind != tokEOF {
		return nil, errors.NewInvalidQuery("unexpected %q at position %d", p.peek().text, p.peek().pos)
	}
	return p.q, nil
}

// ParseCondition compiles a bare predicate expression (the grammar
// inside [...]) for use as a standalone filter condition.
func ParseCondition(condition string) (*Query, error) {
	toks, err := lex(condition)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, q: &Query{source: condition, root: noStep}}
	id, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, errors.NewInvalidQuery("unexpected %q at position %d", p.peek().text, p.peek().pos)
	}
	p.q.root = noStep
	p.q.condition = id
	p.q.hasCondition = true
	return p.q, nil
}

type parser struct {
	toks []token
	pos  int
	q    *Query
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) at(offset int) token {
	if p.pos+offset >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+offset]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) error {
	if p.peek().kind != kind {
		return errors.NewInvalidQuery("unexpected %q at position %d", p.peek().text, p.peek().pos)
	}
	p.next()
	return nil
}

func (p *parser) addStep(s step) int {
	p.q.steps = append(p.q.steps, s)
	return len(p.q.steps) - 1
}

func (p *parser) addExpr(e expr) int {
	p.q.exprs = append(p.q.exprs, e)
	return len(p.q.exprs) - 1
}

// parsePath parses a step chain and returns the first step id.
// Absolute paths must start with / or //; relative ones (inside
// predicates) must not.
func (p *parser) parsePath(absolute bool) (int, error) {
	axis := axisChild
	switch p.peek().kind {
	case tokSlash:
		if !absolute {
			return noStep, errors.NewInvalidQuery("unexpected %q at position %d", p.peek().text, p.peek().pos)
		}
		p.next()
	case tokDblSlash:
		if !absolute {
			return noStep, errors.NewInvalidQuery("unexpected %q at position %d", p.peek().text, p.peek().pos)
		}
		p.next()
		axis = axisDescendant
	default:
		if absolute {
			return noStep, errors.NewInvalidQuery("path must start with / or //, got %q at position %d", p.peek().text, p.peek().pos)
		}
	}

	return p.parseStepChain(axis)
}

func (p *parser) parseStepChain(axis stepAxis) (int, error) {
	first, err := p.parseStep(axis)
	if err != nil {
		return noStep, err
	}
	last := first
	for {
		switch p.peek().kind {
		case tokSlash:
			axis = axisChild
		case tokDblSlash:
			axis = axisDescendant
		default:
			return first, nil
		}
		p.next()
		id, err := p.parseStep(axis)
		if err != nil {
			return noStep, err
		}
		p.q.steps[last].next = id
		last = id
	}
}

func (p *parser) parseStep(axis stepAxis) (int, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokDot:
		p.next()
		return p.addStep(step{axis: axisSelf, next: noStep}), nil
	case tok.kind == tokName && tok.text == "text" && p.at(1).kind == tokLParen:
		p.next()
		p.next()
		if err := p.expect(tokRParen); err != nil {
			return noStep, err
		}
		return p.addStep(step{axis: axisText, next: noStep}), nil
	case tok.kind == tokName:
		p.next()
		name := tok.text
		if p.peek().kind == tokAxis {
			if name != "preceding" {
				return noStep, errors.NewInvalidQuery("unsupported axis %q at position %d", name, tok.pos)
			}
			p.next()
			target := p.peek()
			if target.kind != tokName {
				return noStep, errors.NewInvalidQuery("expected element name after preceding:: at position %d", target.pos)
			}
			p.next()
			axis = axisPreceding
			name = target.text
		}
		id := p.addStep(step{axis: axis, name: name, next: noStep})
		for p.peek().kind == tokLBracket {
			p.next()
			pred, err := p.parseOr()
			if err != nil {
				return noStep, err
			}
			if err := p.expect(tokRBracket); err != nil {
				return noStep, err
			}
			p.q.steps[id].preds = append(p.q.steps[id].preds, pred)
		}
		return id, nil
	}
	return noStep, errors.NewInvalidQuery("expected step, got %q at position %d", tok.text, tok.pos)
}

func (p *parser) parseOr() (int, error) {
	left, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for p.peek().kind == tokName && p.peek().text == "or" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		left = p.addExpr(expr{kind: exprOr, left: left, right: right})
	}
	return left, nil
}

func (p *parser) parseAnd() (int, error) {
	left, err := p.parseComparison()
	if err != nil {
		return 0, err
	}
	for p.peek().kind == tokName && p.peek().text == "and" {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return 0, err
		}
		left = p.addExpr(expr{kind: exprAnd, left: left, right: right})
	}
	return left, nil
}

func (p *parser) parseComparison() (int, error) {
	left, err := p.parseMod()
	if err != nil {
		return 0, err
	}
	var op cmpOp
	switch p.peek().kind {
	case tokEq:
		op = cmpEq
	case tokNeq:
		op = cmpNeq
	case tokLt:
		op = cmpLt
	case tokLe:
		op = cmpLe
	case tokGt:
		op = cmpGt
	case tokGe:
		op = cmpGe
	default:
		return left, nil
	}
	p.next()
	right, err := p.parseMod()
	if err != nil {
		return 0, err
	}
	return p.addExpr(expr{kind: exprCmp, op: op, left: left, right: right}), nil
}

func (p *parser) parseMod() (int, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	for p.peek().kind == tokName && p.peek().text == "mod" {
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return 0, err
		}
		left = p.addExpr(expr{kind: exprMod, left: left, right: right})
	}
	return left, nil
}

func (p *parser) parsePrimary() (int, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return 0, errors.NewInvalidQuery("bad number %q at position %d", tok.text, tok.pos)
		}
		return p.addExpr(expr{kind: exprNumber, num: f}), nil
	case tokString:
		p.next()
		return p.addExpr(expr{kind: exprString, str: tok.text}), nil
	case tokLParen:
		p.next()
		id, err := p.parseOr()
		if err != nil {
			return 0, err
		}
		if err := p.expect(tokRParen); err != nil {
			return 0, err
		}
		return id, nil
	case tokDot:
		// "." followed by a step separator is a relative path
		if p.at(1).kind == tokSlash || p.at(1).kind == tokDblSlash {
			return p.parsePathExpr(false)
		}
		p.next()
		return p.addExpr(expr{kind: exprSelf}), nil
	case tokSlash, tokDblSlash:
		return p.parsePathExpr(true)
	case tokName:
		switch tok.text {
		case "last":
			if p.at(1).kind == tokLParen {
				p.next()
				p.next()
				if err := p.expect(tokRParen); err != nil {
					return 0, err
				}
				return p.addExpr(expr{kind: exprLast}), nil
			}
		case "position":
			if p.at(1).kind == tokLParen {
				p.next()
				p.next()
				if err := p.expect(tokRParen); err != nil {
					return 0, err
				}
				return p.addExpr(expr{kind: exprPosition}), nil
			}
		case "not":
			if p.at(1).kind == tokLParen {
				p.next()
				p.next()
				inner, err := p.parseOr()
				if err != nil {
					return 0, err
				}
				if err := p.expect(tokRParen); err != nil {
					return 0, err
				}
				return p.addExpr(expr{kind: exprNot, left: inner}), nil
			}
		case "count":
			if p.at(1).kind == tokLParen {
				p.next()
				p.next()
				pathExpr, err := p.parsePathExpr(p.peek().kind == tokSlash || p.peek().kind == tokDblSlash)
				if err != nil {
					return 0, err
				}
				if err := p.expect(tokRParen); err != nil {
					return 0, err
				}
				pe := p.q.exprs[pathExpr]
				return p.addExpr(expr{kind: exprCount, path: pe.path, absolute: pe.absolute}), nil
			}
		case "contains":
			if p.at(1).kind == tokLParen {
				p.next()
				p.next()
				left, err := p.parsePrimary()
				if err != nil {
					return 0, err
				}
				if err := p.expect(tokComma); err != nil {
					return 0, err
				}
				right, err := p.parsePrimary()
				if err != nil {
					return 0, err
				}
				if err := p.expect(tokRParen); err != nil {
					return 0, err
				}
				return p.addExpr(expr{kind: exprContains, left: left, right: right}), nil
			}
		}
		return p.parsePathExpr(false)
	}
	return 0, errors.NewInvalidQuery("unexpected %q at position %d", tok.text, tok.pos)
}

// parsePathExpr parses a path used as a value inside a predicate.
func (p *parser) parsePathExpr(absolute bool) (int, error) {
	if p.peek().kind == tokDot {
		p.next()
		axis := axisChild
		switch p.peek().kind {
		case tokSlash:
		case tokDblSlash:
			axis = axisDescendant
		default:
			return 0, errors.NewInvalidQuery("unexpected %q at position %d", p.peek().text, p.peek().pos)
		}
		p.next()
		first, err := p.parseStepChain(axis)
		if err != nil {
			return 0, err
		}
		return p.addExpr(expr{kind: exprPath, path: first}), nil
	}
	first, err := p.parsePath(absolute)
	if err != nil {
		return 0, err
	}
	return p.addExpr(expr{kind: exprPath, path: first, absolute: absolute}), nil
}
