package xquery

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// documentNode is the virtual context above the root element, so that
// an absolute /root step can match the root itself.
const documentNode = -1

// Select evaluates the compiled path against a tree and returns the
// matched node ids in document order. An empty result is a normal
// outcome, never an error.
func (q *Query) Select(t *Tree) []int {
	if q.root == noStep {
		return nil
	}
	return q.selectFrom(t, []int{documentNode}, q.root)
}

// Match evaluates a standalone condition (ParseCondition) against one
// node.
func (q *Query) Match(t *Tree, node int) bool {
	if !q.hasCondition {
		return true
	}
	ctx := evalContext{tree: t, node: node, pos: 1, size: 1}
	return q.evalExpr(q.condition, ctx).truthy()
}

// IsCount reports whether the query is a whole-document count() form.
func (q *Query) IsCount() bool { return q.count }

// IsText reports whether the path ends in a text() step.
func (q *Query) IsText() bool {
	if q.root == noStep {
		return false
	}
	sid := q.root
	for q.steps[sid].next != noStep {
		sid = q.steps[sid].next
	}
	return q.steps[sid].axis == axisText
}

func (q *Query) selectFrom(t *Tree, current []int, sid int) []int {
	for sid != noStep {
		st := q.steps[sid]
		var candidates []int
		switch st.axis {
		case axisChild:
			for _, n := range current {
				if n == documentNode {
					if t.Name(t.Root()) == st.name {
						candidates = append(candidates, t.Root())
					}
					continue
				}
				for _, c := range t.Children(n) {
					if t.Name(c) == st.name {
						candidates = append(candidates, c)
					}
				}
			}
		case axisDescendant:
			for _, n := range current {
				if n == documentNode {
					for id := range t.nodes {
						if t.nodes[id].name == st.name {
							candidates = append(candidates, id)
						}
					}
					continue
				}
				candidates = append(candidates, q.descendants(t, n, st.name)...)
			}
		case axisSelf, axisText:
			candidates = current
		case axisPreceding:
			for _, n := range current {
				for id := 0; id < n; id++ {
					if t.nodes[id].name == st.name {
						candidates = append(candidates, id)
					}
				}
			}
		}
		candidates = dedupe(candidates)
		if len(st.preds) > 0 {
			candidates = q.applyPredicates(t, candidates, st.preds)
		}
		current = candidates
		sid = st.next
	}
	return current
}

func (q *Query) descendants(t *Tree, id int, name string) []int {
	var out []int
	for _, c := range t.Children(id) {
		if t.Name(c) == name {
			out = append(out, c)
		}
		out = append(out, q.descendants(t, c, name)...)
	}
	return out
}

// applyPredicates filters candidates through each predicate in turn.
// Positions are assigned over the whole candidate sequence in document
// order and re-assigned after each predicate, matching successive
// filtering semantics. A predicate evaluating to a number selects by
// position: [2], [last()] and [position() mod 2] all mean
// position() = number.
func (q *Query) applyPredicates(t *Tree, candidates []int, preds []int) []int {
	for _, pred := range preds {
		var kept []int
		for i, n := range candidates {
			ctx := evalContext{tree: t, node: n, pos: i + 1, size: len(candidates)}
			v := q.evalExpr(pred, ctx)
			keep := v.truthy()
			if v.kind == numVal {
				keep = float64(ctx.pos) == v.num
			}
			if keep {
				kept = append(kept, n)
			}
		}
		candidates = kept
	}
	return candidates
}

func dedupe(ids []int) []int {
	if len(ids) < 2 {
		return ids
	}
	sort.Ints(ids)
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

type evalContext struct {
	tree      *Tree
	node      int
	pos, size int
}

type valueKind int

const (
	numVal valueKind = iota
	strVal
	boolVal
	nodesVal
)

type value struct {
	kind  valueKind
	num   float64
	str   string
	b     bool
	nodes []int
}

func (v value) truthy() bool {
	switch v.kind {
	case numVal:
		return v.num != 0 && !math.IsNaN(v.num)
	case strVal:
		return v.str != ""
	case boolVal:
		return v.b
	}
	return len(v.nodes) > 0
}

func (q *Query) evalExpr(id int, ctx evalContext) value {
	e := q.exprs[id]
	switch e.kind {
	case exprOr:
		return value{kind: boolVal, b: q.evalExpr(e.left, ctx).truthy() || q.evalExpr(e.right, ctx).truthy()}
	case exprAnd:
		return value{kind: boolVal, b: q.evalExpr(e.left, ctx).truthy() && q.evalExpr(e.right, ctx).truthy()}
	case exprNot:
		return value{kind: boolVal, b: !q.evalExpr(e.left, ctx).truthy()}
	case exprCmp:
		return value{kind: boolVal, b: q.compare(e.op, q.evalExpr(e.left, ctx), q.evalExpr(e.right, ctx), ctx.tree)}
	case exprMod:
		l := toNumber(q.evalExpr(e.left, ctx), ctx.tree)
		r := toNumber(q.evalExpr(e.right, ctx), ctx.tree)
		if math.IsNaN(l) || math.IsNaN(r) || r == 0 {
			return value{kind: numVal, num: math.NaN()}
		}
		return value{kind: numVal, num: math.Mod(l, r)}
	case exprNumber:
		return value{kind: numVal, num: e.num}
	case exprString:
		return value{kind: strVal, str: e.str}
	case exprLast:
		return value{kind: numVal, num: float64(ctx.size)}
	case exprPosition:
		return value{kind: numVal, num: float64(ctx.pos)}
	case exprCount:
		return value{kind: numVal, num: float64(len(q.evalPath(e, ctx)))}
	case exprContains:
		hay := toString(q.evalExpr(e.left, ctx), ctx.tree)
		needle := toString(q.evalExpr(e.right, ctx), ctx.tree)
		return value{kind: boolVal, b: strings.Contains(hay, needle)}
	case exprPath:
		return value{kind: nodesVal, nodes: q.evalPath(e, ctx)}
	case exprSelf:
		return value{kind: nodesVal, nodes: []int{ctx.node}}
	}
	return value{kind: boolVal}
}

func (q *Query) evalPath(e expr, ctx evalContext) []int {
	start := []int{ctx.node}
	if e.absolute {
		start = []int{documentNode}
	}
	return q.selectFrom(ctx.tree, start, e.path)
}

// compare applies XPath-style comparison: node sets compare
// existentially, and two scalars compare numerically when both parse
// as numbers, lexically otherwise.
// Nil-marked nodes never satisfy a comparison: null is distinct from
// the empty string and has no ordering.
func (q *Query) compare(op cmpOp, left, right value, t *Tree) bool {
	if left.kind == nodesVal && right.kind == nodesVal {
		for _, l := range left.nodes {
			if t.IsNil(l) {
				continue
			}
			for _, r := range right.nodes {
				if t.IsNil(r) {
					continue
				}
				if compareScalar(op, t.Text(l), t.Text(r)) {
					return true
				}
			}
		}
		return false
	}
	if left.kind == nodesVal {
		rs := toString(right, t)
		for _, l := range left.nodes {
			if t.IsNil(l) {
				continue
			}
			if compareScalar(op, t.Text(l), rs) {
				return true
			}
		}
		return false
	}
	if right.kind == nodesVal {
		ls := toString(left, t)
		for _, r := range right.nodes {
			if t.IsNil(r) {
				continue
			}
			if compareScalar(op, ls, t.Text(r)) {
				return true
			}
		}
		return false
	}
	return compareScalar(op, toString(left, t), toString(right, t))
}

func compareScalar(op cmpOp, left, right string) bool {
	lf, lerr := strconv.ParseFloat(strings.TrimSpace(left), 64)
	rf, rerr := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if lerr == nil && rerr == nil {
		switch op {
		case cmpEq:
			return lf == rf
		case cmpNeq:
			return lf != rf
		case cmpLt:
			return lf < rf
		case cmpLe:
			return lf <= rf
		case cmpGt:
			return lf > rf
		case cmpGe:
			return lf >= rf
		}
	}
	switch op {
	case cmpEq:
		return left == right
	case cmpNeq:
		return left != right
	case cmpLt:
		return left < right
	case cmpLe:
		return left <= right
	case cmpGt:
		return left > right
	case cmpGe:
		return left >= right
	}
	return false
}

func toNumber(v value, t *Tree) float64 {
	switch v.kind {
	case numVal:
		return v.num
	case strVal:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64); err == nil {
			return f
		}
	case boolVal:
		if v.b {
			return 1
		}
		return 0
	case nodesVal:
		if len(v.nodes) > 0 {
			if f, err := strconv.ParseFloat(t.Text(v.nodes[0]), 64); err == nil {
				return f
			}
		}
	}
	return math.NaN()
}

func toString(v value, t *Tree) string {
	switch v.kind {
	case numVal:
		if v.num == math.Trunc(v.num) && !math.IsInf(v.num, 0) && !math.IsNaN(v.num) {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case strVal:
		return v.str
	case boolVal:
		if v.b {
			return "true"
		}
		return "false"
	case nodesVal:
		if len(v.nodes) > 0 {
			return t.Text(v.nodes[0])
		}
	}
	return ""
}
