package xquery

import (
	"math"
	"strconv"

	"github.com/ipvc/tabx/errors"
)

// Output formats for path query results.
const (
	FormatDict  = "dict"
	FormatText  = "text"
	FormatCount = "count"
)

// Aggregate operations.
const (
	OpSum   = "sum"
	OpAvg   = "avg"
	OpMin   = "min"
	OpMax   = "max"
	OpCount = "count"
)

// Execute runs the FLWOR-shaped pipeline: evaluate forPath to a node
// sequence, keep the nodes satisfying whereCondition, then project
// returnField (or the node itself when empty). The three stages always
// run in that fixed order and preserve input order.
func Execute(t *Tree, forPath, whereCondition, returnField string) ([]int, error) {
	q, err := Parse(forPath)
	if err != nil {
		return nil, err
	}
	nodes := q.Select(t)

	if whereCondition != "" {
		cond, err := ParseCondition(whereCondition)
		if err != nil {
			return nil, err
		}
		var kept []int
		for _, n := range nodes {
			if cond.Match(t, n) {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}

	if returnField != "" {
		var projected []int
		for _, n := range nodes {
			if c, ok := t.Child(n, returnField); ok {
				projected = append(projected, c)
			}
		}
		nodes = projected
	}
	return nodes, nil
}

// Aggregate evaluates fieldPath and folds the matched values with the
// given operation. Non-numeric values are skipped for sum/avg/min/max;
// count counts non-nil matched nodes regardless of parseability. A nil
// result means no numeric data was found, a defined outcome rather
// than an error.
func Aggregate(t *Tree, fieldPath, operation string) (*float64, error) {
	q, err := Parse(fieldPath)
	if err != nil {
		return nil, err
	}
	nodes := q.Select(t)

	if operation == OpCount {
		n := 0
		for _, id := range nodes {
			if !t.IsNil(id) {
				n++
			}
		}
		res := float64(n)
		return &res, nil
	}

	var nums []float64
	for _, id := range nodes {
		if t.IsNil(id) {
			continue
		}
		if f, err := strconv.ParseFloat(t.Text(id), 64); err == nil {
			nums = append(nums, f)
		}
	}
	return fold(operation, nums)
}

func fold(operation string, nums []float64) (*float64, error) {
	switch operation {
	case OpSum, OpAvg, OpMin, OpMax:
	default:
		return nil, errors.NewInvalidQuery("unknown aggregate operation %q", operation)
	}
	if len(nums) == 0 {
		return nil, nil
	}
	var res float64
	switch operation {
	case OpSum:
		for _, f := range nums {
			res += f
		}
	case OpAvg:
		for _, f := range nums {
			res += f
		}
		res /= float64(len(nums))
	case OpMin:
		res = math.Inf(1)
		for _, f := range nums {
			res = math.Min(res, f)
		}
	case OpMax:
		res = math.Inf(-1)
		for _, f := range nums {
			res = math.Max(res, f)
		}
	}
	return &res, nil
}

// Group is one group-by partition. Aggregate is nil when no aggregate
// was requested or no numeric data fell in the group.
type Group struct {
	Key       string
	Count     int
	Aggregate *float64
}

// GroupBy partitions the tree's record elements by the text of
// groupField, counting each partition and optionally folding
// aggregateField with operation per group. Group order is first-seen
// insertion order for determinism. Records lacking the group field are
// skipped.
func GroupBy(t *Tree, groupField, aggregateField, operation string) ([]Group, error) {
	if groupField == "" {
		return nil, errors.NewInvalidQuery("group field is required")
	}
	if (aggregateField == "") != (operation == "") {
		return nil, errors.NewInvalidQuery("aggregate field and operation must be given together")
	}

	q, err := Parse("//record")
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var groups []Group
	values := make(map[string][]float64)
	for _, rec := range q.Select(t) {
		g, ok := t.Child(rec, groupField)
		if !ok {
			continue
		}
		key := t.Text(g)
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Count++

		if aggregateField != "" {
			if a, ok := t.Child(rec, aggregateField); ok && !t.IsNil(a) {
				if f, err := strconv.ParseFloat(t.Text(a), 64); err == nil {
					values[key] = append(values[key], f)
				} else if operation == OpCount {
					values[key] = append(values[key], 0)
				}
			}
		}
	}

	if aggregateField != "" {
		for i := range groups {
			nums := values[groups[i].Key]
			if operation == OpCount {
				n := float64(len(nums))
				groups[i].Aggregate = &n
				continue
			}
			agg, err := fold(operation, nums)
			if err != nil {
				return nil, err
			}
			groups[i].Aggregate = agg
		}
	}
	return groups, nil
}

// ProjectDict renders matched nodes as per-record mappings with a _tag
// discriminator. Container nodes map child names to their text (nil
// for nil-marked children); leaf nodes carry their text under _text.
func ProjectDict(t *Tree, nodes []int) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(nodes))
	for _, id := range nodes {
		m := map[string]interface{}{"_tag": t.Name(id)}
		children := t.Children(id)
		if len(children) == 0 {
			if t.IsNil(id) {
				m["_text"] = nil
			} else {
				m["_text"] = t.Text(id)
			}
		} else {
			for _, c := range children {
				if t.IsNil(c) {
					m[t.Name(c)] = nil
				} else {
					m[t.Name(c)] = t.Text(c)
				}
			}
		}
		out = append(out, m)
	}
	return out
}

// ProjectText renders matched nodes as their text contents.
func ProjectText(t *Tree, nodes []int) []string {
	out := make([]string, 0, len(nodes))
	for _, id := range nodes {
		out = append(out, t.Text(id))
	}
	return out
}
