package service

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/ipvc/tabx/errors"
	"github.com/ipvc/tabx/xquery"
)

// QueryRequest is the shape transports hand to the query layer. Path
// and ForPath are mutually exclusive: Path runs a plain path
// expression, ForPath runs the FLWOR pipeline with the optional
// condition and projection.
type QueryRequest struct {
	DatasetID      string `json:"dataset_id"`
	Path           string `json:"path,omitempty"`
	ForPath        string `json:"for_path,omitempty"`
	WhereCondition string `json:"where_condition,omitempty"`
	ReturnField    string `json:"return_field,omitempty"`
	Format         string `json:"format,omitempty"`
}

// QueryResponse carries query results in the requested format: dict
// entries, text strings, or a single integer for count.
type QueryResponse struct {
	DatasetName string      `json:"dataset_name"`
	Query       string      `json:"query"`
	Count       int         `json:"count"`
	Results     interface{} `json:"results"`
}

// Query evaluates a path or FLWOR query against the dataset's cached
// XML parse.
func (s *Service) Query(req QueryRequest) (*QueryResponse, error) {
	ds, err := s.store.GetByID(req.DatasetID)
	if err != nil {
		return nil, err
	}
	tree, err := s.tree(ds)
	if err != nil {
		return nil, err
	}

	var (
		nodes  []int
		source string
		isText bool
		format = req.Format
	)
	switch {
	case req.Path != "" && req.ForPath != "":
		return nil, errors.NewInvalidQuery("path and for_path are mutually exclusive")
	case req.Path != "":
		q, err := xquery.Parse(req.Path)
		if err != nil {
			return nil, err
		}
		nodes = q.Select(tree)
		source = q.Source()
		isText = q.IsText()
		if q.IsCount() && format == "" {
			format = xquery.FormatCount
		}
	case req.ForPath != "":
		nodes, err = xquery.Execute(tree, req.ForPath, req.WhereCondition, req.ReturnField)
		if err != nil {
			return nil, err
		}
		source = req.ForPath
	default:
		return nil, errors.NewInvalidQuery("one of path or for_path is required")
	}

	if format == "" {
		format = xquery.FormatDict
	}
	resp := &QueryResponse{DatasetName: ds.Name, Query: source, Count: len(nodes)}
	switch format {
	case xquery.FormatCount:
		resp.Results = len(nodes)
	case xquery.FormatText:
		resp.Results = xquery.ProjectText(tree, nodes)
	case xquery.FormatDict:
		if isText {
			resp.Results = xquery.ProjectText(tree, nodes)
		} else {
			resp.Results = xquery.ProjectDict(tree, nodes)
		}
	default:
		return nil, errors.NewInvalidQuery("unknown output format %q", format)
	}
	return resp, nil
}

// AggregateRequest asks for one fold over a field path.
type AggregateRequest struct {
	DatasetID string `json:"dataset_id"`
	Field     string `json:"field"`
	Operation string `json:"operation"`
}

// AggregateResponse carries the fold result; a null result is the
// defined no-data outcome.
type AggregateResponse struct {
	Field     string   `json:"field"`
	Operation string   `json:"operation"`
	Result    *float64 `json:"result"`
}

// Aggregate folds a field's values across the dataset.
func (s *Service) Aggregate(req AggregateRequest) (*AggregateResponse, error) {
	ds, err := s.store.GetByID(req.DatasetID)
	if err != nil {
		return nil, err
	}
	tree, err := s.tree(ds)
	if err != nil {
		return nil, err
	}

	path := req.Field
	if path == "" {
		return nil, errors.NewInvalidQuery("aggregate field is required")
	}
	if path[0] != '/' {
		path = "//" + path
	}
	result, err := xquery.Aggregate(tree, path, req.Operation)
	if err != nil {
		return nil, err
	}
	return &AggregateResponse{Field: req.Field, Operation: req.Operation, Result: result}, nil
}

// GroupByRequest asks for a partition of records by one field, with an
// optional per-group aggregate.
type GroupByRequest struct {
	DatasetID      string `json:"dataset_id"`
	GroupField     string `json:"group_field"`
	AggregateField string `json:"aggregate_field,omitempty"`
	Operation      string `json:"operation,omitempty"`
}

// GroupByResponse maps group keys to their per-group figures. Results
// marshals as a JSON object preserving first-seen group order.
type GroupByResponse struct {
	GroupedBy string       `json:"grouped_by"`
	Results   GroupResults `json:"results"`
}

// GroupResult is one group's figures. AggregateKey names the optional
// aggregate entry in the marshaled form, e.g. "Area_sum".
type GroupResult struct {
	Key          string
	Count        int
	AggregateKey string
	Aggregate    *float64
}

// GroupResults is an insertion-ordered mapping of group key to group
// figures.
type GroupResults []GroupResult

// MarshalJSON renders the groups as a single JSON object in order.
func (g GroupResults) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, group := range g {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(group.Key)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteString(`:{"count":`)
		b.WriteString(strconv.Itoa(group.Count))
		if group.AggregateKey != "" {
			agg, err := json.Marshal(group.Aggregate)
			if err != nil {
				return nil, err
			}
			key, err = json.Marshal(group.AggregateKey)
			if err != nil {
				return nil, err
			}
			b.WriteByte(',')
			b.Write(key)
			b.WriteByte(':')
			b.Write(agg)
		}
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// GroupBy partitions the dataset's records by a field's text value.
func (s *Service) GroupBy(req GroupByRequest) (*GroupByResponse, error) {
	ds, err := s.store.GetByID(req.DatasetID)
	if err != nil {
		return nil, err
	}
	tree, err := s.tree(ds)
	if err != nil {
		return nil, err
	}

	groups, err := xquery.GroupBy(tree, req.GroupField, req.AggregateField, req.Operation)
	if err != nil {
		return nil, err
	}

	aggKey := ""
	if req.AggregateField != "" {
		aggKey = req.AggregateField + "_" + req.Operation
	}
	resp := &GroupByResponse{GroupedBy: req.GroupField, Results: make(GroupResults, 0, len(groups))}
	for _, g := range groups {
		resp.Results = append(resp.Results, GroupResult{
			Key:          g.Key,
			Count:        g.Count,
			AggregateKey: aggKey,
			Aggregate:    g.Aggregate,
		})
	}
	return resp, nil
}
