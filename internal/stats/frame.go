package stats

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Table operations.
const (
	OpDescribe = "describe"
	OpSort     = "sort"
	OpFilter   = "filter"
	OpSelect   = "select"
	OpHead     = "head"
)

// Ops lists the operations Query accepts.
var Ops = []string{OpDescribe, OpSort, OpFilter, OpSelect, OpHead}

// Comparators lists the filter comparators Query accepts. "in" takes a
// comma separated value.
var Comparators = []string{"==", "!=", ">", ">=", "<", "<=", "in"}

const defaultHead = 10

// Query is one operation over a table.
type Query struct {
	Op         string
	Column     string
	Columns    []string
	Comparator string
	Value      string
	Descending bool
	// Limit caps the rows returned. Zero keeps all rows, except for head.
	Limit int
}

// Query runs q over t and returns a new table. Numeric columns are detected
// from their cells; blank cells count as missing.
func (t *Table) Query(q Query) (*Table, error) {
	if t.Width() == 0 {
		return nil, fmt.Errorf("table has no columns")
	}
	df := dataframe.LoadRecords(t.records(),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues([]string{"", "NA", "NaN"}),
	)
	if df.Err != nil {
		return nil, df.Err
	}

	switch q.Op {
	case OpDescribe:
		df = df.Describe()
	case OpSort:
		if err := t.hasColumns(q.Column); err != nil {
			return nil, err
		}
		order := dataframe.Sort(q.Column)
		if q.Descending {
			order = dataframe.RevSort(q.Column)
		}
		df = df.Arrange(order)
	case OpFilter:
		if err := t.hasColumns(q.Column); err != nil {
			return nil, err
		}
		f, err := filter(q)
		if err != nil {
			return nil, err
		}
		df = df.Filter(f)
	case OpSelect:
		if len(q.Columns) == 0 {
			return nil, fmt.Errorf("select needs at least one column")
		}
		if err := t.hasColumns(q.Columns...); err != nil {
			return nil, err
		}
		df = df.Select(q.Columns)
	case OpHead:
		if q.Limit <= 0 {
			q.Limit = defaultHead
		}
	default:
		return nil, fmt.Errorf("unknown operation %q, want one of %s", q.Op, strings.Join(Ops, ", "))
	}
	if df.Err != nil {
		return nil, df.Err
	}
	if q.Limit > 0 && df.Nrow() > q.Limit {
		idx := make([]int, q.Limit)
		for i := range idx {
			idx[i] = i
		}
		df = df.Subset(idx)
	}
	if df.Err != nil {
		return nil, df.Err
	}

	rec := df.Records()
	return &Table{Columns: rec[0], Rows: rec[1:]}, nil
}

func filter(q Query) (dataframe.F, error) {
	if !slices.Contains(Comparators, q.Comparator) {
		return dataframe.F{}, fmt.Errorf("unknown comparator %q, want one of %s", q.Comparator, strings.Join(Comparators, " "))
	}
	f := dataframe.F{Colname: q.Column, Comparator: series.Comparator(q.Comparator), Comparando: q.Value}
	if q.Comparator == "in" {
		var vals []string
		for _, v := range strings.Split(q.Value, ",") {
			vals = append(vals, strings.TrimSpace(v))
		}
		f.Comparando = vals
	}
	return f, nil
}

func (t *Table) hasColumns(names ...string) error {
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("column is required")
		}
		if !slices.Contains(t.Columns, n) {
			return fmt.Errorf("no column %q in %s", n, strings.Join(t.Columns, ", "))
		}
	}
	return nil
}

func (t *Table) records() [][]string {
	rec := make([][]string, 0, len(t.Rows)+1)
	rec = append(rec, t.Columns)
	return append(rec, t.Rows...)
}
