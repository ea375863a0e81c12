package stats

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Table is a flat play-by-play table. Rows keep the published order and
// every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.Columns) }

// Row returns row i keyed by column name.
func (t *Table) Row(i int) map[string]string {
	m := make(map[string]string, len(t.Columns))
	for j, c := range t.Columns {
		m[c] = t.Rows[i][j]
	}
	return m
}

// ParseTable extracts the first table of an HTML document and flattens its
// two-level header into the inner level.
//
// The returned error is a plain description; callers wrap it in ParseError.
func ParseTable(r io.Reader) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no table found")
	}
	return parseTable(table)
}

// ParseTableID is ParseTable for the table with the given id. Tables the
// site ships inside HTML comments, rendered client side, are found too.
func ParseTableID(r io.Reader, id string) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	if table := doc.Find("table#" + id).First(); table.Length() > 0 {
		return parseTable(table)
	}

	marker := `id="` + id + `"`
	var found *goquery.Selection
	doc.Find("*").Contents().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := s.Nodes[0]
		if n.Type != html.CommentNode || !strings.Contains(n.Data, marker) {
			return true
		}
		inner, err := goquery.NewDocumentFromReader(strings.NewReader(n.Data))
		if err != nil {
			return true
		}
		if table := inner.Find("table#" + id).First(); table.Length() > 0 {
			found = table
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("no table with id %q found", id)
	}
	return parseTable(found)
}

func parseTable(table *goquery.Selection) (*Table, error) {
	headers, body := splitRows(table)
	if len(headers) < 2 {
		return nil, fmt.Errorf("expected a two-level header, found %d header row(s)", len(headers))
	}

	inner := expandRow(headers[len(headers)-1])
	width := len(inner)
	for _, h := range headers[:len(headers)-1] {
		width = max(width, len(expandRow(h)))
	}
	if width == 0 {
		return nil, fmt.Errorf("header has no columns")
	}
	for len(inner) < width {
		inner = append(inner, "")
	}

	t := &Table{Columns: uniqueColumns(inner)}
	for _, tr := range body {
		cells := expandRow(tr)
		if len(cells) == 0 {
			continue
		}
		row := make([]string, width)
		copy(row, cells)
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("table has no rows")
	}
	return t, nil
}

// splitRows separates header rows from body rows. Without a thead, leading
// rows made only of th cells are headers.
func splitRows(table *goquery.Selection) (headers, body []*goquery.Selection) {
	table.Find("thead").First().ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
		headers = append(headers, tr)
	})

	var rows []*goquery.Selection
	table.ChildrenFiltered("tbody").ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, tr)
	})
	table.ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, tr)
	})

	if len(headers) == 0 {
		i := 0
		for ; i < len(rows); i++ {
			cells := rows[i].ChildrenFiltered("th,td")
			if cells.Length() == 0 || cells.Length() != rows[i].ChildrenFiltered("th").Length() {
				break
			}
		}
		headers, rows = rows[:i], rows[i:]
	}
	return headers, rows
}

// maxColspan is the largest colspan browsers honor.
const maxColspan = 1000

func expandRow(tr *goquery.Selection) []string {
	var out []string
	tr.ChildrenFiltered("th,td").Each(func(_ int, cell *goquery.Selection) {
		text := strings.Join(strings.Fields(cell.Text()), " ")
		span := 1
		if v, ok := cell.Attr("colspan"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 1 {
				span = min(n, maxColspan)
			}
		}
		for range span {
			out = append(out, text)
		}
	})
	return out
}

func uniqueColumns(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	next := make(map[string]int, len(names))
	for i, base := range names {
		if base == "" {
			base = "Unnamed: " + strconv.Itoa(i)
		}
		name := base
		for used[name] {
			next[base]++
			name = base + "." + strconv.Itoa(next[base])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
