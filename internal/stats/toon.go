package stats

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Encode serializes t in the tabular TOON form:
//
//	[N]{col1,col2,...}:
//	  v1,v2,...
//
// Empty cells are written as null. Values are quoted only when they would
// otherwise be ambiguous.
func Encode(t *Table) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strconv.Itoa(len(t.Rows)))
	b.WriteString("]{")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(encodeKey(c))
	}
	b.WriteString("}:")
	for _, row := range t.Rows {
		b.WriteString("\n  ")
		for i, v := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(encodeValue(v))
		}
	}
	b.WriteByte('\n')
	return b.String()
}

var bareKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// encodeKey writes k bare when it is an identifier. null is quoted because
// a bare null decodes as an empty cell.
func encodeKey(k string) string {
	if k != "null" && bareKey.MatchString(k) {
		return k
	}
	return quote(k)
}

func encodeValue(v string) string {
	if v == "" {
		return "null"
	}
	if needsQuotes(v) {
		return quote(v)
	}
	return v
}

func needsQuotes(v string) bool {
	if v == "null" || v != strings.TrimSpace(v) || strings.HasPrefix(v, "-") && !isNumber(v) {
		return true
	}
	return strings.ContainsAny(v, ",:\"\\[]{}\n\r\t")
}

func isNumber(v string) bool {
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

var headerRe = regexp.MustCompile(`^\[(\d+)\]\{(.*)\}:$`)

// Decode parses the output of Encode.
func Decode(s string) (*Table, error) {
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		return nil, fmt.Errorf("toon: empty input")
	}
	m := headerRe.FindStringSubmatch(strings.TrimSpace(sc.Text()))
	if m == nil {
		return nil, fmt.Errorf("toon: malformed header %q", sc.Text())
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("toon: bad row count: %w", err)
	}
	cols, err := splitFields(m[2])
	if err != nil {
		return nil, fmt.Errorf("toon: header: %w", err)
	}

	t := &Table{Columns: cols, Rows: make([][]string, 0, n)}
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields, err := splitFields(strings.TrimPrefix(line, "  "))
		if err != nil {
			return nil, fmt.Errorf("toon: row %d: %w", len(t.Rows)+1, err)
		}
		if len(fields) != len(cols) {
			return nil, fmt.Errorf("toon: row %d has %d values, want %d", len(t.Rows)+1, len(fields), len(cols))
		}
		t.Rows = append(t.Rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("toon: %w", err)
	}
	if len(t.Rows) != n {
		return nil, fmt.Errorf("toon: declared %d rows, found %d", n, len(t.Rows))
	}
	return t, nil
}

// splitFields splits one comma-delimited line, honoring quotes.
func splitFields(line string) ([]string, error) {
	var (
		out []string
		cur strings.Builder
	)
	quoted, inQuotes, escaped := false, false, false
	flush := func() {
		v := cur.String()
		if !quoted && v == "null" {
			v = ""
		}
		out = append(out, v)
		cur.Reset()
		quoted = false
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			switch c {
			case 'n':
				cur.WriteByte('\n')
			case 'r':
				cur.WriteByte('\r')
			case 't':
				cur.WriteByte('\t')
			default:
				cur.WriteByte(c)
			}
			escaped = false
		case inQuotes && c == '\\':
			escaped = true
		case c == '"':
			inQuotes = !inQuotes
			quoted = true
		case !inQuotes && c == ',':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quote")
	}
	flush()
	return out, nil
}
