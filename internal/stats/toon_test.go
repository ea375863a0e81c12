package stats

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/exp/golden"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	return &Table{
		Columns: []string{"Time", "Houston", "Unnamed: 2", "Score", "Unnamed: 4", "Orlando"},
		Rows: [][]string{
			{"12:00.0", "Jump ball: A. Sengun vs. W. Carter Jr.", "", "0-0", "", ""},
			{"11:41.0", "", "", "0-2", "+2", "P. Banchero makes 2-pt layup"},
			{"10:58.0", "J. Green misses 3-pt jump shot from 26 ft, rebound", "", "0-2", "", ""},
		},
	}
}

func TestEncodeGolden(t *testing.T) {
	golden.RequireEqual(t, []byte(Encode(sampleTable())))
}

func TestRoundTrip(t *testing.T) {
	t.Run("sample", func(t *testing.T) {
		in := sampleTable()
		out, err := Decode(Encode(in))
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("large page", func(t *testing.T) {
		in, err := ParseTable(strings.NewReader(pbpPage(8, 200)))
		require.NoError(t, err)
		out, err := Decode(Encode(in))
		require.NoError(t, err)
		require.Equal(t, in.Len(), out.Len())
		require.Equal(t, in.Width(), out.Width())
	})

	t.Run("awkward values", func(t *testing.T) {
		in := &Table{
			Columns: []string{"a b", "c"},
			Rows: [][]string{
				{"null", `say "hi"`},
				{" padded ", "line\nbreak"},
				{"-", "-3.5"},
				{`back\slash`, "[x]"},
			},
		}
		out, err := Decode(Encode(in))
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("column named null", func(t *testing.T) {
		in := &Table{Columns: []string{"Time", "null"}, Rows: [][]string{{"12:00.0", ""}}}
		enc := Encode(in)
		require.Contains(t, enc, `{Time,"null"}:`)
		out, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})
}

func TestDecodeErrors(t *testing.T) {
	for name, in := range map[string]string{
		"empty":        "",
		"bad header":   "{a,b}:\n  1,2\n",
		"row count":    "[2]{a,b}:\n  1,2\n",
		"width":        "[1]{a,b}:\n  1,2,3\n",
		"unterminated": "[1]{a,b}:\n  \"1,2\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(in)
			require.Error(t, err)
		})
	}
}
