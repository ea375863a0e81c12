package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func shootingTable() *Table {
	return &Table{
		Columns: []string{"Team", "FG%", "3PA"},
		Rows: [][]string{
			{"Houston Rockets", "0.470", "38"},
			{"Orlando Magic", "0.455", ""},
			{"Utah Jazz", "0.481", "41"},
			{"Boston Celtics", "0.462", "48"},
		},
	}
}

func column(t *Table, name string) []string {
	i := -1
	for j, c := range t.Columns {
		if c == name {
			i = j
		}
	}
	out := make([]string, 0, t.Len())
	for _, row := range t.Rows {
		out = append(out, row[i])
	}
	return out
}

func TestQuery(t *testing.T) {
	t.Run("sort descending", func(t *testing.T) {
		got, err := shootingTable().Query(Query{Op: OpSort, Column: "FG%", Descending: true})
		require.NoError(t, err)
		require.Equal(t, []string{"Utah Jazz", "Houston Rockets", "Boston Celtics", "Orlando Magic"}, column(got, "Team"))
	})

	t.Run("sort ascending with limit", func(t *testing.T) {
		got, err := shootingTable().Query(Query{Op: OpSort, Column: "Team", Limit: 2})
		require.NoError(t, err)
		require.Equal(t, []string{"Boston Celtics", "Houston Rockets"}, column(got, "Team"))
	})

	t.Run("filter numeric column", func(t *testing.T) {
		got, err := shootingTable().Query(Query{Op: OpFilter, Column: "FG%", Comparator: ">", Value: "0.465"})
		require.NoError(t, err)
		require.Equal(t, []string{"Houston Rockets", "Utah Jazz"}, column(got, "Team"))
	})

	t.Run("filter in list", func(t *testing.T) {
		got, err := shootingTable().Query(Query{Op: OpFilter, Column: "Team", Comparator: "in", Value: "Utah Jazz, Orlando Magic"})
		require.NoError(t, err)
		require.Equal(t, []string{"Orlando Magic", "Utah Jazz"}, column(got, "Team"))
	})

	t.Run("select keeps the given order", func(t *testing.T) {
		got, err := shootingTable().Query(Query{Op: OpSelect, Columns: []string{"FG%", "Team"}})
		require.NoError(t, err)
		require.Equal(t, []string{"FG%", "Team"}, got.Columns)
		require.Equal(t, 4, got.Len())
	})

	t.Run("head defaults and caps", func(t *testing.T) {
		got, err := shootingTable().Query(Query{Op: OpHead})
		require.NoError(t, err)
		require.Equal(t, 4, got.Len())

		got, err = shootingTable().Query(Query{Op: OpHead, Limit: 1})
		require.NoError(t, err)
		require.Equal(t, []string{"Houston Rockets"}, column(got, "Team"))
	})

	t.Run("describe summarizes every column", func(t *testing.T) {
		got, err := shootingTable().Query(Query{Op: OpDescribe})
		require.NoError(t, err)
		require.Equal(t, "column", got.Columns[0])
		require.Contains(t, got.Columns, "FG%")
		require.NotZero(t, got.Len())
	})

	t.Run("input is left untouched", func(t *testing.T) {
		in := shootingTable()
		_, err := in.Query(Query{Op: OpSort, Column: "FG%"})
		require.NoError(t, err)
		require.Equal(t, shootingTable(), in)
	})

	for name, q := range map[string]Query{
		"unknown operation":  {Op: "pivot"},
		"unknown column":     {Op: OpSort, Column: "PTS"},
		"missing column":     {Op: OpFilter, Comparator: ">", Value: "1"},
		"unknown comparator": {Op: OpFilter, Column: "FG%", Comparator: "~", Value: "1"},
		"empty select":       {Op: OpSelect},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := shootingTable().Query(q)
			require.Error(t, err)
		})
	}

	t.Run("table without columns", func(t *testing.T) {
		_, err := (&Table{}).Query(Query{Op: OpHead})
		require.Error(t, err)
	})
}
