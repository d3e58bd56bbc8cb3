package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("header and rows are trimmed", func(t *testing.T) {
		table, err := Parse("city , date,heat_index\n Imus ,2024-05-01, 41.2 \n", ',')
		require.NoError(t, err)

		assert.Equal(t, []string{"city", "date", "heat_index"}, table.Header)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, Row{"Imus", "2024-05-01", "41.2"}, table.Rows[0])
		assert.Zero(t, table.Rejected)
	})

	t.Run("ragged rows are rejected", func(t *testing.T) {
		text := "a,b,c\n1,2,3\n1,2\n1,2,3,4\n4,5,6\n"
		table, err := Parse(text, ',')
		require.NoError(t, err)

		assert.Len(t, table.Rows, 2)
		assert.Equal(t, 2, table.Rejected)
	})

	t.Run("CRLF and blank lines", func(t *testing.T) {
		table, err := Parse("\r\na;b\r\n\r\nx;y\r\n\r\n", ';')
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b"}, table.Header)
		assert.Equal(t, []Row{{"x", "y"}}, table.Rows)
	})

	t.Run("empty fields are kept", func(t *testing.T) {
		table, err := Parse("a,b,c\n1,,3\n", ',')
		require.NoError(t, err)
		assert.Equal(t, Row{"1", "", "3"}, table.Rows[0])
	})

	t.Run("no header", func(t *testing.T) {
		_, err := Parse("  \n\n", ',')
		require.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("quotes are not interpreted", func(t *testing.T) {
		table, err := Parse("a,b\n\"x,y\",z\n", ',')
		require.NoError(t, err)
		assert.Empty(t, table.Rows)
		assert.Equal(t, 1, table.Rejected)
	})
}

func TestTableColumn(t *testing.T) {
	table := Table{Header: []string{"City", "date", "heat_index_pred"}}

	assert.Equal(t, 0, table.Column("city"))
	assert.Equal(t, 2, table.Column("predicted", "heat_index_pred"))
	assert.Equal(t, -1, table.Column("residual"))
}

func TestRowField(t *testing.T) {
	r := Row{"a", "b"}
	assert.Equal(t, "b", r.Field(1))
	assert.Equal(t, "", r.Field(-1))
	assert.Equal(t, "", r.Field(5))
}
