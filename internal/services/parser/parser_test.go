package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParser_CSV(t *testing.T) {
	path := writeFixture(t, "orders.csv", "name,amount\nalice,10\nbob,20\n")
	p := NewParser(common.GetLogger(), 0)

	parsed, err := p.Parse(context.Background(), path, "csv")
	require.NoError(t, err)
	assert.Equal(t, models.PayloadTabular, parsed.Type)
	assert.Equal(t, []string{"name", "amount"}, parsed.ColumnNames())
	require.Len(t, parsed.Rows, 2)
	assert.Equal(t, "alice", parsed.Rows[0]["name"])
	assert.Equal(t, "10", parsed.Rows[0]["amount"])
	assert.Equal(t, 2, parsed.RowCount)
	assert.Equal(t, 2, parsed.ColumnCount)
}

func TestParser_CSVRaggedRows(t *testing.T) {
	path := writeFixture(t, "ragged.csv", "a,b\n1\n2,3,4\n")
	p := NewParser(common.GetLogger(), 0)

	parsed, err := p.Parse(context.Background(), path, "csv")
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 2)
	assert.Equal(t, "", parsed.Rows[0]["b"])
	assert.Equal(t, "3", parsed.Rows[1]["b"])
}

func TestParser_CSVDuplicateHeaders(t *testing.T) {
	path := writeFixture(t, "dup.csv", "id,,id\n1,2,3\n")
	p := NewParser(common.GetLogger(), 0)

	parsed, err := p.Parse(context.Background(), path, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "column_2", "id_3"}, parsed.ColumnNames())
	assert.Equal(t, "3", parsed.Rows[0]["id_3"])
}

func TestParser_CSVEmptyFile(t *testing.T) {
	path := writeFixture(t, "empty.csv", "")
	p := NewParser(common.GetLogger(), 0)

	_, err := p.Parse(context.Background(), path, "csv")
	require.Error(t, err)
	var parseErr *interfaces.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParser_JSONArray(t *testing.T) {
	path := writeFixture(t, "data.json",
		`[{"name":"alice","score":9.5},{"name":"bob","score":7,"tags":["x"]}]`)
	p := NewParser(common.GetLogger(), 0)

	parsed, err := p.Parse(context.Background(), path, "json")
	require.NoError(t, err)
	assert.Equal(t, models.PayloadTabular, parsed.Type)
	assert.Equal(t, []string{"name", "score", "tags"}, parsed.ColumnNames())
	require.Len(t, parsed.Rows, 2)
	assert.Equal(t, 9.5, parsed.Rows[0]["score"])
	assert.Nil(t, parsed.Rows[0]["tags"])
	assert.Equal(t, `["x"]`, parsed.Rows[1]["tags"])
}

func TestParser_JSONSingleObject(t *testing.T) {
	path := writeFixture(t, "one.json", `{"a":1,"b":"x"}`)
	p := NewParser(common.GetLogger(), 0)

	parsed, err := p.Parse(context.Background(), path, "json")
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.RowCount)
	assert.Equal(t, []string{"a", "b"}, parsed.ColumnNames())
}

func TestParser_JSONScalarRejected(t *testing.T) {
	path := writeFixture(t, "scalar.json", `"just a string"`)
	p := NewParser(common.GetLogger(), 0)

	_, err := p.Parse(context.Background(), path, "json")
	var parseErr *interfaces.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "json", parseErr.FileType)
}

func TestParser_Text(t *testing.T) {
	path := writeFixture(t, "notes.txt", "line one\nline two")
	p := NewParser(common.GetLogger(), 0)

	parsed, err := p.Parse(context.Background(), path, "txt")
	require.NoError(t, err)
	assert.Equal(t, models.PayloadText, parsed.Type)
	assert.Equal(t, "line one\nline two", parsed.Content)
	assert.Equal(t, 2, parsed.FileInfo["line_count"])
}

func TestParser_UnsupportedType(t *testing.T) {
	path := writeFixture(t, "img.png", "not really")
	p := NewParser(common.GetLogger(), 0)

	_, err := p.Parse(context.Background(), path, "png")
	var parseErr *interfaces.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.False(t, p.Supports("png"))
	assert.True(t, p.Supports("csv"))
}

func TestParser_SizeLimit(t *testing.T) {
	path := writeFixture(t, "big.csv", "a,b\n1,2\n")
	p := NewParser(common.GetLogger(), 4)

	_, err := p.Parse(context.Background(), path, "csv")
	var parseErr *interfaces.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParser_MissingFile(t *testing.T) {
	p := NewParser(common.GetLogger(), 0)

	_, err := p.Parse(context.Background(), filepath.Join(t.TempDir(), "gone.csv"), "csv")
	var parseErr *interfaces.ParseError
	assert.ErrorAs(t, err, &parseErr)
}
