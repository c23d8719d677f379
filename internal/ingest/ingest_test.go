package ingest_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/clubsepa/lastschrift/internal/ingest"
	"github.com/clubsepa/lastschrift/internal/types"
)

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		format ingest.Format
	}{
		{"members.csv", ingest.FormatDelimited},
		{"MEMBERS.CSV", ingest.FormatDelimited},
		{"export.txt", ingest.FormatDelimited},
		{"members.xlsx", ingest.FormatSpreadsheet},
		{"/tmp/dir.v2/members.xls", ingest.FormatSpreadsheet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ingest.FormatFromFilename(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.format, got)
		})
	}

	_, err := ingest.FormatFromFilename("members.pdf")
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)

	_, err = ingest.FormatFromFilename("members")
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)
}

func TestRead_UnsupportedFormat(t *testing.T) {
	_, err := ingest.Read(strings.NewReader("a,b"), ingest.Format("pdf"))
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)
}

func TestRead_DelimitedComma(t *testing.T) {
	input := "Name,IBAN,Datum,Ref\nAnna Muster,DE89370400440532013000,01.01.2023,001\n"

	grid, err := ingest.Read(strings.NewReader(input), ingest.FormatDelimited)
	require.NoError(t, err)

	assert.Equal(t, types.Grid{
		{"Name", "IBAN", "Datum", "Ref"},
		{"Anna Muster", "DE89370400440532013000", "01.01.2023", "001"},
	}, grid)
}

func TestRead_DelimitedSemicolonWithDecimalComma(t *testing.T) {
	input := "Name;Beitrag\n\"Muster, Anna\";12,50\nBob;\n"

	grid, err := ingest.Read(strings.NewReader(input), ingest.FormatDelimited)
	require.NoError(t, err)

	require.Len(t, grid, 3)
	assert.Equal(t, []string{"Muster, Anna", "12,50"}, grid[1])
	assert.Equal(t, []string{"Bob", ""}, grid[2])
}

func TestRead_DelimitedTab(t *testing.T) {
	grid, err := ingest.Read(strings.NewReader("a\tb\tc\n1\t2\t3\n"), ingest.FormatDelimited)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, grid[1])
}

func TestRead_DelimitedRaggedRows(t *testing.T) {
	input := "a,b,c\n1\n1,2,3,4\n"

	grid, err := ingest.Read(strings.NewReader(input), ingest.FormatDelimited)
	require.NoError(t, err)

	require.Len(t, grid, 3)
	assert.Len(t, grid[1], 1)
	assert.Len(t, grid[2], 4)
	assert.Equal(t, 4, grid.Width())
}

func TestRead_DelimitedLatin1(t *testing.T) {
	// "Name;Ort\nJürgen;Köln\n" in Windows-1252.
	input := []byte{
		'N', 'a', 'm', 'e', ';', 'O', 'r', 't', '\n',
		'J', 0xFC, 'r', 'g', 'e', 'n', ';', 'K', 0xF6, 'l', 'n', '\n',
	}

	grid, err := ingest.Read(bytes.NewReader(input), ingest.FormatDelimited)
	require.NoError(t, err)

	require.Len(t, grid, 2)
	assert.Equal(t, []string{"Jürgen", "Köln"}, grid[1])
}

func TestRead_DelimitedUTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Name;IBAN\n")...)

	grid, err := ingest.Read(bytes.NewReader(input), ingest.FormatDelimited)
	require.NoError(t, err)

	assert.Equal(t, types.Grid{{"Name", "IBAN"}}, grid)
}

func TestRead_DelimitedEmpty(t *testing.T) {
	grid, err := ingest.Read(strings.NewReader(""), ingest.FormatDelimited)
	require.NoError(t, err)
	assert.Empty(t, grid)
}

func workbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	_, err := f.NewSheet("Ignored")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Ignored", "A1", "second sheet"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	return buf.Bytes()
}

func TestRead_SpreadsheetFirstSheetCoercesCells(t *testing.T) {
	data := workbook(t, [][]interface{}{
		{"Name", "IBAN", "Beitrag", "Aktiv"},
		{"Anna Muster", "DE89370400440532013000", 12.5, true},
		{"Bob", nil, 42, false},
	})

	grid, err := ingest.Read(bytes.NewReader(data), ingest.FormatSpreadsheet)
	require.NoError(t, err)

	require.Len(t, grid, 3)
	assert.Equal(t, []string{"Name", "IBAN", "Beitrag", "Aktiv"}, grid[0])
	assert.Equal(t, []string{"Anna Muster", "DE89370400440532013000", "12.5", "TRUE"}, grid[1])
	assert.Equal(t, []string{"Bob", "", "42", "FALSE"}, grid[2])
}

func TestRead_SpreadsheetMalformed(t *testing.T) {
	_, err := ingest.Read(strings.NewReader("definitely not a zip"), ingest.FormatSpreadsheet)
	assert.ErrorIs(t, err, ingest.ErrParseFailure)
}

func TestReadFile(t *testing.T) {
	grid, err := ingest.ReadFile("members.csv", strings.NewReader("a;b\n"))
	require.NoError(t, err)
	assert.Equal(t, types.Grid{{"a", "b"}}, grid)

	_, err = ingest.ReadFile("members.ods", strings.NewReader("a;b\n"))
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)
}
