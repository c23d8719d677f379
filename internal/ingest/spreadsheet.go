package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/clubsepa/lastschrift/internal/types"
)

// readSpreadsheet reads the first sheet of a workbook.
//
// Rows are streamed with the excelize row iterator so a large member list
// is a single pass. excelize already renders numeric, date and boolean
// cells through their number format; empty cells come back as "".
func readSpreadsheet(r io.Reader) (types.Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, parseFailure("open workbook", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, parseFailure("open workbook", fmt.Errorf("workbook has no sheets"))
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, parseFailure("read rows", err)
	}
	defer rows.Close()

	grid := types.Grid{}
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, parseFailure(fmt.Sprintf("read row %d", len(grid)+1), err)
		}
		if cells == nil {
			cells = []string{}
		}
		grid = append(grid, cells)
	}

	if err := rows.Error(); err != nil {
		return nil, parseFailure("read rows", err)
	}

	return grid, nil
}
