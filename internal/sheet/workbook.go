package sheet

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readWorkbook reads the first worksheet of an OOXML workbook. Raw cell
// values are used so that date cells arrive as serial day numbers rather than
// in whatever display format the author picked. Non-blank rows past maxRows
// are counted, not kept.
func readWorkbook(data []byte, maxRows int) ([][]cell, int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, errors.New("workbook has no sheets")
	}
	name := sheets[0]

	rows, err := f.Rows(name)
	if err != nil {
		return nil, 0, fmt.Errorf("read sheet %q: %w", name, err)
	}
	defer rows.Close()

	var (
		grid    [][]cell
		dropped int
	)
	rowNum := 0
	for rows.Next() {
		rowNum++

		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, 0, fmt.Errorf("read row %d: %w", rowNum, err)
		}

		// Header plus maxRows data rows.
		if maxRows > 0 && len(grid) > maxRows {
			if !blankRecord(cols) {
				dropped++
			}
			continue
		}

		line := make([]cell, len(cols))
		for i, v := range cols {
			if v == "" {
				continue
			}
			line[i] = workbookCell(f, name, i+1, rowNum, v)
		}
		grid = append(grid, line)
	}
	if err := rows.Error(); err != nil {
		return nil, 0, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return grid, dropped, nil
}

// workbookCell classifies one cell. Number cells usually have no explicit
// type in the file, so both unset and number types are parsed as numbers.
func workbookCell(f *excelize.File, sheet string, col, row int, raw string) cell {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return textCell(raw)
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return textCell(raw)
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		return numberCell(raw)
	default:
		return textCell(raw)
	}
}
