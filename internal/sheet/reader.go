// Package sheet reads uploaded spreadsheets into headers and rows.
//
// The first row of the first worksheet is the header row. Each following
// non-blank row becomes a mapping from header label to cell value. Numeric
// cells become float64, everything else a string; empty cells are left out.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/salesunifier/internal/core"
)

// Supported file extensions.
const (
	ExtXLSX = ".xlsx"
	ExtXLS  = ".xls"
	ExtCSV  = ".csv"
)

var (
	// ErrUnsupportedType is returned for files that are not spreadsheets.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrNoHeaderRow is returned when the first sheet is empty.
	ErrNoHeaderRow = errors.New("no header row")
)

// Reader implements core.SpreadsheetReader.
type Reader struct {
	// MaxRows caps the data rows read per file. Zero means no limit. Rows
	// past the cap are counted in core.Sheet.DroppedRows.
	MaxRows int
}

// NewReader creates a reader with the given row cap.
func NewReader(maxRows int) *Reader {
	return &Reader{MaxRows: maxRows}
}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtXLSX, ExtXLS, ExtCSV:
		return true
	}
	return false
}

// Read parses data according to the extension of name. Every failure wraps
// core.ErrUnreadableFile.
func (r *Reader) Read(ctx context.Context, name string, data []byte) (*core.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		grid    [][]cell
		dropped int
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ExtXLSX, ExtXLS:
		grid, dropped, err = readWorkbook(data, r.MaxRows)
	case ExtCSV:
		grid, dropped, err = readCSV(data, r.MaxRows)
	default:
		err = fmt.Errorf("%w %q", ErrUnsupportedType, ext)
	}
	if err != nil {
		return nil, core.UnreadableFile(name, err)
	}

	sheet, err := buildSheet(grid)
	if err != nil {
		return nil, core.UnreadableFile(name, err)
	}
	sheet.DroppedRows = dropped
	return sheet, nil
}

// cell is one raw cell. Numeric cells carry their parsed value.
type cell struct {
	text    string
	number  float64
	numeric bool
}

func textCell(s string) cell {
	return cell{text: s}
}

// numberCell keeps s as a number when it is a finite decimal. Words that
// ParseFloat also accepts ("NaN", "inf", "Infinity") stay text.
func numberCell(s string) cell {
	trimmed := strings.TrimSpace(s)
	if !strings.ContainsAny(trimmed, "0123456789") {
		return cell{text: s}
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return cell{text: s}
	}
	return cell{text: s, number: f, numeric: true}
}

func (c cell) value() any {
	if c.numeric {
		return c.number
	}
	return c.text
}

func (c cell) empty() bool {
	return !c.numeric && strings.TrimSpace(c.text) == ""
}

// buildSheet turns a grid whose first row is the header into a core.Sheet.
// Blank header cells get a positional name, duplicate labels a numeric
// suffix, so that no column silently overwrites another.
func buildSheet(grid [][]cell) (*core.Sheet, error) {
	if len(grid) == 0 {
		return nil, ErrNoHeaderRow
	}

	headers := make([]string, len(grid[0]))
	seen := make(map[string]int)
	anyHeader := false
	for i, c := range grid[0] {
		h := core.NormalizeHeader(c.text)
		if c.numeric {
			h = core.NormalizeHeader(core.FormatValue(c.number))
		}
		if h == "" {
			h = fmt.Sprintf("__EMPTY_%d", i)
		} else {
			anyHeader = true
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n)
		} else {
			seen[h] = 1
		}
		headers[i] = h
	}
	if !anyHeader {
		return nil, ErrNoHeaderRow
	}

	sheet := &core.Sheet{Headers: headers}
	for _, row := range grid[1:] {
		values := make(map[string]any)
		for i, c := range row {
			if i >= len(headers) || c.empty() {
				continue
			}
			values[headers[i]] = c.value()
		}
		if len(values) == 0 {
			continue
		}
		sheet.Rows = append(sheet.Rows, values)
	}
	return sheet, nil
}
