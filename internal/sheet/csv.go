package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a comma-separated file. Cells are numbers when they parse as
// one, text otherwise. Non-blank lines past maxRows are counted, not kept.
func readCSV(data []byte, maxRows int) ([][]cell, int, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, 0, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	var (
		grid    [][]cell
		dropped int
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("invalid csv: %w", err)
		}

		// Header plus maxRows data rows.
		if maxRows > 0 && len(grid) > maxRows {
			if !blankRecord(record) {
				dropped++
			}
			continue
		}

		line := make([]cell, len(record))
		for i, v := range record {
			if len(grid) == 0 {
				line[i] = textCell(v)
				continue
			}
			line[i] = numberCell(v)
		}
		grid = append(grid, line)
	}
	return grid, dropped, nil
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// decodeText returns data as UTF-8. A leading BOM is dropped. Input that is
// not valid UTF-8 is decoded as CP949, the encoding Korean spreadsheet tools
// use when exporting CSV; bytes that are invalid in both are replaced.
func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}

	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}
	if utf8.Valid(decoded) {
		return decoded, nil
	}
	return bytes.ToValidUTF8(decoded, []byte("�")), nil
}
