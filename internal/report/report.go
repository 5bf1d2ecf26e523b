// Package report renders pipeline results as plain-text tables for the
// terminal. Column widths use display width so Korean headers line up.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/mattn/go-runewidth"
)

// MaxCellWidth truncates long cells such as joined validation errors.
const MaxCellWidth = 60

// Table renders a pipe table with a dashed separator under the header.
func Table(headers []string, rows [][]string) string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	widths := make([]int, colCount)
	measure := func(row []string) {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for j := 0; j < colCount; j++ {
			content := ""
			if j < len(row) {
				content = row[j]
			}
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(content, widths[j]))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sb.WriteString("|")
	for _, w := range widths {
		sb.WriteString(" " + strings.Repeat("-", w) + " |")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

// Truncate shortens s to MaxCellWidth display columns.
func Truncate(s string) string {
	return runewidth.Truncate(s, MaxCellWidth, "…")
}

// Mappings lists the header mapping of every processed file.
func Mappings(r core.ProcessReport) string {
	var sb strings.Builder
	for _, f := range r.Files {
		fmt.Fprintf(&sb, "%s\n", f.FileName)
		if f.Error != "" {
			fmt.Fprintf(&sb, "  not processed: %s\n\n", f.Error)
			continue
		}

		rows := make([][]string, 0, len(f.Mapping)+len(f.Unmapped))
		for _, fm := range f.Mapping {
			rows = append(rows, []string{fm.Raw, fm.Field})
		}
		for _, h := range f.Unmapped {
			rows = append(rows, []string{h, "(unmapped)"})
		}
		sb.WriteString(Table([]string{"Header", "Field"}, rows))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Summary tabulates per-file results followed by the ledger totals.
func Summary(r core.ProcessReport) string {
	rows := make([][]string, 0, len(r.Files))
	for _, f := range r.Files {
		status := "ok"
		if f.Error != "" {
			status = "failed (" + f.Code + ")"
		}
		rows = append(rows, []string{
			f.FileName,
			strconv.Itoa(f.Rows),
			strconv.Itoa(f.Consolidated),
			strconv.Itoa(f.Exceptions),
			status,
		})
	}

	var sb strings.Builder
	sb.WriteString(Table([]string{"File", "Rows", "Consolidated", "Exceptions", "Status"}, rows))
	fmt.Fprintf(&sb, "\nConsolidated: %d  Exceptions: %d  Duration: %s\n",
		r.Counts.Consolidated, r.Counts.Exceptions, r.Duration.Round(time.Millisecond))
	for _, n := range r.Notices {
		fmt.Fprintf(&sb, "! %s\n", n)
	}
	return sb.String()
}

// Exceptions tabulates pending exceptions with their validation errors.
func Exceptions(recs []*core.Record) string {
	if len(recs) == 0 {
		return "No exceptions.\n"
	}
	rows := make([][]string, len(recs))
	for i, rec := range recs {
		rows[i] = []string{
			strconv.Itoa(i),
			rec.SourceFile,
			Truncate(strings.Join(rec.ValidationErrors, "; ")),
		}
	}
	return Table([]string{"#", "Source", "Errors"}, rows)
}

// BulkFix renders an auto-fix outcome.
func BulkFix(r core.BulkFixReport) string {
	var sb strings.Builder
	sb.WriteString(r.Message)
	sb.WriteString("\n")
	if len(r.Failures) > 0 {
		rows := make([][]string, len(r.Failures))
		for i, f := range r.Failures {
			rows[i] = []string{strconv.Itoa(f.Index), f.SourceFile, f.Code, Truncate(f.Error)}
		}
		sb.WriteString(Table([]string{"#", "Source", "Code", "Error"}, rows))
	}
	for _, n := range r.Notices {
		fmt.Fprintf(&sb, "! %s\n", n)
	}
	return sb.String()
}
