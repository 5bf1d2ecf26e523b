package core

// export.go flattens ledger state into CSV tables.
//
// Columns come from the first row. Metadata columns (leading underscore) are
// dropped unless they carry audit information (auto-fix flag or timestamps).
// Every cell is quoted with embedded quotes doubled, and missing cells are
// written as empty strings.

import (
	"fmt"
	"strings"
	"time"
)

// Export base names. The download name embeds the ISO date.
const (
	ExportConsolidated = "consolidated_sales_data"
	ExportFixHistory   = "fix_history"
)

// Fix-history row kinds.
const (
	ChangeTypeSummary = "SUMMARY"
	ChangeTypeField   = "FIELD_CHANGE"
)

// ExportRow is one ordered row of an export table.
type ExportRow []KeyValue

// Lookup returns the value stored under key.
func (r ExportRow) Lookup(key string) (any, bool) {
	for _, kv := range r {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// ExportFileName returns the download name for an export, e.g.
// consolidated_sales_data_2024-03-01.csv.
func ExportFileName(base string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", base, now.UTC().Format("2006-01-02"))
}

// ToCSV serializes rows. It returns ErrNoData when rows is empty.
func ToCSV(rows []ExportRow) (string, error) {
	if len(rows) == 0 {
		return "", ErrNoData
	}

	columns := exportColumns(rows[0])
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(columns, ","))

	cells := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			v, _ := row.Lookup(col)
			cells[i] = quoteCell(FormatValue(v))
		}
		lines = append(lines, strings.Join(cells, ","))
	}

	return strings.Join(lines, "\n"), nil
}

// exportColumns picks the exported columns from a row's keys.
func exportColumns(row ExportRow) []string {
	cols := make([]string, 0, len(row))
	for _, kv := range row {
		if IsMetaKey(kv.Key) && !isAuditColumn(kv.Key) {
			continue
		}
		cols = append(cols, kv.Key)
	}
	return cols
}

// isAuditColumn reports whether a metadata column is kept in exports.
func isAuditColumn(key string) bool {
	return strings.Contains(key, "auto_fixed") || strings.Contains(key, "timestamp")
}

func quoteCell(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ConsolidatedRows builds the consolidated export: each record's business
// fields followed by its metadata and whether it came out of a repair. Every
// row carries the union of business fields seen across all records, in
// canonical order, so no column is lost to the first-row header rule.
func ConsolidatedRows(l *Ledger) []ExportRow {
	fixed := make(map[string]bool)
	for _, fix := range l.FixHistory() {
		fixed[fix.Fixed.ID] = true
	}

	records := l.Consolidated()
	fields := unionFields(records)

	rows := make([]ExportRow, 0, len(records))
	for _, rec := range records {
		row := make(ExportRow, 0, len(fields)+3)
		for _, f := range fields {
			v, _ := rec.Get(f)
			row = append(row, KeyValue{Key: f, Value: v})
		}
		autoFixed := "No"
		if fixed[rec.ID] {
			autoFixed = "Yes"
		}
		row = append(row,
			KeyValue{Key: MetaSourceFile, Value: rec.SourceFile},
			KeyValue{Key: MetaProcessedAt, Value: rec.ProcessedAt.Format(time.RFC3339Nano)},
			KeyValue{Key: MetaWasAutoFixed, Value: autoFixed},
		)
		rows = append(rows, row)
	}
	return rows
}

// unionFields returns every business field used by recs: canonical fields
// first, then any others in first-seen order.
func unionFields(recs []*Record) []string {
	present := make(map[string]bool)
	var extras []string
	for _, rec := range recs {
		for _, f := range rec.Fields() {
			if present[f] {
				continue
			}
			present[f] = true
			if !IsCanonicalField(f) {
				extras = append(extras, f)
			}
		}
	}

	fields := make([]string, 0, len(present))
	for _, f := range CanonicalFields {
		if present[f] {
			fields = append(fields, f)
		}
	}
	return append(fields, extras...)
}

// FixHistoryRows builds the fix-history export: one SUMMARY row per fix
// followed by one FIELD_CHANGE row per changed field. Both kinds carry the
// full column set so the header derived from the first row covers both.
func FixHistoryRows(l *Ledger) []ExportRow {
	var rows []ExportRow
	for i, fix := range l.FixHistory() {
		changes := fix.Changes()
		source := fix.Original.SourceFile
		if source == "" {
			source = "Unknown"
		}
		stamp := fix.Timestamp.Format(time.RFC3339Nano)

		rows = append(rows, ExportRow{
			{Key: "record_number", Value: i + 1},
			{Key: "source_file", Value: source},
			{Key: "fix_timestamp", Value: stamp},
			{Key: "original_errors", Value: strings.Join(fix.Original.ValidationErrors, "; ")},
			{Key: "changes_made", Value: len(changes)},
			{Key: "field_changed"},
			{Key: "original_value"},
			{Key: "fixed_value"},
			{Key: "change_type", Value: ChangeTypeSummary},
		})

		for _, c := range changes {
			rows = append(rows, ExportRow{
				{Key: "record_number", Value: i + 1},
				{Key: "source_file", Value: source},
				{Key: "fix_timestamp", Value: stamp},
				{Key: "original_errors"},
				{Key: "changes_made"},
				{Key: "field_changed", Value: c.Field},
				{Key: "original_value", Value: c.Original},
				{Key: "fixed_value", Value: c.Fixed},
				{Key: "change_type", Value: ChangeTypeField},
			})
		}
	}
	return rows
}
