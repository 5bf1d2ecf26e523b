package core

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sheet is the tabular content of one spreadsheet: its header labels and one
// mapping per data row from header label to raw cell value. A missing or
// empty cell is simply absent from the row. DroppedRows counts non-blank
// rows the reader skipped because of its row cap.
type Sheet struct {
	Headers     []string
	Rows        []map[string]any
	DroppedRows int
}

// FieldMapping maps one raw header label to a canonical field.
type FieldMapping struct {
	Raw   string `json:"raw"`
	Field string `json:"field"`
}

// HeaderMapping is the per-file translation of raw headers, in file order.
// It is not necessarily total: unmapped headers are dropped on projection and
// the canonical fields they would have filled stay absent.
type HeaderMapping []FieldMapping

// NormalizeHeader puts a header label in the form used for matching: trimmed
// and NFC-composed, so decomposed Hangul from some spreadsheet tools still
// matches the composed form the assistant returns.
func NormalizeHeader(h string) string {
	return norm.NFC.String(strings.TrimSpace(h))
}

// BuildHeaderMapping pairs file headers with translated targets. Targets are
// matched case-insensitively against the canonical vocabulary; anything else
// (unknown names, empty or null targets) leaves that header unmapped. When two
// headers claim the same field the first one wins.
func BuildHeaderMapping(headers []string, translations map[string]string) HeaderMapping {
	byHeader := make(map[string]string, len(translations))
	for raw, target := range translations {
		byHeader[NormalizeHeader(raw)] = target
	}

	var mapping HeaderMapping
	claimed := make(map[string]bool)
	for _, h := range headers {
		target, ok := byHeader[NormalizeHeader(h)]
		if !ok {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(target))
		if !IsCanonicalField(field) || claimed[field] {
			continue
		}
		claimed[field] = true
		mapping = append(mapping, FieldMapping{Raw: h, Field: field})
	}
	return mapping
}

// Fields returns the canonical fields covered by the mapping.
func (m HeaderMapping) Fields() []string {
	out := make([]string, len(m))
	for i, fm := range m {
		out[i] = fm.Field
	}
	return out
}

// Project builds a new record from one raw row. The record is stamped with
// its source file and processing time at this moment.
func (m HeaderMapping) Project(row map[string]any, sourceFile string) *Record {
	rec := NewRecord(sourceFile)
	for _, fm := range m {
		v, ok := row[fm.Raw]
		if !ok {
			continue
		}
		rec.Set(fm.Field, v)
	}
	return rec
}
