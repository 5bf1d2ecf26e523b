package store

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/google/uuid"
)

func testFix() (core.FixEntry, []core.FieldChange) {
	original := core.NewRecord("q1.xlsx")
	original.Set("product_name", "Widget")
	original.Set("quantity", "three")
	original.ValidationErrors = []string{"Invalid number in quantity"}

	fixed := original.Clone()
	fixed.ValidationErrors = nil
	fixed.Set("quantity", 3.0)
	fixed.Set("region", "Seoul")

	entry := core.FixEntry{
		ID:        uuid.New().String(),
		Original:  original,
		Fixed:     fixed,
		Timestamp: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	}
	return entry, entry.Changes()
}

func TestBuildFixRow(t *testing.T) {
	entry, changes := testFix()

	row, err := buildFixRow(entry, changes)
	if err != nil {
		t.Fatalf("buildFixRow() error = %v", err)
	}

	if uuidToString(row.ID) != entry.ID {
		t.Errorf("ID = %q, want %q", uuidToString(row.ID), entry.ID)
	}
	if uuidToString(row.RecordID) != entry.Original.ID {
		t.Errorf("RecordID = %q, want %q", uuidToString(row.RecordID), entry.Original.ID)
	}
	if row.SourceFile.String != "q1.xlsx" || !row.SourceFile.Valid {
		t.Errorf("SourceFile = %+v", row.SourceFile)
	}
	if row.ChangesMade != 2 {
		t.Errorf("ChangesMade = %d, want 2", row.ChangesMade)
	}
	if !row.FixedAt.Time.Equal(entry.Timestamp) {
		t.Errorf("FixedAt = %v, want %v", row.FixedAt.Time, entry.Timestamp)
	}
	if len(row.OriginalErrors) != 1 || row.OriginalErrors[0] != "Invalid number in quantity" {
		t.Errorf("OriginalErrors = %v", row.OriginalErrors)
	}

	var original map[string]any
	if err := json.Unmarshal(row.Original, &original); err != nil {
		t.Fatalf("original is not JSON: %v", err)
	}
	if original["quantity"] != "three" || original["_source_file"] != "q1.xlsx" {
		t.Errorf("original = %v", original)
	}
	if _, ok := original["_validation_errors"]; !ok {
		t.Error("original should carry _validation_errors")
	}
}

func TestBuildFixRow_Changes(t *testing.T) {
	entry, changes := testFix()

	row, err := buildFixRow(entry, changes)
	if err != nil {
		t.Fatalf("buildFixRow() error = %v", err)
	}

	if len(row.Changes) != 2 {
		t.Fatalf("got %d change rows, want 2", len(row.Changes))
	}

	qty := row.Changes[0]
	if qty.Position != 0 || qty.Field != "quantity" {
		t.Errorf("first change = %+v, want quantity at position 0", qty)
	}
	if qty.OriginalValue.String != "three" || qty.FixedValue.String != "3" {
		t.Errorf("quantity values = %q -> %q", qty.OriginalValue.String, qty.FixedValue.String)
	}

	region := row.Changes[1]
	if region.Field != "region" {
		t.Errorf("second change field = %q, want region", region.Field)
	}
	if region.OriginalValue.Valid {
		t.Error("absent original value should be NULL")
	}
	if region.FixedValue.String != "Seoul" {
		t.Errorf("region fixed = %q, want Seoul", region.FixedValue.String)
	}
}

func TestBuildFixRow_Invalid(t *testing.T) {
	entry, changes := testFix()

	tests := []struct {
		name    string
		mutate  func(*core.FixEntry)
		wantErr string
	}{
		{"missing fixed record", func(e *core.FixEntry) { e.Fixed = nil }, "missing record"},
		{"non-uuid id", func(e *core.FixEntry) { e.ID = "fix-1" }, "not a uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry
			tt.mutate(&e)
			_, err := buildFixRow(e, changes)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("buildFixRow() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildFixRow_ZeroTimestamp(t *testing.T) {
	entry, changes := testFix()
	entry.Timestamp = time.Time{}

	row, err := buildFixRow(entry, changes)
	if err != nil {
		t.Fatalf("buildFixRow() error = %v", err)
	}
	if !row.FixedAt.Valid || row.FixedAt.Time.IsZero() {
		t.Errorf("FixedAt = %+v, want current time", row.FixedAt)
	}
}

func TestFixRowSummary(t *testing.T) {
	entry, changes := testFix()
	row, err := buildFixRow(entry, changes)
	if err != nil {
		t.Fatalf("buildFixRow() error = %v", err)
	}

	got := row.summary()
	if got.ID != entry.ID || got.SourceFile != "q1.xlsx" || got.ChangesMade != 2 {
		t.Errorf("summary() = %+v", got)
	}
	if got.FixedAt != "2024-03-15T09:30:00Z" {
		t.Errorf("FixedAt = %q", got.FixedAt)
	}
}
