package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// fixRow is the column form of one fix_history row plus its changes.
type fixRow struct {
	ID             pgtype.UUID
	RecordID       pgtype.UUID
	SourceFile     pgtype.Text
	OriginalErrors []string
	Original       []byte
	Fixed          []byte
	ChangesMade    int32
	FixedAt        pgtype.Timestamptz
	Changes        []changeRow
}

type changeRow struct {
	Position      int32
	Field         string
	OriginalValue pgtype.Text
	FixedValue    pgtype.Text
}

func buildFixRow(entry core.FixEntry, changes []core.FieldChange) (fixRow, error) {
	if entry.Original == nil || entry.Fixed == nil {
		return fixRow{}, fmt.Errorf("fix %s: missing record", entry.ID)
	}

	original, err := recordJSON(entry.Original)
	if err != nil {
		return fixRow{}, fmt.Errorf("encode original: %w", err)
	}
	fixed, err := recordJSON(entry.Fixed)
	if err != nil {
		return fixRow{}, fmt.Errorf("encode fixed: %w", err)
	}

	errs := entry.Original.ValidationErrors
	if errs == nil {
		errs = []string{}
	}

	row := fixRow{
		ID:             toPgUUID(entry.ID),
		RecordID:       toPgUUID(entry.Original.ID),
		SourceFile:     toPgText(entry.Original.SourceFile),
		OriginalErrors: errs,
		Original:       original,
		Fixed:          fixed,
		ChangesMade:    int32(len(changes)),
		FixedAt:        pgtype.Timestamptz{Time: entry.Timestamp.UTC(), Valid: !entry.Timestamp.IsZero()},
	}
	if !row.ID.Valid {
		return fixRow{}, fmt.Errorf("fix id %q is not a uuid", entry.ID)
	}
	if !row.FixedAt.Valid {
		row.FixedAt = pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
	}

	for i, c := range changes {
		row.Changes = append(row.Changes, changeRow{
			Position:      int32(i),
			Field:         c.Field,
			OriginalValue: valueText(c.Original),
			FixedValue:    valueText(c.Fixed),
		})
	}
	return row, nil
}

func (r fixRow) summary() StoredFix {
	return StoredFix{
		ID:             uuidToString(r.ID),
		SourceFile:     r.SourceFile.String,
		OriginalErrors: r.OriginalErrors,
		ChangesMade:    int(r.ChangesMade),
		FixedAt:        r.FixedAt.Time.Format(time.RFC3339),
	}
}

// recordJSON encodes the flattened record, metadata included, as an object.
func recordJSON(rec *core.Record) ([]byte, error) {
	flat := rec.Flatten()
	obj := make(map[string]any, len(flat))
	for _, kv := range flat {
		obj[kv.Key] = kv.Value
	}
	return json.Marshal(obj)
}

// valueText stores absent values as NULL so they stay distinct from "".
func valueText(v any) pgtype.Text {
	if v == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: core.FormatValue(v), Valid: true}
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
