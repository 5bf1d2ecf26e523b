package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/salesunifier/internal/core"
)

const repairPrompt = `Fix this sales record data. Fill missing values with reasonable defaults and correct any data type issues.
Return ONLY the corrected JSON record.

Original record: %s
Errors: %s

Rules:
- quantity, unit_price, total_amount must be numbers
- total_amount should equal quantity * unit_price
- date should be in DD-MM-YYYY format (convert from any format)
- Fill missing required fields with reasonable defaults`

// Repairer implements core.RecordRepairer.
type Repairer struct {
	completer Completer
}

// Ensure Repairer implements core.RecordRepairer.
var _ core.RecordRepairer = (*Repairer)(nil)

// NewRepairer creates a repairer.
func NewRepairer(c Completer) *Repairer {
	return &Repairer{completer: c}
}

// Repair sends rec and its violations to the assistant and returns the
// corrected record as a new Record with the same source file. Metadata keys
// in the response are ignored. The result is returned as-is; callers that
// need a valid record must validate it themselves.
func (r *Repairer) Repair(ctx context.Context, rec *core.Record) (*core.Record, error) {
	prompt, err := RepairPrompt(rec)
	if err != nil {
		return nil, err
	}

	response, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("repair record: %w", err)
	}

	pairs, err := ParseObject(response)
	if err != nil {
		return nil, &core.RepairParseError{Response: response, Err: err}
	}

	fixed := core.NewRecord(rec.SourceFile)
	for _, kv := range pairs {
		if core.IsMetaKey(kv.Key) {
			continue
		}
		fixed.Set(kv.Key, kv.Value)
	}
	if fixed.Len() == 0 {
		return nil, &core.RepairParseError{Response: response, Err: errors.New("no fields in repaired record")}
	}
	return fixed, nil
}

// RepairPrompt renders the repair prompt for rec.
func RepairPrompt(rec *core.Record) (string, error) {
	body, err := recordJSON(rec)
	if err != nil {
		return "", err
	}
	errs := "Unknown errors"
	if len(rec.ValidationErrors) > 0 {
		errs = strings.Join(rec.ValidationErrors, ", ")
	}
	return fmt.Sprintf(repairPrompt, body, errs), nil
}

// recordJSON encodes rec as a JSON object in field order, followed by its
// metadata. Validation errors are sent as a list.
func recordJSON(rec *core.Record) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, kv := range rec.Flatten() {
		if kv.Key == core.MetaValidationErrors {
			continue
		}
		if err := write(kv.Key, kv.Value); err != nil {
			return "", err
		}
	}
	if len(rec.ValidationErrors) > 0 {
		if err := write(core.MetaValidationErrors, rec.ValidationErrors); err != nil {
			return "", err
		}
	}
	buf.WriteByte('}')
	return buf.String(), nil
}
