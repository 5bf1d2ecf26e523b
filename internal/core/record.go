package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Canonical business fields, in the order they are presented.
const (
	FieldDate         = "date"
	FieldProductName  = "product_name"
	FieldProductCode  = "product_code"
	FieldQuantity     = "quantity"
	FieldUnitPrice    = "unit_price"
	FieldTotalAmount  = "total_amount"
	FieldCustomerName = "customer_name"
	FieldCustomerID   = "customer_id"
	FieldSalesRep     = "sales_rep"
	FieldRegion       = "region"
)

// CanonicalFields lists every standardized field name records are normalized to.
var CanonicalFields = []string{
	FieldDate,
	FieldProductName,
	FieldProductCode,
	FieldQuantity,
	FieldUnitPrice,
	FieldTotalAmount,
	FieldCustomerName,
	FieldCustomerID,
	FieldSalesRep,
	FieldRegion,
}

// DefaultRequiredFields are the fields a record must carry to be consolidated.
var DefaultRequiredFields = []string{
	FieldDate,
	FieldProductName,
	FieldQuantity,
	FieldUnitPrice,
	FieldTotalAmount,
}

// Metadata keys used when a record is flattened for prompts and exports.
// The prefix keeps them apart from business fields.
const (
	MetaPrefix           = "_"
	MetaSourceFile       = "_source_file"
	MetaProcessedAt      = "_processed_at"
	MetaValidationErrors = "_validation_errors"
	MetaWasAutoFixed     = "_was_auto_fixed"
)

// IsCanonicalField reports whether name is one of the canonical fields.
func IsCanonicalField(name string) bool {
	return slices.Contains(CanonicalFields, name)
}

// IsMetaKey reports whether key is a metadata key rather than a business field.
func IsMetaKey(key string) bool {
	return strings.HasPrefix(key, MetaPrefix)
}

// Record is one normalized sales row.
//
// Business fields keep their insertion order. Values are string or float64;
// an absent field is simply not stored, so setting nil deletes it.
type Record struct {
	ID               string
	SourceFile       string
	ProcessedAt      time.Time
	ValidationErrors []string

	keys   []string
	values map[string]any
}

// NewRecord creates an empty record stamped with a fresh ID and processing time.
func NewRecord(sourceFile string) *Record {
	return &Record{
		ID:          uuid.New().String(),
		SourceFile:  sourceFile,
		ProcessedAt: time.Now().UTC(),
		values:      make(map[string]any),
	}
}

// Get returns the value of a business field and whether it is present.
func (r *Record) Get(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Has reports whether a business field is present.
func (r *Record) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Set stores a business field. Unsupported value types are stringified;
// nil removes the field.
func (r *Record) Set(field string, value any) {
	if value == nil {
		r.Delete(field)
		return
	}
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[field]; !exists {
		r.keys = append(r.keys, field)
	}
	r.values[field] = normalizeValue(value)
}

// Delete removes a business field.
func (r *Record) Delete(field string) {
	if _, ok := r.values[field]; !ok {
		return
	}
	delete(r.values, field)
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return k == field })
}

// Fields returns the business field names in insertion order.
func (r *Record) Fields() []string {
	return slices.Clone(r.keys)
}

// Len returns the number of business fields present.
func (r *Record) Len() int {
	return len(r.keys)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		ID:               r.ID,
		SourceFile:       r.SourceFile,
		ProcessedAt:      r.ProcessedAt,
		ValidationErrors: slices.Clone(r.ValidationErrors),
		keys:             slices.Clone(r.keys),
		values:           make(map[string]any, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Flatten renders the record as an ordered key/value list including metadata.
func (r *Record) Flatten() []KeyValue {
	out := make([]KeyValue, 0, len(r.keys)+3)
	for _, k := range r.keys {
		out = append(out, KeyValue{Key: k, Value: r.values[k]})
	}
	out = append(out,
		KeyValue{Key: MetaSourceFile, Value: r.SourceFile},
		KeyValue{Key: MetaProcessedAt, Value: r.ProcessedAt.Format(time.RFC3339Nano)},
	)
	if len(r.ValidationErrors) > 0 {
		out = append(out, KeyValue{Key: MetaValidationErrors, Value: strings.Join(r.ValidationErrors, "; ")})
	}
	return out
}

// MarshalJSON encodes the record as an object in field order, followed by
// _id and the metadata keys. Validation errors are encoded as an array.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	write := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, k := range r.keys {
		if err := write(k, r.values[k]); err != nil {
			return nil, err
		}
	}
	if err := write("_id", r.ID); err != nil {
		return nil, err
	}
	if err := write(MetaSourceFile, r.SourceFile); err != nil {
		return nil, err
	}
	if err := write(MetaProcessedAt, r.ProcessedAt.Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}
	if len(r.ValidationErrors) > 0 {
		if err := write(MetaValidationErrors, r.ValidationErrors); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// KeyValue is one entry of an ordered mapping.
type KeyValue struct {
	Key   string
	Value any
}

// normalizeValue keeps float64 and string values and coerces the rest.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case string, float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return FormatValue(val)
	}
}

// FormatValue renders a field value as text. Numbers use the shortest
// representation that round-trips (30, 30.5); nil renders as "".
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatNumber(val)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []string:
		return strings.Join(val, "; ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toNumber converts a field value to a finite float64.
func toNumber(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isPresent reports whether a value counts as filled in.
func isPresent(v any, ok bool) bool {
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}
