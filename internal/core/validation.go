package core

// validation.go checks a normalized record against the sales business rules.
//
// All rules run on every record, and violations are reported in a fixed order:
//  1. Required fields present and non-empty
//  2. quantity, unit_price and total_amount numeric
//  3. date in DD-MM-YYYY (after normalization)
//  4. quantity x unit_price matches total_amount within MismatchTolerance
//
// Date normalization is fused into validation: a present date is rewritten in
// place before the format rule runs.

import (
	"fmt"
	"math"
	"slices"
)

// MismatchTolerance is the largest accepted gap between quantity x unit_price
// and total_amount.
const MismatchTolerance = 0.01

// numericFields must hold finite numbers when present.
var numericFields = []string{FieldQuantity, FieldUnitPrice, FieldTotalAmount}

// Violation messages.
const (
	msgMissingField   = "Missing required field: %s"
	msgNotNumeric     = "%s must be numeric"
	msgDateFormat     = "Date must be in DD-MM-YYYY format"
	msgAmountMismatch = "Total amount mismatch: %s vs %s"
)

// Validator applies the record rules with a fixed set of required fields.
type Validator struct {
	required []string
}

// NewValidator creates a validator. Required fields are checked in the given
// order; nil means DefaultRequiredFields.
func NewValidator(required []string) *Validator {
	if required == nil {
		required = DefaultRequiredFields
	}
	return &Validator{required: slices.Clone(required)}
}

// RequiredFields returns the fields this validator treats as mandatory.
func (v *Validator) RequiredFields() []string {
	return slices.Clone(v.required)
}

// Validate returns every rule violation for rec. An empty result means the
// record is valid. A present date field is normalized in place.
func (v *Validator) Validate(rec *Record) []string {
	var violations []string

	if raw, ok := rec.Get(FieldDate); isPresent(raw, ok) {
		rec.Set(FieldDate, NormalizeDate(FormatValue(raw)))
	}

	for _, field := range v.required {
		if val, ok := rec.Get(field); !isPresent(val, ok) {
			violations = append(violations, fmt.Sprintf(msgMissingField, field))
		}
	}

	for _, field := range numericFields {
		val, ok := rec.Get(field)
		if !isPresent(val, ok) {
			continue
		}
		if _, numeric := toNumber(val); !numeric {
			violations = append(violations, fmt.Sprintf(msgNotNumeric, field))
		}
	}

	if val, ok := rec.Get(FieldDate); isPresent(val, ok) && !IsCanonicalDate(FormatValue(val)) {
		violations = append(violations, msgDateFormat)
	}

	if msg, ok := checkTotal(rec); !ok {
		violations = append(violations, msg)
	}

	return violations
}

// checkTotal cross-checks quantity x unit_price against total_amount. Records
// missing any of the three, or holding non-numeric values, are skipped here
// because the earlier rules already report them.
func checkTotal(rec *Record) (string, bool) {
	values := make([]float64, 0, len(numericFields))
	for _, field := range numericFields {
		raw, ok := rec.Get(field)
		if !isPresent(raw, ok) {
			return "", true
		}
		f, numeric := toNumber(raw)
		if !numeric {
			return "", true
		}
		values = append(values, f)
	}

	calculated := values[0] * values[1]
	actual := values[2]
	if math.Abs(calculated-actual) > MismatchTolerance {
		return fmt.Sprintf(msgAmountMismatch, formatNumber(calculated), formatNumber(actual)), false
	}
	return "", true
}
