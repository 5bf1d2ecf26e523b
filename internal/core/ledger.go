package core

// ledger.go owns the three record collections and the only two transitions
// between them.
//
//	Admit:   new record  -> consolidated | exceptions
//	Promote: exceptions[i] -> consolidated, plus one fix-history entry
//
// Invariants:
//   - every member of exceptions carries at least one validation error
//   - len(fixHistory) equals the number of records promoted out of exceptions
//   - records are only removed from exceptions, and only by Promote

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FixEntry pairs a record as it failed validation with the repaired record
// that replaced it.
type FixEntry struct {
	ID        string    `json:"id"`
	Original  *Record   `json:"original"`
	Fixed     *Record   `json:"fixed"`
	Timestamp time.Time `json:"timestamp"`
}

// Changes returns the field-level diff of the fix.
func (f FixEntry) Changes() []FieldChange {
	return Diff(f.Original, f.Fixed)
}

// FieldChange is one business field that differs between two records.
// A nil value means the field is absent on that side.
type FieldChange struct {
	Field    string `json:"field"`
	Original any    `json:"original"`
	Fixed    any    `json:"fixed"`
}

// Counts summarizes the ledger sizes.
type Counts struct {
	Consolidated int `json:"consolidated"`
	Exceptions   int `json:"exceptions"`
	FixHistory   int `json:"fixHistory"`
}

// Ledger holds consolidated records, pending exceptions and the fix history.
type Ledger struct {
	mu           sync.RWMutex
	consolidated []*Record
	exceptions   []*Record
	fixHistory   []FixEntry

	now func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// Admit routes a freshly validated record. With no violations it joins the
// consolidated set; otherwise it becomes an exception carrying the violations.
func (l *Ledger) Admit(rec *Record, violations []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(violations) == 0 {
		rec.ValidationErrors = nil
		l.consolidated = append(l.consolidated, rec)
		return
	}
	rec.ValidationErrors = slices.Clone(violations)
	l.exceptions = append(l.exceptions, rec)
}

// Promote replaces exceptions[index] with repaired in the consolidated set and
// records the fix. The removed original is kept verbatim in the entry.
func (l *Ledger) Promote(index int, repaired *Record) (FixEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.exceptions) {
		return FixEntry{}, ErrIndexOutOfRange
	}

	original := l.exceptions[index]
	l.exceptions = slices.Delete(l.exceptions, index, index+1)

	repaired.ValidationErrors = nil
	entry := FixEntry{
		ID:        uuid.New().String(),
		Original:  original,
		Fixed:     repaired,
		Timestamp: l.now(),
	}
	l.fixHistory = append(l.fixHistory, entry)
	l.consolidated = append(l.consolidated, repaired)

	return cloneEntry(entry), nil
}

// Exception returns a copy of exceptions[index].
func (l *Ledger) Exception(index int) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if index < 0 || index >= len(l.exceptions) {
		return nil, ErrIndexOutOfRange
	}
	return l.exceptions[index].Clone(), nil
}

// Counts returns the current collection sizes.
func (l *Ledger) Counts() Counts {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Counts{
		Consolidated: len(l.consolidated),
		Exceptions:   len(l.exceptions),
		FixHistory:   len(l.fixHistory),
	}
}

// Consolidated returns copies of the consolidated records.
func (l *Ledger) Consolidated() []*Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneRecords(l.consolidated)
}

// Exceptions returns copies of the exception records.
func (l *Ledger) Exceptions() []*Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneRecords(l.exceptions)
}

// FixHistory returns copies of the fix-history entries, oldest first.
func (l *Ledger) FixHistory() []FixEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]FixEntry, len(l.fixHistory))
	for i, e := range l.fixHistory {
		out[i] = cloneEntry(e)
	}
	return out
}

// Reset empties all three collections.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.consolidated = nil
	l.exceptions = nil
	l.fixHistory = nil
}

// Diff lists the business fields whose values differ between original and
// fixed. Fields of original come first in their order, followed by fields that
// only fixed has. Metadata is ignored; absence compares as nil and values of
// different types never compare equal.
func Diff(original, fixed *Record) []FieldChange {
	var changes []FieldChange
	seen := make(map[string]bool)

	visit := func(field string) {
		if seen[field] || IsMetaKey(field) {
			return
		}
		seen[field] = true

		ov, _ := original.Get(field)
		fv, _ := fixed.Get(field)
		if !valuesEqual(ov, fv) {
			changes = append(changes, FieldChange{Field: field, Original: ov, Fixed: fv})
		}
	}

	for _, f := range original.Fields() {
		visit(f)
	}
	for _, f := range fixed.Fields() {
		visit(f)
	}
	return changes
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	default:
		return false
	}
}

func cloneRecords(recs []*Record) []*Record {
	out := make([]*Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

func cloneEntry(e FixEntry) FixEntry {
	return FixEntry{
		ID:        e.ID,
		Original:  e.Original.Clone(),
		Fixed:     e.Fixed.Clone(),
		Timestamp: e.Timestamp,
	}
}
