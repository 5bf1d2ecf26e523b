package core

// pipeline.go drives the end-to-end flow over the ledger:
//
//	file bytes -> SpreadsheetReader -> headers + rows
//	headers    -> HeaderTranslator (assistant) -> HeaderMapping
//	row        -> HeaderMapping.Project -> Validator -> Ledger.Admit
//
// and the resolution flow:
//
//	Ledger.Exception(i) -> RecordRepairer (assistant) -> Ledger.Promote(i)
//
// Files are handled one at a time and header translation is awaited before
// any row is projected. A failure aborts only the current unit of work (one
// file, or one record) and is reported; the pipeline then moves on.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/salesunifier/internal/logging"
)

// SpreadsheetReader parses raw file bytes into headers and rows.
// Implementations wrap failures with ErrUnreadableFile.
type SpreadsheetReader interface {
	Read(ctx context.Context, name string, data []byte) (*Sheet, error)
}

// HeaderTranslator maps raw header labels onto canonical fields.
type HeaderTranslator interface {
	Translate(ctx context.Context, headers []string) (HeaderMapping, error)
}

// RecordRepairer asks for a corrected version of a failing record.
// The returned record is a new record; the input is not modified.
type RecordRepairer interface {
	Repair(ctx context.Context, rec *Record) (*Record, error)
}

// FixRecorder persists fix-history entries for audit.
type FixRecorder interface {
	RecordFix(ctx context.Context, entry FixEntry, changes []FieldChange) error
}

// NopRecorder discards fix-history entries.
type NopRecorder struct{}

// RecordFix implements FixRecorder.
func (NopRecorder) RecordFix(context.Context, FixEntry, []FieldChange) error { return nil }

// FileInput is one uploaded spreadsheet.
type FileInput struct {
	Name string
	Data []byte
}

// FileResult describes how one file was processed.
type FileResult struct {
	FileName     string        `json:"fileName"`
	Rows         int           `json:"rows"`
	Consolidated int           `json:"consolidated"`
	Exceptions   int           `json:"exceptions"`
	Mapping      HeaderMapping `json:"mapping,omitempty"`
	Unmapped     []string      `json:"unmapped,omitempty"`
	DroppedRows  int           `json:"droppedRows,omitempty"`
	Error        string        `json:"error,omitempty"`
	Code         string        `json:"code,omitempty"`

	err error
}

// Err returns the failure of this file, if any.
func (r FileResult) Err() error {
	return r.err
}

// ProcessReport is the outcome of a ProcessFiles run.
type ProcessReport struct {
	Files    []FileResult  `json:"files"`
	Counts   Counts        `json:"counts"`
	Notices  []string      `json:"notices,omitempty"`
	Duration time.Duration `json:"duration"`
}

// FailedFiles returns how many files could not be processed.
func (r ProcessReport) FailedFiles() int {
	n := 0
	for _, f := range r.Files {
		if f.err != nil {
			n++
		}
	}
	return n
}

// FixFailure describes one record that could not be repaired.
type FixFailure struct {
	Index      int    `json:"index"`
	SourceFile string `json:"sourceFile"`
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
}

// BulkFixReport is the outcome of AutoFixAll.
type BulkFixReport struct {
	Total     int          `json:"total"`
	Fixed     int          `json:"fixed"`
	Remaining int          `json:"remaining"`
	Failures  []FixFailure `json:"failures,omitempty"`
	Message   string       `json:"message"`
	Notices   []string     `json:"notices,omitempty"`
}

// Complete reports whether every exception was fixed.
func (r BulkFixReport) Complete() bool {
	return r.Remaining == 0
}

// Pipeline owns a ledger and the collaborators that feed and repair it.
type Pipeline struct {
	reader     SpreadsheetReader
	translator HeaderTranslator
	repairer   RecordRepairer
	recorder   FixRecorder
	validator  *Validator
	ledger     *Ledger
	gate       *OperationGate
	metrics    *Metrics
}

// PipelineDeps are the collaborators of a Pipeline. Reader, Translator and
// Repairer are required; the rest have working defaults.
type PipelineDeps struct {
	Reader     SpreadsheetReader
	Translator HeaderTranslator
	Repairer   RecordRepairer
	Recorder   FixRecorder
	Validator  *Validator
	Ledger     *Ledger
	Gate       *OperationGate
	Metrics    *Metrics
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	if deps.Reader == nil {
		return nil, errors.New("pipeline: spreadsheet reader is required")
	}
	if deps.Translator == nil {
		return nil, errors.New("pipeline: header translator is required")
	}
	if deps.Repairer == nil {
		return nil, errors.New("pipeline: record repairer is required")
	}

	p := &Pipeline{
		reader:     deps.Reader,
		translator: deps.Translator,
		repairer:   deps.Repairer,
		recorder:   deps.Recorder,
		validator:  deps.Validator,
		ledger:     deps.Ledger,
		gate:       deps.Gate,
		metrics:    deps.Metrics,
	}
	if p.recorder == nil {
		p.recorder = NopRecorder{}
	}
	if p.validator == nil {
		p.validator = NewValidator(nil)
	}
	if p.ledger == nil {
		p.ledger = NewLedger()
	}
	if p.gate == nil {
		p.gate = NewOperationGate(DefaultGateWait)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p, nil
}

// Ledger returns the ledger the pipeline feeds.
func (p *Pipeline) Ledger() *Ledger {
	return p.ledger
}

// Validator returns the validator used for admission.
func (p *Pipeline) Validator() *Validator {
	return p.validator
}

// GateStatus reports whether an operation is in progress.
func (p *Pipeline) GateStatus() GateStatus {
	return p.gate.Status()
}

// WaitIdle blocks until the running operation, if any, finishes.
func (p *Pipeline) WaitIdle(ctx context.Context) error {
	return p.gate.WaitForDrain(ctx)
}

// ProcessFiles starts a new run: the ledger is emptied and every file is
// read, translated, projected, validated and admitted in order. A failing file
// is reported in its FileResult and does not stop the remaining files.
func (p *Pipeline) ProcessFiles(ctx context.Context, files []FileInput) (ProcessReport, error) {
	if err := p.gate.Acquire(ctx, "process_files"); err != nil {
		return ProcessReport{}, err
	}
	defer p.gate.Release()

	start := time.Now()
	logger := logging.FromContext(ctx)
	p.ledger.Reset()

	report := ProcessReport{Files: make([]FileResult, 0, len(files))}
	for i, f := range files {
		logger.Info("processing file", "file", f.Name, "position", i+1, "total", len(files))

		result := p.processFile(ctx, f)
		if result.err != nil {
			msg := MapError(result.err)
			result.Error = result.err.Error()
			result.Code = msg.Code
			report.Notices = append(report.Notices, fmt.Sprintf("Error processing %s: %s", f.Name, msg.Message))
			logger.Warn("file processing failed", "file", f.Name, "error", result.err, "code", msg.Code)
			p.metrics.FilesProcessed.WithLabelValues("failed").Inc()
		} else {
			logger.Info("file processed",
				"file", f.Name,
				"rows", result.Rows,
				"consolidated", result.Consolidated,
				"exceptions", result.Exceptions,
			)
			p.metrics.FilesProcessed.WithLabelValues("ok").Inc()
			if result.DroppedRows > 0 {
				report.Notices = append(report.Notices, droppedRowsNotice(result))
				logger.Warn("row limit reached, rows dropped",
					"file", f.Name, "rows", result.Rows, "dropped", result.DroppedRows)
			}
		}
		report.Files = append(report.Files, result)
	}

	report.Counts = p.ledger.Counts()
	report.Duration = time.Since(start)
	p.metrics.SetLedger(report.Counts)
	return report, nil
}

func droppedRowsNotice(r FileResult) string {
	return fmt.Sprintf("%s: row limit reached, only the first %d rows were processed and %d were dropped",
		r.FileName, r.Rows, r.DroppedRows)
}

// processFile handles a single file. Errors abort this file only.
func (p *Pipeline) processFile(ctx context.Context, f FileInput) FileResult {
	result := FileResult{FileName: f.Name}

	sheet, err := p.reader.Read(ctx, f.Name, f.Data)
	if err != nil {
		result.err = err
		return result
	}

	start := time.Now()
	mapping, err := p.translator.Translate(ctx, sheet.Headers)
	p.metrics.ObserveAssistant("translate", start)
	if err != nil {
		result.err = err
		return result
	}
	result.Mapping = mapping
	result.Unmapped = unmappedHeaders(sheet.Headers, mapping)
	result.DroppedRows = sheet.DroppedRows

	for _, row := range sheet.Rows {
		rec := mapping.Project(row, f.Name)
		violations := p.validator.Validate(rec)
		p.ledger.Admit(rec, violations)

		result.Rows++
		if len(violations) == 0 {
			result.Consolidated++
			p.metrics.RecordsAdmitted.WithLabelValues("consolidated").Inc()
		} else {
			result.Exceptions++
			p.metrics.RecordsAdmitted.WithLabelValues("exception").Inc()
		}
	}
	return result
}

// FixException repairs exceptions[index] through the assistant and promotes
// the result into the consolidated set.
func (p *Pipeline) FixException(ctx context.Context, index int) (FixEntry, []string, error) {
	if err := p.gate.Acquire(ctx, "fix_exception"); err != nil {
		return FixEntry{}, nil, err
	}
	defer p.gate.Release()

	entry, notices, err := p.fixOne(ctx, index)
	p.metrics.SetLedger(p.ledger.Counts())
	return entry, notices, err
}

// AutoFixAll attempts to repair every exception. Indices are visited from
// last to first so that removing a promoted record never shifts an index that
// has not been visited yet. Failures leave the record in place and are
// collected; the run continues with the next index.
func (p *Pipeline) AutoFixAll(ctx context.Context) (BulkFixReport, error) {
	if err := p.gate.Acquire(ctx, "auto_fix_all"); err != nil {
		return BulkFixReport{}, err
	}
	defer p.gate.Release()

	logger := logging.FromContext(ctx)
	total := p.ledger.Counts().Exceptions
	report := BulkFixReport{Total: total}
	if total == 0 {
		report.Message = "No exceptions to fix"
		return report, nil
	}

	for i := total - 1; i >= 0; i-- {
		logger.Debug("auto-fixing record", "position", total-i, "total", total, "index", i)

		_, notices, err := p.fixOne(ctx, i)
		report.Notices = append(report.Notices, notices...)
		if err != nil {
			msg := MapError(err)
			failure := FixFailure{Index: i, Error: err.Error(), Code: msg.Code}
			if rec, lookupErr := p.ledger.Exception(i); lookupErr == nil {
				failure.SourceFile = rec.SourceFile
			}
			report.Failures = append(report.Failures, failure)
			report.Notices = append(report.Notices, fmt.Sprintf("Failed to fix record: %s", msg.Message))
			continue
		}
		report.Fixed++
	}

	report.Remaining = p.ledger.Counts().Exceptions
	if report.Remaining == 0 {
		report.Message = fmt.Sprintf("Successfully fixed all %d records! Exception section cleared.", total)
	} else {
		report.Message = fmt.Sprintf("Fixed %d of %d records. %d exceptions remain.",
			total-report.Remaining, total, report.Remaining)
	}
	logger.Info("auto-fix completed", "total", total, "fixed", report.Fixed, "remaining", report.Remaining)
	p.metrics.SetLedger(p.ledger.Counts())
	return report, nil
}

// fixOne repairs and promotes a single exception. The caller holds the gate.
func (p *Pipeline) fixOne(ctx context.Context, index int) (FixEntry, []string, error) {
	logger := logging.FromContext(ctx)

	original, err := p.ledger.Exception(index)
	if err != nil {
		return FixEntry{}, nil, err
	}

	start := time.Now()
	repaired, err := p.repairer.Repair(ctx, original)
	p.metrics.ObserveAssistant("repair", start)
	if err != nil {
		p.metrics.FixesAttempted.WithLabelValues("failed").Inc()
		logger.Warn("record repair failed",
			"index", index,
			"file", original.SourceFile,
			"error", err,
		)
		return FixEntry{}, nil, err
	}

	// The repaired record is trusted as returned. Re-running the rules here
	// only feeds the log so that a still-invalid fix is visible.
	if remaining := p.validator.Validate(repaired.Clone()); len(remaining) > 0 {
		logger.Debug("repaired record still violates rules",
			"index", index,
			"violations", len(remaining),
		)
	}

	entry, err := p.ledger.Promote(index, repaired)
	if err != nil {
		return FixEntry{}, nil, err
	}
	p.metrics.FixesAttempted.WithLabelValues("ok").Inc()

	changes := entry.Changes()
	logger.Info("record fixed",
		"index", index,
		"file", original.SourceFile,
		"changes", len(changes),
	)

	var notices []string
	if err := p.recorder.RecordFix(ctx, entry, changes); err != nil {
		logger.Warn("failed to persist fix history", "fix_id", entry.ID, "error", err)
		notices = append(notices, fmt.Sprintf("Fix %s applied but not persisted: %s", entry.ID, MapError(err).Message))
	}
	return entry, notices, nil
}

func unmappedHeaders(headers []string, mapping HeaderMapping) []string {
	mapped := make(map[string]bool, len(mapping))
	for _, fm := range mapping {
		mapped[fm.Raw] = true
	}
	var out []string
	for _, h := range headers {
		if !mapped[h] {
			out = append(out, h)
		}
	}
	return out
}
