// Package core provides the business logic for sales spreadsheet normalization.
//
// This package holds all domain logic independent of any UI or transport
// layer. It is used by the web server, the unify CLI, and tests without
// modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Record: an ordered field-to-value mapping plus source-file, processing
//     time and validation metadata.
//   - Validator: the four admission rules (required fields, numeric fields,
//     canonical date, total cross-check) applied after date normalization.
//   - Ledger: the consolidated set, the exception set and the fix history.
//     Every record lives in exactly one of the first two.
//   - Pipeline: reads files, translates headers, projects, validates and
//     admits rows; repairs exceptions one at a time or in bulk.
//   - Export: CSV rendering of the consolidated set and the fix history.
//
// # Processing Flow
//
//  1. A [SpreadsheetReader] turns file bytes into a [Sheet]
//  2. A [HeaderTranslator] returns the file's [HeaderMapping]
//  3. Each row is projected to a [Record] and run through [Validator.Validate]
//  4. [Ledger.Admit] routes it to consolidated or exceptions
//  5. [Pipeline.FixException] and [Pipeline.AutoFixAll] repair exceptions
//     through a [RecordRepairer] and [Ledger.Promote] them
//
// Operations are serialized by an [OperationGate]; a second caller waits and
// then fails with [ErrPipelineBusy].
//
// # Dates
//
// [NormalizeDate] accepts ISO, slash, dash and dot layouts, Korean
// 년/월/일 dates and spreadsheet serial day counts, and emits DD-MM-YYYY.
// Input it cannot read is returned unchanged so that validation reports it.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE006: File errors (unreadable, type, size, headers, count)
//   - LLM001-LLM004: Assistant errors (unparseable output, unavailable)
//   - LED001-LED002: Ledger errors (stale index, busy)
//   - EXP001: Export errors (no data)
//   - DB001-DB002: Fix-history store errors
//   - UPL001-UPL002: Request errors (cancelled, timeout)
package core
