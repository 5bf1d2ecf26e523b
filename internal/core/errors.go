package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableFile is returned when a spreadsheet cannot be parsed.
	// Fatal to that file only.
	ErrUnreadableFile = errors.New("unreadable file")

	// ErrIndexOutOfRange is returned when an exception index is stale.
	ErrIndexOutOfRange = errors.New("exception index out of range")

	// ErrNoData is returned by exports when there is nothing to export.
	ErrNoData = errors.New("no data to export")

	// ErrAssistantUnavailable wraps transport and HTTP failures of the
	// completion service.
	ErrAssistantUnavailable = errors.New("assistant unavailable")

	// ErrAssistantNotConfigured is returned before any request is made when
	// no API key is set.
	ErrAssistantNotConfigured = errors.New("assistant api key not configured")

	// Upload request errors.
	ErrNoFiles      = errors.New("no files provided")
	ErrTooManyFiles = errors.New("too many files")
	ErrFileTooLarge = errors.New("file too large")
)

// TranslationParseError reports an assistant header-translation response that
// is not a well-formed mapping.
type TranslationParseError struct {
	Response string
	Err      error
}

func (e *TranslationParseError) Error() string {
	return fmt.Sprintf("header translation parse: %v", e.Err)
}

func (e *TranslationParseError) Unwrap() error {
	return e.Err
}

// RepairParseError reports an assistant record-repair response that is not a
// well-formed record.
type RepairParseError struct {
	Response string
	Err      error
}

func (e *RepairParseError) Error() string {
	return fmt.Sprintf("record repair parse: %v", e.Err)
}

func (e *RepairParseError) Unwrap() error {
	return e.Err
}

// UnreadableFile wraps a reader failure so that errors.Is holds for both
// ErrUnreadableFile and the cause.
func UnreadableFile(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnreadableFile, name, err)
}
