package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "unreadable file maps correctly",
			err:         UnreadableFile("sales.xlsx", errors.New("zip: not a valid zip file")),
			wantCode:    "FILE001",
			wantMessage: "The spreadsheet could not be read",
		},
		{
			name:        "unsupported type wins over unreadable",
			err:         UnreadableFile("notes.txt", errors.New("unsupported file type \".txt\"")),
			wantCode:    "FILE002",
			wantMessage: "Only .xlsx, .xls and .csv files are accepted",
		},
		{
			name:        "too many files maps correctly",
			err:         fmt.Errorf("%w: 25 > 20", ErrTooManyFiles),
			wantCode:    "FILE006",
			wantMessage: "Too many files in one upload",
		},
		{
			name:        "oversized file maps correctly",
			err:         fmt.Errorf("big.xlsx: %w", ErrFileTooLarge),
			wantCode:    "FILE003",
			wantMessage: "File exceeds the upload size limit",
		},
		{
			name:        "translation parse error maps correctly",
			err:         &TranslationParseError{Response: "nope", Err: errors.New("invalid character 'n'")},
			wantCode:    "LLM001",
			wantMessage: "The header translation could not be understood",
		},
		{
			name:        "repair parse error maps correctly",
			err:         &RepairParseError{Response: "[]", Err: errors.New("expected object")},
			wantCode:    "LLM002",
			wantMessage: "The suggested fix could not be understood",
		},
		{
			name:        "assistant timeout maps to assistant, not request",
			err:         fmt.Errorf("%w: %w", ErrAssistantUnavailable, context.DeadlineExceeded),
			wantCode:    "LLM003",
			wantMessage: "The completion service could not be reached",
		},
		{
			name:        "missing api key maps correctly",
			err:         ErrAssistantNotConfigured,
			wantCode:    "LLM004",
			wantMessage: "The assistant is not configured",
		},
		{
			name:        "stale index maps correctly",
			err:         fmt.Errorf("fix 7: %w", ErrIndexOutOfRange),
			wantCode:    "LED001",
			wantMessage: "The exception no longer exists",
		},
		{
			name:        "busy pipeline maps correctly",
			err:         ErrPipelineBusy,
			wantCode:    "LED002",
			wantMessage: "Another operation is running",
		},
		{
			name:        "no data maps correctly",
			err:         ErrNoData,
			wantCode:    "EXP001",
			wantMessage: "There is nothing to export",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
			wantCode:    "DB001",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "request timeout maps correctly",
			err:         context.DeadlineExceeded,
			wantCode:    "UPL002",
			wantMessage: "Request timed out",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("NO DATA TO EXPORT"),
			wantCode:    "EXP001",
			wantMessage: "There is nothing to export",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrNoData)

	expected := "There is nothing to export (Code: EXP001). Process files first"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  ErrIndexOutOfRange,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("fix 3: %w", ErrIndexOutOfRange)
		userErr := NewUserError(techErr)

		if userErr.Error() != "The exception no longer exists" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}

		if !errors.Is(userErr, ErrIndexOutOfRange) {
			t.Error("Unwrap() should reach the original error")
		}
	})
}
