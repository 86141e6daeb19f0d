package core

import (
	"errors"
	"fmt"
)

// Sentinel errors, match with errors.Is.
var (
	ErrEmptyInput       = errors.New("empty file")
	ErrDossierNotFound  = errors.New("dossier not found")
	ErrCommitAborted    = errors.New("import aborted")
	ErrAuditUnavailable = errors.New("audit log unavailable")
)

// EmptyInputError reports a workbook with no sheet or no data rows.
type EmptyInputError struct {
	Reason string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty file: %s", e.Reason)
}

// Is allows errors.Is() to match against ErrEmptyInput.
func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// ParseError reports a payload that could not be read as a workbook.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid workbook: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// rowError is a commit failure whose message is already user facing.
type rowError struct {
	msg string
}

func (e *rowError) Error() string {
	return e.msg
}

func newRowError(format string, args ...any) error {
	return &rowError{msg: fmt.Sprintf(format, args...)}
}
