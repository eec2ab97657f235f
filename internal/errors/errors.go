package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a standardized migration error code
type ErrorCode string

const (
	// Connection errors (CONNxx)
	ErrSourceConnect ErrorCode = "CONN01"
	ErrDestConnect   ErrorCode = "CONN02"

	// Configuration errors
	ErrConfig ErrorCode = "CONF01"

	// Read errors
	ErrSourceRead  ErrorCode = "READ01"
	ErrSourceCount ErrorCode = "READ02"

	// Per-record errors (never fatal)
	ErrTransform ErrorCode = "REC01"
	ErrDuplicate ErrorCode = "REC02"
	ErrWrite     ErrorCode = "REC03"

	// Destination maintenance errors
	ErrClean     ErrorCode = "DEST01"
	ErrIndex     ErrorCode = "DEST02"
	ErrDestCount ErrorCode = "DEST03"

	// Verification
	ErrVerifyMismatch ErrorCode = "VER01"

	// Run control
	ErrInterrupted ErrorCode = "RUN01"
)

// Mongo server error codes reported for a unique index violation
var duplicateKeyCodes = map[int]bool{
	11000: true,
	11001: true,
	12582: true,
}

// MigrationError is an error raised by one stage of a migration run
type MigrationError struct {
	Code    ErrorCode
	Stage   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *MigrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// New creates a migration error wrapping err
func New(code ErrorCode, stage, message string, err error) *MigrationError {
	return &MigrationError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}

// IsFatal reports whether an error with the given code must abort the run
func IsFatal(code ErrorCode) bool {
	switch code {
	case ErrTransform, ErrDuplicate, ErrWrite, ErrVerifyMismatch:
		return false
	default:
		return true
	}
}

// IsDuplicateKey reports whether a destination write error code is a
// duplicate-identity conflict
func IsDuplicateKey(code int) bool {
	return duplicateKeyCodes[code]
}

// CodeOf extracts the error code from err, or "" if err is not a MigrationError
func CodeOf(err error) ErrorCode {
	var me *MigrationError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return ""
}
