package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrResolutionDegraded      ErrorKind = "ResolutionDegraded"
	ErrRegionNegotiationFailed ErrorKind = "RegionNegotiationFailed"
	ErrFieldUnavailable        ErrorKind = "FieldUnavailable"
	ErrNavigationTimeout       ErrorKind = "NavigationTimeout"
	ErrBlockedByAntiAutomation ErrorKind = "BlockedByAntiAutomation"
	ErrRetriesExhausted        ErrorKind = "RetriesExhausted"
	ErrInvalidURL              ErrorKind = "InvalidURL"
	ErrCanceled                ErrorKind = "Canceled"
	ErrInvalidRegion           ErrorKind = "InvalidRegion"
	ErrInternal                ErrorKind = "Internal"
)

type ExtractionError struct {
	Kind          ErrorKind         `json:"kind"`
	Message       string            `json:"message"`
	DiagnosticRef string            `json:"diagnostic_ref,omitempty"`
	Attempts      int               `json:"attempts,omitempty"`
	Partial       *ExtractionResult `json:"-"`
	Err           error             `json:"-"`
}

func NewError(kind ErrorKind, msg string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: msg, Err: err}
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first ExtractionError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}
