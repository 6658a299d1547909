package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for every caller-reportable failure. Operations wrap
// them with context, so match with errors.Is.
var (
	ErrParse            = errors.New("failed to parse file")
	ErrEmptyInput       = errors.New("uploaded file contains no data")
	ErrMissingIndex     = errors.New("missing index column")
	ErrNoTimeColumns    = errors.New("no time columns")
	ErrNoSheets         = errors.New("no sheets parsed")
	ErrUnknownSeries    = errors.New("unknown series name")
	ErrUnknownLabel     = errors.New("unknown label")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrNotFound         = errors.New("not found")
	ErrNoRowForDate     = errors.New("no row found for date")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidTransform = errors.New("invalid transform")
	ErrInvalidFormat    = errors.New("unsupported export format")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNoFiles          = errors.New("select at least one file to plot")
	ErrTooManyFiles     = errors.New("too many files to plot")
)

// ParseError reports bytes that could not be decoded as the declared format.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse file %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

func parseError(filename string, err error) error {
	return &ParseError{Filename: filename, Err: err}
}

// StatusCode returns the HTTP status a transport should use for err.
// Every taxonomy member is bad input except unknown entity ids.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case isTaxonomyError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isTaxonomyError(err error) bool {
	for _, target := range []error{
		ErrParse, ErrEmptyInput, ErrMissingIndex, ErrNoTimeColumns, ErrNoSheets,
		ErrUnknownSeries, ErrUnknownLabel, ErrUnknownColumn, ErrNoRowForDate,
		ErrInvalidDate, ErrInvalidTransform, ErrInvalidFormat, ErrInvalidRequest,
		ErrNoFiles, ErrTooManyFiles,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
