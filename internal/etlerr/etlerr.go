// Package etlerr holds the error taxonomy shared by the badge jobs.
//
// Fatal conditions abort the run and map to a non-zero exit code. Non-fatal
// ones are aggregated into reports and logged; they never stop a pipeline.
package etlerr

import (
	"errors"

	"go.uber.org/multierr"
)

var (
	ErrSourceNotFound        = errors.New("source not found")
	ErrParse                 = errors.New("parse error")
	ErrCastFailure           = errors.New("cast failure")
	ErrAnomalyDetected       = errors.New("anomaly detected")
	ErrSchemaDomainViolation = errors.New("schema domain violation")
	ErrRoundTripMismatch     = errors.New("round-trip count mismatch")
	ErrResourceAcquisition   = errors.New("resource acquisition failed")
	ErrConfig                = errors.New("invalid configuration")
)

// Exit codes used by the binaries.
const (
	ExitOK         = 0
	ExitFatal      = 1
	ExitValidation = 2
	ExitConfig     = 3
)

var nonFatal = []error{
	ErrCastFailure,
	ErrAnomalyDetected,
	ErrSchemaDomainViolation,
	ErrRoundTripMismatch,
}

// IsFatal reports whether err must abort the run. Unclassified errors are
// fatal, and an aggregate is fatal when any of its members is.
func IsFatal(err error) bool {
	for _, e := range multierr.Errors(err) {
		if isFatal(e) {
			return true
		}
	}
	return false
}

func isFatal(err error) bool {
	for _, e := range nonFatal {
		if errors.Is(err, e) {
			return false
		}
	}
	return true
}

// ExitCode maps err to the process exit status. A fatal failure outranks a
// round-trip mismatch reported alongside it.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case IsFatal(err):
		return ExitFatal
	case errors.Is(err, ErrRoundTripMismatch):
		return ExitValidation
	default:
		return ExitOK
	}
}
