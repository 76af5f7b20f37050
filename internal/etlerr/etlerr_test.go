package etlerr

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/multierr"
)

func TestIsFatal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"source", fmt.Errorf("loader: %w", ErrSourceNotFound), true},
		{"parse", fmt.Errorf("loader: %w", ErrParse), true},
		{"resource", ErrResourceAcquisition, true},
		{"config", ErrConfig, true},
		{"unclassified", errors.New("boom"), true},
		{"cast", fmt.Errorf("clean: %w", ErrCastFailure), false},
		{"anomaly", ErrAnomalyDetected, false},
		{"domain", ErrSchemaDomainViolation, false},
		{"roundtrip", fmt.Errorf("export: %w", ErrRoundTripMismatch), false},
		{"warnings only", multierr.Combine(ErrAnomalyDetected, fmt.Errorf("clean: %w", ErrCastFailure)), false},
		{"mismatch and close failure", multierr.Append(fmt.Errorf("export: %w", ErrRoundTripMismatch), errors.New("close session")), true},
	}
	for _, tc := range cases {
		if got := IsFatal(tc.err); got != tc.want {
			t.Fatalf("%s: IsFatal=%v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{fmt.Errorf("x: %w", ErrSourceNotFound), ExitFatal},
		{fmt.Errorf("x: %w", ErrConfig), ExitConfig},
		{fmt.Errorf("x: %w", ErrRoundTripMismatch), ExitValidation},
		{ErrAnomalyDetected, ExitOK},
		{multierr.Append(fmt.Errorf("x: %w", ErrRoundTripMismatch), errors.New("close session")), ExitFatal},
		{multierr.Append(fmt.Errorf("x: %w", ErrRoundTripMismatch), ErrAnomalyDetected), ExitValidation},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Fatalf("ExitCode(%v)=%d; want %d", tc.err, got, tc.want)
		}
	}
}
