package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "Without cause",
			err:  New(ErrCodeQuotaExceeded, "daily limit reached"),
			want: "QUOTA_EXCEEDED: daily limit reached",
		},
		{
			name: "With cause",
			err:  Wrap(fmt.Errorf("boom"), ErrCodeInternalError, "failed to lock account"),
			want: "INTERNAL_ERROR: failed to lock account (boom)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "Nil", err: nil, want: ""},
		{name: "AppError", err: New(ErrCodeMarketNotOpen, "closed"), want: ErrCodeMarketNotOpen},
		{name: "Wrapped AppError", err: fmt.Errorf("settle: %w", New(ErrCodeAlreadySettled, "done")), want: ErrCodeAlreadySettled},
		{name: "Foreign error", err: stderrors.New("driver failure"), want: ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeInsufficientFunds, "insufficient points")
	if !Is(err, ErrCodeInsufficientFunds) {
		t.Error("Is() = false, want true")
	}
	if Is(err, ErrCodeQuotaExceeded) {
		t.Error("Is() = true for a different code")
	}
	if Is(nil, ErrCodeInternalError) {
		t.Error("Is(nil) = true, want false")
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("unique violation")
	err := Wrap(cause, ErrCodeAlreadyExists, "duplicate")
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() did not reach the wrapped cause")
	}
}
