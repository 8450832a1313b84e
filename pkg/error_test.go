package pkg

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	// Verify all sentinel errors are distinct
	errs := []error{
		ErrResourceExhausted,
		ErrOutOfMemory,
		ErrInvalidDescriptor,
		ErrRegistration,
		ErrAlreadyRemoved,
		ErrNotLoaded,
		ErrFault,
		ErrNoSpace,
		ErrOutOfBounds,
		ErrPermission,
		ErrNoDevice,
		ErrClosed,
		ErrInvalidParameter,
		ErrBusy,
		ErrNotFound,
	}

	for i, err1 := range errs {
		if err1 == nil {
			t.Errorf("error %d is nil", i)
			continue
		}
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("error %d and %d are equal", i, j)
			}
		}
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err     error
		wantMsg string
	}{
		{ErrNoSpace, "no space left on device"},
		{ErrFault, "bad address"},
		{ErrInvalidDescriptor, "invalid device descriptor"},
		{ErrAlreadyRemoved, "device already removed"},
		{ErrResourceExhausted, "resource exhausted"},
	}

	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("error.Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}

func TestWrappedErrors(t *testing.T) {
	err := fmt.Errorf("probe pcd-dev-3: %w", ErrRegistration)
	if !errors.Is(err, ErrRegistration) {
		t.Errorf("wrapped error %v does not match ErrRegistration", err)
	}
	if errors.Is(err, ErrOutOfMemory) {
		t.Errorf("wrapped error %v unexpectedly matches ErrOutOfMemory", err)
	}
}
