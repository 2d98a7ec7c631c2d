package util

import (
	"errors"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("speed_mbps must be positive")
		msg := err.Error()
		if !strings.Contains(msg, "speed_mbps must be positive") {
			t.Errorf("Error message should contain the error: %s", msg)
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ValidationError should unwrap to ErrInvalidConfig")
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("index is required", "name is required", "ratios out of range")
		msg := err.Error()
		if !strings.Contains(msg, "index") || !strings.Contains(msg, "name") || !strings.Contains(msg, "ratios") {
			t.Errorf("Error message should contain all errors: %s", msg)
		}
	})
}

func TestValidationBuilder(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(true, "this should not appear")
		v.Add(true, "neither should this")

		if v.HasErrors() {
			t.Error("Should not have errors when all conditions are true")
		}
		if err := v.Build(); err != nil {
			t.Errorf("Build() should return nil when no errors: %v", err)
		}
	})

	t.Run("with errors", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(false, "first error")
		v.Add(true, "this passes")
		v.Add(false, "second error")
		v.AddError("unconditional error")
		v.AddErrorf("formatted error: %d", 42)

		if !v.HasErrors() {
			t.Error("Should have errors")
		}

		err := v.Build()
		if err == nil {
			t.Fatal("Build() should return error")
		}

		validationErr, ok := err.(*ValidationError)
		if !ok {
			t.Fatalf("Expected *ValidationError, got %T", err)
		}
		if len(validationErr.Errors) != 4 {
			t.Errorf("Expected 4 errors, got %d", len(validationErr.Errors))
		}
	})

	t.Run("chaining", func(t *testing.T) {
		err := (&ValidationBuilder{}).
			Add(false, "error1").
			Add(false, "error2").
			AddErrorf("error%d", 3).
			Build()

		if err == nil {
			t.Fatal("Expected error")
		}
		if !strings.Contains(err.Error(), "error1") {
			t.Errorf("Missing error1 in: %s", err.Error())
		}
	})
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("interface", "42")

	msg := err.Error()
	if !strings.Contains(msg, "interface") || !strings.Contains(msg, "42") {
		t.Errorf("Error message should contain kind and name: %s", msg)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("NotFoundError should unwrap to ErrNotFound")
	}
}

func TestSentinelErrors(t *testing.T) {
	// Test that sentinel errors are distinct
	sentinels := []error{
		ErrNotFound,
		ErrInvalidConfig,
		ErrAlreadyExists,
		ErrNotSupported,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v == %v", err1, err2)
			}
		}
	}
}

func TestErrorsIsWrapping(t *testing.T) {
	// Test that errors.Is works with wrapped errors
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"ValidationError", NewValidationError("msg"), ErrInvalidConfig},
		{"NotFoundError", NewNotFoundError("pattern", "warp_speed"), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("%s should wrap %v", tt.name, tt.sentinel)
			}
		})
	}
}
