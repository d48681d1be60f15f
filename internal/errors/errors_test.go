package errors

import (
	"fmt"
	"testing"
)

func TestRLMError_Error(t *testing.T) {
	err := &RLMError{Code: CodeContextNotFound, Status: 404, Message: "context not found: foo"}
	want := "CONTEXT_NOT_FOUND: context not found: foo"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewContextNotFound(t *testing.T) {
	err := NewContextNotFound("main")
	if err.Code != CodeContextNotFound {
		t.Errorf("Code = %q, want %q", err.Code, CodeContextNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["context_id"] != "main" {
		t.Errorf("Details[context_id] = %v, want %q", err.Details["context_id"], "main")
	}
}

func TestNewContextTooLarge(t *testing.T) {
	err := NewContextTooLarge(100, 200)
	if err.Status != 413 {
		t.Errorf("Status = %d, want 413", err.Status)
	}
	if err.Details["max_bytes"] != 100 || err.Details["actual_bytes"] != 200 {
		t.Errorf("Details = %v, want max/actual set", err.Details)
	}
}

func TestNewSessionMemoryExceeded(t *testing.T) {
	err := NewSessionMemoryExceeded(1000, 2000)
	if err.Code != CodeSessionMemoryExceeded {
		t.Errorf("Code = %q, want %q", err.Code, CodeSessionMemoryExceeded)
	}
	if err.Status != 507 {
		t.Errorf("Status = %d, want 507", err.Status)
	}
}

func TestNewExecutionTimeout(t *testing.T) {
	err := NewExecutionTimeout(30000)
	if err.Code != CodeExecutionTimeout {
		t.Errorf("Code = %q, want %q", err.Code, CodeExecutionTimeout)
	}
	if err.Details["duration_ms"] != int64(30000) {
		t.Errorf("Details[duration_ms] = %v, want 30000", err.Details["duration_ms"])
	}
}

func TestNewRedosDetected(t *testing.T) {
	err := NewRedosDetected("(a+)+b", "nested quantifier")
	if err.Code != CodeRedosDetected {
		t.Errorf("Code = %q, want %q", err.Code, CodeRedosDetected)
	}
	if err.Details["pattern"] != "(a+)+b" {
		t.Errorf("Details[pattern] = %v, want %q", err.Details["pattern"], "(a+)+b")
	}
}

func TestNewInvalidInput(t *testing.T) {
	err := NewInvalidInput("context_id", "must match [A-Za-z0-9_-]+")
	if err.Code != CodeInvalidInput {
		t.Errorf("Code = %q, want %q", err.Code, CodeInvalidInput)
	}
	if err.Details["field"] != "context_id" {
		t.Errorf("Details[field] = %v, want %q", err.Details["field"], "context_id")
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("boom"))
		if err.Code != CodeInternal {
			t.Errorf("Code = %q, want %q", err.Code, CodeInternal)
		}
		if err.Message != "boom" {
			t.Errorf("Message = %q, want %q", err.Message, "boom")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)
		if err.Message != "internal error" {
			t.Errorf("Message = %q, want %q", err.Message, "internal error")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewContextNotFound("x")
		if !Is(err, CodeContextNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewContextNotFound("x")
		if Is(err, CodeSessionNotFound) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-RLMError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, CodeContextNotFound) {
			t.Error("Is() = true, want false for non-RLMError")
		}
	})
}
