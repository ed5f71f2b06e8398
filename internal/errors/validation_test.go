package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("question_id", "is required", "")

	if err.Field != "question_id" {
		t.Errorf("Expected field to be 'question_id', got '%s'", err.Field)
	}

	if err.Message != "is required" {
		t.Errorf("Expected message to be 'is required', got '%s'", err.Message)
	}

	expected := "validation error on field 'question_id': is required"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("user_id", "is required", nil))
	expected := "validation failed: user_id is required"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("test_paper_id", "is required", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("subject", "must be a valid subject", "subject", "History")

	if err.Rule != "subject" {
		t.Errorf("Expected rule to be 'subject', got '%s'", err.Rule)
	}

	if err.Value != "History" {
		t.Errorf("Expected value to be 'History', got '%v'", err.Value)
	}
}
