package services

import (
	"errors"
	"fmt"

	apperrors "github.com/medjeex/exam-engine/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")

	// Test paper / series errors
	ErrTestPaperNotFound  = errors.New("test paper not found")
	ErrTestSeriesNotFound = errors.New("test series not found")
	ErrNotPurchased       = errors.New("test series not purchased")
	ErrNoQuestions        = errors.New("test paper has no questions")

	// Attempt lifecycle errors
	ErrAttemptNotFound      = errors.New("no open attempt found for this test paper")
	ErrAttemptAlreadyOpen   = errors.New("an attempt is already in progress for this test paper")
	ErrAttemptSubmitted     = errors.New("attempt has already been submitted")
	ErrAttemptLimitReached  = errors.New("maximum attempts for this test paper reached")
	ErrWindowClosed         = errors.New("the start window for this test paper has closed")
	ErrQuestionNotInAttempt = errors.New("question does not belong to this attempt")

	// Question snapshot errors
	ErrSnapshotIntegrity = errors.New("attempt state is missing a question present in the paper")

	// Storage
	ErrStorageFailure = errors.New("storage unavailable")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// StorageError wraps a persistence failure so callers can retry without
// inspecting driver-specific errors.
type StorageError struct {
	Op  string `json:"op"`
	Err error  `json:"-"`
}

func (se *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", se.Op, se.Err)
}

func (se *StorageError) Unwrap() error { return ErrStorageFailure }

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTestPaperNotFound) ||
		errors.Is(err, ErrTestSeriesNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrQuestionNotInAttempt) ||
		errors.Is(err, ErrNoQuestions)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrAttemptAlreadyOpen) ||
		errors.Is(err, ErrAttemptSubmitted) ||
		errors.Is(err, ErrAttemptLimitReached)
}

// IsWindowViolation checks if error represents a timing rule violation
func IsWindowViolation(err error) bool {
	return errors.Is(err, ErrWindowClosed)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

// IsStorage checks if error represents a retryable persistence failure
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// IsForbidden checks if error represents an entitlement failure
func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotPurchased)
}
