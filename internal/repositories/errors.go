package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrDuplicateOpenAttempt is returned by AttemptRepository.Create when
// an open session already holds the identity triple.
var ErrDuplicateOpenAttempt = errors.New("an open attempt already exists for this user and test paper")

// IsNotFoundError reports whether err represents a missing record.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError reports whether err represents a uniqueness conflict.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicateOpenAttempt) || errors.Is(err, gorm.ErrDuplicatedKey)
}
