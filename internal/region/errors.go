package region

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a missing required field or malformed geometry.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown region id, page key or page position.
	ErrNotFound = errors.New("not found")

	// ErrIndex marks a page position outside the known pages.
	// It wraps ErrNotFound so callers may treat both alike.
	ErrIndex = fmt.Errorf("%w: page index out of range", ErrNotFound)

	// ErrFormat marks an unparseable or unrecognized book record.
	ErrFormat = errors.New("format error")

	// ErrConsistency marks a disagreement between the flat region list and
	// the page index. It is never reconciled automatically.
	ErrConsistency = errors.New("consistency error")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func consistencyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}
