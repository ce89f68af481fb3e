package game

import (
	"errors"
	"fmt"

	"github.com/playperu/geoguess/internal/sampler"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("not your game")
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid game state")
	ErrAlreadyGuessed = errors.New("round already guessed")

	ErrNoLocationsAvailable  = sampler.ErrNoLocationsAvailable
	ErrInsufficientLocations = sampler.ErrInsufficientLocations

	// ErrStoreUnavailable wraps every persistence failure that is not one of
	// the domain errors above. It is the only transient class.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

var domainErrors = []error{
	ErrValidation,
	ErrUnauthorized,
	ErrForbidden,
	ErrNotFound,
	ErrInvalidState,
	ErrAlreadyGuessed,
	ErrNoLocationsAvailable,
	ErrInsufficientLocations,
	ErrStoreUnavailable,
}

// storeErr passes domain errors through and marks anything else as a
// store failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
