package matching

import (
	"errors"
	"fmt"

	"github.com/imadgeboyega/kiekky-matchcore/internal/store"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrDependency = errors.New("dependency failure")
	ErrForbidden  = errors.New("not allowed to perform this action")
	ErrCacheMiss  = errors.New("no cached result")
	ErrExists     = errors.New("already exists")

	ErrSelfScore         = fmt.Errorf("%w: cannot score a user against themselves", ErrValidation)
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrValidation)
)

// storeErr translates store errors into the package taxonomy. Anything the
// store cannot classify is a dependency failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%s: %w", op, ErrExists)
	case errors.Is(err, store.ErrInvalid):
		return fmt.Errorf("%s: %w: %v", op, ErrValidation, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrDependency, err)
	}
}
