package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation wraps every problem found in a catalog document.
	ErrValidation = errors.New("catalog validation failed")
	// ErrNotLoaded is returned by reads before the first successful load.
	ErrNotLoaded = errors.New("catalog not loaded")
)

// LoadError reports a failed load or reload. The previous snapshot, if
// any, stays in effect.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load catalog from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
