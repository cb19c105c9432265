package mood

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks caller mistakes. It is never retried.
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrEmptyInput      = fmt.Errorf("%w: text is empty", ErrInvalidInput)
	ErrUnknownStrategy = fmt.Errorf("%w: unknown strategy", ErrInvalidInput)
)

// Strategy outcomes. The detector consumes these and moves on; they never
// reach the caller of Detect.
var (
	ErrStrategyFailed = errors.New("strategy failed")
	ErrNoKeywordMatch = fmt.Errorf("%w: no keyword matched", ErrStrategyFailed)
)
