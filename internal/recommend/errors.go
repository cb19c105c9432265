package recommend

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the parent of every caller-input error.
	ErrValidation = errors.New("validation failed")
	// ErrInputTooShort rejects free text below the minimum length.
	ErrInputTooShort = fmt.Errorf("%w: input must be at least %d characters", ErrValidation, MinInputLength)
	// ErrUnknownMood rejects a mood outside the closed set.
	ErrUnknownMood = fmt.Errorf("%w: unknown mood", ErrValidation)
	// ErrQueryTooShort rejects search queries below two characters.
	ErrQueryTooShort = fmt.Errorf("%w: query must be at least %d characters", ErrValidation, MinQueryLength)
	// ErrBatchSize rejects empty or oversized batches.
	ErrBatchSize = fmt.Errorf("%w: batch must contain between 1 and %d inputs", ErrValidation, MaxBatchInputs)

	// ErrNotFound means the requested food id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoCandidates means the mood bucket had nothing left after filtering.
	ErrNoCandidates = errors.New("no foods available for mood")

	errPersonalization = errors.New("personalization unavailable")
)
