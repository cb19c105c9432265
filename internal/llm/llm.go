package llm

import (
	"context"
	"errors"
)

// Classifier labels free text with one mood word.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Dish is the part of a food item a prompt needs.
type Dish struct {
	Name        string
	Description string
}

// PersonalizeInput carries everything the reason prompt is built from.
type PersonalizeInput struct {
	Text  string
	Mood  string
	Foods []Dish
}

// Personalizer writes one reason per dish, in order.
type Personalizer interface {
	Personalize(ctx context.Context, input PersonalizeInput) ([]string, error)
}

// Counselor answers a free-form chat message.
type Counselor interface {
	Reply(ctx context.Context, message string) (string, error)
}

// Provider bundles the three capabilities one backend offers.
type Provider interface {
	Classifier
	Personalizer
	Counselor
}

var (
	// ErrNotImplemented is returned by the placeholder provider.
	ErrNotImplemented = errors.New("LLM not implemented")
	// ErrEmptyResponse means the provider answered without content.
	ErrEmptyResponse = errors.New("llm response empty")
	// ErrInvalidResponse means the content could not be parsed.
	ErrInvalidResponse = errors.New("llm response invalid")
)

// NoReply is stored when the counselor has nothing to say.
const NoReply = "No response from AI."

// Placeholder is used when no provider is configured.
type Placeholder struct{}

func (Placeholder) Classify(context.Context, string) (string, error) {
	return "", ErrNotImplemented
}

func (Placeholder) Personalize(context.Context, PersonalizeInput) ([]string, error) {
	return nil, ErrNotImplemented
}

func (Placeholder) Reply(context.Context, string) (string, error) {
	return "", ErrNotImplemented
}

var _ Provider = Placeholder{}
