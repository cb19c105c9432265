package chats

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("chat not found")
	ErrValidation    = errors.New("invalid chat")
	ErrAIUnavailable = errors.New("failed to get response from AI")
)

type Repo interface {
	Create(ctx context.Context, chat Chat) error
	Get(ctx context.Context, id string) (Chat, error)
	ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]Chat, error)
}
