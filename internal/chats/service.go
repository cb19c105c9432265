package chats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"moodfood-backend/internal/llm"
	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/shared/telemetry"
)

const (
	defaultReplyTimeout = 30 * time.Second
	maxMessageLength    = 4000
	defaultPageSize     = 20
	maxPageSize         = 100
)

// SendInput is what a caller posts. Mood, Recommendation and Reason are
// stored as given; a blank Mood is filled in by the detector when one is set.
type SendInput struct {
	Message        string `json:"message"`
	Mood           string `json:"mood"`
	Recommendation string `json:"recommendation"`
	Reason         string `json:"reason"`
}

type Service struct {
	Repo         Repo
	Counselor    llm.Counselor
	Detector     *mood.Detector
	ReplyTimeout time.Duration
	Now          func() time.Time
	NewID        func() string
}

func NewService(repo Repo, counselor llm.Counselor, detector *mood.Detector) *Service {
	return &Service{
		Repo:         repo,
		Counselor:    counselor,
		Detector:     detector,
		ReplyTimeout: defaultReplyTimeout,
		Now:          time.Now,
		NewID:        uuid.NewString,
	}
}

// Send asks the counselor for a reply and stores the exchange. Nothing is
// stored when the counselor fails.
func (s *Service) Send(ctx context.Context, creatorID string, in SendInput) (Chat, error) {
	if s == nil || s.Repo == nil {
		return Chat{}, errors.New("chats service not configured")
	}
	creatorID = strings.TrimSpace(creatorID)
	message := strings.TrimSpace(in.Message)
	switch {
	case message == "":
		return Chat{}, fmt.Errorf("%w: message is required", ErrValidation)
	case creatorID == "":
		return Chat{}, fmt.Errorf("%w: creator is required", ErrValidation)
	case utf8.RuneCountInString(message) > maxMessageLength:
		return Chat{}, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, maxMessageLength)
	}
	var moodLabel string
	if raw := strings.TrimSpace(in.Mood); raw != "" {
		m, ok := mood.ParseLabel(raw)
		if !ok {
			return Chat{}, fmt.Errorf("%w: unknown mood %q", ErrValidation, raw)
		}
		moodLabel = string(m)
	}

	reply, err := s.reply(ctx, message)
	if err != nil {
		telemetry.Error("chat.reply_failed", map[string]any{
			"creator_id": creatorID,
			"error":      err.Error(),
		})
		return Chat{}, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	if moodLabel == "" && s.Detector != nil {
		if res, derr := s.Detector.Detect(ctx, message, mood.KeywordStrategy{}, mood.FallbackStrategy{}); derr == nil {
			moodLabel = string(res.Mood)
		}
	}

	chat := Chat{
		ID:             s.newID(),
		CreatorID:      creatorID,
		Message:        message,
		Reply:          reply,
		Mood:           moodLabel,
		Recommendation: strings.TrimSpace(in.Recommendation),
		Reason:         strings.TrimSpace(in.Reason),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, chat); err != nil {
		return Chat{}, err
	}
	return chat, nil
}

func (s *Service) reply(ctx context.Context, message string) (string, error) {
	if s.Counselor == nil {
		return "", llm.ErrNotImplemented
	}
	timeout := s.ReplyTimeout
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := s.Counselor.Reply(callCtx, message)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return llm.NoReply, nil
	}
	return reply, nil
}

// Get returns a chat owned by creatorID. Chats of other creators are
// reported as missing.
func (s *Service) Get(ctx context.Context, creatorID, id string) (Chat, error) {
	if s == nil || s.Repo == nil {
		return Chat{}, errors.New("chats service not configured")
	}
	if strings.TrimSpace(id) == "" {
		return Chat{}, fmt.Errorf("%w: chat id is required", ErrValidation)
	}
	chat, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Chat{}, err
	}
	if chat.CreatorID != creatorID {
		return Chat{}, ErrNotFound
	}
	return chat, nil
}

// List pages through a creator's chats, newest first.
func (s *Service) List(ctx context.Context, creatorID string, limit, offset int) ([]Chat, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("chats service not configured")
	}
	if strings.TrimSpace(creatorID) == "" {
		return nil, fmt.Errorf("%w: creator is required", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByCreator(ctx, creatorID, limit, offset)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
