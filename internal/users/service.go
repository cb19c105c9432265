package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"moodfood-backend/internal/shared/auth"
	"moodfood-backend/internal/shared/telemetry"
)

const bcryptCost = 10

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterInput is the payload of POST /users/register.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password" validate:"required,max=72"`
	Username string `json:"username" validate:"max=64"`
}

// LoginInput is the payload of POST /users/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

// Session is what a successful login hands back.
type Session struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

type Service struct {
	Repo     Repo
	Validate *validator.Validate
	Sign     func(auth.Claims) (string, error)
	NewID    func() string
}

func NewService(repo Repo) *Service {
	return &Service{
		Repo:     repo,
		Validate: validator.New(),
		Sign:     auth.SignJWT,
		NewID:    uuid.NewString,
	}
}

// ValidEmail applies the same loose format check used at registration.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Register creates a password account. The email is stored trimmed and
// compared case-insensitively.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if !ValidEmail(in.Email) {
		return User{}, ErrInvalidEmail
	}
	if err := s.validate(in); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		ID:           s.newID(),
		Email:        in.Email,
		Username:     in.Username,
		Provider:     ProviderPassword,
		PasswordHash: string(hash),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	telemetry.Info("user.registered", map[string]any{"user_id": user.ID})
	return s.Repo.GetByID(ctx, user.ID)
}

// Login checks the password and issues a token. Unknown emails report
// ErrNotFound and wrong passwords ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	if s == nil || s.Repo == nil {
		return Session{}, errors.New("users service not configured")
	}
	in.Email = strings.TrimSpace(in.Email)
	if !ValidEmail(in.Email) {
		return Session{}, ErrInvalidEmail
	}
	if err := s.validate(in); err != nil {
		return Session{}, err
	}

	user, err := s.Repo.GetByEmail(ctx, in.Email)
	if err != nil {
		return Session{}, err
	}
	if user.PasswordHash == "" {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	name := user.Username
	if name == "" {
		name = user.FullName
	}
	sign := s.Sign
	if sign == nil {
		sign = auth.SignJWT
	}
	token, err := sign(auth.Claims{
		Email:            user.Email,
		Name:             name,
		Picture:          user.PictureURL,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, User: user.Profile()}, nil
}

// UpsertFromAuth persists the user identity from OAuth to stabilize chat history ownership.
func (s *Service) UpsertFromAuth(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Email) == "" {
		return errors.New("user id and email are required")
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return User{}, ErrInvalidEmail
	}
	return s.Repo.GetByEmail(ctx, email)
}

func (s *Service) validate(v any) error {
	validate := s.Validate
	if validate == nil {
		validate = validator.New()
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrInvalidInput, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
