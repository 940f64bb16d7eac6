package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/repository"
	"github.com/splax/composedeck/pkg/config"
	"github.com/splax/composedeck/pkg/crypto"
	jwtpkg "github.com/splax/composedeck/pkg/jwt"
)

var (
	ErrInvalidUsername    = errors.New("username must be 2-32 lowercase letters or digits")
	ErrPasswordTooShort   = crypto.ErrPasswordTooShort
	ErrPasswordTooLong    = crypto.ErrPasswordTooLong
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
)

// Usernames become the owner suffix of project keys, so hyphens are not allowed.
var usernamePattern = regexp.MustCompile(`^[a-z0-9]{2,32}$`)

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{users: users, logger: logger, cfg: cfg}
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Signup registers a new user.
func (s Service) Signup(ctx context.Context, username, password string) (*domain.User, TokenPair, error) {
	username = NormalizeUsername(username)
	if !usernamePattern.MatchString(username) {
		return nil, TokenPair{}, ErrInvalidUsername
	}
	if err := crypto.CheckPassword(password); err != nil {
		return nil, TokenPair{}, err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, TokenPair{}, ErrUsernameTaken
		}
		return nil, TokenPair{}, err
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, tokens, nil
}

// Login authenticates a user and returns tokens.
func (s Service) Login(ctx context.Context, username, password string) (*domain.User, TokenPair, error) {
	user, err := s.users.GetUserByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = crypto.ComparePassword(nil, password)
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, tokens, nil
}

// Authorize validates a bearer token and returns the associated user and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, errors.New("token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s Service) issueTokens(user *domain.User) (TokenPair, error) {
	access, err := jwtpkg.GenerateToken(user.ID, user.Username, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := jwtpkg.GenerateToken(user.ID, user.Username, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.cfg.AccessTokenTTL}, nil
}
