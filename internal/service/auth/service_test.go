package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/repository"
	"github.com/splax/composedeck/pkg/config"
)

type stubUserRepository struct {
	byID map[string]*domain.User
}

func newStubUsers() *stubUserRepository {
	return &stubUserRepository{byID: make(map[string]*domain.User)}
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	for _, existing := range s.byID {
		if existing.Username == user.Username {
			return repository.ErrAlreadyExists
		}
	}
	s.byID[user.ID] = user
	return nil
}

func (s *stubUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, user := range s.byID {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func newTestService() Service {
	cfg := config.APIConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour}
	return New(newStubUsers(), slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func TestSignupLoginAuthorize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	user, tokens, err := svc.Signup(ctx, "  Alice ", "password123")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected normalized username, got %q", user.Username)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued")
	}

	if _, _, err := svc.Login(ctx, "ALICE", "password123"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, _, err := svc.Authorize(ctx, tokens.AccessToken+"x"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
	authed, claims, err := svc.Authorize(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if authed.ID != user.ID || claims.Username != "alice" {
		t.Fatalf("unexpected identity %s/%s", authed.ID, claims.Username)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "bad-name", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	if _, _, err := svc.Signup(ctx, "bob", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, _, err := svc.Signup(ctx, "bob", strings.Repeat("p", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, _, err := svc.Signup(ctx, "bob", "password123"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, _, err := svc.Signup(ctx, "Bob", "password123"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, _, err := svc.Signup(ctx, "carol", "password123"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, _, err := svc.Login(ctx, "carol", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "dave", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
