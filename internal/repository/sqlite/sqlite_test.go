package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/splax/composedeck/internal/app/migrate"
	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/repository"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "deck.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	runner, err := migrate.NewWithDB(migrate.DriverSQLite, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("migrate runner: %v", err)
	}
	if err := runner.Ensure(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func strPtr(s string) *string { return &s }

func TestCreateProjectRejectsDuplicateKey(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	project := &domain.Project{Name: "demo-alice", Owner: "alice", RepoName: "alice/demo", Hostname: "demo-alice.rhlab.io", Port: 4242, Env: []byte("cipher")}
	if err := repo.CreateProject(ctx, project); err != nil {
		t.Fatalf("create: %v", err)
	}
	if project.Path != "projects/demo-alice" {
		t.Fatalf("unexpected path %q", project.Path)
	}
	if project.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}

	dup := &domain.Project{Name: "demo-alice", Owner: "alice", RepoName: "other", Hostname: "demo-alice.rhlab.io", Port: 4242}
	err := repo.CreateProject(ctx, dup)
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUpdateProjectRequiresExistingKey(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.UpdateProject(context.Background(), &domain.Project{Name: "ghost-alice", RepoName: "x"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProjectKeepsYMLWhenNil(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created := &domain.Project{Name: "shop-bob", Owner: "bob", RepoName: "bob/shop", Hostname: "shop-bob.rhlab.io", Port: 1, Env: []byte("v1"), YMLContent: strPtr("services: {}\n")}
	if err := repo.CreateProject(ctx, created); err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(time.Millisecond)

	update := &domain.Project{Name: "shop-bob", RepoName: "bob/shop2", Hostname: "shop-bob.rhlab.io", Port: 1, Env: []byte("v2")}
	if err := repo.UpdateProject(ctx, update); err != nil {
		t.Fatalf("update: %v", err)
	}
	if update.Owner != "bob" {
		t.Fatalf("owner should come back from the store, got %q", update.Owner)
	}
	if update.YMLContent == nil || *update.YMLContent != "services: {}\n" {
		t.Fatalf("yml should be preserved, got %v", update.YMLContent)
	}
	if !update.UpdatedAt.After(update.CreatedAt) {
		t.Fatalf("expected updated_at after created_at")
	}

	cfg, err := repo.GetProjectConfig(ctx, "shop-bob")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if string(cfg.Env) != "v2" {
		t.Fatalf("unexpected env %q", cfg.Env)
	}
}

func TestGetProjectConfigDistinguishesAbsentFromEmpty(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.CreateProject(ctx, &domain.Project{Name: "a-alice", Owner: "alice", RepoName: "r", Hostname: "h", YMLContent: strPtr("version: '3'")}); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := repo.CreateProject(ctx, &domain.Project{Name: "b-alice", Owner: "alice", RepoName: "r", Hostname: "h", Env: []byte("x"), YMLContent: strPtr("")}); err != nil {
		t.Fatalf("create b: %v", err)
	}

	a, err := repo.GetProjectConfig(ctx, "a-alice")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if a.Env != nil {
		t.Fatalf("expected absent env, got %q", a.Env)
	}
	if a.YMLContent == nil || *a.YMLContent != "version: '3'" {
		t.Fatalf("unexpected yml %v", a.YMLContent)
	}

	b, err := repo.GetProjectConfig(ctx, "b-alice")
	if err != nil {
		t.Fatalf("get b: %v", err)
	}
	if b.YMLContent == nil || *b.YMLContent != "" {
		t.Fatalf("expected present empty yml, got %v", b.YMLContent)
	}

	if _, err := repo.GetProjectConfig(ctx, "missing-alice"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndDeleteProjects(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, name := range []string{"one-alice", "two-alice", "three-bob"} {
		owner := "alice"
		if name == "three-bob" {
			owner = "bob"
		}
		if err := repo.CreateProject(ctx, &domain.Project{Name: name, Owner: owner, RepoName: "r", Hostname: name + ".rhlab.io", Port: 7}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	projects, err := repo.ListProjectsByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects for alice, got %d", len(projects))
	}

	deleted, err := repo.DeleteProject(ctx, "one-alice")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Hostname != "one-alice.rhlab.io" || deleted.Port != 7 {
		t.Fatalf("unexpected deleted record: %+v", deleted)
	}
	if _, err := repo.DeleteProject(ctx, "one-alice"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := &domain.User{ID: "u-1", Username: "alice", PasswordHash: []byte("hash"), CreatedAt: time.Now().UTC()}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.CreateUser(ctx, &domain.User{ID: "u-2", Username: "alice", PasswordHash: []byte("x")}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate username, got %v", err)
	}
	got, err := repo.GetUserByUsername(ctx, "alice")
	if err != nil || got.ID != "u-1" {
		t.Fatalf("lookup by username: %+v, %v", got, err)
	}
	if _, err := repo.GetUserByID(ctx, "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotNullViolationIsNotAConflict(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.CreateUser(context.Background(), &domain.User{ID: "u-1", Username: "alice", CreatedAt: time.Now().UTC()})
	if err == nil {
		t.Fatalf("expected missing password hash to be rejected")
	}
	if errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("NOT NULL violation must not be reported as a conflict: %v", err)
	}
}
