package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/repository"
)

// Repository implements persistence interfaces on a single SQLite file.
type Repository struct {
	db *sql.DB
}

var (
	_ repository.UserRepository    = (*Repository)(nil)
	_ repository.ProjectRepository = (*Repository)(nil)
)

// Open opens (creating if needed) the database file at path.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite serialises writers
	db.SetMaxOpenConns(1)
	return db, nil
}

// New constructs a Repository on an open database.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, formatTime(user.CreatedAt))
	return mapWriteError(err)
}

// GetUserByUsername fetches a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// CreateProject inserts a project; the key must not exist yet.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (name, owner, repo_name, webhook_url, hostname, port, env, yml_content, path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	path := repository.ProjectPath(project.Name)
	_, err := r.db.ExecContext(ctx, query,
		project.Name,
		project.Owner,
		project.RepoName,
		project.WebhookURL,
		project.Hostname,
		int(project.Port),
		project.Env,
		nullString(project.YMLContent),
		path,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return mapWriteError(err)
	}
	project.Path = path
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

// UpdateProject rewrites an existing project. A nil YMLContent keeps the stored document.
func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project) error {
	const query = `UPDATE projects
		SET repo_name = ?, webhook_url = ?, hostname = ?, port = ?, env = ?,
			yml_content = COALESCE(?, yml_content), updated_at = ?
		WHERE name = ?
		RETURNING owner, path, yml_content, created_at`
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, query,
		project.RepoName,
		project.WebhookURL,
		project.Hostname,
		int(project.Port),
		project.Env,
		nullString(project.YMLContent),
		formatTime(now),
		project.Name,
	)
	var (
		yml       sql.NullString
		createdAt string
	)
	if err := row.Scan(&project.Owner, &project.Path, &yml, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	project.YMLContent = stringPtr(yml)
	project.CreatedAt = parseTime(createdAt)
	project.UpdatedAt = now
	return nil
}

// GetProjectConfig returns the stored compose document and environment of a project.
func (r *Repository) GetProjectConfig(ctx context.Context, key string) (domain.StoredProjectConfig, error) {
	const query = `SELECT yml_content, env FROM projects WHERE name = ?`
	var (
		yml sql.NullString
		env []byte
	)
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&yml, &env); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StoredProjectConfig{}, repository.ErrNotFound
		}
		return domain.StoredProjectConfig{}, err
	}
	return domain.StoredProjectConfig{YMLContent: stringPtr(yml), Env: env}, nil
}

// ListProjectsByOwner returns projects owned by the user, newest first.
func (r *Repository) ListProjectsByOwner(ctx context.Context, owner string) ([]domain.Project, error) {
	const query = `SELECT name, owner, repo_name, webhook_url, hostname, port, path, created_at, updated_at
		FROM projects WHERE owner = ? ORDER BY created_at DESC, name`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and returns the deleted record.
func (r *Repository) DeleteProject(ctx context.Context, key string) (*domain.Project, error) {
	const query = `DELETE FROM projects WHERE name = ?
		RETURNING name, owner, repo_name, webhook_url, hostname, port, path, created_at, updated_at`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*domain.Project, error) {
	var (
		project              domain.Project
		port                 int
		createdAt, updatedAt string
	)
	if err := row.Scan(&project.Name, &project.Owner, &project.RepoName, &project.WebhookURL, &project.Hostname, &port, &project.Path, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	project.Port = uint16(port)
	project.CreatedAt = parseTime(createdAt)
	project.UpdatedAt = parseTime(updatedAt)
	return &project, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	// Only key collisions are conflicts; NOT NULL and CHECK failures are bugs.
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
		return fmt.Errorf("%w: %s", repository.ErrAlreadyExists, sqliteErr.Error())
	}
	return err
}

// fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
