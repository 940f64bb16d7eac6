package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository    = (*Repository)(nil)
	_ repository.ProjectRepository = (*Repository)(nil)
)

const uniqueViolation = "23505"

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	return mapWriteError(err)
}

// GetUserByUsername fetches a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, username, password_hash, created_at FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateProject inserts a project; the key must not exist yet.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (name, owner, repo_name, webhook_url, hostname, port, env, yml_content, path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	now := time.Now().UTC()
	path := repository.ProjectPath(project.Name)
	_, err := r.pool.Exec(ctx, query,
		project.Name,
		project.Owner,
		project.RepoName,
		project.WebhookURL,
		project.Hostname,
		int32(project.Port),
		project.Env,
		project.YMLContent,
		path,
		now,
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
		SET repo_name = $2, webhook_url = $3, hostname = $4, port = $5, env = $6,
			yml_content = COALESCE($7, yml_content), updated_at = $8
		WHERE name = $1
		RETURNING owner, path, yml_content, created_at`
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, query,
		project.Name,
		project.RepoName,
		project.WebhookURL,
		project.Hostname,
		int32(project.Port),
		project.Env,
		project.YMLContent,
		now,
	)
	var yml *string
	if err := row.Scan(&project.Owner, &project.Path, &yml, &project.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	project.YMLContent = yml
	project.UpdatedAt = now
	return nil
}

// GetProjectConfig returns the stored compose document and environment of a project.
func (r *Repository) GetProjectConfig(ctx context.Context, key string) (domain.StoredProjectConfig, error) {
	const query = `SELECT yml_content, env FROM projects WHERE name = $1`
	var cfg domain.StoredProjectConfig
	if err := r.pool.QueryRow(ctx, query, key).Scan(&cfg.YMLContent, &cfg.Env); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredProjectConfig{}, repository.ErrNotFound
		}
		return domain.StoredProjectConfig{}, err
	}
	return cfg, nil
}

// ListProjectsByOwner returns projects owned by the user, newest first.
func (r *Repository) ListProjectsByOwner(ctx context.Context, owner string) ([]domain.Project, error) {
	const query = `SELECT name, owner, repo_name, webhook_url, hostname, port, path, created_at, updated_at
		FROM projects WHERE owner = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		var (
			project domain.Project
			port    int32
		)
		if err := rows.Scan(&project.Name, &project.Owner, &project.RepoName, &project.WebhookURL, &project.Hostname, &port, &project.Path, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, err
		}
		project.Port = uint16(port)
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and returns the deleted record.
func (r *Repository) DeleteProject(ctx context.Context, key string) (*domain.Project, error) {
	const query = `DELETE FROM projects WHERE name = $1
		RETURNING name, owner, repo_name, webhook_url, hostname, port, path, created_at, updated_at`
	var (
		project domain.Project
		port    int32
	)
	err := r.pool.QueryRow(ctx, query, key).Scan(&project.Name, &project.Owner, &project.RepoName, &project.WebhookURL, &project.Hostname, &port, &project.Path, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	project.Port = uint16(port)
	return &project, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrAlreadyExists, pgErr.Message)
	}
	return err
}
