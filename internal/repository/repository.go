package repository

import (
	"context"

	"github.com/splax/composedeck/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// ProjectRepository persists project records keyed by "<name>-<owner>".
// Create and Update fill in Path, CreatedAt and UpdatedAt on success.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	UpdateProject(ctx context.Context, project *domain.Project) error
	GetProjectConfig(ctx context.Context, key string) (domain.StoredProjectConfig, error)
	ListProjectsByOwner(ctx context.Context, owner string) ([]domain.Project, error)
	DeleteProject(ctx context.Context, key string) (*domain.Project, error)
}

// ProjectPath is the navigation path a store reports for a project key.
func ProjectPath(key string) string {
	return "projects/" + key
}
