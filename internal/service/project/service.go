package project

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"log/slog"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/repository"
	"github.com/splax/composedeck/pkg/config"
	"github.com/splax/composedeck/pkg/crypto"
	"github.com/splax/composedeck/pkg/naming"
)

// ProvisionInput carries the user-supplied fields of a create or update request.
type ProvisionInput struct {
	Name       string
	RepoName   string
	WebhookURL string
	Env        string
	YMLContent *string
	// BaseHost is the host the UI is served under, e.g. "apps.rhlab.io".
	BaseHost string
}

// DNSRegistrar publishes and retracts public records for derived hostnames.
type DNSRegistrar interface {
	Publish(ctx context.Context, hostname string) error
	Retract(ctx context.Context, hostname string) error
}

// Service orchestrates project provisioning and configuration loading.
type Service struct {
	projects repository.ProjectRepository
	dns      DNSRegistrar
	deriver  naming.Deriver
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New returns a project service. dns may be nil.
func New(projects repository.ProjectRepository, dns DNSRegistrar, logger *slog.Logger, cfg config.APIConfig) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		projects: projects,
		dns:      dns,
		deriver:  naming.NewDeriver(cfg.HostnameMarker),
		logger:   logger,
		cfg:      cfg,
	}
}

var strictName = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Provision creates or updates the project named in input on behalf of owner.
// It performs exactly one store write and returns the stored record.
func (s Service) Provision(ctx context.Context, mode domain.ProvisionMode, owner string, input ProvisionInput) (*domain.Project, error) {
	if err := s.validate(owner, input); err != nil {
		return nil, err
	}

	key := naming.StorageKey(input.Name, owner)
	hostname := s.deriver.Derive(input.BaseHost, key)
	port := naming.AllocatePort(hostname)
	env := naming.ComposeEnv(port, input.Env)
	s.logger.Debug("project derived", "key", key, "hostname", hostname, "port", port, "mode", mode.String())

	ciphertext, err := crypto.EncryptString(s.cfg.EnvEncryptionKey, key, env)
	if err != nil {
		return nil, fmt.Errorf("encrypt environment: %w", err)
	}
	project := &domain.Project{
		Name:       key,
		Owner:      owner,
		RepoName:   input.RepoName,
		WebhookURL: input.WebhookURL,
		Hostname:   hostname,
		Port:       port,
		Env:        ciphertext,
		YMLContent: input.YMLContent,
	}

	switch mode {
	case domain.ModeCreate:
		if err := s.projects.CreateProject(ctx, project); err != nil {
			s.logger.Warn("project create failed", "key", key, "error", err)
			return nil, classify("create", key, err, repository.ErrAlreadyExists)
		}
		s.logger.Info("project created", "key", key, "owner", owner, "hostname", hostname, "port", port)
		s.publish(ctx, key, hostname)
	case domain.ModeUpdate:
		if err := s.projects.UpdateProject(ctx, project); err != nil {
			s.logger.Warn("project update failed", "key", key, "error", err)
			return nil, classify("update", key, err, repository.ErrNotFound)
		}
		s.logger.Info("project updated", "key", key, "owner", owner, "hostname", hostname, "port", port)
	default:
		return nil, fmt.Errorf("unsupported provision mode %d", mode)
	}
	return project, nil
}

func (s Service) validate(owner string, input ProvisionInput) error {
	if strings.TrimSpace(owner) == "" {
		return ErrOwnerRequired
	}
	if strings.TrimSpace(input.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(input.RepoName) == "" {
		return ErrRepoRequired
	}
	if s.cfg.ProjectNameStrict && !strictName.MatchString(input.Name) {
		return ErrInvalidName
	}
	return nil
}

// publish is best effort: the record is already stored.
func (s Service) publish(ctx context.Context, key, hostname string) {
	if s.dns == nil {
		return
	}
	if !naming.HostnameCarriesKey(hostname, key) {
		s.logger.Warn("dns publish refused, hostname not derived from key", "key", key, "hostname", hostname)
		return
	}
	if err := s.dns.Publish(ctx, hostname); err != nil {
		s.logger.Warn("dns publish failed", "hostname", hostname, "error", err)
	}
}

// Load returns the stored compose document and environment of the project
// identified by key, for pre-filling an edit session.
func (s Service) Load(ctx context.Context, owner, key string) (domain.ProjectConfig, error) {
	if strings.TrimSpace(owner) == "" {
		return domain.ProjectConfig{}, ErrOwnerRequired
	}
	key = strings.TrimSpace(key)
	if !naming.OwnsKey(key, owner) {
		return domain.ProjectConfig{}, &StoreError{Kind: KindNotFound, Op: "load", Key: key, Err: ErrNotFound}
	}
	stored, err := s.projects.GetProjectConfig(ctx, key)
	if err != nil {
		return domain.ProjectConfig{}, classify("load", key, err, nil)
	}
	cfg := domain.ProjectConfig{YMLContent: stored.YMLContent}
	if stored.Env != nil {
		env, err := crypto.DecryptToString(s.cfg.EnvEncryptionKey, key, stored.Env)
		if err != nil {
			s.logger.Error("failed to decrypt project env", "key", key, "error", err)
			return domain.ProjectConfig{}, fmt.Errorf("decrypt environment: %w", err)
		}
		cfg.Env = &env
	}
	return cfg, nil
}

// List returns the owner's projects.
func (s Service) List(ctx context.Context, owner string) ([]domain.Project, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrOwnerRequired
	}
	projects, err := s.projects.ListProjectsByOwner(ctx, owner)
	if err != nil {
		return nil, classify("list", owner, err, nil)
	}
	return projects, nil
}

// Remove deletes the owner's project called name and retracts its DNS record.
func (s Service) Remove(ctx context.Context, owner, name string) (*domain.Project, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrOwnerRequired
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	key := naming.StorageKey(name, owner)
	project, err := s.projects.DeleteProject(ctx, key)
	if err != nil {
		return nil, classify("remove", key, err, nil)
	}
	s.logger.Info("project removed", "key", key, "owner", owner)
	s.retract(ctx, key, project.Hostname)
	return project, nil
}

// retract only touches hostnames that carry the project's own key, so a
// record shared with anything else is never removed.
func (s Service) retract(ctx context.Context, key, hostname string) {
	if s.dns == nil {
		return
	}
	if !naming.HostnameCarriesKey(hostname, key) {
		s.logger.Warn("dns retract refused, hostname not derived from key", "key", key, "hostname", hostname)
		return
	}
	if err := s.dns.Retract(ctx, hostname); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("dns retract failed", "hostname", hostname, "error", err)
	}
}
