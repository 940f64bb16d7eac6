package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/repository"
	"github.com/splax/composedeck/pkg/config"
	"github.com/splax/composedeck/pkg/crypto"
	"github.com/splax/composedeck/pkg/naming"
)

const testKey = "test-secret"

type memoryProjectRepository struct {
	mu       sync.Mutex
	projects map[string]domain.Project
	writes   int
	failWith error
}

func newMemoryRepository() *memoryProjectRepository {
	return &memoryProjectRepository{projects: make(map[string]domain.Project)}
}

func (m *memoryProjectRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.projects[project.Name]; ok {
		return fmt.Errorf("%w: key %s", repository.ErrAlreadyExists, project.Name)
	}
	project.Path = repository.ProjectPath(project.Name)
	m.projects[project.Name] = *project
	return nil
}

func (m *memoryProjectRepository) UpdateProject(ctx context.Context, project *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failWith != nil {
		return m.failWith
	}
	existing, ok := m.projects[project.Name]
	if !ok {
		return repository.ErrNotFound
	}
	if project.YMLContent == nil {
		project.YMLContent = existing.YMLContent
	}
	project.Owner = existing.Owner
	project.Path = existing.Path
	m.projects[project.Name] = *project
	return nil
}

func (m *memoryProjectRepository) GetProjectConfig(ctx context.Context, key string) (domain.StoredProjectConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return domain.StoredProjectConfig{}, m.failWith
	}
	project, ok := m.projects[key]
	if !ok {
		return domain.StoredProjectConfig{}, repository.ErrNotFound
	}
	return domain.StoredProjectConfig{YMLContent: project.YMLContent, Env: project.Env}, nil
}

func (m *memoryProjectRepository) ListProjectsByOwner(ctx context.Context, owner string) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Project
	for _, project := range m.projects {
		if project.Owner == owner {
			out = append(out, project)
		}
	}
	return out, nil
}

func (m *memoryProjectRepository) DeleteProject(ctx context.Context, key string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(m.projects, key)
	return &project, nil
}

type recordingDNS struct {
	published []string
	retracted []string
	err       error
}

func (r *recordingDNS) Publish(ctx context.Context, hostname string) error {
	r.published = append(r.published, hostname)
	return r.err
}

func (r *recordingDNS) Retract(ctx context.Context, hostname string) error {
	r.retracted = append(r.retracted, hostname)
	return r.err
}

func newTestService(repo repository.ProjectRepository, dns DNSRegistrar) Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, dns, log, config.APIConfig{EnvEncryptionKey: testKey, HostnameMarker: "apps"})
}

func decryptEnv(t *testing.T, key string, payload []byte) string {
	t.Helper()
	env, err := crypto.DecryptToString(testKey, key, payload)
	if err != nil {
		t.Fatalf("decrypt env: %v", err)
	}
	return env
}

func TestProvisionCreateThenDuplicateConflicts(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, nil)
	input := ProvisionInput{Name: "demo", RepoName: "alice/demo", BaseHost: "apps.rhlab.io"}

	project, err := svc.Provision(context.Background(), domain.ModeCreate, "alice", input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if project.Name != "demo-alice" {
		t.Fatalf("expected key demo-alice, got %q", project.Name)
	}
	if project.Path != "projects/demo-alice" {
		t.Fatalf("expected path from store, got %q", project.Path)
	}

	_, err = svc.Provision(context.Background(), domain.ModeCreate, "alice", input)
	if !IsKind(err, KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("store error should be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "key demo-alice") {
		t.Fatalf("store message should be reported verbatim, got %q", err.Error())
	}
	if repo.writes != 2 {
		t.Fatalf("expected exactly one write per call, got %d writes", repo.writes)
	}
}

func TestProvisionUpdateMissingConflicts(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, nil)
	_, err := svc.Provision(context.Background(), domain.ModeUpdate, "alice", ProvisionInput{Name: "demo", RepoName: "alice/demo", BaseHost: "apps.rhlab.io"})
	if !IsKind(err, KindConflict) {
		t.Fatalf("expected conflict for update of missing project, got %v", err)
	}
	if len(repo.projects) != 0 {
		t.Fatalf("update must not create a record")
	}
}

func TestProvisionEndToEndDerivation(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, nil)

	project, err := svc.Provision(context.Background(), domain.ModeCreate, "bob", ProvisionInput{
		Name:     "shop",
		RepoName: "bob/shop",
		Env:      "FOO=bar",
		BaseHost: "apps.rhlab.io",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if project.Hostname != "shop-bob.rhlab.io" {
		t.Fatalf("unexpected hostname %q", project.Hostname)
	}
	if want := naming.AllocatePort("shop-bob.rhlab.io"); project.Port != want {
		t.Fatalf("expected port %d, got %d", want, project.Port)
	}
	env := decryptEnv(t, "shop-bob", repo.projects["shop-bob"].Env)
	if want := "RHPORT=" + strconv.Itoa(int(project.Port)) + "\nFOO=bar"; env != want {
		t.Fatalf("unexpected env %q, want %q", env, want)
	}
}

func TestProvisionUpdateRecomputesAndKeepsYML(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, nil)
	yml := "services:\n  web:\n    image: nginx\n"
	ctx := context.Background()

	if _, err := svc.Provision(ctx, domain.ModeCreate, "alice", ProvisionInput{Name: "demo", RepoName: "r", YMLContent: &yml, BaseHost: "apps.rhlab.io"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := svc.Provision(ctx, domain.ModeUpdate, "alice", ProvisionInput{Name: "demo", RepoName: "r2", Env: "A=1", BaseHost: "apps.example.org"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Hostname != "demo-alice.example.org" {
		t.Fatalf("hostname should follow the new base host, got %q", updated.Hostname)
	}
	if updated.Port != naming.AllocatePort("demo-alice.example.org") {
		t.Fatalf("port should be recomputed from the new hostname")
	}
	if updated.YMLContent == nil || *updated.YMLContent != yml {
		t.Fatalf("yml should be kept when not supplied, got %v", updated.YMLContent)
	}
}

func TestProvisionValidatesInput(t *testing.T) {
	svc := newTestService(newMemoryRepository(), nil)
	ctx := context.Background()
	cases := []struct {
		owner string
		input ProvisionInput
		want  error
	}{
		{owner: " ", input: ProvisionInput{Name: "demo", RepoName: "r"}, want: ErrOwnerRequired},
		{owner: "alice", input: ProvisionInput{Name: "", RepoName: "r"}, want: ErrNameRequired},
		{owner: "alice", input: ProvisionInput{Name: "demo", RepoName: "  "}, want: ErrRepoRequired},
	}
	for _, tc := range cases {
		if _, err := svc.Provision(ctx, domain.ModeCreate, tc.owner, tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
}

func TestProvisionNameCharsetIsOptional(t *testing.T) {
	repo := newMemoryRepository()
	lenient := newTestService(repo, nil)
	if _, err := lenient.Provision(context.Background(), domain.ModeCreate, "alice", ProvisionInput{Name: "My App!", RepoName: "r", BaseHost: "apps.rhlab.io"}); err != nil {
		t.Fatalf("lenient mode should accept any name, got %v", err)
	}

	strict := New(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), config.APIConfig{EnvEncryptionKey: testKey, ProjectNameStrict: true})
	if _, err := strict.Provision(context.Background(), domain.ModeCreate, "alice", ProvisionInput{Name: "My App!", RepoName: "r"}); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("strict mode should reject, got %v", err)
	}
	if _, err := strict.Provision(context.Background(), domain.ModeCreate, "alice", ProvisionInput{Name: "my-app2", RepoName: "r"}); err != nil {
		t.Fatalf("strict mode should accept dns label, got %v", err)
	}
}

func TestProvisionStoreUnavailable(t *testing.T) {
	repo := newMemoryRepository()
	repo.failWith = errors.New("connection refused")
	svc := newTestService(repo, nil)
	_, err := svc.Provision(context.Background(), domain.ModeCreate, "alice", ProvisionInput{Name: "demo", RepoName: "r"})
	if !IsKind(err, KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if err.Error() != "connection refused" {
		t.Fatalf("expected verbatim store message, got %q", err.Error())
	}
	if repo.writes != 1 {
		t.Fatalf("expected a single attempt, got %d", repo.writes)
	}
}

func TestProvisionPublishesDNSOnCreateOnly(t *testing.T) {
	repo := newMemoryRepository()
	dns := &recordingDNS{err: errors.New("cloudflare down")}
	svc := newTestService(repo, dns)
	ctx := context.Background()
	input := ProvisionInput{Name: "demo", RepoName: "r", BaseHost: "apps.rhlab.io"}

	if _, err := svc.Provision(ctx, domain.ModeCreate, "alice", input); err != nil {
		t.Fatalf("dns failure must not fail provisioning: %v", err)
	}
	if _, err := svc.Provision(ctx, domain.ModeUpdate, "alice", input); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(dns.published) != 1 || dns.published[0] != "demo-alice.rhlab.io" {
		t.Fatalf("unexpected dns publishes: %v", dns.published)
	}
}

func TestLoadDistinguishesAbsentEnv(t *testing.T) {
	repo := newMemoryRepository()
	yml := "version: '3'"
	repo.projects["demo-alice"] = domain.Project{Name: "demo-alice", Owner: "alice", YMLContent: &yml}
	svc := newTestService(repo, nil)

	cfg, err := svc.Load(context.Background(), "alice", "demo-alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != nil {
		t.Fatalf("expected env to be absent, got %q", *cfg.Env)
	}
	if cfg.YMLContent == nil || *cfg.YMLContent != yml {
		t.Fatalf("expected yml to be present, got %v", cfg.YMLContent)
	}
}

func TestLoadDecryptsEnv(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, nil)
	if _, err := svc.Provision(context.Background(), domain.ModeCreate, "alice", ProvisionInput{Name: "demo", RepoName: "r", BaseHost: "apps.rhlab.io"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	cfg, err := svc.Load(context.Background(), "alice", "demo-alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env == nil || !strings.HasPrefix(*cfg.Env, "RHPORT=") {
		t.Fatalf("unexpected env: %v", cfg.Env)
	}
	if cfg.YMLContent != nil {
		t.Fatalf("expected yml to be absent")
	}
}

func TestLoadRejectsForeignOrMissingKeys(t *testing.T) {
	repo := newMemoryRepository()
	repo.projects["demo-bob"] = domain.Project{Name: "demo-bob", Owner: "bob"}
	svc := newTestService(repo, nil)

	if _, err := svc.Load(context.Background(), "alice", "demo-bob"); !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found for another owner's key, got %v", err)
	}
	if _, err := svc.Load(context.Background(), "alice", "missing-alice"); !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveRetractsDNS(t *testing.T) {
	repo := newMemoryRepository()
	dns := &recordingDNS{}
	svc := newTestService(repo, dns)
	ctx := context.Background()
	if _, err := svc.Provision(ctx, domain.ModeCreate, "alice", ProvisionInput{Name: "demo", RepoName: "r", BaseHost: "apps.rhlab.io"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	removed, err := svc.Remove(ctx, "alice", "demo")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Name != "demo-alice" {
		t.Fatalf("unexpected removed project %q", removed.Name)
	}
	if len(dns.retracted) != 1 || dns.retracted[0] != "demo-alice.rhlab.io" {
		t.Fatalf("unexpected retractions: %v", dns.retracted)
	}
	if _, err := svc.Remove(ctx, "alice", "demo"); !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestListRequiresOwner(t *testing.T) {
	svc := newTestService(newMemoryRepository(), nil)
	if _, err := svc.List(context.Background(), ""); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("expected ErrOwnerRequired, got %v", err)
	}
}

func TestDNSIsSkippedForHostnamesWithoutKey(t *testing.T) {
	repo := newMemoryRepository()
	dns := &recordingDNS{}
	svc := newTestService(repo, dns)
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		if _, err := svc.Provision(ctx, domain.ModeCreate, "mallory", ProvisionInput{Name: name, RepoName: "r", BaseHost: "www.rhlab.io"}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if _, err := svc.Remove(ctx, "mallory", "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(dns.published) != 0 || len(dns.retracted) != 0 {
		t.Fatalf("records for a shared hostname must not be touched: published=%v retracted=%v", dns.published, dns.retracted)
	}
}

func TestLoadRejectsEnvCopiedFromAnotherProject(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	for _, owner := range []string{"alice", "bob"} {
		if _, err := svc.Provision(ctx, domain.ModeCreate, owner, ProvisionInput{Name: "demo", RepoName: "r", Env: "OWNER=" + owner, BaseHost: "apps.rhlab.io"}); err != nil {
			t.Fatalf("create for %s: %v", owner, err)
		}
	}
	stolen := repo.projects["demo-alice"]
	victim := repo.projects["demo-bob"]
	victim.Env = stolen.Env
	repo.projects["demo-bob"] = victim

	if _, err := svc.Load(ctx, "bob", "demo-bob"); !errors.Is(err, crypto.ErrSealedElsewhere) {
		t.Fatalf("expected copied env to be refused, got %v", err)
	}
}
