// Package catalog queries a compose registry for importable templates.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/pkg/config"
)

// ErrSearchFailed matches every registry failure.
var ErrSearchFailed = errors.New("template search failed")

const keyHeader = "x-key"

// RegistryError carries the registry's status and its message verbatim.
type RegistryError struct {
	Status  int
	Message string
}

func (e *RegistryError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("registry responded with status %d", e.Status)
	}
	return e.Message
}

// Is lets errors.Is(err, ErrSearchFailed) match registry errors.
func (e *RegistryError) Is(target error) bool { return target == ErrSearchFailed }

// Service talks to the compose registry configured by COMPOSE_REGISTRY_URL.
type Service struct {
	baseURL    string
	key        string
	httpClient *http.Client
	logger     *slog.Logger
}

// New returns a catalog service. An empty registry URL yields a service whose
// RegistryURL reports false.
func New(cfg config.APIConfig, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RegistryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	key := cfg.ComposeRegistryKey
	if key == "" {
		key = "default"
	}
	return Service{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.ComposeRegistryURL), "/"),
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// RegistryURL returns the configured registry endpoint.
func (s Service) RegistryURL() (string, bool) {
	return s.baseURL, s.baseURL != ""
}

// Search returns templates matching query in the registry's own order.
func (s Service) Search(ctx context.Context, query string) ([]domain.TemplateItem, error) {
	var payload struct {
		Items []domain.TemplateItem `json:"items"`
	}
	if err := s.get(ctx, "/api/v1/search", url.Values{"query": {query}}, &payload); err != nil {
		s.logger.Warn("template search failed", "query", query, "error", err)
		return nil, err
	}
	if payload.Items == nil {
		payload.Items = []domain.TemplateItem{}
	}
	return payload.Items, nil
}

// Fetch returns the compose document stored under id.
func (s Service) Fetch(ctx context.Context, id string) (string, error) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := s.get(ctx, "/api/v1/yml", url.Values{"id": {id}}, &payload); err != nil {
		s.logger.Warn("template fetch failed", "id", id, "error", err)
		return "", err
	}
	return payload.Content, nil
}

func (s Service) get(ctx context.Context, path string, query url.Values, v any) error {
	if s.baseURL == "" {
		return fmt.Errorf("%w: no registry configured", ErrSearchFailed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	req.Header.Set(keyHeader, s.key)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &RegistryError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}
	return nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if payload.Error != "" {
		return payload.Error
	}
	if payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(data))
}
