package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the composedeck API for the deck CLI.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:5001"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// User reflects API user payloads.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string        `json:"AccessToken"`
	RefreshToken string        `json:"RefreshToken"`
	ExpiresIn    time.Duration `json:"ExpiresIn"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	return c.session(ctx, "/auth/login", username, password)
}

// Signup registers an account and returns its first token pair.
func (c *Client) Signup(ctx context.Context, username, password string) (LoginResponse, error) {
	return c.session(ctx, "/auth/signup", username, password)
}

func (c *Client) session(ctx context.Context, path, username, password string) (LoginResponse, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, path, body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// ProvisionInput is the create/update project payload. YML is sent only when set.
type ProvisionInput struct {
	Name       string  `json:"name"`
	RepoName   string  `json:"repoName"`
	WebhookURL string  `json:"webhookurl,omitempty"`
	Env        string  `json:"env,omitempty"`
	YML        *string `json:"yml,omitempty"`
}

// ProvisionResult describes a created or updated project.
type ProvisionResult struct {
	Path            string `json:"path"`
	Name            string `json:"name"`
	Hostname        string `json:"hostname"`
	Port            uint16 `json:"port"`
	WebhookEndpoint string `json:"webhook_endpoint"`
}

// CreateProject provisions a new project.
func (c *Client) CreateProject(ctx context.Context, token string, input ProvisionInput) (ProvisionResult, error) {
	var result ProvisionResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/create-project", input, token, &result); err != nil {
		return ProvisionResult{}, err
	}
	return result, nil
}

// UpdateProject re-provisions an existing project.
func (c *Client) UpdateProject(ctx context.Context, token string, input ProvisionInput) (ProvisionResult, error) {
	var result ProvisionResult
	if err := c.do(ctx, http.MethodPut, "/api/v1/update-project", input, token, &result); err != nil {
		return ProvisionResult{}, err
	}
	return result, nil
}

// Project is a stored project as listed by the API.
type Project struct {
	Name       string    `json:"name"`
	Owner      string    `json:"owner"`
	RepoName   string    `json:"repoName"`
	WebhookURL string    `json:"webhookurl"`
	Hostname   string    `json:"hostname"`
	Port       uint16    `json:"port"`
	Path       string    `json:"path"`
	HasYML     bool      `json:"has_yml"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListProjects returns the caller's projects.
func (c *Client) ListProjects(ctx context.Context, token string) ([]Project, error) {
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, token, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ProjectConfig is the stored configuration of a project. Nil fields were never stored.
type ProjectConfig struct {
	YML      *string  `json:"yml"`
	Env      *string  `json:"env"`
	Services []string `json:"services"`
}

// LoadProject fetches the stored configuration for the project key.
func (c *Client) LoadProject(ctx context.Context, token, key string) (ProjectConfig, error) {
	path := fmt.Sprintf("/api/v1/projects/yml/%s", url.PathEscape(key))
	var cfg ProjectConfig
	if err := c.do(ctx, http.MethodGet, path, nil, token, &cfg); err != nil {
		return ProjectConfig{}, err
	}
	return cfg, nil
}

// RemoveProject deletes the caller's project called name.
func (c *Client) RemoveProject(ctx context.Context, token, name string) error {
	path := fmt.Sprintf("/api/v1/remove-project/%s", url.PathEscape(name))
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}

// ComposeRegistry returns the registry URL the API searches, if any.
func (c *Client) ComposeRegistry(ctx context.Context) (string, bool, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/compose-registry", nil, "", &resp); err != nil {
		return "", false, err
	}
	return resp.URL, resp.URL != "", nil
}

// TemplateItem is a search hit from the compose registry.
type TemplateItem struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Search queries the compose registry through the API.
func (c *Client) Search(ctx context.Context, query string) ([]TemplateItem, error) {
	var resp struct {
		Items []TemplateItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/search", map[string]string{"query": query}, "", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Template fetches a compose document from the registry by id.
func (c *Client) Template(ctx context.Context, id string) (string, error) {
	var resp struct {
		Content string `json:"content"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/yml", map[string]string{"id": id}, "", &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}
