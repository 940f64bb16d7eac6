package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/splax/composedeck/pkg/naming"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment      string
	Addr             string
	LogLevel         string
	StoreDriver      string
	DatabaseURL      string
	SQLitePath       string
	JWTSecret        string
	EnvEncryptionKey string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	// PublicHost is the base host project hostnames derive from, e.g.
	// "apps.rhlab.io". It never comes from request headers.
	PublicHost         string
	PublicURL          string
	HostnameMarker     string
	ProjectNameStrict  bool
	ComposeRegistryURL string
	ComposeRegistryKey string
	RegistryTimeout    time.Duration
	CloudflareAPIToken string
	CloudflareAPIKey   string
	CloudflareEmail    string
	CloudflareZoneID   string
	CloudflareSite     string
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":5001"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		StoreDriver:        GetString("STORE_DRIVER", "postgres"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://deck:deck@db:5432/deck?sslmode=disable"),
		SQLitePath:         GetString("SQLITE_PATH", "./data/composedeck.db"),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		EnvEncryptionKey:   GetString("ENV_ENCRYPTION_KEY", "supersecuresecret"),
		AccessTokenTTL:     GetDuration("ACCESS_TOKEN_TTL_MIN", time.Hour, time.Minute),
		RefreshTokenTTL:    GetDuration("REFRESH_TOKEN_TTL_HOURS", 24*time.Hour, time.Hour),
		PublicHost:         strings.TrimSpace(GetString("PUBLIC_HOST", "")),
		PublicURL:          strings.TrimSpace(GetString("PUBLIC_URL", "")),
		HostnameMarker:     GetString("HOSTNAME_MARKER", naming.DefaultMarker),
		ProjectNameStrict:  GetBool("PROJECT_NAME_STRICT", false),
		ComposeRegistryURL: GetString("COMPOSE_REGISTRY_URL", GetString("DOCKER_COMPOSE_REGISTRY", "")),
		ComposeRegistryKey: GetString("COMPOSE_REGISTRY_KEY", "default"),
		RegistryTimeout:    GetDuration("COMPOSE_REGISTRY_TIMEOUT_SECONDS", 10*time.Second, time.Second),
		CloudflareAPIToken: GetString("CLOUDFLARE_API_TOKEN", ""),
		CloudflareAPIKey:   GetString("CLOUDFLARE_API_KEY", ""),
		CloudflareEmail:    GetString("CLOUDFLARE_EMAIL", ""),
		CloudflareZoneID:   GetString("CLOUDFLARE_ZONE_ID", ""),
		CloudflareSite:     GetString("CLOUDFLARE_SITE", ""),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}

// ErrPublicHostRequired is returned by Validate when PUBLIC_HOST is unset.
var ErrPublicHostRequired = errors.New("PUBLIC_HOST is required")

// Validate reports settings the API cannot serve without. PUBLIC_HOST must
// carry the hostname marker as a whole label, otherwise every project would
// derive the same hostname and port.
func (c APIConfig) Validate() error {
	host := strings.TrimSpace(c.PublicHost)
	if host == "" {
		return ErrPublicHostRequired
	}
	if strings.ContainsAny(host, ":/ ") {
		return fmt.Errorf("PUBLIC_HOST %q must be a bare host name", host)
	}
	deriver := naming.NewDeriver(c.HostnameMarker)
	if !deriver.CanDerive(host) {
		return fmt.Errorf("PUBLIC_HOST %q must contain %q as a whole label", host, deriver.Marker)
	}
	return nil
}

// PublicOrigin is the origin webhook links are shown under.
func (c APIConfig) PublicOrigin() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	if c.PublicHost == "" {
		return ""
	}
	return "https://" + c.PublicHost
}
