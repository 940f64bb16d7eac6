// Package dns publishes CNAME records for project hostnames through Cloudflare.
package dns

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	cf "github.com/cloudflare/cloudflare-go"

	"github.com/splax/composedeck/pkg/config"
)

// ErrRecordNotFound is returned by Retract when no record matches the hostname.
var ErrRecordNotFound = errors.New("dns record not found")

// Registrar creates and removes proxied CNAME records pointing project
// hostnames at the platform site. A zero-config Registrar only logs.
type Registrar struct {
	api    *cf.API
	zone   *cf.ResourceContainer
	site   string
	logger *slog.Logger
}

// New builds a Registrar from cfg. Token auth wins over key/email auth; with
// neither configured the registrar is disabled.
func New(cfg config.APIConfig, logger *slog.Logger, opts ...cf.Option) (*Registrar, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registrar{site: cfg.CloudflareSite, logger: logger}
	if cfg.CloudflareZoneID == "" || cfg.CloudflareSite == "" {
		return r, nil
	}

	var (
		api *cf.API
		err error
	)
	switch {
	case cfg.CloudflareAPIToken != "":
		api, err = cf.NewWithAPIToken(cfg.CloudflareAPIToken, opts...)
	case cfg.CloudflareAPIKey != "" && cfg.CloudflareEmail != "":
		api, err = cf.New(cfg.CloudflareAPIKey, cfg.CloudflareEmail, opts...)
	default:
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("init cloudflare client: %w", err)
	}
	r.api = api
	r.zone = cf.ZoneIdentifier(cfg.CloudflareZoneID)
	return r, nil
}

// Enabled reports whether records are actually written.
func (r *Registrar) Enabled() bool {
	return r != nil && r.api != nil
}

// Publish creates a proxied CNAME from hostname to the configured site.
func (r *Registrar) Publish(ctx context.Context, hostname string) error {
	if !r.Enabled() {
		r.logger.Debug("dns disabled, skipping publish", "hostname", hostname)
		return nil
	}
	proxied := true
	record, err := r.api.CreateDNSRecord(ctx, r.zone, cf.CreateDNSRecordParams{
		Type:    "CNAME",
		Name:    hostname,
		Content: r.site,
		Proxied: &proxied,
	})
	if err != nil {
		return fmt.Errorf("create dns record %s: %w", hostname, err)
	}
	r.logger.Info("dns record created", "hostname", hostname, "record_id", record.ID, "target", r.site)
	return nil
}

// Retract deletes the proxied CNAME records Publish created for hostname.
// Records of other types, or pointing elsewhere, are left alone.
func (r *Registrar) Retract(ctx context.Context, hostname string) error {
	if !r.Enabled() {
		r.logger.Debug("dns disabled, skipping retract", "hostname", hostname)
		return nil
	}
	records, _, err := r.api.ListDNSRecords(ctx, r.zone, cf.ListDNSRecordsParams{Type: "CNAME", Name: hostname, Content: r.site})
	if err != nil {
		return fmt.Errorf("list dns records %s: %w", hostname, err)
	}
	var owned []cf.DNSRecord
	for _, record := range records {
		if r.owns(record, hostname) {
			owned = append(owned, record)
		}
	}
	if len(owned) == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, hostname)
	}
	var failed []string
	for _, record := range owned {
		if err := r.api.DeleteDNSRecord(ctx, r.zone, record.ID); err != nil {
			r.logger.Warn("dns record delete failed", "hostname", hostname, "record_id", record.ID, "error", err)
			failed = append(failed, record.ID)
			continue
		}
		r.logger.Info("dns record deleted", "hostname", hostname, "record_id", record.ID)
	}
	if len(failed) > 0 {
		return fmt.Errorf("delete dns records %s: %s", hostname, strings.Join(failed, ", "))
	}
	return nil
}

func (r *Registrar) owns(record cf.DNSRecord, hostname string) bool {
	return strings.EqualFold(record.Type, "CNAME") &&
		strings.EqualFold(record.Name, hostname) &&
		strings.EqualFold(strings.TrimSuffix(record.Content, "."), r.site)
}
