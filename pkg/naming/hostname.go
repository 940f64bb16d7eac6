package naming

import "strings"

// DefaultMarker is the base host segment replaced by a project key.
const DefaultMarker = "apps"

// Deriver substitutes project keys into a base host.
type Deriver struct {
	Marker string
}

// NewDeriver returns a Deriver using marker, or DefaultMarker when marker is blank.
func NewDeriver(marker string) Deriver {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		marker = DefaultMarker
	}
	return Deriver{Marker: marker}
}

// Derive replaces the first occurrence of the marker in baseHost with key.
// A base host without the marker is returned unchanged.
func (d Deriver) Derive(baseHost, key string) string {
	marker := d.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	return strings.Replace(baseHost, marker, key, 1)
}

// CanDerive reports whether the marker appears in baseHost as a whole DNS
// label, so that Derive yields a hostname unique to each key.
func (d Deriver) CanDerive(baseHost string) bool {
	marker := d.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	idx := strings.Index(baseHost, marker)
	if idx < 0 {
		return false
	}
	end := idx + len(marker)
	return (idx == 0 || baseHost[idx-1] == '.') && (end == len(baseHost) || baseHost[end] == '.')
}

// HostnameCarriesKey reports whether one label of hostname is key.
func HostnameCarriesKey(hostname, key string) bool {
	if key == "" {
		return false
	}
	for _, label := range strings.Split(hostname, ".") {
		if label == key {
			return true
		}
	}
	return false
}

// DeriveHostname derives a hostname using DefaultMarker.
func DeriveHostname(baseHost, key string) string {
	return Deriver{Marker: DefaultMarker}.Derive(baseHost, key)
}

// StorageKey suffixes a project name with its owner: "<name>-<owner>".
func StorageKey(name, owner string) string {
	return name + "-" + owner
}

// OwnsKey reports whether key was produced by StorageKey for owner.
func OwnsKey(key, owner string) bool {
	suffix := "-" + owner
	return owner != "" && len(key) > len(suffix) && strings.HasSuffix(key, suffix)
}

// WebhookURL builds the webhook endpoint shown next to the project form.
// pageURL is the address of the create page; its "#/create" suffix is dropped.
func WebhookURL(pageURL, name string) string {
	base := strings.TrimSuffix(pageURL, "#/create")
	base = strings.TrimRight(base, "/")
	return base + "/webhooks/" + name
}
