package domain

import "time"

// ProvisionMode selects between creating a new project and updating an existing one.
type ProvisionMode int

const (
	ModeCreate ProvisionMode = iota
	ModeUpdate
)

func (m ProvisionMode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Project describes a deployable compose application owned by a user.
type Project struct {
	Name       string
	Owner      string
	RepoName   string
	WebhookURL string
	Hostname   string
	Port       uint16
	// Env holds the encrypted environment blob as persisted.
	Env        []byte
	YMLContent *string
	Path       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProjectConfig is the editable configuration of a project. A nil field was
// not stored; a pointer to "" was stored empty.
type ProjectConfig struct {
	YMLContent *string
	Env        *string
}

// StoredProjectConfig is ProjectConfig as persisted, with Env still encrypted.
type StoredProjectConfig struct {
	YMLContent *string
	Env        []byte
}
