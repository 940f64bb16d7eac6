package httpx

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/service/project"
	"github.com/splax/composedeck/pkg/compose"
	"github.com/splax/composedeck/pkg/naming"
)

type provisionRequest struct {
	Name       string  `json:"name"`
	RepoName   string  `json:"repoName"`
	WebhookURL string  `json:"webhookurl"`
	Env        string  `json:"env"`
	YML        *string `json:"yml,omitempty"`
}

type provisionResponse struct {
	Path            string `json:"path"`
	Name            string `json:"name"`
	Hostname        string `json:"hostname"`
	Port            uint16 `json:"port"`
	WebhookEndpoint string `json:"webhook_endpoint"`
}

type projectSummary struct {
	Name       string    `json:"name"`
	Owner      string    `json:"owner"`
	RepoName   string    `json:"repoName"`
	WebhookURL string    `json:"webhookurl,omitempty"`
	Hostname   string    `json:"hostname"`
	Port       uint16    `json:"port"`
	Path       string    `json:"path"`
	HasYML     bool      `json:"has_yml"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type projectConfigResponse struct {
	YML      *string  `json:"yml,omitempty"`
	Env      *string  `json:"env,omitempty"`
	Services []string `json:"services,omitempty"`
}

func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	r.provision(w, req, domain.ModeCreate)
}

func (r *Router) handleUpdateProject(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	r.provision(w, req, domain.ModeUpdate)
}

func (r *Router) provision(w http.ResponseWriter, req *http.Request, mode domain.ProvisionMode) {
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	var payload provisionRequest
	if !decodeJSON(w, req, &payload) {
		return
	}
	baseHost := r.baseHost()
	if baseHost == "" {
		r.logger.Error("public host not configured, refusing to provision", "user", info.Username)
		writeError(w, http.StatusServiceUnavailable, "public host is not configured")
		return
	}
	created, err := r.project.Provision(req.Context(), mode, info.Username, project.ProvisionInput{
		Name:       payload.Name,
		RepoName:   payload.RepoName,
		WebhookURL: payload.WebhookURL,
		Env:        payload.Env,
		YMLContent: payload.YML,
		BaseHost:   baseHost,
	})
	r.recordProvision(mode, err)
	if err != nil {
		r.writeProjectError(w, err)
		return
	}
	status := http.StatusOK
	if mode == domain.ModeCreate {
		status = http.StatusCreated
	}
	writeJSON(w, status, provisionResponse{
		Path:            created.Path,
		Name:            created.Name,
		Hostname:        created.Hostname,
		Port:            created.Port,
		WebhookEndpoint: naming.WebhookURL(r.pageURL(), strings.TrimSpace(payload.Name)),
	})
}

func (r *Router) handleListProjects(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	projects, err := r.project.List(req.Context(), info.Username)
	if err != nil {
		r.writeProjectError(w, err)
		return
	}
	out := make([]projectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectSummary{
			Name:       p.Name,
			Owner:      p.Owner,
			RepoName:   p.RepoName,
			WebhookURL: p.WebhookURL,
			Hostname:   p.Hostname,
			Port:       p.Port,
			Path:       p.Path,
			HasYML:     p.YMLContent != nil,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleLoadProject(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	key := strings.TrimSpace(req.PathValue("id"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "project id is required")
		return
	}
	cfg, err := r.project.Load(req.Context(), info.Username, key)
	if err != nil {
		r.writeProjectError(w, err)
		return
	}
	resp := projectConfigResponse{YML: cfg.YMLContent, Env: cfg.Env}
	if cfg.YMLContent != nil {
		services, err := compose.Services(*cfg.YMLContent)
		if err != nil {
			r.logger.Debug("stored compose document not parseable", "key", key, "error", err)
		} else {
			resp.Services = services
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleRemoveProject(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	removed, err := r.project.Remove(req.Context(), info.Username, req.PathValue("name"))
	if err != nil {
		r.writeProjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": removed.Path, "name": removed.Name})
}

// writeProjectError maps service errors to statuses. Store messages pass through unchanged.
func (r *Router) writeProjectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, project.ErrNameRequired),
		errors.Is(err, project.ErrRepoRequired),
		errors.Is(err, project.ErrOwnerRequired),
		errors.Is(err, project.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	case project.IsKind(err, project.KindConflict):
		writeErrorKind(w, http.StatusConflict, project.KindConflict.String(), err.Error())
	case project.IsKind(err, project.KindNotFound):
		writeErrorKind(w, http.StatusNotFound, project.KindNotFound.String(), err.Error())
	case project.IsKind(err, project.KindUnavailable):
		writeErrorKind(w, http.StatusBadGateway, project.KindUnavailable.String(), err.Error())
	default:
		r.logger.Error("project request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
