package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/splax/composedeck/internal/service/catalog"
)

func (r *Router) handleComposeRegistry(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	resp := map[string]string{}
	if url, ok := r.catalog.RegistryURL(); ok {
		resp["url"] = url
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Query string `json:"query"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	items, err := r.catalog.Search(req.Context(), payload.Query)
	if err != nil {
		r.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (r *Router) handleTemplate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		ID string `json:"id"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	if strings.TrimSpace(payload.ID) == "" {
		writeError(w, http.StatusBadRequest, "template id is required")
		return
	}
	content, err := r.catalog.Fetch(req.Context(), payload.ID)
	if err != nil {
		r.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (r *Router) writeCatalogError(w http.ResponseWriter, err error) {
	if _, ok := r.catalog.RegistryURL(); !ok {
		writeError(w, http.StatusNotFound, "no compose registry configured")
		return
	}
	var regErr *catalog.RegistryError
	if errors.As(err, &regErr) {
		writeError(w, regErr.Status, regErr.Error())
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}
