package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/splax/composedeck/pkg/naming"
)

type authContextKey string

// authInfo identifies the caller. Username is the owner suffix of every
// project key the caller reads or writes.
type authInfo struct {
	UserID   string
	Username string
}

// projectKey resolves a bare project name to the caller's storage key.
func (a authInfo) projectKey(name string) string {
	return naming.StorageKey(strings.TrimSpace(name), a.Username)
}

const contextKeyAuth authContextKey = "composedeck-auth-info"

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errMalformedAuthScheme  = errors.New("invalid authorization header format")
)

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth resolves the bearer token to a stored user before invoking next.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		user, _, err := r.auth.Authorize(req.Context(), token)
		if err != nil {
			r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		// The stored username wins over any claim; project ownership hangs on it.
		ctx := context.WithValue(req.Context(), contextKeyAuth, authInfo{UserID: user.ID, Username: user.Username})
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	info, ok := ctx.Value(contextKeyAuth).(authInfo)
	return info, ok && info.Username != ""
}

// callerInfo returns the authenticated caller or answers 500 when a handler
// was registered without requireAuth.
func (r *Router) callerInfo(w http.ResponseWriter, req *http.Request) (authInfo, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return authInfo{}, false
	}
	return info, true
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingAuthorization
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errMalformedAuthScheme
	}
	return strings.TrimSpace(token), nil
}
