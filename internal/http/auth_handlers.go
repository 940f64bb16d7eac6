package httpx

import (
	"errors"
	"net/http"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/service/auth"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentials
	if !decodeJSON(w, req, &payload) {
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), payload.Username, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrUsernameTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			r.logger.Error("signup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "signup failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(user, tokens))
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentials
	if !decodeJSON(w, req, &payload) {
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		r.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(user, tokens))
}

func sessionResponse(user *domain.User, tokens auth.TokenPair) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":       user.ID,
			"username": user.Username,
		},
		"tokens": tokens,
	}
}
