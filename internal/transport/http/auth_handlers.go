package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"zenchat/internal/auth"
	"zenchat/internal/store"
)

type authHandler struct {
	users  *store.UserStore
	tokens *auth.TokenService
	hasher *auth.PasswordHasher
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || len(req.Username) > 32 {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password too short")
		return
	}

	hash, salt, params, err := h.hasher.Hash(req.Password)
	if err != nil {
		slog.Error("password hash", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := store.User{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       strings.TrimSpace(req.FullName),
		PasswordHash:   hash,
		PasswordSalt:   salt,
		PasswordParams: params,
	}
	if err := h.users.Create(r.Context(), &user); err != nil {
		// Unique violations on username/email are the common case here.
		slog.Warn("user create", "error", err, "username", req.Username)
		writeError(w, http.StatusBadRequest, "username or email already taken")
		return
	}

	token, err := h.tokens.Issue(auth.Identity{UserID: user.ID, Username: user.Username})
	if err != nil {
		slog.Error("token issue", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":    true,
		"user":  toUserResponse(user),
		"token": token,
	})
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	user, err := h.users.ByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("user lookup", "error", err)
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !h.hasher.Verify(req.Password, user.PasswordHash, user.PasswordSalt, user.PasswordParams) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(auth.Identity{UserID: user.ID, Username: user.Username})
	if err != nil {
		slog.Error("token issue", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"user":  toUserResponse(user),
		"token": token,
	})
}

func toUserResponse(u store.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Avatar:   u.AvatarURL,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
