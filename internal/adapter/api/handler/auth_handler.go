package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/V4T54L/vetclinic/internal/adapter/api/respond"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

// Authenticator signs staff in to the clinic attached to ctx.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*usecase.LoginResult, error)
}

type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

func NewAuthHandler(auth Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}
