package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/auth"
	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/http/respond"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/service"
	"github.com/novaplataforma/nova/internal/util"
)

const refreshCookie = "nova_refresh"

type authenticator interface {
	Register(ctx context.Context, nome, email, password string) (*service.LoginResult, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, rawToken string) (*service.LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	GetMe(ctx context.Context, subject uuid.UUID) (*service.SessionProfile, []string, error)
	JWT() *auth.JWTManager

	BeginPasskeyRegistration(ctx context.Context, userID uuid.UUID) (*service.PasskeyRegistration, error)
	FinishPasskeyRegistration(ctx context.Context, userID uuid.UUID, sessionID string, parsed *protocol.ParsedCredentialCreationData, nickname string) (repo.Passkey, error)
	ListPasskeys(ctx context.Context, userID uuid.UUID) ([]repo.Passkey, error)
	BeginPasskeyLogin(ctx context.Context, email string) (*service.PasskeyAssertion, error)
	FinishPasskeyLogin(ctx context.Context, sessionID string, parsed *protocol.ParsedCredentialAssertionData) (*service.LoginResult, error)
}

type registerRequest struct {
	Nome  string `json:"nome" validate:"required,min=2,max=120"`
	Email string `json:"email" validate:"required,email"`
	Senha string `json:"senha" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Senha string `json:"senha" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register cria conta e devolve a sessão.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload registerRequest
	if err := util.DecodeJSON(r, &payload); err != nil {
		respond.Invalid(w, err)
		return
	}

	result, err := h.authService.Register(r.Context(), payload.Nome, payload.Email, payload.Senha)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusCreated, result)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := util.DecodeJSON(r, &payload); err != nil {
		respond.Invalid(w, err)
		return
	}

	result, err := h.authService.Login(r.Context(), payload.Email, payload.Senha)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Refresh rotaciona a sessão a partir do cookie ou do corpo.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := getRefreshFromRequest(r)
	if token == "" {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := getRefreshFromRequest(r); token != "" {
		if err := h.authService.Logout(r.Context(), token); err != nil {
			respond.Internal(w, r, "auth", err)
			return
		}
	}

	h.clearRefreshCookie(w)
	respond.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Session retorna perfil e papéis do usuário autenticado.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	subject, err := httpmiddleware.SubjectUUID(r.Context())
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	profile, roles, err := h.authService.GetMe(r.Context(), subject)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"user":  profile,
		"roles": roles,
	})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrRefreshInvalid):
		respond.Error(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		respond.Unauthorized(w)
	case errors.Is(err, service.ErrAccountDisabled):
		respond.Error(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, service.ErrEmailInUse):
		respond.Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		respond.Internal(w, r, "auth", err)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, status int, result *service.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)

	respond.JSON(w, status, map[string]any{
		"access_token":  result.AccessToken,
		"expires_at":    result.AccessExpiry,
		"refresh_token": result.RefreshToken,
		"roles":         result.Roles,
		"user":          result.Profile,
	})
}

func getRefreshFromRequest(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if r.Body == nil || !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return ""
	}
	var payload refreshRequest
	if err := util.DecodeJSON(r, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.RefreshToken)
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/auth",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
