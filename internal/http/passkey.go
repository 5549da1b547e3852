package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/http/respond"
	"github.com/novaplataforma/nova/internal/service"
	"github.com/novaplataforma/nova/internal/util"
)

type passkeyLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passkeyView struct {
	ID         string   `json:"id"`
	Nickname   *string  `json:"nickname,omitempty"`
	Transports []string `json:"transports"`
	Cloned     bool     `json:"cloned"`
	CriadoEm   string   `json:"criado_em"`
}

// PasskeyRegisterStart devolve o desafio de registro para o usuário logado.
func (h *Handler) PasskeyRegisterStart(w http.ResponseWriter, r *http.Request) {
	subject, err := httpmiddleware.SubjectUUID(r.Context())
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	reg, err := h.authService.BeginPasskeyRegistration(r.Context(), subject)
	if err != nil {
		h.handlePasskeyError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"session": reg.Session,
		"options": map[string]any{"publicKey": reg.Options.Response},
	})
}

func (h *Handler) PasskeyRegisterFinish(w http.ResponseWriter, r *http.Request) {
	subject, err := httpmiddleware.SubjectUUID(r.Context())
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "session ausente", nil)
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "resposta do autenticador inválida", nil)
		return
	}

	created, err := h.authService.FinishPasskeyRegistration(r.Context(), subject, sessionID, parsed, r.URL.Query().Get("apelido"))
	if err != nil {
		h.handlePasskeyError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, passkeyView{
		ID:         created.ID.String(),
		Nickname:   created.Nickname,
		Transports: created.Transports,
		Cloned:     created.Cloned,
		CriadoEm:   created.CriadoEm.Format(time.RFC3339),
	})
}

// PasskeyList lista as credenciais do usuário logado.
func (h *Handler) PasskeyList(w http.ResponseWriter, r *http.Request) {
	subject, err := httpmiddleware.SubjectUUID(r.Context())
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	passkeys, err := h.authService.ListPasskeys(r.Context(), subject)
	if err != nil {
		respond.Internal(w, r, "auth", err)
		return
	}

	out := make([]passkeyView, 0, len(passkeys))
	for _, p := range passkeys {
		out = append(out, passkeyView{
			ID:         p.ID.String(),
			Nickname:   p.Nickname,
			Transports: p.Transports,
			Cloned:     p.Cloned,
			CriadoEm:   p.CriadoEm.Format(time.RFC3339),
		})
	}
	respond.JSON(w, http.StatusOK, map[string]any{"passkeys": out})
}

func (h *Handler) PasskeyLoginStart(w http.ResponseWriter, r *http.Request) {
	var payload passkeyLoginRequest
	if err := util.DecodeJSON(r, &payload); err != nil {
		respond.Invalid(w, err)
		return
	}

	assertion, err := h.authService.BeginPasskeyLogin(r.Context(), payload.Email)
	if err != nil {
		h.handlePasskeyError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"session": assertion.Session,
		"options": map[string]any{"publicKey": assertion.Options.Response},
	})
}

// PasskeyLoginFinish valida a asserção e responde como o login por senha.
func (h *Handler) PasskeyLoginFinish(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "session ausente", nil)
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "resposta do autenticador inválida", nil)
		return
	}

	result, err := h.authService.FinishPasskeyLogin(r.Context(), sessionID, parsed)
	if err != nil {
		h.handlePasskeyError(w, r, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

func (h *Handler) handlePasskeyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrPasskeyDisabled):
		respond.Error(w, http.StatusNotImplemented, "PASSKEY_DISABLED", err.Error(), nil)
	case errors.Is(err, service.ErrPasskeySession):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, service.ErrPasskeyRejected):
		respond.Error(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	default:
		h.handleAuthError(w, r, err)
	}
}
