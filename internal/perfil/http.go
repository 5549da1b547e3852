package perfil

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/http/respond"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/storage"
	"github.com/novaplataforma/nova/internal/util"
)

type Handler struct {
	service   *Service
	maxUpload int64
}

func NewHandler(service *Service, maxUpload int64) *Handler {
	return &Handler{service: service, maxUpload: maxUpload}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Put("/me", h.handleAtualizar)
	r.Post("/me/onboarding", h.handleOnboarding)
	r.Post("/me/avatar", h.handleAvatar)
	r.Get("/usuarios", h.handleBuscar)
	r.Get("/usuarios/{id}", h.handleGet)
}

type atualizarRequest struct {
	Nome     string  `json:"nome" validate:"required,min=2,max=120"`
	Username *string `json:"username" validate:"omitempty,username"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
}

type onboardingRequest struct {
	TipoConta        string   `json:"tipo_conta" validate:"required,oneof=estudante profissional empresa"`
	Objetivo         string   `json:"objetivo" validate:"max=200"`
	FuncoesInteresse []string `json:"funcoes_interesse" validate:"required,min=1,dive,max=60"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	p, err := h.service.Me(ctx, userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleAtualizar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	var req atualizarRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		respond.Invalid(w, err)
		return
	}

	p, err := h.service.Atualizar(ctx, userID, Atualizacao{Nome: req.Nome, Username: req.Username, Bio: req.Bio})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "PUT /me", userID, start)
	respond.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	var req onboardingRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		respond.Invalid(w, err)
		return
	}

	p, err := h.service.Onboarding(ctx, userID, Onboarding{
		TipoConta:        req.TipoConta,
		Objetivo:         req.Objetivo,
		FuncoesInteresse: req.FuncoesInteresse,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /me/onboarding", userID, start)
	respond.JSON(w, http.StatusOK, p)
}

// handleAvatar espera multipart com o campo "avatar".
func (h *Handler) handleAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "formulário inválido", nil)
		return
	}
	f, fh, err := r.FormFile("avatar")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "arquivo avatar obrigatório", nil)
		return
	}
	f.Close()

	data, ct, err := storage.ReadFile(fh, h.maxUpload)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	p, err := h.service.Avatar(ctx, userID, Imagem{Nome: fh.Filename, ContentType: ct, Dados: data})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /me/avatar", userID, start)
	respond.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleBuscar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := httpmiddleware.SubjectUUID(ctx); err != nil {
		respond.Unauthorized(w)
		return
	}

	out, err := h.service.Buscar(ctx, r.URL.Query().Get("q"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := httpmiddleware.SubjectUUID(ctx); err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "usuário inválido", nil)
		return
	}

	p, err := h.service.Get(ctx, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *util.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "dados inválidos", verr.Fields)
	case errors.Is(err, ErrAvatarInvalido):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, storage.ErrTooLarge):
		respond.Error(w, http.StatusRequestEntityTooLarge, "VALIDATION", "arquivo excede o limite", nil)
	case errors.Is(err, ErrOnboardingConcluido), errors.Is(err, ErrUsernameEmUso):
		respond.Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "usuário não encontrado", nil)
	default:
		respond.Internal(w, r, "perfil", err)
	}
}
