package mensagem

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/http/respond"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/util"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/mensagens", func(r chi.Router) {
		r.Get("/", h.handleConversas)
		r.Get("/nao-lidas", h.handleUnread)
		r.Get("/{usuarioID}", h.handleConversa)
		r.Post("/{usuarioID}", h.handleEnviar)
		r.Post("/{usuarioID}/visualizadas", h.handleVisualizadas)
	})
}

type enviarRequest struct {
	Conteudo string `json:"conteudo" validate:"required"`
}

func parceiro(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "usuarioID"))
}

func (h *Handler) handleEnviar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	outro, err := parceiro(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "destinatário inválido", nil)
		return
	}

	var req enviarRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		respond.Invalid(w, err)
		return
	}

	m, err := h.service.Enviar(ctx, userID, outro, req.Conteudo)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /mensagens", userID, start)
	respond.JSON(w, http.StatusCreated, m)
}

func (h *Handler) handleConversa(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	outro, err := parceiro(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "usuário inválido", nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var antes *time.Time
	if raw := r.URL.Query().Get("antes"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "VALIDATION", "parâmetro antes inválido", nil)
			return
		}
		antes = &t
	}

	msgs, grupos, err := h.service.Conversa(ctx, userID, outro, limit, antes)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "GET /mensagens/conversa", userID, start)
	respond.JSON(w, http.StatusOK, map[string]any{"mensagens": msgs, "grupos": grupos})
}

func (h *Handler) handleVisualizadas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	outro, err := parceiro(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "usuário inválido", nil)
		return
	}

	n, err := h.service.MarcarVisualizadas(ctx, userID, outro)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int64{"atualizadas": n})
}

func (h *Handler) handleConversas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	conversas, err := h.service.Conversas(ctx, userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"conversas": conversas})
}

func (h *Handler) handleUnread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	n, err := h.service.Unread(ctx, userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int{"nao_lidas": n})
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrConteudoInvalido), errors.Is(err, ErrProprioUsuario):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "usuário não encontrado", nil)
	default:
		respond.Internal(w, r, "mensagem", err)
	}
}
