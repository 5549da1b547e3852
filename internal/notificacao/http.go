package notificacao

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
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notificacoes", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/nao-lidas", h.handleUnread)
		r.Post("/lidas", h.handleMarcarTodas)
		r.Post("/{id}/lida", h.handleMarcarLida)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.service.List(ctx, userID, limit, offset)
	if err != nil {
		respond.Internal(w, r, "notificacao", err)
		return
	}

	respond.LogRequest(ctx, "GET /notificacoes", userID, start)
	respond.JSON(w, http.StatusOK, map[string]any{"notificacoes": items})
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
		respond.Internal(w, r, "notificacao", err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int{"nao_lidas": n})
}

func (h *Handler) handleMarcarLida(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "notificação inválida", nil)
		return
	}

	if err := h.service.MarcarLida(ctx, userID, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "NOT_FOUND", "notificação não encontrada", nil)
			return
		}
		respond.Internal(w, r, "notificacao", err)
		return
	}

	respond.LogRequest(ctx, "POST /notificacoes/lida", userID, start)
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleMarcarTodas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	n, err := h.service.MarcarTodasLidas(ctx, userID)
	if err != nil {
		respond.Internal(w, r, "notificacao", err)
		return
	}

	respond.LogRequest(ctx, "POST /notificacoes/lidas", userID, start)
	respond.JSON(w, http.StatusOK, map[string]int64{"atualizadas": n})
}
