package academia

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
	r.Get("/cursos", h.handleCatalogo)
	r.Get("/cursos/recomendados", h.handleRecomendados)
	r.Get("/cursos/{slug}", h.handleCurso)
	r.Post("/aulas/{id}/concluir", h.handleConcluir)
}

func (h *Handler) handleCatalogo(w http.ResponseWriter, r *http.Request) {
	cursos, err := h.service.Catalogo(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, cursos)
}

func (h *Handler) handleRecomendados(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	apenas := false
	if raw := r.URL.Query().Get("apenas_recomendados"); raw != "" {
		if apenas, err = strconv.ParseBool(raw); err != nil {
			respond.Error(w, http.StatusBadRequest, "VALIDATION", "apenas_recomendados inválido", nil)
			return
		}
	}

	grupos, err := h.service.Recomendados(ctx, userID, apenas)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "GET /cursos/recomendados", userID, start)
	respond.JSON(w, http.StatusOK, grupos)
}

func (h *Handler) handleCurso(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	curso, err := h.service.Curso(ctx, chi.URLParam(r, "slug"), userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, curso)
}

func (h *Handler) handleConcluir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	aulaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "aula inválida", nil)
		return
	}

	if err := h.service.ConcluirAula(ctx, userID, aulaID); err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /aulas/concluir", userID, start)
	respond.JSON(w, http.StatusOK, map[string]bool{"concluida": true})
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "não encontrado", nil)
	default:
		respond.Internal(w, r, "academia", err)
	}
}
