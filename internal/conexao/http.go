package conexao

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/http/respond"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/util"
)

// Handler expõe pedidos e listas de conexões.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/conexoes", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleSolicitar)
		r.Get("/pendentes", h.handlePendentes)
		r.Get("/sugestoes", h.handleSugestoes)
		r.Get("/status/{usuarioID}", h.handleStatus)
		r.Post("/{id}/aceitar", h.handleAceitar)
		r.Post("/{id}/recusar", h.handleRecusar)
		r.Delete("/{id}", h.handleCancelar)
		r.Delete("/usuario/{usuarioID}", h.handleDesfazer)
	})
}

type solicitarRequest struct {
	ReceptorID uuid.UUID `json:"receptor_id" validate:"required"`
}

func (h *Handler) handleSolicitar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	var req solicitarRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		respond.Invalid(w, err)
		return
	}

	c, err := h.service.Solicitar(ctx, userID, req.ReceptorID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /conexoes", userID, start)
	respond.JSON(w, http.StatusCreated, c)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	contatos, err := h.service.ListConexoes(ctx, userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"conexoes": contatos})
}

func (h *Handler) handlePendentes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	pedidos, err := h.service.ListPendentes(ctx, userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"pendentes": pedidos})
}

func (h *Handler) handleSugestoes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	sugestoes, err := h.service.Sugestoes(ctx, userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"sugestoes": sugestoes})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	outro, err := uuid.Parse(chi.URLParam(r, "usuarioID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "usuário inválido", nil)
		return
	}

	status, c, err := h.service.Status(ctx, userID, outro)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	body := map[string]any{"status": status}
	if c != nil {
		body["conexao_id"] = c.ID
	}
	respond.JSON(w, http.StatusOK, body)
}

func (h *Handler) handleAceitar(w http.ResponseWriter, r *http.Request) {
	h.withConexao(w, r, "POST /conexoes/aceitar", func(userID, id uuid.UUID) (any, error) {
		return h.service.Aceitar(r.Context(), userID, id)
	})
}

func (h *Handler) handleRecusar(w http.ResponseWriter, r *http.Request) {
	h.withConexao(w, r, "POST /conexoes/recusar", func(userID, id uuid.UUID) (any, error) {
		return map[string]string{"status": "ok"}, h.service.Recusar(r.Context(), userID, id)
	})
}

func (h *Handler) handleCancelar(w http.ResponseWriter, r *http.Request) {
	h.withConexao(w, r, "DELETE /conexoes", func(userID, id uuid.UUID) (any, error) {
		return map[string]string{"status": "ok"}, h.service.Cancelar(r.Context(), userID, id)
	})
}

// withConexao concentra auth, parse do {id} e log das ações sobre um pedido.
func (h *Handler) withConexao(w http.ResponseWriter, r *http.Request, label string, fn func(userID, id uuid.UUID) (any, error)) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "conexão inválida", nil)
		return
	}

	out, err := fn(userID, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, label, userID, start)
	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleDesfazer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	outro, err := uuid.Parse(chi.URLParam(r, "usuarioID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "usuário inválido", nil)
		return
	}

	if err := h.service.Desfazer(ctx, userID, outro); err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "DELETE /conexoes/usuario", userID, start)
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrProprioUsuario):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, "FORBIDDEN", "sem acesso", nil)
	case errors.Is(err, repo.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	case errors.Is(err, repo.ErrConflict):
		respond.Error(w, http.StatusConflict, "CONFLICT", "já existe um vínculo entre os usuários", nil)
	case errors.Is(err, ErrNaoPendente):
		respond.Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		respond.Internal(w, r, "conexao", err)
	}
}
