package comunidade

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/http/respond"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/storage"
	"github.com/novaplataforma/nova/internal/util"
)

// Handler expõe feed, comentários, reações e candidaturas.
type Handler struct {
	service   *Service
	maxUpload int64
}

func NewHandler(service *Service, maxUpload int64) *Handler {
	return &Handler{service: service, maxUpload: maxUpload}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", h.handleFeed)
		r.Post("/", h.handleCriarPost)
		r.Get("/{id}", h.handleGetPost)
		r.Delete("/{id}", h.handleRemoverPost)
		r.Get("/{id}/comentarios", h.handleListComentarios)
		r.Post("/{id}/comentarios", h.handleComentar)
		r.Post("/{id}/reacoes", h.handleReagir)
		r.Get("/{id}/interacoes", h.handleListInteracoes)
		r.Post("/{id}/interacoes", h.handleCandidatar)
	})
	r.Delete("/comentarios/{id}", h.handleRemoverComentario)
	r.Post("/interacoes/{id}/decisao", h.handleDecidir)
}

type criarPostRequest struct {
	Tipo      string `json:"tipo"`
	Titulo    string `json:"titulo" validate:"max=200"`
	Conteudo  string `json:"conteudo" validate:"required"`
	ImagemURL string `json:"imagem_url" validate:"omitempty,url"`
}

type textoRequest struct {
	Conteudo string `json:"conteudo" validate:"required"`
}

type reacaoRequest struct {
	Tipo string `json:"tipo" validate:"required,oneof=curtir amei apoiar genial"`
}

type candidaturaRequest struct {
	Mensagem string `json:"mensagem" validate:"required"`
}

type decisaoRequest struct {
	Status string `json:"status" validate:"required,oneof=aprovado rejeitado"`
}

func idParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	posts, err := h.service.Feed(ctx, userID, page, size)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "GET /posts", userID, start)
	respond.JSON(w, http.StatusOK, map[string]any{"posts": posts, "page": page})
}

// handleCriarPost aceita JSON ou multipart com o campo de arquivo "imagem".
func (h *Handler) handleCriarPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	var in CriarPostInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			respond.Error(w, http.StatusBadRequest, "VALIDATION", "formulário inválido", nil)
			return
		}
		in = CriarPostInput{
			Tipo:     r.FormValue("tipo"),
			Titulo:   r.FormValue("titulo"),
			Conteudo: r.FormValue("conteudo"),
		}
		if f, fh, err := r.FormFile("imagem"); err == nil {
			f.Close()
			data, ct, err := storage.ReadFile(fh, h.maxUpload)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			in.Imagem = &Imagem{Nome: fh.Filename, ContentType: ct, Dados: data}
		}
	} else {
		var req criarPostRequest
		if err := util.DecodeJSON(r, &req); err != nil {
			respond.Invalid(w, err)
			return
		}
		in = CriarPostInput{Tipo: req.Tipo, Titulo: req.Titulo, Conteudo: req.Conteudo, ImagemURL: req.ImagemURL}
	}

	post, err := h.service.CriarPost(ctx, userID, in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /posts", userID, start)
	respond.JSON(w, http.StatusCreated, post)
}

func (h *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "post inválido", nil)
		return
	}

	post, err := h.service.GetPost(ctx, userID, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, post)
}

func (h *Handler) handleRemoverPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "post inválido", nil)
		return
	}

	if err := h.service.RemoverPost(ctx, userID, id); err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "DELETE /posts", userID, start)
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListComentarios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := httpmiddleware.SubjectUUID(ctx); err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "post inválido", nil)
		return
	}

	comentarios, err := h.service.ListComentarios(ctx, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"comentarios": comentarios})
}

func (h *Handler) handleComentar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "post inválido", nil)
		return
	}

	var req textoRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		respond.Invalid(w, err)
		return
	}

	c, err := h.service.Comentar(ctx, userID, id, req.Conteudo)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /posts/comentarios", userID, start)
	respond.JSON(w, http.StatusCreated, c)
}

func (h *Handler) handleRemoverComentario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "comentário inválido", nil)
		return
	}

	if err := h.service.RemoverComentario(ctx, userID, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReagir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "post inválido", nil)
		return
	}

	var req reacaoRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		respond.Invalid(w, err)
		return
	}

	ativa, contagens, err := h.service.Reagir(ctx, userID, id, req.Tipo)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /posts/reacoes", userID, start)
	respond.JSON(w, http.StatusOK, map[string]any{"minha_reacao": ativa, "reacoes": contagens})
}

func (h *Handler) handleCandidatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "post inválido", nil)
		return
	}

	var req candidaturaRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		respond.Invalid(w, err)
		return
	}

	it, err := h.service.Candidatar(ctx, userID, id, req.Mensagem)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /posts/interacoes", userID, start)
	respond.JSON(w, http.StatusCreated, it)
}

func (h *Handler) handleListInteracoes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "post inválido", nil)
		return
	}

	itens, err := h.service.ListInteracoes(ctx, userID, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"interacoes": itens})
}

func (h *Handler) handleDecidir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "candidatura inválida", nil)
		return
	}

	var req decisaoRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		respond.Invalid(w, err)
		return
	}

	it, err := h.service.Decidir(ctx, userID, id, req.Status)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /interacoes/decisao", userID, start)
	respond.JSON(w, http.StatusOK, it)
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTipoInvalido), errors.Is(err, ErrConteudoInvalido),
		errors.Is(err, ErrSemInteracao), errors.Is(err, ErrProprioPost):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, storage.ErrTooLarge):
		respond.Error(w, http.StatusRequestEntityTooLarge, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, "FORBIDDEN", "sem acesso", nil)
	case errors.Is(err, repo.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	case errors.Is(err, repo.ErrConflict):
		respond.Error(w, http.StatusConflict, "CONFLICT", "você já se candidatou a este post", nil)
	case errors.Is(err, ErrNaoPendente):
		respond.Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		respond.Internal(w, r, "comunidade", err)
	}
}
