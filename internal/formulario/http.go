package formulario

import (
	"errors"
	"net/http"
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

type Handler struct {
	service   *Service
	maxUpload int64
}

func NewHandler(service *Service, maxUpload int64) *Handler {
	return &Handler{service: service, maxUpload: maxUpload}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/formularios", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/respostas", h.handleResponder)
		r.Get("/{id}/respostas", h.handleMinhasRespostas)
	})
}

type responderRequest struct {
	Respostas map[uuid.UUID]string `json:"respostas" validate:"required"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := httpmiddleware.SubjectUUID(ctx); err != nil {
		respond.Unauthorized(w)
		return
	}

	forms, err := h.service.List(ctx)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"formularios": forms})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := httpmiddleware.SubjectUUID(ctx); err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "formulário inválido", nil)
		return
	}

	f, err := h.service.Get(ctx, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, f)
}

// handleResponder aceita multipart (campos e arquivos nomeados pelo id da
// pergunta) ou JSON {"respostas": {"<id>": "valor"}}.
func (h *Handler) handleResponder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "formulário inválido", nil)
		return
	}

	envio := Envio{Valores: map[uuid.UUID]string{}, Arquivos: map[uuid.UUID]Arquivo{}}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := h.readMultipart(w, r, &envio); err != nil {
			handleDomainError(w, r, err)
			return
		}
	} else {
		var req responderRequest
		if err := util.DecodeJSON(r, &req); err != nil {
			respond.Invalid(w, err)
			return
		}
		envio.Valores = req.Respostas
	}

	res, err := h.service.Responder(ctx, userID, id, envio)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respond.LogRequest(ctx, "POST /formularios/respostas", userID, start)
	respond.JSON(w, http.StatusCreated, res)
}

func (h *Handler) readMultipart(w http.ResponseWriter, r *http.Request, envio *Envio) error {
	// cada arquivo respeita maxUpload; o corpo inteiro tem folga para vários anexos
	r.Body = http.MaxBytesReader(w, r.Body, 4*h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return &util.ValidationError{Fields: map[string]string{"form": "formulário multipart inválido"}}
	}

	invalidos := map[string]string{}
	for campo, valores := range r.MultipartForm.Value {
		pid, err := uuid.Parse(campo)
		if err != nil {
			invalidos[campo] = "campo desconhecido"
			continue
		}
		if len(valores) > 0 {
			envio.Valores[pid] = valores[0]
		}
	}
	for campo, arquivos := range r.MultipartForm.File {
		pid, err := uuid.Parse(campo)
		if err != nil {
			invalidos[campo] = "campo desconhecido"
			continue
		}
		if len(arquivos) == 0 {
			continue
		}
		fh := arquivos[0]
		data, ct, err := storage.ReadFile(fh, h.maxUpload)
		if err != nil {
			return err
		}
		envio.Arquivos[pid] = Arquivo{Nome: fh.Filename, ContentType: ct, Dados: data}
	}
	if len(invalidos) > 0 {
		return &util.ValidationError{Fields: invalidos}
	}
	return nil
}

func (h *Handler) handleMinhasRespostas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "formulário inválido", nil)
		return
	}

	respostas, err := h.service.MinhasRespostas(ctx, userID, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"respostas": respostas})
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *util.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Invalid(w, err)
	case errors.Is(err, storage.ErrTooLarge):
		respond.Error(w, http.StatusRequestEntityTooLarge, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrEncerrado):
		respond.Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "formulário não encontrado", nil)
	default:
		respond.Internal(w, r, "formulario", err)
	}
}
