// Package respond concentra o envelope JSON {data, error} usado por todas as rotas.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/util"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// JSON escreve envelope de sucesso.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// Error escreve envelope de erro e mantém formato consistente.
func Error(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// Internal registra o erro e responde 500 sem vazar detalhes.
func Internal(w http.ResponseWriter, r *http.Request, component string, err error) {
	log.Error().Err(err).
		Str("component", component).
		Str("request_id", chimiddleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg("falha ao processar requisição")
	Error(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
}

// Unauthorized padroniza a ausência de sessão válida.
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "AUTH", "Usuário não autenticado", nil)
}

// LogRequest escreve a linha de auditoria por operação de domínio.
func LogRequest(ctx context.Context, label string, userID uuid.UUID, start time.Time) {
	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}
	logger.Info().
		Str("request_id", chimiddleware.GetReqID(ctx)).
		Str("user_id", userID.String()).
		Str("label", label).
		Dur("duration", time.Since(start)).
		Msg("domain_request")
}

// Invalid traduz falhas de decode/validação em 400 VALIDATION com detalhes por campo.
func Invalid(w http.ResponseWriter, err error) {
	var verr *util.ValidationError
	if errors.As(err, &verr) {
		Error(w, http.StatusBadRequest, "VALIDATION", verr.Error(), verr.Fields)
		return
	}
	Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
}
