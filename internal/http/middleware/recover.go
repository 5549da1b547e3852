package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/http/respond"
)

// Recover garante resposta sanitizada em caso de panic.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error().
				Interface("panic", rec).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("panic recuperado")
			respond.Error(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
