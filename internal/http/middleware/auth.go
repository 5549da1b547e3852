package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/auth"
	"github.com/novaplataforma/nova/internal/http/respond"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
	ContextKeyRoles   contextKey = "roles"
)

// Auth valida JWT de acesso e injeta claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				respond.Error(w, http.StatusUnauthorized, "AUTH", "token ausente", nil)
				return
			}

			claims, err := jwtManager.ParseAndValidate(token)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "AUTH", "token inválido", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims.Subject, claims.Roles)))
		})
	}
}

// BearerToken extrai o token do header Authorization.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WithClaims injeta subject e roles; usado também pelos testes de handlers.
func WithClaims(ctx context.Context, subject string, roles []string) context.Context {
	ctx = context.WithValue(ctx, ContextKeySubject, subject)
	return context.WithValue(ctx, ContextKeyRoles, roles)
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// SubjectUUID devolve o subject já convertido para UUID.
func SubjectUUID(ctx context.Context) (uuid.UUID, error) {
	return uuid.Parse(GetSubject(ctx))
}

// GetRoles recupera roles do contexto.
func GetRoles(ctx context.Context) []string {
	val, _ := ctx.Value(ContextKeyRoles).([]string)
	return val
}
