package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/auth"
	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/service"
)

func (s *stubAuth) BeginPasskeyRegistration(ctx context.Context, userID uuid.UUID) (*service.PasskeyRegistration, error) {
	return &service.PasskeyRegistration{Session: "sessao-registro", Options: &protocol.CredentialCreation{}}, nil
}

func (s *stubAuth) FinishPasskeyRegistration(ctx context.Context, userID uuid.UUID, sessionID string, parsed *protocol.ParsedCredentialCreationData, nickname string) (repo.Passkey, error) {
	return repo.Passkey{}, service.ErrPasskeySession
}

func (s *stubAuth) ListPasskeys(ctx context.Context, userID uuid.UUID) ([]repo.Passkey, error) {
	apelido := "notebook"
	return []repo.Passkey{{ID: uuid.New(), UsuarioID: userID, Nickname: &apelido, Transports: []string{"internal"}}}, nil
}

func (s *stubAuth) BeginPasskeyLogin(ctx context.Context, email string) (*service.PasskeyAssertion, error) {
	switch email {
	case "ana@nova.dev":
		return &service.PasskeyAssertion{Session: "sessao-login", Options: &protocol.CredentialAssertion{}}, nil
	case "off@nova.dev":
		return nil, service.ErrPasskeyDisabled
	}
	return nil, service.ErrInvalidCredentials
}

func (s *stubAuth) FinishPasskeyLogin(ctx context.Context, sessionID string, parsed *protocol.ParsedCredentialAssertionData) (*service.LoginResult, error) {
	return nil, service.ErrPasskeyRejected
}

func passkeyRouter(stub *stubAuth) chi.Router {
	h := &Handler{authService: stub, devCookies: true}
	r := chi.NewRouter()
	r.Post("/auth/passkey/login/start", h.PasskeyLoginStart)
	r.Post("/auth/passkey/login/finish", h.PasskeyLoginFinish)
	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(stub.jwt))
		private.Get("/auth/passkeys", h.PasskeyList)
		private.Post("/auth/passkey/register/start", h.PasskeyRegisterStart)
		private.Post("/auth/passkey/register/finish", h.PasskeyRegisterFinish)
	})
	return r
}

func TestPasskeyHandlers(t *testing.T) {
	stub := &stubAuth{jwt: auth.NewJWTManager(testSecret, time.Minute)}
	router := passkeyRouter(stub)
	token, _, err := stub.jwt.GenerateAccessToken(uuid.NewString(), []string{service.RoleMembro})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		bearer bool
		status int
	}{
		{"login-start", http.MethodPost, "/auth/passkey/login/start", `{"email":"ana@nova.dev"}`, false, http.StatusOK},
		{"login-start-desconhecido", http.MethodPost, "/auth/passkey/login/start", `{"email":"bia@nova.dev"}`, false, http.StatusUnauthorized},
		{"login-start-desativado", http.MethodPost, "/auth/passkey/login/start", `{"email":"off@nova.dev"}`, false, http.StatusNotImplemented},
		{"login-start-email-invalido", http.MethodPost, "/auth/passkey/login/start", `{"email":"ana"}`, false, http.StatusBadRequest},
		{"login-finish-sem-sessao", http.MethodPost, "/auth/passkey/login/finish", `{}`, false, http.StatusBadRequest},
		{"login-finish-corpo-invalido", http.MethodPost, "/auth/passkey/login/finish?session=x", `lixo`, false, http.StatusBadRequest},
		{"registro-sem-token", http.MethodPost, "/auth/passkey/register/start", "", false, http.StatusUnauthorized},
		{"registro-start", http.MethodPost, "/auth/passkey/register/start", "", true, http.StatusOK},
		{"registro-finish-sem-sessao", http.MethodPost, "/auth/passkey/register/finish", `{}`, true, http.StatusBadRequest},
		{"listar", http.MethodGet, "/auth/passkeys", "", true, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.bearer {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPasskeyLoginStartDevolveSessao(t *testing.T) {
	stub := &stubAuth{jwt: auth.NewJWTManager(testSecret, time.Minute)}
	router := passkeyRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/auth/passkey/login/start", strings.NewReader(`{"email":"ana@nova.dev"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body struct {
		Data struct {
			Session string                     `json:"session"`
			Options map[string]json.RawMessage `json:"options"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Session != "sessao-login" {
		t.Fatalf("sessão inesperada: %q", body.Data.Session)
	}
	var keys []string
	for k := range body.Data.Options {
		keys = append(keys, k)
	}
	if diff := cmp.Diff([]string{"publicKey"}, keys); diff != "" {
		t.Fatalf("options divergentes (-want +got):\n%s", diff)
	}
}
