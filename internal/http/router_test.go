package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/novaplataforma/nova/internal/auth"
	"github.com/novaplataforma/nova/internal/config"
	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/realtime"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubAuth struct {
	jwt     *auth.JWTManager
	logouts []string
}

func (s *stubAuth) result() *service.LoginResult {
	id := uuid.New()
	token, exp, _ := s.jwt.GenerateAccessToken(id.String(), []string{service.RoleMembro})
	return &service.LoginResult{
		AccessToken:   token,
		AccessExpiry:  exp,
		RefreshToken:  "refresh-novo",
		RefreshExpiry: time.Now().Add(time.Hour),
		Subject:       id,
		Roles:         []string{service.RoleMembro},
		Profile:       &service.SessionProfile{ID: id.String(), Nome: "Ana"},
	}
}

func (s *stubAuth) Register(ctx context.Context, nome, email, password string) (*service.LoginResult, error) {
	if email == "ana@nova.dev" {
		return nil, service.ErrEmailInUse
	}
	return s.result(), nil
}
func (s *stubAuth) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	if password != "SenhaForte123!" {
		return nil, service.ErrInvalidCredentials
	}
	return s.result(), nil
}
func (s *stubAuth) Refresh(ctx context.Context, rawToken string) (*service.LoginResult, error) {
	if rawToken != "refresh-valido" {
		return nil, service.ErrRefreshInvalid
	}
	return s.result(), nil
}
func (s *stubAuth) Logout(ctx context.Context, rawToken string) error {
	s.logouts = append(s.logouts, rawToken)
	return nil
}
func (s *stubAuth) GetMe(ctx context.Context, subject uuid.UUID) (*service.SessionProfile, []string, error) {
	return nil, nil, repo.ErrNotFound
}
func (s *stubAuth) JWT() *auth.JWTManager { return s.jwt }

func authRouter(stub *stubAuth) chi.Router {
	h := &Handler{authService: stub, devCookies: true}
	r := chi.NewRouter()
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.With(httpmiddleware.Auth(stub.jwt)).Get("/auth/sessao", h.Session)
	return r
}

func TestAuthHandlers(t *testing.T) {
	stub := &stubAuth{jwt: auth.NewJWTManager(testSecret, time.Minute)}
	router := authRouter(stub)

	tests := []struct {
		name   string
		path   string
		body   any
		cookie string
		status int
	}{
		{"register", "/auth/register", map[string]string{"nome": "Bia", "email": "bia@nova.dev", "senha": "SenhaForte123!"}, "", http.StatusCreated},
		{"register-email-invalido", "/auth/register", map[string]string{"nome": "Bia", "email": "bia", "senha": "SenhaForte123!"}, "", http.StatusBadRequest},
		{"register-senha-curta", "/auth/register", map[string]string{"nome": "Bia", "email": "bia@nova.dev", "senha": "curta"}, "", http.StatusBadRequest},
		{"register-duplicado", "/auth/register", map[string]string{"nome": "Ana", "email": "ana@nova.dev", "senha": "SenhaForte123!"}, "", http.StatusConflict},
		{"login", "/auth/login", map[string]string{"email": "ana@nova.dev", "senha": "SenhaForte123!"}, "", http.StatusOK},
		{"login-senha-errada", "/auth/login", map[string]string{"email": "ana@nova.dev", "senha": "errada"}, "", http.StatusUnauthorized},
		{"refresh-cookie", "/auth/refresh", nil, "refresh-valido", http.StatusOK},
		{"refresh-corpo", "/auth/refresh", map[string]string{"refresh_token": "refresh-valido"}, "", http.StatusOK},
		{"refresh-invalido", "/auth/refresh", map[string]string{"refresh_token": "velho"}, "", http.StatusUnauthorized},
		{"refresh-ausente", "/auth/refresh", nil, "", http.StatusUnauthorized},
		{"logout", "/auth/logout", nil, "refresh-valido", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body bytes.Buffer
			if tc.body != nil {
				_ = json.NewEncoder(&body).Encode(tc.body)
			}
			req := httptest.NewRequest(http.MethodPost, tc.path, &body)
			if tc.body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: refreshCookie, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}

	if len(stub.logouts) != 1 || stub.logouts[0] != "refresh-valido" {
		t.Fatalf("logout deveria revogar o token do cookie: %v", stub.logouts)
	}
}

func TestLoginDefineCookie(t *testing.T) {
	stub := &stubAuth{jwt: auth.NewJWTManager(testSecret, time.Minute)}
	router := authRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"ana@nova.dev","senha":"SenhaForte123!"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookie && c.Value == "refresh-novo" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Fatalf("cookie de refresh não definido: %v", rec.Result().Cookies())
	}
}

func TestSessaoSemToken(t *testing.T) {
	stub := &stubAuth{jwt: auth.NewJWTManager(testSecret, time.Minute)}
	router := authRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/auth/sessao", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Usuário não autenticado") {
		t.Fatalf("esperava 401 AUTH, veio %d: %s", rec.Code, rec.Body.String())
	}
}

type zeroCounter struct{}

func (zeroCounter) Contadores(ctx context.Context, userID uuid.UUID) (realtime.Contadores, error) {
	return realtime.Contadores{}, nil
}

func TestNewRouterRotasBasicas(t *testing.T) {
	cfg := &config.Config{
		JWTSecret:       testSecret,
		JWTAccessTTL:    time.Minute,
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		Storage:         config.StorageConfig{Provider: "noop"},
		UploadMaxBytes:  1 << 20,
		Timezone:        "America/Sao_Paulo",
	}
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(nil, nil, jwtMgr, time.Hour)
	rd := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	hub := realtime.NewHub(zeroCounter{}, zerolog.Nop())

	router, err := NewRouter(cfg, nil, rd, authService, Realtime{Hub: hub, Counter: zeroCounter{}, Publisher: hub})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"ready-sem-banco", http.MethodGet, "/ready", http.StatusServiceUnavailable},
		{"me-sem-token", http.MethodGet, "/me", http.StatusUnauthorized},
		{"feed-sem-token", http.MethodGet, "/posts", http.StatusUnauthorized},
		{"realtime-sem-token", http.MethodGet, "/realtime", http.StatusUnauthorized},
		{"passkey-registro-sem-token", http.MethodPost, "/auth/passkey/register/start", http.StatusUnauthorized},
		{"passkey-login-sem-sessao", http.MethodPost, "/auth/passkey/login/finish", http.StatusBadRequest},
		{"inexistente", http.MethodGet, "/nada", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}
