package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/novaplataforma/nova/internal/academia"
	"github.com/novaplataforma/nova/internal/comunidade"
	"github.com/novaplataforma/nova/internal/conexao"
	"github.com/novaplataforma/nova/internal/config"
	"github.com/novaplataforma/nova/internal/formulario"
	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/http/respond"
	"github.com/novaplataforma/nova/internal/mensagem"
	"github.com/novaplataforma/nova/internal/notificacao"
	"github.com/novaplataforma/nova/internal/perfil"
	"github.com/novaplataforma/nova/internal/realtime"
	"github.com/novaplataforma/nova/internal/service"
	"github.com/novaplataforma/nova/internal/storage"
)

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   authenticator
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// Realtime agrupa o hub local e o publicador usado pelos serviços.
type Realtime struct {
	Hub       *realtime.Hub
	Counter   realtime.Counter
	Publisher realtime.Publisher
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService, rt Realtime) (http.Handler, error) {
	uploader, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		authService:   authService,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    cfg.DevCookies,
	}

	perfilHandler := perfil.NewHandler(perfil.NewService(perfil.NewRepository(pool), uploader), cfg.UploadMaxBytes)
	conexaoHandler := conexao.NewHandler(conexao.NewService(conexao.NewRepository(pool), rt.Publisher))
	notificacaoHandler := notificacao.NewHandler(notificacao.NewService(notificacao.NewRepository(pool), rt.Publisher))
	mensagemHandler := mensagem.NewHandler(mensagem.NewService(mensagem.NewRepository(pool), rt.Publisher, loc))
	comunidadeHandler := comunidade.NewHandler(comunidade.NewService(comunidade.NewRepository(pool), uploader, rt.Publisher), cfg.UploadMaxBytes)
	formularioHandler := formulario.NewHandler(formulario.NewService(formulario.NewRepository(pool), uploader), cfg.UploadMaxBytes)
	academiaHandler := academia.NewHandler(academia.NewService(academia.NewRepository(pool), redisClient, cfg.CatalogCacheTTL))
	realtimeHandler := realtime.NewHandler(rt.Hub, rt.Counter, authService.JWT(), cfg.AllowOrigins)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Register)
			auth.Post("/login", h.Login)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
			auth.Post("/passkey/login/start", h.PasskeyLoginStart)
			auth.Post("/passkey/login/finish", h.PasskeyLoginFinish)
		})

		// o navegador não envia Authorization no upgrade; o token vem na query
		realtimeHandler.RegisterPublic(public)

		if local, ok := uploader.(*storage.LocalUploader); ok {
			public.Handle("/arquivos/*", local.Handler("/arquivos"))
		}
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/auth/sessao", h.Session)
		private.Get("/auth/passkeys", h.PasskeyList)
		private.Route("/auth/passkey/register", func(r chi.Router) {
			r.Post("/start", h.PasskeyRegisterStart)
			r.Post("/finish", h.PasskeyRegisterFinish)
		})
		perfilHandler.RegisterRoutes(private)
		realtimeHandler.RegisterRoutes(private)
		conexaoHandler.RegisterRoutes(private)
		notificacaoHandler.RegisterRoutes(private)
		mensagemHandler.RegisterRoutes(private)
		comunidadeHandler.RegisterRoutes(private)
		formularioHandler.RegisterRoutes(private)
		academiaHandler.RegisterRoutes(private)
	})

	return r, nil
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var dbErr, redisErr error
	if h.pool != nil {
		dbErr = h.pool.Ping(ctx)
	} else {
		dbErr = fmt.Errorf("pool não configurado")
	}
	if h.redis != nil {
		redisErr = h.redis.Ping(ctx).Err()
	} else {
		redisErr = fmt.Errorf("redis não configurado")
	}

	if dbErr != nil || redisErr != nil {
		respond.Error(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	respond.JSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
