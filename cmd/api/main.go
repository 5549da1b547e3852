package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/auth"
	"github.com/novaplataforma/nova/internal/config"
	"github.com/novaplataforma/nova/internal/db"
	internalhttp "github.com/novaplataforma/nova/internal/http"
	"github.com/novaplataforma/nova/internal/manutencao"
	"github.com/novaplataforma/nova/internal/migrations"
	"github.com/novaplataforma/nova/internal/notificacao"
	"github.com/novaplataforma/nova/internal/realtime"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info().Strs("aplicadas", applied).Msg("migrações verificadas")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// eventos: serviços -> redis (todas as réplicas) -> hub local -> websockets
	counter := realtime.NewRepository(pool)
	hub := realtime.NewHub(counter, log.With().Str("component", "realtime").Logger())
	go hub.Run(ctx)

	broker := realtime.NewRedisBroker(redisClient, cfg.Realtime.Channel, hub, log.With().Str("component", "realtime-redis").Logger())
	go func() {
		if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("realtime: assinatura redis encerrada")
		}
	}()

	publisher := realtime.Fanout{broker}
	if len(cfg.Realtime.KafkaBrokers) > 0 {
		mirror, err := realtime.NewKafkaMirror(cfg.Realtime.KafkaBrokers, cfg.Realtime.KafkaTopic)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer mirror.Close()
		publisher = append(publisher, mirror)
		log.Info().Strs("brokers", cfg.Realtime.KafkaBrokers).Str("topic", cfg.Realtime.KafkaTopic).Msg("espelhamento kafka ativo")
	}

	repository := repo.New(pool)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(repository, redisClient, jwtManager, cfg.JWTRefreshTTL)
	if cfg.WebAuthn.RPID != "" {
		wa, err := webauthn.New(&webauthn.Config{
			RPDisplayName: cfg.WebAuthn.RPName,
			RPID:          cfg.WebAuthn.RPID,
			RPOrigins:     cfg.WebAuthn.RPOrigins,
		})
		if err != nil {
			return fmt.Errorf("webauthn: %w", err)
		}
		authService.EnablePasskeys(wa)
	}

	jobs := manutencao.NewService(repository, notificacao.NewRepository(pool), redisClient, cfg.Manutencao, log.Logger)
	if cfg.Manutencao.AlertWebhookURL != "" {
		jobs.WithNotifier(manutencao.NewWebhookNotifier(cfg.Manutencao.AlertWebhookURL))
	}
	jobs.Start(ctx)
	defer jobs.Stop()

	handler, err := internalhttp.NewRouter(cfg, pool, redisClient, authService, internalhttp.Realtime{
		Hub:       hub,
		Counter:   counter,
		Publisher: publisher,
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
