package manutencao

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/novaplataforma/nova/internal/config"
	"github.com/novaplataforma/nova/internal/util"
)

const lockKey = "nova:manutencao:lock"

type TokenPurger interface {
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type NotificacaoPurger interface {
	PurgeLidas(ctx context.Context, limite time.Time) (int64, error)
}

// Locker garante uma execução por vez entre réplicas.
type Locker interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// Execucao resume o que uma rodada removeu.
type Execucao struct {
	Tokens       int64
	Notificacoes int64
	Ignorada     bool
}

// Service executa a limpeza periódica de sessões e notificações lidas.
type Service struct {
	tokens       TokenPurger
	notificacoes NotificacaoPurger
	lock         Locker
	cfg          config.ManutencaoConfig
	logger       zerolog.Logger
	notifier     Notifier

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(tokens TokenPurger, notificacoes NotificacaoPurger, lock Locker, cfg config.ManutencaoConfig, logger zerolog.Logger) *Service {
	return &Service{
		tokens:       tokens,
		notificacoes: notificacoes,
		lock:         lock,
		cfg:          cfg,
		logger:       logger.With().Str("component", "manutencao").Logger(),
		done:         make(chan struct{}),
	}
}

// WithNotifier liga o alerta de falhas; nil mantém só o log.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Start inicia loop periódico. Safe para chamar múltiplas vezes.
func (s *Service) Start(parent context.Context) {
	s.once.Do(func() {
		if !s.cfg.Enabled {
			close(s.done)
			return
		}
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		go s.runLoop(ctx)
	})
}

// Stop encerra o loop e espera a rodada corrente terminar.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Service) runLoop(ctx context.Context) {
	defer close(s.done)

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("loop iniciado")
	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("loop encerrado")
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Service) run(ctx context.Context) {
	exec, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("execução falhou")
		s.alertar(ctx, err)
		return
	}
	if exec.Ignorada {
		s.logger.Debug().Msg("outra réplica está executando")
		return
	}
	s.logger.Info().
		Int64("tokens", exec.Tokens).
		Int64("notificacoes", exec.Notificacoes).
		Msg("limpeza concluída")
}

func (s *Service) alertar(ctx context.Context, falha error) {
	if s.notifier == nil {
		return
	}
	alerta := Alerta{Titulo: "Limpeza periódica falhou", Texto: falha.Error(), Severidade: "warning"}
	if err := s.notifier.Notify(ctx, alerta); err != nil {
		s.logger.Warn().Err(err).Msg("falha ao enviar alerta")
	}
}

// RunOnce remove refresh tokens vencidos e notificações lidas além da retenção.
// As duas etapas rodam mesmo se uma falhar; os erros voltam juntos.
func (s *Service) RunOnce(ctx context.Context) (Execucao, error) {
	if s.lock != nil {
		ttl := s.cfg.Interval / 2
		if ttl <= 0 {
			ttl = time.Minute
		}
		ok, err := s.lock.SetNX(ctx, lockKey, "1", ttl).Result()
		if err != nil {
			return Execucao{}, fmt.Errorf("lock: %w", err)
		}
		if !ok {
			return Execucao{Ignorada: true}, nil
		}
	}

	now := util.Now()
	var exec Execucao
	var errs []error

	if n, err := s.tokens.DeleteExpiredRefreshTokens(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("refresh tokens: %w", err))
	} else {
		exec.Tokens = n
	}

	if s.cfg.NotificacoesRetencao > 0 {
		if n, err := s.notificacoes.PurgeLidas(ctx, now.Add(-s.cfg.NotificacoesRetencao)); err != nil {
			errs = append(errs, fmt.Errorf("notificações: %w", err))
		} else {
			exec.Notificacoes = n
		}
	}

	return exec, errors.Join(errs...)
}
