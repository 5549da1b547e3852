package notificacao

import (
	"context"

	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/realtime"
)

const (
	defaultLimit = 30
	maxLimit     = 100
)

type Store interface {
	List(ctx context.Context, usuarioID uuid.UUID, limit, offset int) ([]Notificacao, error)
	CountUnread(ctx context.Context, usuarioID uuid.UUID) (int, error)
	MarcarLida(ctx context.Context, usuarioID, id uuid.UUID) error
	MarcarTodasLidas(ctx context.Context, usuarioID uuid.UUID) (int64, error)
}

// Service expõe a caixa de notificações do usuário.
type Service struct {
	repo      Store
	publisher realtime.Publisher
}

func NewService(repo Store, publisher realtime.Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

func (s *Service) List(ctx context.Context, usuarioID uuid.UUID, limit, offset int) ([]Notificacao, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, usuarioID, limit, offset)
}

func (s *Service) Unread(ctx context.Context, usuarioID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, usuarioID)
}

func (s *Service) MarcarLida(ctx context.Context, usuarioID, id uuid.UUID) error {
	if err := s.repo.MarcarLida(ctx, usuarioID, id); err != nil {
		return err
	}
	realtime.Emit(ctx, s.publisher, realtime.NewEvent(realtime.TabelaNotificacoes, realtime.AcaoUpdate, id, usuarioID))
	return nil
}

func (s *Service) MarcarTodasLidas(ctx context.Context, usuarioID uuid.UUID) (int64, error) {
	n, err := s.repo.MarcarTodasLidas(ctx, usuarioID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		realtime.Emit(ctx, s.publisher, realtime.NewEvent(realtime.TabelaNotificacoes, realtime.AcaoUpdate, uuid.Nil, usuarioID))
	}
	return n, nil
}
