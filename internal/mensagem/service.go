package mensagem

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/realtime"
	"github.com/novaplataforma/nova/internal/util"
)

var (
	ErrConteudoInvalido = errors.New("mensagem deve ter entre 1 e 4000 caracteres")
	ErrProprioUsuario   = errors.New("não é possível enviar mensagem para si mesmo")
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Store interface {
	UsuarioAtivo(ctx context.Context, id uuid.UUID) error
	Insert(ctx context.Context, remetente, destinatario uuid.UUID, conteudo string) (Mensagem, error)
	Conversa(ctx context.Context, usuario, outro uuid.UUID, limit int, antes time.Time) ([]Mensagem, error)
	MarcarVisualizadas(ctx context.Context, destinatario, remetente uuid.UUID) (int64, error)
	Conversas(ctx context.Context, usuario uuid.UUID) ([]Conversa, error)
	CountUnread(ctx context.Context, usuario uuid.UUID) (int, error)
}

// Service trata o chat privado entre dois usuários.
type Service struct {
	repo      Store
	publisher realtime.Publisher
	loc       *time.Location
}

func NewService(repo Store, publisher realtime.Publisher, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, publisher: publisher, loc: loc}
}

func (s *Service) Enviar(ctx context.Context, remetente, destinatario uuid.UUID, conteudo string) (Mensagem, error) {
	conteudo = strings.TrimSpace(conteudo)
	if n := utf8.RuneCountInString(conteudo); n == 0 || n > MaxConteudo {
		return Mensagem{}, ErrConteudoInvalido
	}
	if remetente == destinatario {
		return Mensagem{}, ErrProprioUsuario
	}
	if err := s.repo.UsuarioAtivo(ctx, destinatario); err != nil {
		return Mensagem{}, err
	}

	m, err := s.repo.Insert(ctx, remetente, destinatario, conteudo)
	if err != nil {
		return Mensagem{}, err
	}
	realtime.Emit(ctx, s.publisher, realtime.NewEvent(realtime.TabelaMensagens, realtime.AcaoInsert, m.ID, remetente, destinatario))
	return m, nil
}

// Conversa devolve a página em ordem cronológica e já agrupada por dia.
func (s *Service) Conversa(ctx context.Context, usuario, outro uuid.UUID, limit int, antes *time.Time) ([]Mensagem, []Grupo, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	corte := util.Now().Add(time.Second)
	if antes != nil {
		corte = *antes
	}

	msgs, err := s.repo.Conversa(ctx, usuario, outro, limit, corte)
	if err != nil {
		return nil, nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, AgruparPorData(msgs, s.loc), nil
}

func (s *Service) MarcarVisualizadas(ctx context.Context, usuario, outro uuid.UUID) (int64, error) {
	n, err := s.repo.MarcarVisualizadas(ctx, usuario, outro)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		realtime.Emit(ctx, s.publisher, realtime.NewEvent(realtime.TabelaMensagens, realtime.AcaoUpdate, uuid.Nil, usuario, outro))
	}
	return n, nil
}

func (s *Service) Conversas(ctx context.Context, usuario uuid.UUID) ([]Conversa, error) {
	return s.repo.Conversas(ctx, usuario)
}

func (s *Service) Unread(ctx context.Context, usuario uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, usuario)
}
