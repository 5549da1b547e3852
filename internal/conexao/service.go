package conexao

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/notificacao"
	"github.com/novaplataforma/nova/internal/realtime"
	"github.com/novaplataforma/nova/internal/repo"
)

var (
	ErrForbidden      = errors.New("sem acesso")
	ErrProprioUsuario = errors.New("não é possível conectar-se a si mesmo")
	ErrNaoPendente    = errors.New("pedido não está pendente")
)

const sugestoesLimit = 20

type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (Conexao, error)
	BuscarPar(ctx context.Context, a, b uuid.UUID) (*Conexao, error)
	NomeUsuario(ctx context.Context, id uuid.UUID) (string, error)
	Criar(ctx context.Context, solicitante, receptor uuid.UUID, aviso notificacao.Nova) (Conexao, uuid.UUID, error)
	Aprovar(ctx context.Context, id uuid.UUID, aviso notificacao.Nova) (Conexao, uuid.UUID, error)
	DescartarPendente(ctx context.Context, c Conexao) error
	Remover(ctx context.Context, id uuid.UUID, status string) error
	ListPendentes(ctx context.Context, receptor uuid.UUID) ([]Pedido, error)
	ListConexoes(ctx context.Context, usuario uuid.UUID) ([]Contato, error)
	Sugestoes(ctx context.Context, usuario uuid.UUID, limit int) ([]Contato, error)
}

// Service aplica as regras do ciclo pendente -> aprovado.
type Service struct {
	repo      Store
	publisher realtime.Publisher
}

func NewService(repo Store, publisher realtime.Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

func (s *Service) Solicitar(ctx context.Context, solicitante, receptor uuid.UUID) (Conexao, error) {
	if solicitante == receptor {
		return Conexao{}, ErrProprioUsuario
	}
	if _, err := s.repo.NomeUsuario(ctx, receptor); err != nil {
		return Conexao{}, err
	}
	existente, err := s.repo.BuscarPar(ctx, solicitante, receptor)
	if err != nil {
		return Conexao{}, err
	}
	if existente != nil {
		return Conexao{}, repo.ErrConflict
	}

	nome, err := s.repo.NomeUsuario(ctx, solicitante)
	if err != nil {
		return Conexao{}, err
	}
	c, notifID, err := s.repo.Criar(ctx, solicitante, receptor, notificacao.Nova{
		RecebidoPor: receptor,
		EnviadoPor:  &solicitante,
		Tipo:        notificacao.TipoConexaoSolicitada,
		Mensagem:    nome + " quer se conectar com você",
	})
	if err != nil {
		return Conexao{}, err
	}

	realtime.Emit(ctx, s.publisher,
		realtime.NewEvent(realtime.TabelaConexoes, realtime.AcaoInsert, c.ID, solicitante, receptor),
		realtime.NewEvent(realtime.TabelaNotificacoes, realtime.AcaoInsert, notifID, receptor),
	)
	return c, nil
}

func (s *Service) pendenteDe(ctx context.Context, conexaoID uuid.UUID, dono func(Conexao) uuid.UUID, usuario uuid.UUID) (Conexao, error) {
	c, err := s.repo.GetByID(ctx, conexaoID)
	if err != nil {
		return Conexao{}, err
	}
	if dono(c) != usuario {
		return Conexao{}, ErrForbidden
	}
	if c.Status != StatusPendente {
		return Conexao{}, ErrNaoPendente
	}
	return c, nil
}

func receptorDe(c Conexao) uuid.UUID    { return c.ReceptorID }
func solicitanteDe(c Conexao) uuid.UUID { return c.SolicitanteID }

// Aceitar só pode ser chamado pelo receptor de um pedido pendente.
func (s *Service) Aceitar(ctx context.Context, receptor, conexaoID uuid.UUID) (Conexao, error) {
	pedido, err := s.pendenteDe(ctx, conexaoID, receptorDe, receptor)
	if err != nil {
		return Conexao{}, err
	}
	nome, err := s.repo.NomeUsuario(ctx, receptor)
	if err != nil {
		return Conexao{}, err
	}

	c, notifID, err := s.repo.Aprovar(ctx, pedido.ID, notificacao.Nova{
		RecebidoPor: pedido.SolicitanteID,
		EnviadoPor:  &receptor,
		Tipo:        notificacao.TipoConexaoAceita,
		Mensagem:    nome + " aceitou seu pedido de conexão",
	})
	if err != nil {
		return Conexao{}, err
	}

	realtime.Emit(ctx, s.publisher,
		realtime.NewEvent(realtime.TabelaConexoes, realtime.AcaoUpdate, c.ID, c.SolicitanteID, c.ReceptorID),
		realtime.NewEvent(realtime.TabelaNotificacoes, realtime.AcaoInsert, notifID, c.SolicitanteID),
		// convite marcado como lido: aviso genérico, como no marcar todas
		realtime.NewEvent(realtime.TabelaNotificacoes, realtime.AcaoUpdate, uuid.Nil, c.ReceptorID),
	)
	return c, nil
}

func (s *Service) Recusar(ctx context.Context, receptor, conexaoID uuid.UUID) error {
	c, err := s.pendenteDe(ctx, conexaoID, receptorDe, receptor)
	if err != nil {
		return err
	}
	return s.descartar(ctx, c)
}

// Cancelar retira um pedido enviado que ainda não foi respondido.
func (s *Service) Cancelar(ctx context.Context, solicitante, conexaoID uuid.UUID) error {
	c, err := s.pendenteDe(ctx, conexaoID, solicitanteDe, solicitante)
	if err != nil {
		return err
	}
	return s.descartar(ctx, c)
}

func (s *Service) descartar(ctx context.Context, c Conexao) error {
	if err := s.repo.DescartarPendente(ctx, c); err != nil {
		return err
	}
	realtime.Emit(ctx, s.publisher,
		realtime.NewEvent(realtime.TabelaConexoes, realtime.AcaoDelete, c.ID, c.SolicitanteID, c.ReceptorID),
		realtime.NewEvent(realtime.TabelaNotificacoes, realtime.AcaoUpdate, uuid.Nil, c.ReceptorID),
	)
	return nil
}

// Desfazer remove uma conexão aprovada entre usuario e outro.
func (s *Service) Desfazer(ctx context.Context, usuario, outro uuid.UUID) error {
	c, err := s.repo.BuscarPar(ctx, usuario, outro)
	if err != nil {
		return err
	}
	if c == nil || c.Status != StatusAprovado {
		return repo.ErrNotFound
	}
	if err := s.repo.Remover(ctx, c.ID, StatusAprovado); err != nil {
		return err
	}
	realtime.Emit(ctx, s.publisher, realtime.NewEvent(realtime.TabelaConexoes, realtime.AcaoDelete, c.ID, usuario, outro))
	return nil
}

// Status é somente leitura: repetir a consulta sem escritas devolve o mesmo valor.
func (s *Service) Status(ctx context.Context, usuario, outro uuid.UUID) (string, *Conexao, error) {
	if usuario == outro {
		return SituacaoNenhuma, nil, nil
	}
	c, err := s.repo.BuscarPar(ctx, usuario, outro)
	if err != nil {
		return "", nil, err
	}
	return Situacao(c, usuario), c, nil
}

func (s *Service) ListPendentes(ctx context.Context, receptor uuid.UUID) ([]Pedido, error) {
	return s.repo.ListPendentes(ctx, receptor)
}

func (s *Service) ListConexoes(ctx context.Context, usuario uuid.UUID) ([]Contato, error) {
	return s.repo.ListConexoes(ctx, usuario)
}

func (s *Service) Sugestoes(ctx context.Context, usuario uuid.UUID) ([]Contato, error) {
	return s.repo.Sugestoes(ctx, usuario, sugestoesLimit)
}
