package comunidade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/notificacao"
	"github.com/novaplataforma/nova/internal/realtime"
	"github.com/novaplataforma/nova/internal/storage"
)

var (
	ErrForbidden        = errors.New("sem acesso")
	ErrTipoInvalido     = errors.New("tipo inválido")
	ErrConteudoInvalido = errors.New("conteúdo deve ter entre 1 e 5000 caracteres")
	ErrSemInteracao     = errors.New("este post não aceita candidaturas")
	ErrProprioPost      = errors.New("não é possível se candidatar ao próprio post")
	ErrNaoPendente      = errors.New("candidatura já decidida")
)

const (
	maxConteudo     = 5000
	defaultPageSize = 20
	maxPageSize     = 50
	// páginas além deste deslocamento respondem vazio sem ir ao banco
	maxFeedOffset   = 100_000
)

type Store interface {
	InsertPost(ctx context.Context, in NovoPost) (uuid.UUID, error)
	GetPost(ctx context.Context, viewer, id uuid.UUID) (Post, error)
	Feed(ctx context.Context, viewer uuid.UUID, offset, limit int) ([]Post, error)
	DeletePost(ctx context.Context, id, autor uuid.UUID) error
	NomeUsuario(ctx context.Context, id uuid.UUID) (string, error)
	InsertComentario(ctx context.Context, postID, autor uuid.UUID, conteudo string, aviso *notificacao.Nova) (Comentario, *uuid.UUID, error)
	ListComentarios(ctx context.Context, postID uuid.UUID) ([]Comentario, error)
	DeleteComentario(ctx context.Context, id, autor uuid.UUID) (uuid.UUID, error)
	Reagir(ctx context.Context, postID, usuario uuid.UUID, tipo string, aviso *notificacao.Nova) (*string, *uuid.UUID, error)
	InsertInteracao(ctx context.Context, postID, usuario uuid.UUID, mensagem string, aviso *notificacao.Nova) (Interacao, *uuid.UUID, error)
	ListInteracoes(ctx context.Context, postID uuid.UUID) ([]Interacao, error)
	GetInteracao(ctx context.Context, id uuid.UUID) (Interacao, uuid.UUID, error)
	DecidirInteracao(ctx context.Context, id uuid.UUID, status string, aviso *notificacao.Nova) (Interacao, *uuid.UUID, error)
}

// Service concentra as regras do feed da comunidade.
type Service struct {
	repo      Store
	uploader  storage.Uploader
	publisher realtime.Publisher
}

func NewService(repo Store, uploader storage.Uploader, publisher realtime.Publisher) *Service {
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}
	return &Service{repo: repo, uploader: uploader, publisher: publisher}
}

// Imagem é o anexo opcional de um post.
type Imagem struct {
	Nome        string
	ContentType string
	Dados       []byte
}

type CriarPostInput struct {
	Tipo      string
	Titulo    string
	Conteudo  string
	ImagemURL string
	Imagem    *Imagem
}

func validarConteudo(s string) (string, error) {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n == 0 || n > maxConteudo {
		return "", ErrConteudoInvalido
	}
	return s, nil
}

func (s *Service) CriarPost(ctx context.Context, autor uuid.UUID, in CriarPostInput) (Post, error) {
	tipo := strings.ToLower(strings.TrimSpace(in.Tipo))
	if tipo == "" {
		tipo = TipoGeral
	}
	if !tiposPost[tipo] {
		return Post{}, ErrTipoInvalido
	}
	conteudo, err := validarConteudo(in.Conteudo)
	if err != nil {
		return Post{}, err
	}

	novo := NovoPost{AutorID: autor, Tipo: tipo, Conteudo: conteudo}
	if t := strings.TrimSpace(in.Titulo); t != "" {
		novo.Titulo = &t
	}
	if u := strings.TrimSpace(in.ImagemURL); u != "" {
		novo.ImagemURL = &u
	}
	if in.Imagem != nil {
		res, err := s.uploader.Upload(ctx, storage.UploadInput{
			Key:         storage.Key("posts", autor.String(), uuid.NewString()+"-"+storage.SafeName(in.Imagem.Nome)),
			Body:        in.Imagem.Dados,
			ContentType: in.Imagem.ContentType,
		})
		if err != nil {
			return Post{}, fmt.Errorf("upload da imagem: %w", err)
		}
		novo.ImagemURL = &res.URL
	}

	id, err := s.repo.InsertPost(ctx, novo)
	if err != nil {
		return Post{}, err
	}
	realtime.Emit(ctx, s.publisher, realtime.NewEvent(realtime.TabelaPosts, realtime.AcaoInsert, id, autor))
	return s.repo.GetPost(ctx, autor, id)
}

// Feed pagina por faixa: from = page*size, to = from+size-1.
func (s *Service) Feed(ctx context.Context, viewer uuid.UUID, page, size int) ([]Post, error) {
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if page < 0 {
		page = 0
	}
	if page > maxFeedOffset/size {
		return []Post{}, nil
	}
	return s.repo.Feed(ctx, viewer, page*size, size)
}

func (s *Service) GetPost(ctx context.Context, viewer, id uuid.UUID) (Post, error) {
	return s.repo.GetPost(ctx, viewer, id)
}

// RemoverPost só apaga posts do próprio autor.
func (s *Service) RemoverPost(ctx context.Context, autor, id uuid.UUID) error {
	p, err := s.repo.GetPost(ctx, autor, id)
	if err != nil {
		return err
	}
	if p.Autor.ID != autor {
		return ErrForbidden
	}
	if err := s.repo.DeletePost(ctx, id, autor); err != nil {
		return err
	}
	realtime.Emit(ctx, s.publisher, realtime.NewEvent(realtime.TabelaPosts, realtime.AcaoDelete, id, autor))
	return nil
}

func (s *Service) Comentar(ctx context.Context, autor, postID uuid.UUID, conteudo string) (Comentario, error) {
	conteudo, err := validarConteudo(conteudo)
	if err != nil {
		return Comentario{}, err
	}
	p, err := s.repo.GetPost(ctx, autor, postID)
	if err != nil {
		return Comentario{}, err
	}

	var aviso *notificacao.Nova
	if p.Autor.ID != autor {
		nome, err := s.repo.NomeUsuario(ctx, autor)
		if err != nil {
			return Comentario{}, err
		}
		aviso = &notificacao.Nova{
			RecebidoPor:  p.Autor.ID,
			EnviadoPor:   &autor,
			Tipo:         notificacao.TipoComentario,
			ReferenciaID: &p.ID,
			Mensagem:     nome + " comentou no seu post",
		}
	}

	c, notifID, err := s.repo.InsertComentario(ctx, postID, autor, conteudo, aviso)
	if err != nil {
		return Comentario{}, err
	}
	s.emitComAviso(ctx, realtime.NewEvent(realtime.TabelaComentarios, realtime.AcaoInsert, c.ID, autor, p.Autor.ID), notifID, p.Autor.ID)
	return c, nil
}

func (s *Service) ListComentarios(ctx context.Context, postID uuid.UUID) ([]Comentario, error) {
	return s.repo.ListComentarios(ctx, postID)
}

func (s *Service) RemoverComentario(ctx context.Context, autor, id uuid.UUID) error {
	postID, err := s.repo.DeleteComentario(ctx, id, autor)
	if err != nil {
		return err
	}
	realtime.Emit(ctx, s.publisher, realtime.NewEvent(realtime.TabelaComentarios, realtime.AcaoDelete, postID, autor))
	return nil
}

// Reagir devolve a reação ativa após o toggle (nil quando removida) e as
// contagens atualizadas do post.
func (s *Service) Reagir(ctx context.Context, usuario, postID uuid.UUID, tipo string) (*string, map[string]int, error) {
	tipo = strings.ToLower(strings.TrimSpace(tipo))
	if !tiposReacao[tipo] {
		return nil, nil, ErrTipoInvalido
	}
	p, err := s.repo.GetPost(ctx, usuario, postID)
	if err != nil {
		return nil, nil, err
	}

	var aviso *notificacao.Nova
	if p.Autor.ID != usuario {
		nome, err := s.repo.NomeUsuario(ctx, usuario)
		if err != nil {
			return nil, nil, err
		}
		aviso = &notificacao.Nova{
			RecebidoPor:  p.Autor.ID,
			EnviadoPor:   &usuario,
			Tipo:         notificacao.TipoReacao,
			ReferenciaID: &p.ID,
			Mensagem:     nome + " reagiu ao seu post",
		}
	}

	ativa, notifID, err := s.repo.Reagir(ctx, postID, usuario, tipo, aviso)
	if err != nil {
		return nil, nil, err
	}
	s.emitComAviso(ctx, realtime.NewEvent(realtime.TabelaReacoes, realtime.AcaoUpdate, postID, usuario, p.Autor.ID), notifID, p.Autor.ID)

	atualizado, err := s.repo.GetPost(ctx, usuario, postID)
	if err != nil {
		return nil, nil, err
	}
	return ativa, atualizado.Reacoes, nil
}

// Candidatar registra interesse em vaga, parceria, freelance ou pedido de ajuda.
func (s *Service) Candidatar(ctx context.Context, usuario, postID uuid.UUID, mensagem string) (Interacao, error) {
	mensagem, err := validarConteudo(mensagem)
	if err != nil {
		return Interacao{}, err
	}
	p, err := s.repo.GetPost(ctx, usuario, postID)
	if err != nil {
		return Interacao{}, err
	}
	if !p.AceitaInteracao() {
		return Interacao{}, ErrSemInteracao
	}
	if p.Autor.ID == usuario {
		return Interacao{}, ErrProprioPost
	}
	nome, err := s.repo.NomeUsuario(ctx, usuario)
	if err != nil {
		return Interacao{}, err
	}

	it, notifID, err := s.repo.InsertInteracao(ctx, postID, usuario, mensagem, &notificacao.Nova{
		RecebidoPor: p.Autor.ID,
		EnviadoPor:  &usuario,
		Tipo:        notificacao.TipoInteracaoRecebida,
		Mensagem:    nome + " se candidatou ao seu post",
	})
	if err != nil {
		return Interacao{}, err
	}
	s.emitComAviso(ctx, realtime.NewEvent(realtime.TabelaInteracoes, realtime.AcaoInsert, it.ID, usuario, p.Autor.ID), notifID, p.Autor.ID)
	return it, nil
}

// ListInteracoes é visível apenas para o autor do post.
func (s *Service) ListInteracoes(ctx context.Context, autor, postID uuid.UUID) ([]Interacao, error) {
	p, err := s.repo.GetPost(ctx, autor, postID)
	if err != nil {
		return nil, err
	}
	if p.Autor.ID != autor {
		return nil, ErrForbidden
	}
	return s.repo.ListInteracoes(ctx, postID)
}

func (s *Service) Decidir(ctx context.Context, autor, interacaoID uuid.UUID, status string) (Interacao, error) {
	var tipo, texto string
	switch status {
	case InteracaoAprovado:
		tipo, texto = notificacao.TipoInteracaoAprovada, "aprovou sua candidatura"
	case InteracaoRejeitado:
		tipo, texto = notificacao.TipoInteracaoRejeitada, "recusou sua candidatura"
	default:
		return Interacao{}, ErrTipoInvalido
	}

	it, dono, err := s.repo.GetInteracao(ctx, interacaoID)
	if err != nil {
		return Interacao{}, err
	}
	if dono != autor {
		return Interacao{}, ErrForbidden
	}
	if it.Status != InteracaoPendente {
		return Interacao{}, ErrNaoPendente
	}
	nome, err := s.repo.NomeUsuario(ctx, autor)
	if err != nil {
		return Interacao{}, err
	}

	candidato := it.Usuario.ID
	decidida, notifID, err := s.repo.DecidirInteracao(ctx, interacaoID, status, &notificacao.Nova{
		RecebidoPor:  candidato,
		EnviadoPor:   &autor,
		Tipo:         tipo,
		ReferenciaID: &it.PostID,
		Mensagem:     nome + " " + texto,
	})
	if err != nil {
		return Interacao{}, err
	}
	s.emitComAviso(ctx, realtime.NewEvent(realtime.TabelaInteracoes, realtime.AcaoUpdate, it.ID, autor, candidato), notifID, candidato)
	return decidida, nil
}

func (s *Service) emitComAviso(ctx context.Context, ev realtime.Event, notifID *uuid.UUID, destino uuid.UUID) {
	events := []realtime.Event{ev}
	if notifID != nil {
		events = append(events, realtime.NewEvent(realtime.TabelaNotificacoes, realtime.AcaoInsert, *notifID, destino))
	}
	realtime.Emit(ctx, s.publisher, events...)
}
