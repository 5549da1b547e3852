package formulario

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/storage"
	"github.com/novaplataforma/nova/internal/util"
)

// ErrEncerrado indica formulário inativo ou com prazo vencido.
var ErrEncerrado = errors.New("formulário encerrado")

type Store interface {
	List(ctx context.Context) ([]Formulario, error)
	Get(ctx context.Context, id uuid.UUID) (Formulario, error)
	SalvarRespostas(ctx context.Context, respostas []Resposta) (int, error)
	MinhasRespostas(ctx context.Context, formularioID, usuarioID uuid.UUID) ([]Resposta, error)
}

// Service trata os desafios em formato de formulário.
type Service struct {
	repo     Store
	uploader storage.Uploader
}

func NewService(repo Store, uploader storage.Uploader) *Service {
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}
	return &Service{repo: repo, uploader: uploader}
}

func (s *Service) List(ctx context.Context) ([]Formulario, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Formulario, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) MinhasRespostas(ctx context.Context, usuarioID, formularioID uuid.UUID) ([]Resposta, error) {
	return s.repo.MinhasRespostas(ctx, formularioID, usuarioID)
}

// validar confere opções e obrigatórias; erros vêm por id de pergunta.
func validar(f Formulario, envio Envio) error {
	campos := map[string]string{}
	conhecidas := make(map[uuid.UUID]bool, len(f.Perguntas))

	for _, p := range f.Perguntas {
		conhecidas[p.ID] = true
		valor := strings.TrimSpace(envio.Valores[p.ID])
		_, temArquivo := envio.Arquivos[p.ID]

		switch p.TipoSelecao {
		case SelecaoArquivo:
			if p.Obrigatoria && !temArquivo {
				campos[p.ID.String()] = "arquivo obrigatório"
			}
		default:
			if valor == "" {
				if p.Obrigatoria {
					campos[p.ID.String()] = "resposta obrigatória"
				}
				continue
			}
			if !p.Aceita(valor) {
				campos[p.ID.String()] = "opção inválida"
			}
		}
	}

	for id := range envio.Valores {
		if !conhecidas[id] {
			campos[id.String()] = "pergunta não pertence ao formulário"
		}
	}
	for id := range envio.Arquivos {
		if !conhecidas[id] {
			campos[id.String()] = "pergunta não pertence ao formulário"
		}
	}

	if len(campos) > 0 {
		return &util.ValidationError{Fields: campos}
	}
	return nil
}

// Responder valida o envio, sobe os anexos e grava as respostas numa única
// transação. Um upload que falha é registrado em log e a pergunta fica de
// fora; o id dela volta em Resultado.Ignoradas.
func (s *Service) Responder(ctx context.Context, usuarioID, formularioID uuid.UUID, envio Envio) (Resultado, error) {
	f, err := s.repo.Get(ctx, formularioID)
	if err != nil {
		return Resultado{}, err
	}
	if !f.Aberto(util.Now()) {
		return Resultado{}, ErrEncerrado
	}
	if err := validar(f, envio); err != nil {
		return Resultado{}, err
	}

	res := Resultado{Ignoradas: []uuid.UUID{}}
	respostas := make([]Resposta, 0, len(f.Perguntas))
	for _, p := range f.Perguntas {
		rs := Resposta{FormularioID: f.ID, PerguntaID: p.ID, UsuarioID: usuarioID}

		if arq, ok := envio.Arquivos[p.ID]; ok {
			up, err := s.uploader.Upload(ctx, storage.UploadInput{
				Key:         storage.Key("formularios", f.ID.String(), usuarioID.String(), p.ID.String()+"-"+storage.SafeName(arq.Nome)),
				Body:        arq.Dados,
				ContentType: arq.ContentType,
			})
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).
					Str("formulario_id", f.ID.String()).
					Str("pergunta_id", p.ID.String()).
					Msg("upload de resposta falhou; pergunta ignorada")
				res.Ignoradas = append(res.Ignoradas, p.ID)
				continue
			}
			rs.ArquivoURL = &up.URL
		}

		if v := strings.TrimSpace(envio.Valores[p.ID]); v != "" && p.TipoSelecao != SelecaoArquivo {
			rs.Valor = &v
		}
		if rs.Valor == nil && rs.ArquivoURL == nil {
			continue
		}
		respostas = append(respostas, rs)
	}

	if len(respostas) == 0 {
		return res, nil
	}
	n, err := s.repo.SalvarRespostas(ctx, respostas)
	if err != nil {
		return Resultado{}, err
	}
	res.Inseridas = n
	return res, nil
}
