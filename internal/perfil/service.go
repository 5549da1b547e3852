package perfil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/storage"
	"github.com/novaplataforma/nova/internal/util"
)

const buscaLimit = 20

var (
	// ErrOnboardingConcluido indica que o onboarding já foi feito.
	ErrOnboardingConcluido = errors.New("onboarding já concluído")
	// ErrUsernameEmUso indica username de outro usuário.
	ErrUsernameEmUso = errors.New("username já está em uso")
	// ErrAvatarInvalido rejeita arquivos que não são imagem.
	ErrAvatarInvalido = errors.New("avatar deve ser uma imagem")
)

type Store interface {
	Get(ctx context.Context, id uuid.UUID) (Perfil, error)
	Buscar(ctx context.Context, termo string, limit int) ([]Resumo, error)
	Atualizar(ctx context.Context, id uuid.UUID, in Atualizacao) (Perfil, error)
	ConcluirOnboarding(ctx context.Context, id uuid.UUID, in Onboarding) (Perfil, error)
	AtualizarAvatar(ctx context.Context, id uuid.UUID, url string) error
}

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

// Me devolve o perfil completo do dono da sessão.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (Perfil, error) {
	return s.repo.Get(ctx, id)
}

// Get devolve o perfil de outro usuário sem o email.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Perfil, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Perfil{}, err
	}
	p.Email = ""
	return p, nil
}

func (s *Service) Buscar(ctx context.Context, termo string) ([]Resumo, error) {
	termo = strings.TrimSpace(termo)
	if termo == "" {
		return []Resumo{}, nil
	}
	return s.repo.Buscar(ctx, termo, buscaLimit)
}

func (s *Service) Atualizar(ctx context.Context, id uuid.UUID, in Atualizacao) (Perfil, error) {
	in.Nome = strings.TrimSpace(in.Nome)
	if in.Username != nil {
		u := strings.ToLower(strings.TrimSpace(*in.Username))
		in.Username = &u
		if u == "" {
			in.Username = nil
		}
	}
	if in.Bio != nil {
		b := strings.TrimSpace(*in.Bio)
		in.Bio = &b
		if b == "" {
			in.Bio = nil
		}
	}

	p, err := s.repo.Atualizar(ctx, id, in)
	if errors.Is(err, repo.ErrConflict) {
		return Perfil{}, ErrUsernameEmUso
	}
	return p, err
}

// Onboarding grava tipo de conta, objetivo e interesses uma única vez.
func (s *Service) Onboarding(ctx context.Context, id uuid.UUID, in Onboarding) (Perfil, error) {
	in.FuncoesInteresse = util.CleanTags(in.FuncoesInteresse)
	in.Objetivo = strings.TrimSpace(in.Objetivo)
	in.TipoConta = strings.ToLower(strings.TrimSpace(in.TipoConta))

	switch in.TipoConta {
	case ContaEstudante, ContaProfissional, ContaEmpresa:
	default:
		return Perfil{}, &util.ValidationError{Fields: map[string]string{
			"tipo_conta": "use estudante, profissional ou empresa",
		}}
	}

	if n := len(in.FuncoesInteresse); n < MinInteresses || n > MaxInteresses {
		return Perfil{}, &util.ValidationError{Fields: map[string]string{
			"funcoes_interesse": fmt.Sprintf("informe entre %d e %d interesses", MinInteresses, MaxInteresses),
		}}
	}
	if utf8.RuneCountInString(in.Objetivo) > 200 {
		return Perfil{}, &util.ValidationError{Fields: map[string]string{"objetivo": "objetivo muito longo"}}
	}

	p, err := s.repo.ConcluirOnboarding(ctx, id, in)
	if errors.Is(err, repo.ErrConflict) {
		return Perfil{}, ErrOnboardingConcluido
	}
	return p, err
}

// Avatar sobe a imagem e aponta avatar_url para ela.
func (s *Service) Avatar(ctx context.Context, id uuid.UUID, img Imagem) (Perfil, error) {
	if !strings.HasPrefix(img.ContentType, "image/") {
		return Perfil{}, ErrAvatarInvalido
	}

	up, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:          storage.Key("avatars", id.String(), uuid.NewString()+"-"+storage.SafeName(img.Nome)),
		Body:         img.Dados,
		ContentType:  img.ContentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return Perfil{}, fmt.Errorf("upload do avatar: %w", err)
	}
	if err := s.repo.AtualizarAvatar(ctx, id, up.URL); err != nil {
		return Perfil{}, err
	}
	return s.repo.Get(ctx, id)
}
