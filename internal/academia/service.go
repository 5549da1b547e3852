package academia

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const catalogoKey = "nova:academia:catalogo"

type Store interface {
	ListCursos(ctx context.Context) ([]Curso, error)
	GetCurso(ctx context.Context, slug string) (Curso, error)
	ListAulas(ctx context.Context, cursoID, usuarioID uuid.UUID) ([]Aula, error)
	ConcluirAula(ctx context.Context, usuarioID, aulaID uuid.UUID) error
	Perfil(ctx context.Context, usuarioID uuid.UUID) (Perfil, error)
}

// Service expõe o catálogo de cursos; o catálogo fica em cache no Redis.
type Service struct {
	repo  Store
	cache *redis.Client
	ttl   time.Duration
}

func NewService(repo Store, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

func (s *Service) Catalogo(ctx context.Context) ([]Curso, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, catalogoKey).Bytes(); err == nil {
			var cursos []Curso
			if json.Unmarshal(data, &cursos) == nil {
				return cursos, nil
			}
		}
	}

	cursos, err := s.repo.ListCursos(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(cursos); err == nil {
			if err := s.cache.Set(ctx, catalogoKey, payload, s.ttl).Err(); err != nil {
				log.Ctx(ctx).Debug().Err(err).Msg("cache do catálogo indisponível")
			}
		}
	}
	return cursos, nil
}

// InvalidarCatalogo descarta o cache, usado após carga de cursos.
func (s *Service) InvalidarCatalogo(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, catalogoKey).Err()
}

func (s *Service) Curso(ctx context.Context, slug string, usuarioID uuid.UUID) (CursoDetalhe, error) {
	c, err := s.repo.GetCurso(ctx, slug)
	if err != nil {
		return CursoDetalhe{}, err
	}
	aulas, err := s.repo.ListAulas(ctx, c.ID, usuarioID)
	if err != nil {
		return CursoDetalhe{}, err
	}
	return CursoDetalhe{Curso: c, Aulas: aulas, Progresso: Progresso(aulas)}, nil
}

func (s *Service) ConcluirAula(ctx context.Context, usuarioID, aulaID uuid.UUID) error {
	return s.repo.ConcluirAula(ctx, usuarioID, aulaID)
}

func (s *Service) Recomendados(ctx context.Context, usuarioID uuid.UUID, apenasRecomendados bool) ([]Grupo, error) {
	perfil, err := s.repo.Perfil(ctx, usuarioID)
	if err != nil {
		return nil, err
	}
	cursos, err := s.Catalogo(ctx)
	if err != nil {
		return nil, err
	}
	return Agrupar(cursos, perfil.Interesses, perfil.Objetivo, apenasRecomendados), nil
}
