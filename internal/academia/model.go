package academia

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/util"
)

// CategoriaPadrao agrupa cursos sem categoria.
const CategoriaPadrao = "Outros"

type Curso struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Titulo    string    `json:"titulo"`
	Descricao *string   `json:"descricao,omitempty"`
	Categoria string    `json:"categoria"`
	Nivel     *string   `json:"nivel,omitempty"`
	CapaURL   *string   `json:"capa_url,omitempty"`
	Tags      []string  `json:"tags"`
	Destaque  bool      `json:"destaque"`
	CriadoEm  time.Time `json:"criado_em"`
}

type Aula struct {
	ID         uuid.UUID `json:"id"`
	CursoID    uuid.UUID `json:"curso_id"`
	Ordem      int       `json:"ordem"`
	Titulo     string    `json:"titulo"`
	Conteudo   *string   `json:"conteudo,omitempty"`
	VideoURL   *string   `json:"video_url,omitempty"`
	DuracaoMin int       `json:"duracao_min"`
	Concluida  bool      `json:"concluida"`
}

// CursoDetalhe é o curso com as aulas e o progresso do usuário.
type CursoDetalhe struct {
	Curso
	Aulas     []Aula `json:"aulas"`
	Progresso int    `json:"progresso"`
}

// Perfil reúne o que a recomendação usa do usuário.
type Perfil struct {
	Interesses []string
	Objetivo   string
}

type CursoRecomendado struct {
	Curso       Curso `json:"curso"`
	Recomendado bool  `json:"recomendado"`
}

type Grupo struct {
	Categoria string             `json:"categoria"`
	Cursos    []CursoRecomendado `json:"cursos"`
}

// Recomendado compara tags, interesses e objetivo já normalizados.
func Recomendado(tags []string, interesses map[string]struct{}, objetivo string) bool {
	for _, t := range tags {
		n := util.NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, ok := interesses[n]; ok {
			return true
		}
		if objetivo != "" && n == objetivo {
			return true
		}
	}
	return false
}

// Agrupar marca os cursos recomendados para o perfil e agrupa por categoria.
// Grupos saem em ordem de nome; dentro do grupo, recomendados primeiro e
// depois por título.
func Agrupar(cursos []Curso, interesses []string, objetivo string, apenasRecomendados bool) []Grupo {
	set := make(map[string]struct{}, len(interesses))
	for _, i := range util.NormalizeTags(interesses) {
		set[i] = struct{}{}
	}
	obj := util.NormalizeTag(objetivo)

	porCategoria := map[string][]CursoRecomendado{}
	for _, c := range cursos {
		rec := Recomendado(c.Tags, set, obj)
		if apenasRecomendados && !rec {
			continue
		}
		cat := strings.TrimSpace(c.Categoria)
		if cat == "" {
			cat = CategoriaPadrao
		}
		porCategoria[cat] = append(porCategoria[cat], CursoRecomendado{Curso: c, Recomendado: rec})
	}

	grupos := make([]Grupo, 0, len(porCategoria))
	for cat, itens := range porCategoria {
		sort.SliceStable(itens, func(i, j int) bool {
			if itens[i].Recomendado != itens[j].Recomendado {
				return itens[i].Recomendado
			}
			return strings.ToLower(itens[i].Curso.Titulo) < strings.ToLower(itens[j].Curso.Titulo)
		})
		grupos = append(grupos, Grupo{Categoria: cat, Cursos: itens})
	}
	sort.Slice(grupos, func(i, j int) bool {
		return grupos[i].Categoria < grupos[j].Categoria
	})
	return grupos
}

// Progresso devolve o percentual inteiro de aulas concluídas.
func Progresso(aulas []Aula) int {
	if len(aulas) == 0 {
		return 0
	}
	feitas := 0
	for _, a := range aulas {
		if a.Concluida {
			feitas++
		}
	}
	return feitas * 100 / len(aulas)
}
