package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/academia"
	"github.com/novaplataforma/nova/internal/auth"
	"github.com/novaplataforma/nova/internal/comunidade"
	"github.com/novaplataforma/nova/internal/formulario"
	"github.com/novaplataforma/nova/internal/perfil"
	"github.com/novaplataforma/nova/internal/repo"
)

var funcoesSeed = []string{
	"backend", "frontend", "dados", "design", "produto", "devops", "mobile", "marketing", "ia", "seguranca",
}

var objetivosSeed = []string{
	"Conseguir meu primeiro emprego em tecnologia",
	"Migrar de carreira para ciência de dados",
	"Encontrar parceiros para um projeto",
	"Contratar freelancers",
}

var contasSeed = []string{perfil.ContaEstudante, perfil.ContaProfissional, perfil.ContaEmpresa}

var tiposPostSeed = []string{
	comunidade.TipoGeral, comunidade.TipoVaga, comunidade.TipoParceria, comunidade.TipoFreelance, comunidade.TipoAjuda,
}

type seedOpts struct {
	Usuarios int
	Senha    string
	Semente  int64
}

type usuarioSeed struct {
	Nome       string
	Email      string
	Onboarding perfil.Onboarding
	Post       comunidade.NovoPost
}

type cursoSeed struct {
	Curso academia.Curso
	Aulas []academia.Aula
}

func parseSeedFlags(args []string) (seedOpts, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts seedOpts
	fs.IntVar(&opts.Usuarios, "usuarios", 20, "quantidade de usuários fictícios")
	fs.StringVar(&opts.Senha, "senha", "nova12345", "senha comum dos usuários gerados")
	fs.Int64Var(&opts.Semente, "semente", 42, "semente do gerador")

	if err := fs.Parse(args); err != nil {
		return seedOpts{}, err
	}
	if opts.Usuarios < 0 || opts.Usuarios > 10000 {
		return seedOpts{}, errors.New("usuarios deve estar entre 0 e 10000")
	}
	if len(opts.Senha) < 8 {
		return seedOpts{}, errors.New("senha deve ter pelo menos 8 caracteres")
	}
	return opts, nil
}

// gerarUsuarios é determinístico para a mesma semente.
func gerarUsuarios(f *gofakeit.Faker, n int) []usuarioSeed {
	out := make([]usuarioSeed, 0, n)
	for i := 0; i < n; i++ {
		nome := f.Name()
		email := fmt.Sprintf("%s.%d@seed.nova.dev", strings.ToLower(f.Username()), i+1)

		funcoes := append([]string(nil), funcoesSeed...)
		f.ShuffleStrings(funcoes)
		funcoes = funcoes[:f.Number(perfil.MinInteresses, 4)]

		var titulo *string
		if f.Bool() {
			t := f.JobTitle()
			titulo = &t
		}

		out = append(out, usuarioSeed{
			Nome:  nome,
			Email: email,
			Onboarding: perfil.Onboarding{
				TipoConta:        f.RandomString(contasSeed),
				Objetivo:         f.RandomString(objetivosSeed),
				FuncoesInteresse: funcoes,
			},
			Post: comunidade.NovoPost{
				Tipo:     f.RandomString(tiposPostSeed),
				Titulo:   titulo,
				Conteudo: f.Paragraph(1, 3, 12, " "),
			},
		})
	}
	return out
}

func catalogoSeed() []cursoSeed {
	curso := func(slug, titulo, categoria, nivel string, destaque bool, tags []string, aulas ...string) cursoSeed {
		desc := "Curso introdutório de " + strings.ToLower(titulo) + "."
		c := cursoSeed{Curso: academia.Curso{
			Slug:      slug,
			Titulo:    titulo,
			Descricao: &desc,
			Categoria: categoria,
			Nivel:     &nivel,
			Tags:      tags,
			Destaque:  destaque,
		}}
		for i, a := range aulas {
			c.Aulas = append(c.Aulas, academia.Aula{Ordem: i + 1, Titulo: a, DuracaoMin: 10 + 5*i})
		}
		return c
	}

	return []cursoSeed{
		curso("python-para-dados", "Python para Dados", "Ciência de Dados", "iniciante", true,
			[]string{"dados", "python"}, "Ambiente", "Pandas", "Visualização"),
		curso("estatistica-aplicada", "Estatística Aplicada", "Ciência de Dados", "intermediario", false,
			[]string{"dados", "estatistica"}, "Amostragem", "Testes de hipótese"),
		curso("apis-com-go", "APIs com Go", "Backend", "intermediario", true,
			[]string{"backend", "go"}, "Roteamento", "Banco de dados", "Testes"),
		curso("react-essencial", "React Essencial", "Frontend", "iniciante", false,
			[]string{"frontend", "react"}, "Componentes", "Estado"),
		curso("figma-do-zero", "Figma do Zero", "Design", "iniciante", false,
			[]string{"design", "figma"}, "Frames", "Protótipos"),
		curso("soft-skills", "Comunicação no Trabalho", "", "iniciante", false,
			[]string{"carreira"}, "Feedback", "Apresentações"),
	}
}

func formularioSeed(agora time.Time) formulario.Formulario {
	desc := "Conte sua experiência e envie seu portfólio."
	prazo := agora.Add(30 * 24 * time.Hour)
	return formulario.Formulario{
		Titulo:    "Desafio de Portfólio",
		Descricao: &desc,
		Ativo:     true,
		Prazo:     &prazo,
		Perguntas: []formulario.Pergunta{
			{Enunciado: "Qual seu nível de experiência?", TipoSelecao: formulario.SelecaoRadio,
				Opcoes: []string{"iniciante", "intermediario", "avancado"}, Obrigatoria: true},
			{Enunciado: "Área principal", TipoSelecao: formulario.SelecaoCombobox, Opcoes: funcoesSeed},
			{Enunciado: "Descreva um projeto recente", TipoSelecao: formulario.SelecaoTexto, Obrigatoria: true},
			{Enunciado: "Portfólio (PDF ou imagem)", TipoSelecao: formulario.SelecaoArquivo},
		},
	}
}

func runSeed(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	opts, err := parseSeedFlags(args)
	if err != nil {
		return err
	}

	academiaRepo := academia.NewRepository(pool)
	for _, c := range catalogoSeed() {
		if _, err := academiaRepo.SalvarCurso(ctx, c.Curso, c.Aulas); err != nil {
			return fmt.Errorf("curso %s: %w", c.Curso.Slug, err)
		}
	}
	if cache := cacheOpcional(); cache != nil {
		defer cache.Close()
		if err := academia.NewService(academiaRepo, cache, 0).InvalidarCatalogo(ctx); err != nil {
			log.Warn().Err(err).Msg("não foi possível invalidar o catálogo em cache")
		}
	}

	formID, err := formulario.NewRepository(pool).Criar(ctx, formularioSeed(time.Now()))
	if err != nil {
		return fmt.Errorf("formulário: %w", err)
	}
	log.Info().Str("formulario_id", formID.String()).Msg("formulário criado")

	hash, err := auth.Hash(opts.Senha)
	if err != nil {
		return err
	}

	queries := repo.New(pool)
	perfis := perfil.NewRepository(pool)
	posts := comunidade.NewRepository(pool)

	criados := 0
	for _, u := range gerarUsuarios(gofakeit.New(opts.Semente), opts.Usuarios) {
		usuario, err := queries.CreateUsuario(ctx, repo.CreateUsuarioParams{Nome: u.Nome, Email: u.Email, SenhaHash: hash})
		if errors.Is(err, repo.ErrConflict) {
			log.Debug().Str("email", u.Email).Msg("usuário já existe")
			continue
		}
		if err != nil {
			return fmt.Errorf("usuário %s: %w", u.Email, err)
		}
		if _, err := perfis.ConcluirOnboarding(ctx, usuario.ID, u.Onboarding); err != nil {
			return fmt.Errorf("onboarding %s: %w", u.Email, err)
		}
		u.Post.AutorID = usuario.ID
		if _, err := posts.InsertPost(ctx, u.Post); err != nil {
			return fmt.Errorf("post de %s: %w", u.Email, err)
		}
		criados++
	}

	log.Info().Int("usuarios", criados).Int("cursos", len(catalogoSeed())).Msg("seed concluído")
	return nil
}
