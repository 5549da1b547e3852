package main

import (
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/go-cmp/cmp"

	"github.com/novaplataforma/nova/internal/academia"
	"github.com/novaplataforma/nova/internal/formulario"
	"github.com/novaplataforma/nova/internal/perfil"
)

func TestParseSeedFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    seedOpts
		wantErr bool
	}{
		{name: "padrao", args: nil, want: seedOpts{Usuarios: 20, Senha: "nova12345", Semente: 42}},
		{name: "customizado", args: []string{"--usuarios", "5", "--semente", "7"}, want: seedOpts{Usuarios: 5, Senha: "nova12345", Semente: 7}},
		{name: "negativo", args: []string{"--usuarios", "-1"}, wantErr: true},
		{name: "senha curta", args: []string{"--senha", "abc"}, wantErr: true},
		{name: "flag desconhecida", args: []string{"--cidade", "x"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseSeedFlags(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("esperava erro, veio %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("opções divergentes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGerarUsuariosDeterministico(t *testing.T) {
	a := gerarUsuarios(gofakeit.New(1), 15)
	b := gerarUsuarios(gofakeit.New(1), 15)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("mesma semente deveria gerar os mesmos dados:\n%s", diff)
	}

	emails := map[string]bool{}
	for _, u := range a {
		if emails[u.Email] {
			t.Fatalf("email repetido: %s", u.Email)
		}
		emails[u.Email] = true
		if u.Email != strings.ToLower(u.Email) {
			t.Fatalf("email deveria estar em minúsculas: %s", u.Email)
		}
		n := len(u.Onboarding.FuncoesInteresse)
		if n < perfil.MinInteresses || n > perfil.MaxInteresses {
			t.Fatalf("quantidade de interesses fora do limite: %d", n)
		}
		if strings.TrimSpace(u.Post.Conteudo) == "" {
			t.Fatalf("post sem conteúdo para %s", u.Nome)
		}
	}
}

func TestCatalogoSeedAgrupa(t *testing.T) {
	var cursos []academia.Curso
	for _, c := range catalogoSeed() {
		if len(c.Aulas) == 0 {
			t.Fatalf("curso %s sem aulas", c.Curso.Slug)
		}
		cursos = append(cursos, c.Curso)
	}

	grupos := academia.Agrupar(cursos, []string{"dados"}, "", false)
	var nomes []string
	for _, g := range grupos {
		nomes = append(nomes, g.Categoria)
	}
	want := []string{"Backend", "Ciência de Dados", "Design", "Frontend", academia.CategoriaPadrao}
	if diff := cmp.Diff(want, nomes); diff != "" {
		t.Fatalf("categorias divergentes (-want +got):\n%s", diff)
	}
	if !grupos[1].Cursos[0].Recomendado {
		t.Fatalf("curso de dados deveria ser recomendado primeiro")
	}
}

func TestFormularioSeedAberto(t *testing.T) {
	agora := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := formularioSeed(agora)
	if !f.Aberto(agora) {
		t.Fatalf("formulário de seed deveria estar aberto")
	}
	if f.Perguntas[0].TipoSelecao != formulario.SelecaoRadio || !f.Perguntas[0].Aceita("iniciante") {
		t.Fatalf("primeira pergunta deveria aceitar a opção iniciante")
	}
}
