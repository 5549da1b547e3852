package migrations

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"testing"
)

var nomeMigracao = regexp.MustCompile(`^(\d{5})_[a-z_]+\.sql$`)

func TestScriptsNoFormatoGoose(t *testing.T) {
	entries, err := fs.ReadDir(Source(), ".")
	if err != nil {
		t.Fatalf("ler embed: %v", err)
	}
	if len(entries) < 6 {
		t.Fatalf("esperava ao menos 6 migrações embutidas, veio %d", len(entries))
	}

	for i, entry := range entries {
		m := nomeMigracao.FindStringSubmatch(entry.Name())
		if m == nil {
			t.Fatalf("nome fora do padrão: %s", entry.Name())
		}
		if want := fmt.Sprintf("%05d", i+1); m[1] != want {
			t.Fatalf("versões devem ser contínuas: esperado %s em %s", want, entry.Name())
		}

		raw, err := fs.ReadFile(Source(), entry.Name())
		if err != nil {
			t.Fatalf("ler %s: %v", entry.Name(), err)
		}
		content := string(raw)
		if !strings.HasPrefix(content, "-- +goose Up\n") {
			t.Fatalf("%s deve começar com a anotação Up", entry.Name())
		}
		if !strings.Contains(content, "\n-- +goose Down\n") {
			t.Fatalf("%s sem seção Down", entry.Name())
		}
		if strings.Contains(content, "$$") && !strings.Contains(content, "-- +goose StatementBegin") {
			t.Fatalf("%s tem bloco $$ sem StatementBegin", entry.Name())
		}
	}
}
