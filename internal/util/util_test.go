package util

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type cadastro struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"omitempty,username"`
}

func TestValidateStructTraduzCampos(t *testing.T) {
	err := ValidateStruct(cadastro{Email: "nao-e-email", Username: "Com Espaço"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("esperava ValidationError, veio %v", err)
	}
	if _, ok := verr.Fields["email"]; !ok {
		t.Fatalf("campo email ausente: %#v", verr.Fields)
	}
	if msg := verr.Fields["username"]; !strings.Contains(msg, "username") {
		t.Fatalf("mensagem de username inesperada: %q", msg)
	}
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.com","username":"ana.silva"}`))
	var dst cadastro
	if err := DecodeJSON(req, &dst); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{`))
	if err := DecodeJSON(req, &dst); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("esperava ErrInvalidJSON, veio %v", err)
	}
}

func TestCleanTags(t *testing.T) {
	got := CleanTags([]string{" Ciência de Dados ", "python", "ciência de dados", "", "  "})
	want := []string{"Ciência de Dados", "python"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ciência de dados", "python"}, NormalizeTags(got)); diff != "" {
		t.Fatalf("normalizadas (-want +got):\n%s", diff)
	}
}
