package perfil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/storage"
	"github.com/novaplataforma/nova/internal/util"
)

type stubRepo struct {
	perfis    map[uuid.UUID]*Perfil
	usernames map[string]uuid.UUID
}

func newStubRepo(ids ...uuid.UUID) *stubRepo {
	s := &stubRepo{perfis: map[uuid.UUID]*Perfil{}, usernames: map[string]uuid.UUID{}}
	for _, id := range ids {
		s.perfis[id] = &Perfil{ID: id, Nome: "Ana", Email: "ana@nova.dev", FuncoesInteresse: []string{}}
	}
	return s
}

func (s *stubRepo) Get(ctx context.Context, id uuid.UUID) (Perfil, error) {
	p, ok := s.perfis[id]
	if !ok {
		return Perfil{}, repo.ErrNotFound
	}
	return *p, nil
}
func (s *stubRepo) Buscar(ctx context.Context, termo string, limit int) ([]Resumo, error) {
	out := []Resumo{}
	for _, p := range s.perfis {
		out = append(out, Resumo{ID: p.ID, Nome: p.Nome})
	}
	return out, nil
}
func (s *stubRepo) Atualizar(ctx context.Context, id uuid.UUID, in Atualizacao) (Perfil, error) {
	p, ok := s.perfis[id]
	if !ok {
		return Perfil{}, repo.ErrNotFound
	}
	if in.Username != nil {
		if dono, ok := s.usernames[*in.Username]; ok && dono != id {
			return Perfil{}, repo.ErrConflict
		}
		s.usernames[*in.Username] = id
	}
	p.Nome, p.Username, p.Bio = in.Nome, in.Username, in.Bio
	return *p, nil
}
func (s *stubRepo) ConcluirOnboarding(ctx context.Context, id uuid.UUID, in Onboarding) (Perfil, error) {
	p, ok := s.perfis[id]
	if !ok {
		return Perfil{}, repo.ErrNotFound
	}
	if p.OnboardingConcluido {
		return Perfil{}, repo.ErrConflict
	}
	p.TipoConta, p.Objetivo = &in.TipoConta, &in.Objetivo
	p.FuncoesInteresse = in.FuncoesInteresse
	p.OnboardingConcluido = true
	return *p, nil
}
func (s *stubRepo) AtualizarAvatar(ctx context.Context, id uuid.UUID, url string) error {
	p, ok := s.perfis[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.AvatarURL = &url
	return nil
}

type memUploader struct {
	keys []string
}

func (m *memUploader) Upload(ctx context.Context, in storage.UploadInput) (*storage.UploadResult, error) {
	m.keys = append(m.keys, in.Key)
	return &storage.UploadResult{URL: "/arquivos/" + in.Key}, nil
}

func TestOnboardingUmaVez(t *testing.T) {
	id := uuid.New()
	svc := NewService(newStubRepo(id), nil)

	p, err := svc.Onboarding(context.Background(), id, Onboarding{
		TipoConta:        ContaEstudante,
		Objetivo:         "  Carreira em dados ",
		FuncoesInteresse: []string{" Ciência de Dados", "python", "ciência de dados ", ""},
	})
	if err != nil {
		t.Fatalf("onboarding: %v", err)
	}
	if diff := cmp.Diff([]string{"Ciência de Dados", "python"}, p.FuncoesInteresse); diff != "" {
		t.Fatalf("interesses (-want +got):\n%s", diff)
	}
	if p.Objetivo == nil || *p.Objetivo != "Carreira em dados" {
		t.Fatalf("objetivo deveria ser aparado: %v", p.Objetivo)
	}

	_, err = svc.Onboarding(context.Background(), id, Onboarding{TipoConta: ContaEmpresa, FuncoesInteresse: []string{"vendas"}})
	if !errors.Is(err, ErrOnboardingConcluido) {
		t.Fatalf("segunda chamada deveria falhar com conflito, veio %v", err)
	}
}

func TestOnboardingLimiteInteresses(t *testing.T) {
	id := uuid.New()
	svc := NewService(newStubRepo(id), nil)

	muitos := make([]string, MaxInteresses+1)
	for i := range muitos {
		muitos[i] = uuid.NewString()
	}
	for _, interesses := range [][]string{{" ", ""}, muitos} {
		_, err := svc.Onboarding(context.Background(), id, Onboarding{TipoConta: ContaEstudante, FuncoesInteresse: interesses})
		var verr *util.ValidationError
		if !errors.As(err, &verr) || verr.Fields["funcoes_interesse"] == "" {
			t.Fatalf("esperava erro em funcoes_interesse, veio %v", err)
		}
	}
}

func TestOnboardingTipoConta(t *testing.T) {
	tests := []struct {
		name    string
		tipo    string
		wantErr bool
	}{
		{"vazio", "", true},
		{"desconhecido", "admin", true},
		{"normalizado", " Empresa ", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := uuid.New()
			svc := NewService(newStubRepo(id), nil)

			p, err := svc.Onboarding(context.Background(), id, Onboarding{TipoConta: tc.tipo, FuncoesInteresse: []string{"dados"}})
			if tc.wantErr {
				var verr *util.ValidationError
				if !errors.As(err, &verr) || verr.Fields["tipo_conta"] == "" {
					t.Fatalf("esperava erro em tipo_conta, veio %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("onboarding: %v", err)
			}
			if p.TipoConta == nil || *p.TipoConta != ContaEmpresa {
				t.Fatalf("tipo deveria ser normalizado: %v", p.TipoConta)
			}
		})
	}
}

func TestAtualizarUsernameEmUso(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	svc := NewService(newStubRepo(a, b), nil)
	nick := " Ana.Dev "

	p, err := svc.Atualizar(context.Background(), a, Atualizacao{Nome: "Ana", Username: &nick})
	if err != nil {
		t.Fatalf("atualizar: %v", err)
	}
	if *p.Username != "ana.dev" {
		t.Fatalf("username deveria ser normalizado, veio %q", *p.Username)
	}

	_, err = svc.Atualizar(context.Background(), b, Atualizacao{Nome: "Bia", Username: &nick})
	if !errors.Is(err, ErrUsernameEmUso) {
		t.Fatalf("esperava ErrUsernameEmUso, veio %v", err)
	}
}

func TestGetOcultaEmail(t *testing.T) {
	id := uuid.New()
	svc := NewService(newStubRepo(id), nil)

	p, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Email != "" {
		t.Fatalf("perfil de terceiros não expõe email")
	}
	me, _ := svc.Me(context.Background(), id)
	if me.Email == "" {
		t.Fatalf("o próprio perfil inclui email")
	}
}

func TestPerfilHandlers(t *testing.T) {
	id := uuid.New()
	store := newStubRepo(id)
	handler := NewHandler(NewService(store, &memUploader{}), 1<<20)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"me", http.MethodGet, "/me", nil, http.StatusOK},
		{"atualizar", http.MethodPut, "/me", map[string]any{"nome": "Ana Lima", "username": "ana_lima"}, http.StatusOK},
		{"atualizar-username-invalido", http.MethodPut, "/me", map[string]any{"nome": "Ana", "username": "Ana Lima!"}, http.StatusBadRequest},
		{"onboarding-tipo-invalido", http.MethodPost, "/me/onboarding", map[string]any{"tipo_conta": "gamer", "funcoes_interesse": []string{"go"}}, http.StatusBadRequest},
		{"onboarding", http.MethodPost, "/me/onboarding", map[string]any{"tipo_conta": "profissional", "funcoes_interesse": []string{"go"}}, http.StatusOK},
		{"onboarding-repetido", http.MethodPost, "/me/onboarding", map[string]any{"tipo_conta": "profissional", "funcoes_interesse": []string{"go"}}, http.StatusConflict},
		{"buscar", http.MethodGet, "/usuarios?q=an", nil, http.StatusOK},
		{"get", http.MethodGet, "/usuarios/" + id.String(), nil, http.StatusOK},
		{"get-inexistente", http.MethodGet, "/usuarios/" + uuid.NewString(), nil, http.StatusNotFound},
	}

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, requestBody(tc.body))
			req = req.WithContext(httpmiddleware.WithClaims(req.Context(), id.String(), nil))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAvatarUpload(t *testing.T) {
	id := uuid.New()
	up := &memUploader{}
	handler := NewHandler(NewService(newStubRepo(id), up), 1<<20)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	send := func(nome, contentType string, dados []byte) *httptest.ResponseRecorder {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="avatar"; filename="`+nome+`"`)
		h.Set("Content-Type", contentType)
		part, _ := mw.CreatePart(h)
		_, _ = part.Write(dados)
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/me/avatar", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req = req.WithContext(httpmiddleware.WithClaims(req.Context(), id.String(), nil))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("notas.txt", "text/plain", []byte("olá")); rec.Code != http.StatusBadRequest {
		t.Fatalf("texto não é avatar: %d %s", rec.Code, rec.Body.String())
	}

	rec := send("foto.png", "image/png", []byte("\x89PNG\r\n\x1a\n"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Data Perfil `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(up.keys) != 1 || out.Data.AvatarURL == nil || *out.Data.AvatarURL != "/arquivos/"+up.keys[0] {
		t.Fatalf("avatar não gravado: keys=%v perfil=%+v", up.keys, out.Data)
	}
}

func requestBody(body any) *bytes.Buffer {
	if body == nil {
		return bytes.NewBuffer(nil)
	}
	b, _ := json.Marshal(body)
	return bytes.NewBuffer(b)
}
