package mensagem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/realtime"
	"github.com/novaplataforma/nova/internal/repo"
)

type stubRepo struct {
	ativos  map[uuid.UUID]bool
	msgs    []Mensagem
	unread  int
	lastCut time.Time
}

func (s *stubRepo) UsuarioAtivo(ctx context.Context, id uuid.UUID) error {
	if !s.ativos[id] {
		return repo.ErrNotFound
	}
	return nil
}
func (s *stubRepo) Insert(ctx context.Context, remetente, destinatario uuid.UUID, conteudo string) (Mensagem, error) {
	m := Mensagem{ID: uuid.New(), RemetenteID: remetente, DestinatarioID: destinatario, Conteudo: conteudo, CriadoEm: time.Now()}
	s.msgs = append(s.msgs, m)
	return m, nil
}
func (s *stubRepo) Conversa(ctx context.Context, usuario, outro uuid.UUID, limit int, antes time.Time) ([]Mensagem, error) {
	s.lastCut = antes
	out := []Mensagem{}
	for i := len(s.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.msgs[i])
	}
	return out, nil
}
func (s *stubRepo) MarcarVisualizadas(ctx context.Context, destinatario, remetente uuid.UUID) (int64, error) {
	return int64(s.unread), nil
}
func (s *stubRepo) Conversas(ctx context.Context, usuario uuid.UUID) ([]Conversa, error) {
	return []Conversa{}, nil
}
func (s *stubRepo) CountUnread(ctx context.Context, usuario uuid.UUID) (int, error) {
	return s.unread, nil
}

type recorder struct{ events []realtime.Event }

func (r *recorder) Publish(ctx context.Context, ev realtime.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestAgruparPorData(t *testing.T) {
	sp, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skip("tzdata indisponível")
	}
	// 02:30 UTC ainda é o dia anterior em São Paulo
	msgs := []Mensagem{
		{Conteudo: "a", CriadoEm: time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC)},
		{Conteudo: "b", CriadoEm: time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)},
		{Conteudo: "c", CriadoEm: time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)},
	}

	got := AgruparPorData(msgs, sp)
	resumo := map[string][]string{}
	ordem := []string{}
	for _, g := range got {
		ordem = append(ordem, g.Data)
		for _, m := range g.Mensagens {
			resumo[g.Data] = append(resumo[g.Data], m.Conteudo)
		}
	}
	if diff := cmp.Diff([]string{"2024-03-09", "2024-03-10"}, ordem); diff != "" {
		t.Fatalf("dias (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string][]string{"2024-03-09": {"a", "b"}, "2024-03-10": {"c"}}, resumo); diff != "" {
		t.Fatalf("grupos (-want +got):\n%s", diff)
	}

	if len(AgruparPorData(nil, sp)) != 0 {
		t.Fatalf("sem mensagens não há grupos")
	}
}

func TestEnviarValida(t *testing.T) {
	ctx := context.Background()
	eu, outro := uuid.New(), uuid.New()
	pub := &recorder{}
	svc := NewService(&stubRepo{ativos: map[uuid.UUID]bool{outro: true}}, pub, time.UTC)

	cases := []struct {
		name     string
		dest     uuid.UUID
		conteudo string
		err      error
	}{
		{"vazio", outro, "   ", ErrConteudoInvalido},
		{"longo", outro, strings.Repeat("á", MaxConteudo+1), ErrConteudoInvalido},
		{"si-mesmo", eu, "oi", ErrProprioUsuario},
		{"inexistente", uuid.New(), "oi", repo.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Enviar(ctx, eu, tc.dest, tc.conteudo); !errors.Is(err, tc.err) {
				t.Fatalf("esperava %v, veio %v", tc.err, err)
			}
		})
	}

	m, err := svc.Enviar(ctx, eu, outro, "  olá  ")
	if err != nil {
		t.Fatal(err)
	}
	if m.Conteudo != "olá" {
		t.Fatalf("conteúdo deveria ser aparado, veio %q", m.Conteudo)
	}
	if len(pub.events) != 1 || pub.events[0].Tabela != realtime.TabelaMensagens {
		t.Fatalf("evento inesperado: %+v", pub.events)
	}
	if diff := cmp.Diff([]uuid.UUID{eu, outro}, pub.events[0].Usuarios); diff != "" {
		t.Fatalf("destinos (-want +got):\n%s", diff)
	}
}

func TestConversaCronologica(t *testing.T) {
	ctx := context.Background()
	eu, outro := uuid.New(), uuid.New()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &stubRepo{msgs: []Mensagem{
		{Conteudo: "1", CriadoEm: base},
		{Conteudo: "2", CriadoEm: base.Add(time.Minute)},
		{Conteudo: "3", CriadoEm: base.Add(24 * time.Hour)},
	}}
	svc := NewService(store, nil, time.UTC)

	msgs, grupos, err := svc.Conversa(ctx, eu, outro, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{}
	for _, m := range msgs {
		got = append(got, m.Conteudo)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, got); diff != "" {
		t.Fatalf("ordem (-want +got):\n%s", diff)
	}
	if len(grupos) != 2 {
		t.Fatalf("esperava 2 dias, veio %d", len(grupos))
	}

	antes := base.Add(time.Hour)
	if _, _, err := svc.Conversa(ctx, eu, outro, 10, &antes); err != nil {
		t.Fatal(err)
	}
	if !store.lastCut.Equal(antes) {
		t.Fatalf("corte não repassado: %s", store.lastCut)
	}
}

func TestMensagemHandlers(t *testing.T) {
	eu, outro := uuid.New(), uuid.New()
	store := &stubRepo{ativos: map[uuid.UUID]bool{outro: true}, unread: 2}
	handler := NewHandler(NewService(store, nil, time.UTC))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"inbox", http.MethodGet, "/mensagens", nil, http.StatusOK},
		{"nao-lidas", http.MethodGet, "/mensagens/nao-lidas", nil, http.StatusOK},
		{"enviar", http.MethodPost, "/mensagens/" + outro.String(), map[string]string{"conteudo": "oi"}, http.StatusCreated},
		{"enviar-vazio", http.MethodPost, "/mensagens/" + outro.String(), map[string]string{"conteudo": ""}, http.StatusBadRequest},
		{"enviar-inexistente", http.MethodPost, "/mensagens/" + uuid.NewString(), map[string]string{"conteudo": "oi"}, http.StatusNotFound},
		{"conversa", http.MethodGet, "/mensagens/" + outro.String() + "?limit=10", nil, http.StatusOK},
		{"conversa-antes-invalido", http.MethodGet, "/mensagens/" + outro.String() + "?antes=ontem", nil, http.StatusBadRequest},
		{"visualizadas", http.MethodPost, "/mensagens/" + outro.String() + "/visualizadas", nil, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, requestBody(tc.body))
			req = req.WithContext(httpmiddleware.WithClaims(req.Context(), eu.String(), nil))
			rec := httptest.NewRecorder()

			r := chi.NewRouter()
			handler.RegisterRoutes(r)
			r.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func requestBody(body any) *bytes.Buffer {
	if body == nil {
		return bytes.NewBuffer(nil)
	}
	b, _ := json.Marshal(body)
	return bytes.NewBuffer(b)
}
