package notificacao

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/realtime"
	"github.com/novaplataforma/nova/internal/repo"
)

type stubRepo struct {
	itens     []Notificacao
	unread    int
	lastLimit int
	marcadas  int64
}

func (s *stubRepo) List(ctx context.Context, usuarioID uuid.UUID, limit, offset int) ([]Notificacao, error) {
	s.lastLimit = limit
	return s.itens, nil
}
func (s *stubRepo) CountUnread(ctx context.Context, usuarioID uuid.UUID) (int, error) {
	return s.unread, nil
}
func (s *stubRepo) MarcarLida(ctx context.Context, usuarioID, id uuid.UUID) error {
	for _, n := range s.itens {
		if n.ID == id {
			return nil
		}
	}
	return repo.ErrNotFound
}
func (s *stubRepo) MarcarTodasLidas(ctx context.Context, usuarioID uuid.UUID) (int64, error) {
	return s.marcadas, nil
}

type recorder struct{ events []realtime.Event }

func (r *recorder) Publish(ctx context.Context, ev realtime.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestNotificacaoHandlers(t *testing.T) {
	repoStub := &stubRepo{
		itens:    []Notificacao{{ID: uuid.New(), Tipo: TipoConexaoSolicitada, Mensagem: "Ana quer se conectar", CriadoEm: time.Now()}},
		unread:   1,
		marcadas: 1,
	}
	handler := NewHandler(NewService(repoStub, &recorder{}))

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"listar", http.MethodGet, "/notificacoes", http.StatusOK},
		{"nao-lidas", http.MethodGet, "/notificacoes/nao-lidas", http.StatusOK},
		{"marcar", http.MethodPost, "/notificacoes/" + repoStub.itens[0].ID.String() + "/lida", http.StatusOK},
		{"marcar-inexistente", http.MethodPost, "/notificacoes/" + uuid.NewString() + "/lida", http.StatusNotFound},
		{"marcar-id-invalido", http.MethodPost, "/notificacoes/abc/lida", http.StatusBadRequest},
		{"marcar-todas", http.MethodPost, "/notificacoes/lidas", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req = withAuth(req)
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

func TestNotificacaoSemAuth(t *testing.T) {
	handler := NewHandler(NewService(&stubRepo{}, nil))
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notificacoes", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestListLimita(t *testing.T) {
	repoStub := &stubRepo{}
	svc := NewService(repoStub, nil)

	if _, err := svc.List(context.Background(), uuid.New(), 0, 0); err != nil {
		t.Fatal(err)
	}
	if repoStub.lastLimit != defaultLimit {
		t.Fatalf("limite padrão esperado %d, veio %d", defaultLimit, repoStub.lastLimit)
	}
	if _, err := svc.List(context.Background(), uuid.New(), 5000, 0); err != nil {
		t.Fatal(err)
	}
	if repoStub.lastLimit != maxLimit {
		t.Fatalf("limite máximo esperado %d, veio %d", maxLimit, repoStub.lastLimit)
	}
}

func TestMarcarEmiteEvento(t *testing.T) {
	user := uuid.New()
	n := Notificacao{ID: uuid.New()}
	pub := &recorder{}
	svc := NewService(&stubRepo{itens: []Notificacao{n}}, pub)

	if err := svc.MarcarLida(context.Background(), user, n.ID); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 || pub.events[0].Tabela != realtime.TabelaNotificacoes || pub.events[0].Usuarios[0] != user {
		t.Fatalf("evento inesperado: %+v", pub.events)
	}

	// nada marcado, nada publicado
	if _, err := NewService(&stubRepo{}, pub).MarcarTodasLidas(context.Background(), user); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("não deveria publicar sem alterações")
	}
}

func withAuth(req *http.Request) *http.Request {
	return req.WithContext(httpmiddleware.WithClaims(req.Context(), uuid.NewString(), nil))
}
