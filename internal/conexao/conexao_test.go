package conexao

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/notificacao"
	"github.com/novaplataforma/nova/internal/realtime"
	"github.com/novaplataforma/nova/internal/repo"
)

// stubRepo guarda conexões e notificações em memória.
type stubRepo struct {
	usuarios map[uuid.UUID]string
	conexoes map[uuid.UUID]Conexao
	avisos   []notificacao.Nova
	lidas    []uuid.UUID
}

func newStubRepo(nomes ...string) (*stubRepo, []uuid.UUID) {
	s := &stubRepo{usuarios: map[uuid.UUID]string{}, conexoes: map[uuid.UUID]Conexao{}}
	ids := make([]uuid.UUID, len(nomes))
	for i, n := range nomes {
		ids[i] = uuid.New()
		s.usuarios[ids[i]] = n
	}
	return s, ids
}

func (s *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (Conexao, error) {
	c, ok := s.conexoes[id]
	if !ok {
		return Conexao{}, repo.ErrNotFound
	}
	return c, nil
}
func (s *stubRepo) BuscarPar(ctx context.Context, a, b uuid.UUID) (*Conexao, error) {
	for _, c := range s.conexoes {
		if c.Participa(a) && c.Participa(b) {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}
func (s *stubRepo) NomeUsuario(ctx context.Context, id uuid.UUID) (string, error) {
	n, ok := s.usuarios[id]
	if !ok {
		return "", repo.ErrNotFound
	}
	return n, nil
}
func (s *stubRepo) Criar(ctx context.Context, solicitante, receptor uuid.UUID, aviso notificacao.Nova) (Conexao, uuid.UUID, error) {
	c := Conexao{ID: uuid.New(), SolicitanteID: solicitante, ReceptorID: receptor, Status: StatusPendente, CriadoEm: time.Now()}
	s.conexoes[c.ID] = c
	aviso.ReferenciaID = &c.ID
	s.avisos = append(s.avisos, aviso)
	return c, uuid.New(), nil
}
func (s *stubRepo) Aprovar(ctx context.Context, id uuid.UUID, aviso notificacao.Nova) (Conexao, uuid.UUID, error) {
	c, ok := s.conexoes[id]
	if !ok || c.Status != StatusPendente {
		return Conexao{}, uuid.Nil, ErrNaoPendente
	}
	c.Status = StatusAprovado
	s.conexoes[id] = c
	s.lidas = append(s.lidas, id)
	aviso.ReferenciaID = &c.ID
	s.avisos = append(s.avisos, aviso)
	return c, uuid.New(), nil
}
func (s *stubRepo) DescartarPendente(ctx context.Context, c Conexao) error {
	delete(s.conexoes, c.ID)
	s.lidas = append(s.lidas, c.ID)
	return nil
}
func (s *stubRepo) Remover(ctx context.Context, id uuid.UUID, status string) error {
	if c, ok := s.conexoes[id]; !ok || c.Status != status {
		return repo.ErrNotFound
	}
	delete(s.conexoes, id)
	return nil
}
func (s *stubRepo) ListPendentes(ctx context.Context, receptor uuid.UUID) ([]Pedido, error) {
	return []Pedido{}, nil
}
func (s *stubRepo) ListConexoes(ctx context.Context, usuario uuid.UUID) ([]Contato, error) {
	return []Contato{}, nil
}
func (s *stubRepo) Sugestoes(ctx context.Context, usuario uuid.UUID, limit int) ([]Contato, error) {
	return []Contato{}, nil
}

type recorder struct{ events []realtime.Event }

func (r *recorder) Publish(ctx context.Context, ev realtime.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestFluxoSolicitarAceitar(t *testing.T) {
	ctx := context.Background()
	store, ids := newStubRepo("Ana", "Bruno")
	a, b := ids[0], ids[1]
	pub := &recorder{}
	svc := NewService(store, pub)

	c, err := svc.Solicitar(ctx, a, b)
	if err != nil {
		t.Fatalf("solicitar: %v", err)
	}
	if c.Status != StatusPendente || c.SolicitanteID != a || c.ReceptorID != b {
		t.Fatalf("conexão inesperada: %+v", c)
	}
	if len(store.avisos) != 1 || store.avisos[0].RecebidoPor != b || store.avisos[0].Tipo != notificacao.TipoConexaoSolicitada {
		t.Fatalf("esperava uma notificação para B: %+v", store.avisos)
	}

	if _, err := svc.Aceitar(ctx, a, c.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("solicitante não pode aceitar, veio %v", err)
	}

	aceita, err := svc.Aceitar(ctx, b, c.ID)
	if err != nil {
		t.Fatalf("aceitar: %v", err)
	}
	if aceita.Status != StatusAprovado {
		t.Fatalf("status esperado aprovado, veio %s", aceita.Status)
	}
	if len(store.avisos) != 2 || store.avisos[1].RecebidoPor != a || store.avisos[1].Tipo != notificacao.TipoConexaoAceita {
		t.Fatalf("esperava segunda notificação para A: %+v", store.avisos)
	}

	if _, err := svc.Aceitar(ctx, b, c.ID); !errors.Is(err, ErrNaoPendente) {
		t.Fatalf("aceitar duas vezes deveria falhar, veio %v", err)
	}

	tabelas := []string{}
	for _, ev := range pub.events {
		tabelas = append(tabelas, ev.Tabela+":"+ev.Acao)
	}
	want := []string{
		"conexoes:INSERT", "notificacoes:INSERT",
		"conexoes:UPDATE", "notificacoes:INSERT", "notificacoes:UPDATE",
	}
	if diff := cmp.Diff(want, tabelas); diff != "" {
		t.Fatalf("eventos (-want +got):\n%s", diff)
	}
	if ultimo := pub.events[len(pub.events)-1]; ultimo.RegistroID != uuid.Nil {
		t.Fatalf("update de notificações não aponta para uma notificação, veio %s", ultimo.RegistroID)
	}
}

func TestSolicitarRegras(t *testing.T) {
	ctx := context.Background()
	store, ids := newStubRepo("Ana", "Bruno")
	a, b := ids[0], ids[1]
	svc := NewService(store, nil)

	if _, err := svc.Solicitar(ctx, a, a); !errors.Is(err, ErrProprioUsuario) {
		t.Fatalf("esperava ErrProprioUsuario, veio %v", err)
	}
	if _, err := svc.Solicitar(ctx, a, uuid.New()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("receptor inexistente deveria ser NOT_FOUND, veio %v", err)
	}
	if _, err := svc.Solicitar(ctx, a, b); err != nil {
		t.Fatal(err)
	}
	// o par é não ordenado: B -> A também conflita
	if _, err := svc.Solicitar(ctx, b, a); !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("esperava conflito, veio %v", err)
	}
}

func TestRecusarECancelar(t *testing.T) {
	ctx := context.Background()
	store, ids := newStubRepo("Ana", "Bruno")
	a, b := ids[0], ids[1]
	pub := &recorder{}
	svc := NewService(store, pub)

	c, _ := svc.Solicitar(ctx, a, b)
	if err := svc.Cancelar(ctx, b, c.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("receptor não cancela, veio %v", err)
	}
	if err := svc.Recusar(ctx, b, c.ID); err != nil {
		t.Fatalf("recusar: %v", err)
	}
	if len(store.conexoes) != 0 || len(store.lidas) != 1 {
		t.Fatalf("recusa deveria remover o pedido e fechar a notificação")
	}
	if ultimo := pub.events[len(pub.events)-1]; ultimo.Tabela != realtime.TabelaNotificacoes || ultimo.RegistroID != uuid.Nil {
		t.Fatalf("recusa deveria avisar notificações sem id, veio %+v", ultimo)
	}

	c, _ = svc.Solicitar(ctx, a, b)
	if err := svc.Cancelar(ctx, a, c.ID); err != nil {
		t.Fatalf("cancelar: %v", err)
	}
	if status, _, _ := svc.Status(ctx, a, b); status != SituacaoNenhuma {
		t.Fatalf("após cancelar o status deveria ser nenhuma, veio %s", status)
	}
}

// removidoAntes simula outro pedido desfazendo o vínculo entre a busca e o delete.
type removidoAntes struct{ *stubRepo }

func (r removidoAntes) Remover(ctx context.Context, id uuid.UUID, status string) error {
	delete(r.conexoes, id)
	return r.stubRepo.Remover(ctx, id, status)
}

func TestDesfazerConcorrenteNotFound(t *testing.T) {
	ctx := context.Background()
	store, ids := newStubRepo("Ana", "Bruno")
	a, b := ids[0], ids[1]
	c, _ := NewService(store, nil).Solicitar(ctx, a, b)
	if _, err := NewService(store, nil).Aceitar(ctx, b, c.ID); err != nil {
		t.Fatal(err)
	}

	pub := &recorder{}
	svc := NewService(removidoAntes{store}, pub)
	err := svc.Desfazer(ctx, a, b)
	if !errors.Is(err, repo.ErrNotFound) || errors.Is(err, ErrNaoPendente) {
		t.Fatalf("vínculo já removido deveria ser NOT_FOUND, veio %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("nada removido, nada publicado: %+v", pub.events)
	}
}

func TestStatusIdempotente(t *testing.T) {
	ctx := context.Background()
	store, ids := newStubRepo("Ana", "Bruno")
	a, b := ids[0], ids[1]
	svc := NewService(store, nil)

	c, _ := svc.Solicitar(ctx, a, b)

	primeiro, _, err := svc.Status(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	segundo, _, _ := svc.Status(ctx, a, b)
	if primeiro != segundo || primeiro != SituacaoPendenteEnviada {
		t.Fatalf("status divergente: %s / %s", primeiro, segundo)
	}
	if visto, _, _ := svc.Status(ctx, b, a); visto != SituacaoPendenteRecebida {
		t.Fatalf("receptor deveria ver pendente_recebida, veio %s", visto)
	}

	_, _ = svc.Aceitar(ctx, b, c.ID)
	if status, _, _ := svc.Status(ctx, a, b); status != SituacaoAprovado {
		t.Fatalf("esperava aprovado, veio %s", status)
	}
	if err := svc.Desfazer(ctx, b, a); err != nil {
		t.Fatalf("desfazer: %v", err)
	}
	if err := svc.Desfazer(ctx, b, a); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("desfazer sem vínculo deveria ser NOT_FOUND, veio %v", err)
	}
}

func TestConexaoHandlers(t *testing.T) {
	store, ids := newStubRepo("Ana", "Bruno", "Carla")
	a, b, c := ids[0], ids[1], ids[2]
	pendente := Conexao{ID: uuid.New(), SolicitanteID: c, ReceptorID: a, Status: StatusPendente}
	store.conexoes[pendente.ID] = pendente
	handler := NewHandler(NewService(store, nil))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"listar", http.MethodGet, "/conexoes", nil, http.StatusOK},
		{"pendentes", http.MethodGet, "/conexoes/pendentes", nil, http.StatusOK},
		{"sugestoes", http.MethodGet, "/conexoes/sugestoes", nil, http.StatusOK},
		{"solicitar", http.MethodPost, "/conexoes", map[string]any{"receptor_id": b}, http.StatusCreated},
		{"solicitar-repetido", http.MethodPost, "/conexoes", map[string]any{"receptor_id": b}, http.StatusConflict},
		{"solicitar-si-mesmo", http.MethodPost, "/conexoes", map[string]any{"receptor_id": a}, http.StatusBadRequest},
		{"solicitar-sem-receptor", http.MethodPost, "/conexoes", map[string]any{}, http.StatusBadRequest},
		{"status", http.MethodGet, "/conexoes/status/" + b.String(), nil, http.StatusOK},
		{"aceitar", http.MethodPost, "/conexoes/" + pendente.ID.String() + "/aceitar", nil, http.StatusOK},
		{"aceitar-inexistente", http.MethodPost, "/conexoes/" + uuid.NewString() + "/aceitar", nil, http.StatusNotFound},
		{"desfazer", http.MethodDelete, "/conexoes/usuario/" + c.String(), nil, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, requestBody(tc.body))
			req = withAuth(req, a)
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

func withAuth(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(httpmiddleware.WithClaims(req.Context(), userID.String(), nil))
}
