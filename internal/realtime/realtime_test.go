package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/novaplataforma/nova/internal/auth"
	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubCounter struct {
	mu    sync.Mutex
	c     Contadores
	calls int
}

func (s *stubCounter) set(c Contadores) {
	s.mu.Lock()
	s.c = c
	s.mu.Unlock()
}

func (s *stubCounter) Contadores(ctx context.Context, usuarioID uuid.UUID) (Contadores, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.c, nil
}

func (s *stubCounter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// attach registra um cliente sem socket nem writePump para inspecionar a fila.
func attach(h *Hub, userID uuid.UUID) *Client {
	c := &Client{userID: userID, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()
	return c
}

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case payload := <-c.send:
			var msg Message
			if err := json.Unmarshal(payload, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Publish(ctx context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestFanoutAgregaErros(t *testing.T) {
	ok := &recorder{}
	falho := &recorder{err: errors.New("fora do ar")}
	ev := NewEvent(TabelaConexoes, AcaoInsert, uuid.New(), uuid.New())

	err := Fanout{ok, nil, falho}.Publish(context.Background(), ev)
	if err == nil || !strings.Contains(err.Error(), "fora do ar") {
		t.Fatalf("esperava erro agregado, veio %v", err)
	}
	if len(ok.events) != 1 || len(falho.events) != 1 {
		t.Fatalf("todos os destinos deveriam receber o evento")
	}
}

func TestAfetaContadores(t *testing.T) {
	cases := map[string]bool{
		TabelaNotificacoes: true,
		TabelaMensagens:    true,
		TabelaConexoes:     false,
		TabelaPosts:        false,
	}
	for tabela, want := range cases {
		if got := (Event{Tabela: tabela}).AfetaContadores(); got != want {
			t.Errorf("%s: esperado %v", tabela, want)
		}
	}
}

func TestHubPublishFilaCheia(t *testing.T) {
	hub := NewHub(&stubCounter{}, zerolog.Nop())
	hub.events = make(chan Event, 1)

	if err := hub.Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("primeiro evento deveria entrar: %v", err)
	}
	if err := hub.Publish(context.Background(), Event{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("esperava ErrQueueFull, veio %v", err)
	}
}

func TestHubIgnoraEventoDeOutroUsuario(t *testing.T) {
	for _, tabela := range []string{TabelaNotificacoes, TabelaMensagens} {
		t.Run(tabela, func(t *testing.T) {
			counter := &stubCounter{}
			hub := NewHub(counter, zerolog.Nop())
			conectado := attach(hub, uuid.New())

			hub.dispatch(context.Background(), NewEvent(tabela, AcaoInsert, uuid.New(), uuid.New(), uuid.New()))

			if msgs := drain(conectado); len(msgs) != 0 {
				t.Fatalf("nada deveria ser enviado, veio %+v", msgs)
			}
			if n := counter.callCount(); n != 0 {
				t.Fatalf("contadores não deveriam ser recalculados, chamadas=%d", n)
			}
		})
	}
}

func TestHubPostsNaoRecontam(t *testing.T) {
	counter := &stubCounter{c: Contadores{Notificacoes: 1}}
	hub := NewHub(counter, zerolog.Nop())
	userID := uuid.New()
	conectado := attach(hub, userID)

	hub.dispatch(context.Background(), NewEvent(TabelaPosts, AcaoInsert, uuid.New(), userID))

	msgs := drain(conectado)
	if len(msgs) != 1 || msgs[0].Tipo != "mudanca" || msgs[0].Mudanca == nil || msgs[0].Mudanca.Tabela != TabelaPosts {
		t.Fatalf("esperava só a mudança de posts, veio %+v", msgs)
	}
	if n := counter.callCount(); n != 0 {
		t.Fatalf("posts não afetam badges, chamadas=%d", n)
	}
}

func TestHubNotificacaoRecontaUmaVez(t *testing.T) {
	counter := &stubCounter{c: Contadores{Notificacoes: 5}}
	hub := NewHub(counter, zerolog.Nop())
	userID := uuid.New()
	conectado := attach(hub, userID)

	// usuário repetido no evento conta uma vez só
	hub.dispatch(context.Background(), NewEvent(TabelaNotificacoes, AcaoInsert, uuid.New(), userID, userID))

	msgs := drain(conectado)
	if len(msgs) != 2 || msgs[0].Tipo != "mudanca" || msgs[1].Tipo != "contadores" || msgs[1].Notificacoes != 5 {
		t.Fatalf("esperava mudança seguida de contadores, veio %+v", msgs)
	}
	if n := counter.callCount(); n != 1 {
		t.Fatalf("esperava uma recontagem, veio %d", n)
	}
}

func TestRedisBrokerForward(t *testing.T) {
	sink := &recorder{}
	b := NewRedisBroker(nil, "nova:mudancas", sink, zerolog.Nop())

	ev := NewEvent(TabelaMensagens, AcaoInsert, uuid.New(), uuid.New())
	payload, _ := json.Marshal(ev)
	b.forward(context.Background(), string(payload))
	b.forward(context.Background(), "{quebrado")

	if len(sink.events) != 1 {
		t.Fatalf("esperava um evento repassado, veio %d", len(sink.events))
	}
	if diff := cmp.Diff(ev.Usuarios, sink.events[0].Usuarios); diff != "" {
		t.Fatalf("usuarios divergentes (-want +got):\n%s", diff)
	}
}

func TestKafkaMirror(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "nova.mudancas" {
			return errors.New("tópico inesperado: " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != TabelaNotificacoes {
			return errors.New("chave inesperada: " + string(key))
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	mirror := NewKafkaMirrorWithProducer(producer, "nova.mudancas")
	ev := NewEvent(TabelaNotificacoes, AcaoInsert, uuid.New(), uuid.New())

	if err := mirror.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := mirror.Publish(context.Background(), ev); err == nil {
		t.Fatalf("esperava falha do broker")
	}
	if err := mirror.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("leitura websocket: %v", err)
	}
	return msg
}

func TestWebsocketContadores(t *testing.T) {
	counter := &stubCounter{c: Contadores{Notificacoes: 2, Mensagens: 1}}
	hub := NewHub(counter, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	jwtManager := auth.NewJWTManager(testSecret, time.Minute)
	handler := NewHandler(hub, counter, jwtManager, nil)

	router := chi.NewRouter()
	handler.RegisterPublic(router)
	srv := httptest.NewServer(router)
	defer srv.Close()

	userID := uuid.New()
	token, _, err := jwtManager.GenerateAccessToken(userID.String(), nil)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	inicial := readMessage(t, conn)
	if inicial.Tipo != "contadores" || inicial.Contadores == nil || inicial.Notificacoes != 2 || inicial.Mensagens != 1 {
		t.Fatalf("contadores iniciais inesperados: %+v", inicial)
	}

	counter.set(Contadores{Notificacoes: 3, Mensagens: 1})
	if err := hub.Publish(ctx, NewEvent(TabelaNotificacoes, AcaoInsert, uuid.New(), userID, uuid.New())); err != nil {
		t.Fatalf("publish: %v", err)
	}

	mudanca := readMessage(t, conn)
	if mudanca.Tipo != "mudanca" || mudanca.Mudanca == nil || mudanca.Mudanca.Tabela != TabelaNotificacoes {
		t.Fatalf("mudança inesperada: %+v", mudanca)
	}
	atualizado := readMessage(t, conn)
	if atualizado.Tipo != "contadores" || atualizado.Notificacoes != 3 {
		t.Fatalf("contadores não foram recalculados: %+v", atualizado)
	}
}

func TestWebsocketSemToken(t *testing.T) {
	hub := NewHub(&stubCounter{}, zerolog.Nop())
	handler := NewHandler(hub, &stubCounter{}, auth.NewJWTManager(testSecret, time.Minute), nil)
	router := chi.NewRouter()
	handler.RegisterPublic(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/realtime", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("esperava 401, veio %d", rec.Code)
	}
}

func TestContadoresEndpoint(t *testing.T) {
	counter := &stubCounter{c: Contadores{Notificacoes: 4}}
	handler := NewHandler(NewHub(counter, zerolog.Nop()), counter, auth.NewJWTManager(testSecret, time.Minute), nil)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/me/contadores", nil)
	req = req.WithContext(httpmiddleware.WithClaims(req.Context(), uuid.NewString(), nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("esperava 200, veio %d", rec.Code)
	}

	var body struct {
		Data Contadores `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(Contadores{Notificacoes: 4}, body.Data); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}
