package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// ErrQueueFull indica que o hub está saturado e o evento foi descartado.
var ErrQueueFull = errors.New("realtime: fila do hub cheia")

// Contadores são os badges de não lidos do usuário.
type Contadores struct {
	Notificacoes int `json:"notificacoes"`
	Mensagens    int `json:"mensagens"`
}

// Counter recalcula os badges a partir do banco.
type Counter interface {
	Contadores(ctx context.Context, usuarioID uuid.UUID) (Contadores, error)
}

// Message é o quadro JSON enviado ao cliente.
type Message struct {
	Tipo string `json:"tipo"`
	*Contadores
	Mudanca *Event `json:"mudanca,omitempty"`
}

// Client é uma conexão websocket de um usuário.
type Client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// enqueue devolve false só quando o buffer está cheio; cliente já fechado é ignorado.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Hub mantém os sockets por usuário e despacha eventos recebidos.
type Hub struct {
	counter Counter
	logger  zerolog.Logger
	events  chan Event

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
}

func NewHub(counter Counter, logger zerolog.Logger) *Hub {
	return &Hub{
		counter: counter,
		logger:  logger,
		events:  make(chan Event, 256),
		clients: map[uuid.UUID]map[*Client]struct{}{},
	}
}

// Publish enfileira o evento sem bloquear o chamador.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	select {
	case h.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processa a fila até o contexto terminar.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev := <-h.events:
			h.dispatch(ctx, ev)
		}
	}
}

// Register passa a conexão ao hub e inicia a goroutine de escrita.
func (h *Hub) Register(userID uuid.UUID, conn *websocket.Conn) *Client {
	c := &Client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = map[*Client]struct{}{}
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	return c
}

// Unregister remove a conexão e encerra a escrita.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// PushContadores recalcula e envia os badges a todas as conexões do usuário.
func (h *Hub) PushContadores(ctx context.Context, userID uuid.UUID) {
	clients := h.snapshot(userID)
	if len(clients) == 0 {
		return
	}
	c, err := h.counter.Contadores(ctx, userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("realtime: falha ao contar não lidos")
		return
	}
	h.sendAll(clients, Message{Tipo: "contadores", Contadores: &c})
}

func (h *Hub) dispatch(ctx context.Context, ev Event) {
	seen := make(map[uuid.UUID]struct{}, len(ev.Usuarios))
	for _, uid := range ev.Usuarios {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}

		clients := h.snapshot(uid)
		if len(clients) == 0 {
			continue
		}
		evCopy := ev
		h.sendAll(clients, Message{Tipo: "mudanca", Mudanca: &evCopy})
		if ev.AfetaContadores() {
			h.PushContadores(ctx, uid)
		}
	}
}

func (h *Hub) snapshot(userID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.clients[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (h *Hub) sendAll(clients []*Client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("realtime: falha ao serializar mensagem")
		return
	}
	for _, c := range clients {
		if !c.enqueue(payload) {
			// cliente lento: derruba para não segurar o hub
			h.logger.Warn().Str("user_id", c.userID.String()).Msg("realtime: buffer cheio, desconectando")
			h.Unregister(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	all := h.clients
	h.clients = map[uuid.UUID]map[*Client]struct{}{}
	h.mu.Unlock()
	for _, set := range all {
		for c := range set {
			c.close()
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug().Err(err).Str("user_id", c.userID.String()).Msg("realtime: escrita falhou")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
