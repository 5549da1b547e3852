package realtime

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/auth"
	httpmiddleware "github.com/novaplataforma/nova/internal/http/middleware"
	"github.com/novaplataforma/nova/internal/http/respond"
)

// Handler expõe o websocket de mudanças e a consulta pontual de badges.
type Handler struct {
	hub      *Hub
	counter  Counter
	jwt      *auth.JWTManager
	upgrader websocket.Upgrader
}

// NewHandler aceita origens na mesma regra do CORS; lista vazia libera todas.
func NewHandler(hub *Hub, counter Counter, jwt *auth.JWTManager, allowOrigins []string) *Handler {
	match := httpmiddleware.OriginMatcher(allowOrigins)
	return &Handler{
		hub:     hub,
		counter: counter,
		jwt:     jwt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowOrigins) == 0 {
					return true
				}
				return match(origin)
			},
		},
	}
}

// RegisterPublic monta /realtime fora do middleware de auth: navegadores não
// enviam Authorization no handshake, então o token vem em ?token=.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/realtime", h.handleWS)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me/contadores", h.handleContadores)
}

func (h *Handler) handleContadores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, err := httpmiddleware.SubjectUUID(ctx)
	if err != nil {
		respond.Unauthorized(w)
		return
	}

	c, err := h.counter.Contadores(ctx, userID)
	if err != nil {
		respond.Internal(w, r, "realtime", err)
		return
	}

	respond.LogRequest(ctx, "GET /me/contadores", userID, start)
	respond.JSON(w, http.StatusOK, c)
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = httpmiddleware.BearerToken(r)
	}
	if token == "" {
		respond.Unauthorized(w)
		return
	}
	claims, err := h.jwt.ParseAndValidate(token)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "token inválido", nil)
		return
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade já respondeu ao cliente
		log.Debug().Err(err).Msg("realtime: upgrade recusado")
		return
	}

	client := h.hub.Register(userID, conn)
	defer h.hub.Unregister(client)

	h.hub.PushContadores(r.Context(), userID)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// o cliente não envia comandos; a leitura só mantém pong e detecta fechamento
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
