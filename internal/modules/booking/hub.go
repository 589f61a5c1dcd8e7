package booking

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bikerental/internal/middleware"
	"bikerental/internal/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

type client struct {
	userID int64
	conn   *websocket.Conn
	send   chan any
}

// Hub fans booking events out to every open connection of a user.
type Hub struct {
	mutex       sync.RWMutex
	connections map[int64]map[*client]struct{}
	log         *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		connections: make(map[int64]map[*client]struct{}),
		log:         log,
	}
}

func (h *Hub) register(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	set, ok := h.connections[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.connections[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	set, ok := h.connections[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.connections, c.userID)
	}
}

// SendToUser queues message for every connection of userID and reports
// whether at least one accepted it. Slow connections drop the message.
func (h *Hub) SendToUser(userID int64, message any) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	delivered := false
	for c := range h.connections[userID] {
		select {
		case c.send <- message:
			delivered = true
		default:
			h.log.WithField("user_id", userID).Warn("websocket send buffer full, dropping event")
		}
	}
	return delivered
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.connections[userID]) > 0
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, set := range h.connections {
		for c := range set {
			close(c.send)
		}
		delete(h.connections, userID)
	}
}

// WSHandler upgrades GET /ws/bookings?token=JWT. Browsers cannot set
// headers on websocket requests so the token travels in the query.
type WSHandler struct {
	hub      *Hub
	tokens   middleware.TokenValidator
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, tokens middleware.TokenValidator, allowedOrigins []string) *WSHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

func (h *WSHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/bookings", h.Handle)
}

func (h *WSHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token is required")
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	cl := &client{userID: claims.UserID, conn: conn, send: make(chan any, sendBuffer)}
	h.hub.register(cl)
	h.hub.log.WithField("user_id", cl.userID).Debug("websocket connected")

	go h.writeLoop(cl)
	h.readLoop(cl)
}

// readLoop only services control frames; clients do not send events.
func (h *WSHandler) readLoop(cl *client) {
	defer func() {
		h.hub.unregister(cl)
		_ = cl.conn.Close()
		h.hub.log.WithField("user_id", cl.userID).Debug("websocket disconnected")
	}()

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.hub.log.WithError(err).WithField("user_id", cl.userID).Warn("websocket read failed")
			}
			return
		}
	}
}

func (h *WSHandler) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
