package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/service/pubsub"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const (
	websocketReadBufferSize        = 1024
	websocketWriteBufferSize       = 1024
	websocketSendChannelBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  websocketReadBufferSize,
	WriteBufferSize: websocketWriteBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Subscriber is the pub/sub side the stream needs.
type Subscriber interface {
	Subscribe(ctx context.Context, scope string, callback func(*domain.AuditEvent)) error
	Unsubscribe(scope string)
	Close()
}

type Client struct {
	conn  *websocket.Conn
	scope string
	send  chan []byte
}

// WebSocketHandler streams audit events to operators. A tenant-scoped client
// sees its tenant's events; a platform-scoped client sees every tenant's.
// One redis subscription is held per scope while it has clients.
type WebSocketHandler struct {
	*BaseHandler
	clients      map[*Client]bool
	register     chan *Client
	unregister   chan *Client
	mutex        sync.RWMutex
	logger       *logger.Logger
	pubsub       Subscriber
	ctx          context.Context
	cancel       context.CancelFunc
	scopeClients map[string]int
}

func NewWebSocketHandler(logger *logger.Logger, pubsub Subscriber) *WebSocketHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHandler{
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		logger:       logger,
		pubsub:       pubsub,
		ctx:          ctx,
		cancel:       cancel,
		scopeClients: make(map[string]int),
	}
}

func streamScope(tc domain.TenantContext) string {
	if tc.IsPlatform() {
		return pubsub.AllTenants
	}
	return tc.TenantID
}

// HandleWebSocket godoc
// @Summary Stream audit events
// @Description Upgrades to a WebSocket that receives audit events as JSON text frames
// @Tags audit
// @Success 101
// @Failure 401 {object} dto.Error
// @Security BearerAuth
// @Router /audit/stream [get]
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	scope := streamScope(h.TenantCtx(c))

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("Failed to upgrade audit stream connection: %v", err)
		return
	}

	client := &Client{
		conn:  conn,
		scope: scope,
		send:  make(chan []byte, websocketSendChannelBufferSize),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) Start() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.scopeClients[client.scope]++
			first := h.scopeClients[client.scope] == 1
			h.mutex.Unlock()

			// Subscribe to the scope's channel if this is the first client
			if first {
				scope := client.scope
				if err := h.pubsub.Subscribe(h.ctx, scope, func(e *domain.AuditEvent) { h.broadcast(scope, e) }); err != nil {
					h.logger.Errorf("Failed to subscribe to audit scope %s: %v", scope, err)
				}
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			last := false
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				h.scopeClients[client.scope]--
				if h.scopeClients[client.scope] == 0 {
					delete(h.scopeClients, client.scope)
					last = true
				}
			}
			h.mutex.Unlock()

			// Unsubscribe if no more clients for this scope
			if last {
				h.pubsub.Unsubscribe(client.scope)
			}

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) Stop() {
	h.cancel()
	h.pubsub.Close()

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.conn.Close()
	}
}

// broadcast hands an event to every client of scope. A client whose buffer
// is full is disconnected; its read pump then unregisters it.
func (h *WebSocketHandler) broadcast(scope string, event *domain.AuditEvent) {
	message, err := json.Marshal(dto.FromAuditEvent(event))
	if err != nil {
		h.logger.Errorf("Error marshaling audit event: %v", err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.scope != scope {
			continue
		}
		select {
		case client.send <- message:
		default:
			h.logger.Warnf("Audit stream client of scope %s is too slow, disconnecting", scope)
			client.conn.Close()
		}
	}
}

func (h *WebSocketHandler) writePump(client *Client) {
	defer func() {
		client.conn.Close()
	}()

	for message := range client.send {
		w, err := client.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		if err := w.Close(); err != nil {
			return
		}
	}

	// Channel was closed, send close message
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *WebSocketHandler) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.ctx.Done():
		}
		client.conn.Close()
	}()

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnf("Unexpected close error for audit stream client of scope %s: %v", client.scope, err)
			}
			return
		}
		// clients only listen; anything they send is ignored
	}
}
