// Package ws implements the websocket control channel: request/response
// frames handled in-process, relayed frames answered by the UI, and a
// broadcast progress sink for live execution events.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"axon/internal/engine"
	"axon/internal/logging"
	"axon/internal/templates"
	"axon/internal/workflowtool"
)

// relayTimeout bounds how long the server waits for a UI to answer a relayed
// request.
const relayTimeout = 30 * time.Second

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
	sendBuffer = 64
)

// Message is one inbound control frame.
type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Success distinguishes a reply to a relayed request from a request.
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Response is one outbound answer frame.
type Response struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Event is one broadcast frame, either a progress event or a relayed request.
type Event struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub tracks the connected clients and serves the control protocol.
type Hub struct {
	engine    *engine.Engine
	templates *templates.Catalog
	logger    logging.Logger
	upgrader  websocket.Upgrader

	mu    sync.RWMutex
	conns map[*conn]struct{}

	pendingMu sync.Mutex
	pending   map[string]chan *Message
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte
}

// NewHub creates the hub.
func NewHub(eng *engine.Engine, catalog *templates.Catalog, logger logging.Logger) *Hub {
	return &Hub{
		engine:    eng,
		templates: catalog,
		logger:    logging.OrNop(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:   make(map[*conn]struct{}),
		pending: make(map[string]chan *Message),
	}
}

// Handler upgrades the request and runs the connection loops.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn("Websocket upgrade failed: %v", err)
			return
		}

		cn := &conn{ws: ws, send: make(chan []byte, sendBuffer)}
		h.mu.Lock()
		h.conns[cn] = struct{}{}
		h.mu.Unlock()
		h.logger.Debug("Websocket client connected (%d total)", h.clientCount())

		go h.writeLoop(cn)
		h.readLoop(c.Request.Context(), cn)
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) drop(cn *conn) {
	h.mu.Lock()
	if _, ok := h.conns[cn]; ok {
		delete(h.conns, cn)
		close(cn.send)
	}
	h.mu.Unlock()
	cn.ws.Close()
}

func (h *Hub) readLoop(ctx context.Context, cn *conn) {
	defer h.drop(cn)

	cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		cn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Websocket read failed: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Warn("Websocket frame not JSON: %v", err)
			continue
		}

		// A frame with a success marker answers a relayed request.
		if msg.Success != nil {
			h.resolvePending(&msg)
			continue
		}

		h.handleRequest(ctx, cn, &msg)
	}
}

func (h *Hub) writeLoop(cn *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cn.ws.Close()
	}()

	for {
		select {
		case raw, ok := <-cn.send:
			cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cn.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleRequest(ctx context.Context, cn *conn, msg *Message) {
	switch msg.Type {
	case "workflow:listTemplates":
		h.reply(cn, &Response{ID: msg.ID, Success: true, Result: h.templates.List()})

	case "workflow:runTemplate":
		var payload struct {
			TemplateID string `json:"templateId"`
			Params     struct {
				Task string `json:"task"`
			} `json:"params"`
		}
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				h.reply(cn, &Response{ID: msg.ID, Error: fmt.Sprintf("invalid payload: %v", err)})
				return
			}
		}
		tpl, ok := h.templates.Get(payload.TemplateID)
		if !ok {
			h.reply(cn, &Response{ID: msg.ID, Error: "template not found: " + payload.TemplateID})
			return
		}
		doc := tpl.Document()
		if payload.Params.Task != "" {
			workflowtool.InjectTask(doc, payload.Params.Task)
		}

		result := h.engine.Execute(ctx, doc, h.Sink())
		if !result.Success {
			h.reply(cn, &Response{ID: msg.ID, Error: result.Error})
			return
		}
		h.reply(cn, &Response{ID: msg.ID, Success: true, Result: workflowtool.ExtractResult(doc, result.Outputs)})

	default:
		h.reply(cn, &Response{ID: msg.ID, Error: "unknown message type: " + msg.Type})
	}
}

func (h *Hub) reply(cn *conn, resp *Response) {
	raw, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("Encode websocket response: %v", err)
		return
	}
	select {
	case cn.send <- raw:
	default:
		h.logger.Warn("Websocket send buffer full, dropping response")
	}
}

func (h *Hub) resolvePending(msg *Message) {
	h.pendingMu.Lock()
	ch, ok := h.pending[msg.ID]
	if ok {
		delete(h.pending, msg.ID)
	}
	h.pendingMu.Unlock()
	if ok {
		ch <- msg
	}
}

// Request relays a frame to the connected clients and waits for the first
// reply. It fails when no client answers within the deadline.
func (h *Hub) Request(ctx context.Context, msgType string, payload any) (json.RawMessage, error) {
	if h.clientCount() == 0 {
		return nil, fmt.Errorf("no connected clients")
	}

	id := uuid.NewString()
	ch := make(chan *Message, 1)
	h.pendingMu.Lock()
	h.pending[id] = ch
	h.pendingMu.Unlock()

	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, id)
		h.pendingMu.Unlock()
	}()

	h.Broadcast(&Event{ID: id, Type: msgType, Payload: payload})

	timer := time.NewTimer(relayTimeout)
	defer timer.Stop()
	select {
	case msg := <-ch:
		if msg.Success != nil && !*msg.Success {
			return nil, fmt.Errorf("client error: %s", msg.Error)
		}
		return msg.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("timed out waiting for client response")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Broadcast sends an event to every connected client. Slow clients are
// skipped rather than blocking the sender.
func (h *Hub) Broadcast(event *Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Encode websocket event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cn := range h.conns {
		select {
		case cn.send <- raw:
		default:
		}
	}
}
