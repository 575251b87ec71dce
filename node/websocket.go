package main

import (
	"net/http"
	"sync"

	"infernode/session"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket upgrader with proper configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// Wire message kinds for the encrypted session protocol
const (
	// Client to node
	MsgTypeSessionInit      = "session_init"
	MsgTypeEncryptedMessage = "encrypted_message"
	MsgTypeClose            = "close"

	// Node to client
	MsgTypeSessionReady      = "session_ready"
	MsgTypeEncryptedChunk    = "encrypted_chunk"
	MsgTypeEncryptedResponse = "encrypted_response"
	MsgTypeError             = "error"
)

// WSMessage is the JSON frame carried on the realtime channel. session_init
// fields ride at the top level; encrypted payloads nest under payload. The id
// field, when a client sends one, is echoed on every corresponding chunk and
// response.
type WSMessage struct {
	Type      string                   `json:"type"`
	SessionID string                   `json:"session_id,omitempty"`
	ID        string                   `json:"id,omitempty"`
	Tokens    uint32                   `json:"tokens,omitempty"`
	Payload   *session.EnvelopePayload `json:"payload,omitempty"`

	// session_init fields
	EphPubHex     string `json:"ephPubHex,omitempty"`
	CiphertextHex string `json:"ciphertextHex,omitempty"`
	NonceHex      string `json:"nonceHex,omitempty"`
	SignatureHex  string `json:"signatureHex,omitempty"`
	AADHex        string `json:"aadHex,omitempty"`
	JobTicket     string `json:"job_ticket,omitempty"`

	// session_ready fields
	NodeAddress string `json:"node_address,omitempty"`

	// error fields
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// WSConnection wraps a websocket connection with a write lock and the set of
// sessions established over it, so they can be torn down on disconnect.
type WSConnection struct {
	conn     *websocket.Conn
	mutex    sync.Mutex
	closed   bool
	sessions map[string]bool
}

func newWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn, sessions: make(map[string]bool)}
}

// WriteMessage sends a frame, serialized behind the connection's write lock.
func (c *WSConnection) WriteMessage(msg *WSMessage) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteJSON(msg)
}

func (c *WSConnection) markClosed() {
	c.mutex.Lock()
	c.closed = true
	c.mutex.Unlock()
}

// handleWebSocket upgrades HTTP to WebSocket and runs the per-connection read
// loop. Frames are processed sequentially on this goroutine, which gives each
// session in-order message handling; independent connections proceed in
// parallel.
func (n *Node) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := n.logger.WithConnection(r.RemoteAddr).With(zap.String("conn_id", connID))
	log.Info("New client connection")

	wsConn := newWSConnection(conn)

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			}
			break
		}
		n.handleMessage(wsConn, &msg)
	}

	wsConn.markClosed()

	// Connection gone: the transport owns these sessions' lifecycle, so
	// destroy their keys now.
	for sessionID := range wsConn.sessions {
		n.registry.Remove(sessionID)
		log.Info("Session closed on disconnect", zap.String("session_id", sessionID))
	}
}

// handleMessage dispatches one frame by kind.
func (n *Node) handleMessage(wsConn *WSConnection, msg *WSMessage) {
	switch msg.Type {
	case MsgTypeSessionInit:
		n.handleSessionInit(wsConn, msg)
	case MsgTypeEncryptedMessage:
		n.handleEncryptedMessage(wsConn, msg)
	case MsgTypeClose:
		n.handleClose(wsConn, msg)
	default:
		n.logger.WithMessageType(msg.Type).Warn("Unknown message type")
		n.sendError(wsConn, msg, session.CodeInvalidEnvelope, "unknown message type")
	}
}

// sendError reports a failure to the client with a stable code, echoing the
// request id when present.
func (n *Node) sendError(wsConn *WSConnection, req *WSMessage, code, message string) {
	out := &WSMessage{
		Type:      MsgTypeError,
		SessionID: req.SessionID,
		ID:        req.ID,
		Code:      code,
		Message:   message,
	}
	if err := wsConn.WriteMessage(out); err != nil {
		n.logger.Error("Failed to send error frame", zap.Error(err))
	}
}
