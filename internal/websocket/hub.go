package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Control messages are tiny.
	maxMessageSize = 4 * 1024

	// Minimum interval between volume updates forwarded to clients. The
	// capture loop produces them far faster than a meter needs.
	volumeInterval = 50 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionController is the session lifecycle surface the hub drives.
type SessionController interface {
	Connect(ctx context.Context, profileID, voiceName string) error
	Disconnect()
	Events() <-chan usecase.Event
	Snapshot() usecase.Snapshot
}

// Hub maintains the set of active UI clients and fans session events out to
// them. All clients observe the same single session.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	controller SessionController

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(controller SessionController, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		controller: controller,
		logger:     logger,
	}
}

// Run starts the hub's main loop: client registration plus the fan-out of
// controller events. Volume updates are rate-limited; state and transcript
// changes always go through.
func (h *Hub) Run() {
	var lastVolumeSent time.Time

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.clientID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.clientID))

			client.enqueue(NewSnapshotMessage(h.controller.Snapshot()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.clientID]; ok {
				delete(h.clients, client.clientID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.clientID))

		case event, ok := <-h.controller.Events():
			if !ok {
				return
			}
			switch e := event.(type) {
			case usecase.StateEvent:
				h.broadcast(NewStateMessage(e.State, e.Err))
			case usecase.VolumeEvent:
				if time.Since(lastVolumeSent) < volumeInterval {
					continue
				}
				lastVolumeSent = time.Now()
				h.broadcast(NewVolumeMessage(e.Volume))
			case usecase.TranscriptEvent:
				h.broadcast(NewTranscriptMessage(e.Items))
			}
		}
	}
}

// ClientCount returns the number of connected UI clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Slow client; it catches up from the next message.
			h.logger.Debug("Dropped message for slow client",
				zap.String("clientID", client.clientID))
		}
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Client ID for this connection
	clientID string

	// Logger
	logger *zap.Logger
}

func (c *Client) enqueue(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// HandleWebSocket handles websocket requests with a pre-authenticated client ID.
func HandleWebSocket(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		clientID: clientID,
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps control messages from the websocket connection to the
// session controller.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage routes one control message to the session controller.
func (c *Client) processMessage(message []byte) {
	msg, err := ParseControlMessage(message)
	if err != nil {
		c.logger.Warn("Invalid control message", zap.Error(err))
		c.enqueue(NewErrorMessage("invalid_message", err.Error()))
		return
	}

	switch msg.Type {
	case MessageTypeConnect:
		c.logger.Info("Connect requested",
			zap.String("clientID", c.clientID),
			zap.String("profile", msg.ProfileID),
			zap.String("voice", msg.VoiceName))
		// Connect blocks on device and network handshakes; never stall
		// the read pump on it. Failures surface as state events.
		go func(profileID, voiceName string) {
			if err := c.hub.controller.Connect(context.Background(), profileID, voiceName); err != nil {
				c.logger.Warn("Connect failed", zap.Error(err))
			}
		}(msg.ProfileID, msg.VoiceName)

	case MessageTypeDisconnect:
		c.logger.Info("Disconnect requested", zap.String("clientID", c.clientID))
		c.hub.controller.Disconnect()
	}
}
