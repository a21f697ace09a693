package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/stemsplit/api/internal/model"
)

// Message types pushed to job subscribers.
const (
	MessageTypeProgress = "progress"
	MessageTypeComplete = "complete"
	MessageTypeError    = "error"
)

// ProgressMessage is pushed while the separation pipeline advances.
type ProgressMessage struct {
	Type     string          `json:"type"`
	FileID   string          `json:"file_id"`
	Status   model.JobStatus `json:"status"`
	Progress int             `json:"progress"`
}

// CompleteMessage is pushed once when the job reaches done.
type CompleteMessage struct {
	Type   string   `json:"type"`
	FileID string   `json:"file_id"`
	Stems  []string `json:"stems"`
}

// ErrorMessage is pushed once when the job reaches error.
type ErrorMessage struct {
	Type   string `json:"type"`
	FileID string `json:"file_id"`
	Error  string `json:"error"`
}

// Client represents a WebSocket subscriber for one job
type Client struct {
	FileID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub maintains active WebSocket connections grouped by job id
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	FileID  string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.FileID] == nil {
				h.clients[client.FileID] = make(map[*Client]bool)
			}
			h.clients[client.FileID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.FileID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.FileID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.FileID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastProgress sends a progress update to all job subscribers
func (h *Hub) BroadcastProgress(fileID string, status model.JobStatus, progress int) {
	h.send(fileID, ProgressMessage{
		Type:     MessageTypeProgress,
		FileID:   fileID,
		Status:   status,
		Progress: progress,
	})
}

// BroadcastComplete sends the final stem list to all job subscribers
func (h *Hub) BroadcastComplete(fileID string, stems []string) {
	h.send(fileID, CompleteMessage{
		Type:   MessageTypeComplete,
		FileID: fileID,
		Stems:  stems,
	})
}

// BroadcastError sends a failure message to all job subscribers
func (h *Hub) BroadcastError(fileID, message string) {
	h.send(fileID, ErrorMessage{
		Type:   MessageTypeError,
		FileID: fileID,
		Error:  message,
	})
}

func (h *Hub) send(fileID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Warn("failed to marshal websocket message")
		return
	}
	h.broadcast <- &broadcastMessage{FileID: fileID, Message: data}
}

// HandleConnection handles a WebSocket connection for one job's updates
func (h *Hub) HandleConnection(c *websocket.Conn, fileID string) {
	client := &Client{
		FileID: fileID,
		Conn:   c,
		Send:   make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine with keep-alive pings
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop; clients only subscribe, inbound frames are drained
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("websocket closed")
			}
			break
		}
	}
}
