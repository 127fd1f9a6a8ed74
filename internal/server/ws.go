package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// envelope is the push-channel message frame, both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func marshalEnvelope(eventName string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling %s payload: %w", eventName, err)
	}
	msg, err := json.Marshal(envelope{Event: eventName, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("error marshalling %s envelope: %w", eventName, err)
	}
	return msg, nil
}

// WebSocketServer fans broadcast messages out to every connected UI client
// and feeds inbound command frames into the gateway.
type WebSocketServer struct {
	logger     *slog.Logger
	gateway    *Gateway
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

func NewWebSocketServer(logger *slog.Logger, gateway *Gateway) *WebSocketServer {
	return &WebSocketServer{
		logger:     logger,
		gateway:    gateway,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (s *WebSocketServer) Run() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = true
		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
		case message := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
		}
	}
}

// Broadcast queues an event frame for every connected client.
func (s *WebSocketServer) Broadcast(eventName string, data any) {
	msg, err := marshalEnvelope(eventName, data)
	if err != nil {
		s.logger.Error("Failed to marshal broadcast", slog.Any("error", err))
		return
	}
	s.broadcast <- msg
}

// sendTo queues an event frame for a single client, dropping it when the
// client's buffer is full.
func (s *WebSocketServer) sendTo(client *Client, eventName string, data any) {
	msg, err := marshalEnvelope(eventName, data)
	if err != nil {
		s.logger.Error("Failed to marshal client message", slog.Any("error", err))
		return
	}
	select {
	case client.send <- msg:
	default:
	}
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", slog.Any("error", err))
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, 256)}
	s.register <- client

	go s.writePump(client)
	go s.readPump(client)
}

func (s *WebSocketServer) writePump(client *Client) {
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
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *WebSocketServer) readPump(client *Client) {
	defer func() {
		s.unregister <- client
		client.conn.Close()
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error", slog.Any("error", err))
			}
			break
		}
		s.gateway.Dispatch(client, message)
	}
}
