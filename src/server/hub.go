package server

import (
	"encoding/json"
	"net/http"

	"quant-observer/src/models"
	"quant-observer/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	messageInitial  = "INITIAL"
	messageUpdate   = "UPDATE"
	messageSnapshot = "SNAPSHOT"
	messageAlert    = "ALERT"
)

// directMessage is a reply addressed to a single client.
type directMessage struct {
	client  *Client
	payload interface{}
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub owns the clients map. Every send on a client channel happens here,
// so a channel is never written after it was closed.
func (s *APIServer) runHub() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCountChanged()
			s.deliver(client, s.stateMessage(messageInitial))

		case client := <-s.unregister:
			s.drop(client)

		case msg := <-s.direct:
			if _, ok := s.clients[msg.client]; ok {
				s.deliver(msg.client, msg.payload)
			}

		case message := <-s.broadcast:
			for client := range s.clients {
				s.deliver(client, message)
			}

		case <-s.done:
			for client := range s.clients {
				s.drop(client)
			}
			return
		}
	}
}

// deliver queues payload for client, pruning it when its buffer is full.
func (s *APIServer) deliver(client *Client, payload interface{}) {
	select {
	case client.send <- payload:
	default:
		s.Logger.Warning("Dropping slow websocket client %s", client.addr)
		s.drop(client)
	}
}

func (s *APIServer) drop(client *Client) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.send)
	s.clientCountChanged()
}

func (s *APIServer) clientCountChanged() {
	s.connections.Store(int64(len(s.clients)))
	if s.Metrics != nil {
		s.Metrics.WSClients.Set(float64(len(s.clients)))
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues payload for every connected client. When the queue is
// full the payload is dropped rather than stalling the caller.
func (s *APIServer) Broadcast(payload interface{}) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.broadcast <- payload:
	default:
		s.Logger.Warning("Broadcast queue full, dropping %T", payload)
	}
}

// OnProcessed is registered as a pipeline observer.
func (s *APIServer) OnProcessed(result models.MProcessResult) {
	tick := result.Tick
	alerts := result.Alerts
	if alerts == nil {
		alerts = []models.MAlert{}
	}
	s.Broadcast(&models.MLatestData{
		Type:              messageUpdate,
		Tick:              &tick,
		Metrics:           result.Metrics,
		Alerts:            alerts,
		Timestamp:         tick.Timestamp.UnixMilli(),
		ProcessingMetrics: result.ProcessingMetrics,
	})
}

// NotifyAlert is registered as an alert callback and pushes the alert on
// its own, ahead of the UPDATE that carries it.
func (s *APIServer) NotifyAlert(a models.MAlert) error {
	s.Broadcast(&models.MAlertNotice{Type: messageAlert, Alert: a})
	return nil
}

// stateMessage builds the full dashboard state from the pipeline.
func (s *APIServer) stateMessage(kind string) *models.MLatestData {
	state := &models.MLatestData{
		Type:    kind,
		Metrics: s.Pipeline.CurrentMetrics(),
		Alerts:  s.Pipeline.RecentAlerts(utils.DefaultRecentAlerts),
	}
	if tick, ok := s.Pipeline.Latest(); ok {
		state.Tick = &tick
		state.Timestamp = tick.Timestamp.UnixMilli()
	}
	return state
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		addr: c.ClientIP(),
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan interface{}, 256),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}
	s.Logger.Info("Client connected from %s", client.addr)

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage answers "subscribe" with the full state and "snapshot"
// with recent ticks and alerts. Unknown commands are ignored; malformed JSON
// closes the connection.
func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	var response interface{}
	switch cmd.Command {
	case "subscribe":
		response = s.stateMessage(messageInitial)
	case "snapshot":
		response = s.snapshotResponse(cmd)
	default:
		return
	}

	select {
	case s.direct <- directMessage{client: client, payload: response}:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) snapshotResponse(cmd models.MSubscribeCommand) *models.MSnapshotResponse {
	ticks := cmd.TickLimit
	if ticks <= 0 {
		ticks = utils.DefaultLatestTicks
	}
	alerts := cmd.AlertLimit
	if alerts <= 0 {
		alerts = utils.DefaultRecentAlerts
	}

	return &models.MSnapshotResponse{
		Type:    messageSnapshot,
		Ticks:   s.Pipeline.LatestN(ticks),
		Metrics: s.Pipeline.CurrentMetrics(),
		Alerts:  s.Pipeline.RecentAlerts(alerts),
	}
}
