package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereceipt/zpl-printer/internal/notify"
	"go.uber.org/zap"
)

// WebSocket message types sent by the server besides forwarded events
const (
	EventCommand  = "command"
	EventResponse = "response"
	EventError    = "error"
)

const (
	wsBuffer     = 64
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string                 `json:"event"`
	Time  time.Time              `json:"time,omitempty"`
	Data  map[string]interface{} `json:"data"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	events <-chan notify.Event
	cancel func()
	server *Server
}

// handleWebSocket streams printer events to the client and accepts console
// commands from it
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	events, cancel := s.hub.Subscribe(wsBuffer)
	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, wsBuffer),
		events: events,
		cancel: cancel,
		server: s,
	}

	s.log.Debug("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	go client.readPump()
	go client.writePump()
}

// writePump is the only writer on the connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var msg WSMessage
		select {
		case e, ok := <-c.events:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return
			}
			msg = WSMessage{Event: string(e.Type), Time: e.Time, Data: e.Data}
		case m, ok := <-c.send:
			if !ok {
				return
			}
			msg = m
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			continue
		}

		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			c.server.log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.cancel()
		close(c.send)
		c.server.log.Debug("websocket client disconnected")
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg WSMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Warn("websocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventCommand:
		cmd, _ := msg.Data["command"].(string)
		if cmd == "" {
			c.sendError("command is required")
			return
		}
		result := c.server.executor.Execute(cmd)
		c.reply(WSMessage{
			Event: EventResponse,
			Data: map[string]interface{}{
				"success": result.Success,
				"message": result.Message,
				"error":   result.Error,
				"data":    result.Data,
			},
		})
	default:
		c.sendError("unknown event: " + msg.Event)
	}
}

func (c *WSClient) sendError(message string) {
	c.reply(WSMessage{
		Event: EventError,
		Data: map[string]interface{}{
			"error": message,
		},
	})
}

// reply never blocks the read loop; a client that does not drain its replies
// loses them
func (c *WSClient) reply(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
	}
}
