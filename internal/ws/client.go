package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nwrussi/openquiz-rooms/internal/broadcast"
	"github.com/nwrussi/openquiz-rooms/internal/model"
	"github.com/nwrussi/openquiz-rooms/internal/services/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size in bytes
	maxMessageSize = 4096

	// Buffer for request outcomes awaiting the write pump
	resultBufferSize = 16
)

// Conn is one websocket connection speaking the room protocol
type Conn struct {
	id          broadcast.ConnectionID
	sock        *websocket.Conn
	coordinator *session.Coordinator
	events      <-chan model.Event
	results     chan []byte
	done        chan struct{}
	logger      *slog.Logger
}

func newConn(id broadcast.ConnectionID, sock *websocket.Conn, coordinator *session.Coordinator, events <-chan model.Event, logger *slog.Logger) *Conn {
	return &Conn{
		id:          id,
		sock:        sock,
		coordinator: coordinator,
		events:      events,
		results:     make(chan []byte, resultBufferSize),
		done:        make(chan struct{}),
		logger:      logger.With(slog.String("conn_id", string(id))),
	}
}

// readPump reads client frames until the connection drops, dispatching
// each request to the coordinator. Runs on the handler goroutine.
func (c *Conn) readPump(ctx context.Context) {
	defer c.close()

	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("websocket read failed", slog.Any("error", err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.sendResult(errResult("", badRequest("malformed frame")))
			continue
		}

		c.sendResult(c.handle(ctx, req))
	}
}

// handle executes one request against the coordinator
func (c *Conn) handle(ctx context.Context, req Request) Result {
	switch req.Op {
	case OpCreateRoom:
		room, err := c.coordinator.CreateRoom(ctx, c.id, model.DeckRef(req.DeckRef), req.Name)
		if err != nil {
			return errResult(req.Op, err)
		}
		return okResult(req.Op, room)

	case OpJoinRoom:
		room, err := c.coordinator.JoinRoom(ctx, c.id, req.RoomCode, req.Name)
		if err != nil {
			return errResult(req.Op, err)
		}
		return okResult(req.Op, room)

	case OpStartGame:
		room, err := c.coordinator.StartGame(ctx, c.id)
		if err != nil {
			return errResult(req.Op, err)
		}
		return okResult(req.Op, room)

	case OpFinishGame:
		room, err := c.coordinator.FinishGame(ctx, c.id)
		if err != nil {
			return errResult(req.Op, err)
		}
		return okResult(req.Op, room)

	case OpLeaveRoom:
		_ = c.coordinator.LeaveRoom(ctx, c.id)
		return okResult(req.Op, nil)

	case OpSendAction:
		var data any
		if len(req.Data) > 0 {
			_ = json.Unmarshal(req.Data, &data)
		}
		c.coordinator.SendAction(ctx, c.id, req.Action, data)
		return okResult(req.Op, nil)

	case OpGetRoom:
		room, err := c.coordinator.CurrentRoom(ctx, c.id)
		if err != nil {
			return errResult(req.Op, err)
		}
		return okResult(req.Op, room)

	default:
		return errResult(req.Op, badRequest("unknown operation"))
	}
}

// sendResult queues a request outcome for the write pump
func (c *Conn) sendResult(res Result) {
	frame := marshalFrame(EventResult, res)
	select {
	case c.results <- frame:
	case <-c.done:
	}
}

// writePump serializes all socket writes: request outcomes, broadcast
// events, and keepalive pings
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.sock.Close()
	}()

	for {
		select {
		case frame := <-c.results:
			if !c.write(websocket.TextMessage, frame) {
				return
			}

		case ev := <-c.events:
			if !c.write(websocket.TextMessage, marshalEvent(ev)) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.sock.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

func (c *Conn) write(messageType int, payload []byte) bool {
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.sock.WriteMessage(messageType, payload); err != nil {
		c.logger.Debug("websocket write failed", slog.Any("error", err))
		return false
	}
	return true
}

func (c *Conn) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
