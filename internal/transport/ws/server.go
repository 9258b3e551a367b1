package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwrk-planet/board-service/internal/domain"
	"github.com/cwrk-planet/board-service/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/cwrk-planet/board-service/internal/transport/ws")

var ErrSendBufferFull = errors.New("ws send buffer full")

type Rooms interface {
	CreateRoom(connID, name string) (string, *service.Departure, error)
	RoomExists(code string) bool
	JoinRoom(connID, code, name string) (string, *service.Departure, error)
	RoomOf(connID string) (string, bool)
	Draw(connID string, move domain.Move) (domain.Move, string, bool)
	Undo(connID string) (string, bool)
	Leave(connID string) (service.Departure, bool)
	Clear(connID string) (string, domain.Member, bool)
	Snapshot(code string) (domain.RoomSnapshot, error)
}

type ChatSvc interface {
	Prepare(text string) (string, error)
	Farewell(name string) string
}

type Options struct {
	PingEvery      time.Duration
	WriteWait      time.Duration
	ReadLimit      int64
	SendBuffer     int
	AllowedOrigins []string // пусто: любой origin
}

func (o Options) withDefaults() Options {
	if o.PingEvery <= 0 {
		o.PingEvery = 15 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 8 << 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	rooms    Rooms
	chat     ChatSvc
	opts     Options
}

func NewServer(hub *Hub, rooms Rooms, chat ChatSvc, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		hub:   hub,
		rooms: rooms,
		chat:  chat,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// WS endpoint: GET /ws
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, uuid.NewString(), s.opts)
	s.hub.Register(c)
	slog.Debug("ws connected", "conn", c.ID(), "remote", r.RemoteAddr)

	s.hub.SendTo(c.ID(), Message{Type: TypeConnected, Payload: ConnectedPayload{UserID: c.ID()}})

	go c.writeLoop()
	s.readLoop(c)

	s.disconnect(c)
	s.hub.Unregister(c)
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "conn", c.ID(), "err", err)
	}
	slog.Debug("ws disconnected", "conn", c.ID())
}

func (s *Server) readLoop(c *wsConn) {
	c.conn.SetReadLimit(s.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws read failed", "conn", c.ID(), "err", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(c, "Malformed event")
			continue
		}
		s.Dispatch(c, msg)
	}
}

// Shutdown рвёт все WebSocket-соединения: http.Server.Shutdown их не видит.
func (s *Server) Shutdown() {
	if n := s.hub.CloseAll(); n > 0 {
		slog.Info("ws connections closed", "count", n)
	}
}

// Dispatch обрабатывает одно входящее событие до конца.
// Паника в обработчике не роняет соединение.
func (s *Server) Dispatch(c Conn, msg Message) {
	ctx, span := tracer.Start(context.Background(), "ws."+msg.Type,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("ws.conn", c.ID())))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			span.RecordError(fmt.Errorf("panic: %v", rec))
			slog.ErrorContext(ctx, "ws handler panic", "conn", c.ID(), "type", msg.Type, "panic", rec)
		}
	}()
	slog.DebugContext(ctx, "ws event", "conn", c.ID(), "type", msg.Type)

	switch msg.Type {
	case TypeCreateRoom:
		s.handleCreateRoom(c, msg.Payload)
	case TypeCheckRoom:
		s.handleCheckRoom(c, msg.Payload)
	case TypeJoinRoom:
		s.handleJoinRoom(c, msg.Payload)
	case TypeJoinedRoom:
		s.handleJoinedRoom(c)
	case TypeLeaveRoom:
		s.handleLeaveRoom(c)
	case TypeDisconnecting:
		s.disconnect(c)
	case TypeDraw:
		s.handleDraw(c, msg.Payload)
	case TypeUndo:
		s.handleUndo(c)
	case TypeMouseMove:
		s.handleMouseMove(c, msg.Payload)
	case TypeClearCanvas:
		s.handleClearCanvas(c)
	case TypeSendMsg:
		s.handleSendMsg(c, msg.Payload)
	default:
		slog.DebugContext(ctx, "ws unknown event", "conn", c.ID(), "type", msg.Type)
	}
}

func (s *Server) sendError(c Conn, reason string) {
	_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: reason}})
}

// --- helpers ---

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type wsConn struct {
	conn      *websocket.Conn
	id        string
	send      chan Message
	closed    chan struct{}
	closeOnce sync.Once
	pingEvery time.Duration
	writeWait time.Duration
}

func newWsConn(c *websocket.Conn, id string, opts Options) *wsConn {
	return &wsConn{
		conn:      c,
		id:        id,
		send:      make(chan Message, opts.SendBuffer),
		closed:    make(chan struct{}),
		pingEvery: opts.PingEvery,
		writeWait: opts.WriteWait,
	}
}

func (c *wsConn) ID() string { return c.id }

// Send не блокирует: медленный клиент с переполненным буфером отключается.
func (c *wsConn) Send(msg Message) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
		slog.Warn("ws slow consumer, closing", "conn", c.id)
		_ = c.Close()
		return ErrSendBufferFull
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				slog.Debug("ws write failed", "conn", c.id, "type", msg.Type, "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}
