package ws

import (
	"log/slog"

	"github.com/cwrk-planet/board-service/internal/domain"
	"github.com/cwrk-planet/board-service/internal/service"
)

func (s *Server) handleCreateRoom(c Conn, payload interface{}) {
	var p CreateRoomPayload
	if err := decode(payload, &p); err != nil {
		s.sendError(c, domain.Reason(domain.ErrInvalidName))
		return
	}

	// соединение в комнате не более чем в одной
	code, left, err := s.rooms.CreateRoom(c.ID(), p.Username)
	if err != nil {
		logRejected(c, "create room", err)
		s.sendError(c, domain.Reason(err))
		return
	}

	s.announceDeparture(c, left, false)
	s.hub.Join(code, c)
	_ = c.Send(Message{Type: TypeCreated, Payload: CreatedPayload{RoomID: code}})
}

func (s *Server) handleCheckRoom(c Conn, payload interface{}) {
	var p CheckRoomPayload
	exists := decode(payload, &p) == nil && s.rooms.RoomExists(p.RoomID)
	_ = c.Send(Message{Type: TypeRoomExists, Payload: RoomExistsPayload{Exists: exists}})
}

func (s *Server) handleJoinRoom(c Conn, payload interface{}) {
	var p JoinRoomPayload
	if err := decode(payload, &p); err != nil {
		_ = c.Send(Message{Type: TypeJoined, Payload: JoinedPayload{Failed: true, Reason: domain.Reason(domain.ErrInvalidRoomCode)}})
		return
	}

	code, left, err := s.rooms.JoinRoom(c.ID(), p.RoomID, p.Username)
	if err != nil {
		logRejected(c, "join room", err)
		_ = c.Send(Message{Type: TypeJoined, Payload: JoinedPayload{Failed: true, Reason: domain.Reason(err)}})
		return
	}

	s.announceDeparture(c, left, false)
	s.hub.Join(code, c)
	_ = c.Send(Message{Type: TypeJoined, Payload: JoinedPayload{RoomID: code}})
}

// handleJoinedRoom отдаёт снапшот и оповещает остальных о новом участнике.
func (s *Server) handleJoinedRoom(c Conn) {
	code, ok := s.rooms.RoomOf(c.ID())
	if !ok {
		return
	}
	snap, err := s.rooms.Snapshot(code)
	if err != nil {
		slog.Debug("ws snapshot skipped", "conn", c.ID(), "room", code, "err", err)
		return
	}

	stranded := snap.Stranded
	if stranded == nil {
		stranded = []domain.Move{}
	}
	_ = c.Send(Message{Type: TypeRoom, Payload: RoomPayload{
		Room:       RoomState{ID: snap.Code, Drawed: stranded},
		UsersMoves: snap.Ledgers,
		Users:      snap.Members,
	}})

	name := "Anonymous"
	if m, ok := snap.Members.Find(c.ID()); ok {
		name = m.Name
	}
	s.hub.BroadcastExcept(code, c.ID(), Message{Type: TypeNewUser, Payload: NewUserPayload{
		UserID:   c.ID(),
		Username: name,
	}})
}

func (s *Server) handleLeaveRoom(c Conn) {
	s.leaveCurrent(c, false)
}

// disconnect: выход из комнаты с прощальным сообщением в чат.
func (s *Server) disconnect(c Conn) {
	s.leaveCurrent(c, true)
}

func (s *Server) leaveCurrent(c Conn, farewell bool) {
	if d, ok := s.rooms.Leave(c.ID()); ok {
		s.announceDeparture(c, &d, farewell)
	}
}

// announceDeparture отписывает ушедшего и оповещает оставшихся. d == nil: ухода не было.
func (s *Server) announceDeparture(c Conn, d *service.Departure, farewell bool) {
	if d == nil {
		return
	}
	// отписка до рассылки: ушедший не получает событий комнаты
	s.hub.Leave(d.RoomCode, c)

	slog.Info("room left", "room", d.RoomCode, "conn", c.ID(), "remaining", d.Remaining)
	if d.RoomDeleted {
		return
	}

	s.hub.Broadcast(d.RoomCode, Message{Type: TypeUserDisconnected, Payload: UserPayload{UserID: c.ID()}})
	if farewell {
		s.hub.Broadcast(d.RoomCode, Message{Type: TypeNewMsg, Payload: NewMsgPayload{
			UserID: c.ID(),
			Text:   s.chat.Farewell(d.Member.Name),
		}})
	}
}

// logRejected: ошибки ввода идут в Warn, конфликты и отсутствие комнаты в Info.
func logRejected(c Conn, op string, err error) {
	if domain.IsValidation(err) {
		slog.Warn("ws "+op+" rejected", "conn", c.ID(), "err", err)
		return
	}
	slog.Info("ws "+op+" rejected", "conn", c.ID(), "err", err)
}

func (s *Server) handleDraw(c Conn, payload interface{}) {
	var move domain.Move
	if err := decode(payload, &move); err != nil {
		s.sendError(c, domain.Reason(domain.ErrInvalidMove))
		return
	}
	if err := move.Validate(); err != nil {
		slog.Warn("ws draw rejected", "conn", c.ID(), "err", err)
		s.sendError(c, domain.Reason(err))
		return
	}

	stamped, code, ok := s.rooms.Draw(c.ID(), move)
	if !ok {
		return
	}

	_ = c.Send(Message{Type: TypeYourMove, Payload: stamped})
	s.hub.BroadcastExcept(code, c.ID(), Message{Type: TypeUserDraw, Payload: UserDrawPayload{
		Move:   stamped,
		UserID: c.ID(),
	}})
}

func (s *Server) handleUndo(c Conn) {
	code, popped := s.rooms.Undo(c.ID())
	if !popped {
		return
	}
	s.hub.BroadcastExcept(code, c.ID(), Message{Type: TypeUserUndo, Payload: UserPayload{UserID: c.ID()}})
}

func (s *Server) handleMouseMove(c Conn, payload interface{}) {
	var p MouseMovePayload
	if decode(payload, &p) != nil {
		return
	}
	code, ok := s.rooms.RoomOf(c.ID())
	if !ok {
		return
	}
	s.hub.BroadcastExcept(code, c.ID(), Message{Type: TypeMouseMoved, Payload: MouseMovedPayload{
		X:      p.X,
		Y:      p.Y,
		UserID: c.ID(),
	}})
}

func (s *Server) handleClearCanvas(c Conn) {
	code, member, ok := s.rooms.Clear(c.ID())
	if !ok {
		return
	}
	slog.Info("canvas cleared", "room", code, "conn", c.ID())
	s.hub.Broadcast(code, Message{Type: TypeCanvasCleared, Payload: CanvasClearedPayload{
		Username: member.Name,
		UserID:   member.ID,
	}})
}

func (s *Server) handleSendMsg(c Conn, payload interface{}) {
	var p SendMsgPayload
	if err := decode(payload, &p); err != nil {
		s.sendError(c, domain.Reason(domain.ErrInvalidMessage))
		return
	}
	text, err := s.chat.Prepare(p.Text)
	if err != nil {
		s.sendError(c, domain.Reason(err))
		return
	}
	code, ok := s.rooms.RoomOf(c.ID())
	if !ok {
		return
	}
	s.hub.Broadcast(code, Message{Type: TypeNewMsg, Payload: NewMsgPayload{UserID: c.ID(), Text: text}})
}
