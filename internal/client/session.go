package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/board-service/internal/domain"
	"github.com/cwrk-planet/board-service/internal/transport/ws"
)

// Event: входящее событие сервера с ещё не разобранным payload.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Change: что именно изменилось после события; UI перерисовывает только это.
type Change uint8

const (
	ChangeCanvas Change = 1 << iota
	ChangeMembers
	ChangeChat
	ChangeRoom
	ChangeCursors
	ChangeNotice
)

func (c Change) Has(f Change) bool { return c&f != 0 }

// Palette: цвета участников, выдаются по порядку входа.
var Palette = []string{
	"#FF5630", "#FFAB00", "#36B37E", "#00B8D9", "#6554C0",
	"#FF7452", "#57D9A3", "#4C9AFF", "#F78DA7", "#8777D9",
}

type Member struct {
	ID    string
	Name  string
	Color string
}

type ChatLine struct {
	UserID string
	Name   string
	Text   string
	At     time.Time
}

// Session: состояние клиента в одной комнате. Handle вызывается из одной
// горутины, читать состояние можно из любой.
type Session struct {
	mu sync.RWMutex

	out     Emitter
	now     func() time.Time
	selfID  string
	name    string
	room    string
	members []Member
	colorN  int
	cursors map[string]domain.Point
	chat    []ChatLine
	notices []string

	joinErr    string
	roomExists *bool

	moves   *Reconciler
	history *History
}

func NewSession(out Emitter) *Session {
	moves := NewReconciler()
	return &Session{
		out:     out,
		now:     time.Now,
		cursors: make(map[string]domain.Point),
		moves:   moves,
		history: NewHistory(moves, out),
	}
}

// --- исходящие действия ---

func (s *Session) CreateRoom(name string) error {
	s.mu.Lock()
	s.leaveLocked()
	s.name = name
	s.mu.Unlock()
	return s.out.Emit(ws.TypeCreateRoom, ws.CreateRoomPayload{Username: name})
}

func (s *Session) CheckRoom(code string) error {
	s.mu.Lock()
	s.roomExists = nil
	s.mu.Unlock()
	return s.out.Emit(ws.TypeCheckRoom, ws.CheckRoomPayload{RoomID: code})
}

func (s *Session) JoinRoom(code, name string) error {
	s.mu.Lock()
	s.leaveLocked()
	s.name = name
	s.joinErr = ""
	s.mu.Unlock()
	return s.out.Emit(ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: code, Username: name})
}

// Leave сразу сбрасывает состояние: события старой комнаты после этого игнорируются.
func (s *Session) Leave() error {
	s.mu.Lock()
	if s.room == "" {
		s.mu.Unlock()
		return nil
	}
	s.leaveLocked()
	s.mu.Unlock()
	return s.out.Emit(ws.TypeLeaveRoom, nil)
}

func (s *Session) leaveLocked() {
	s.room = ""
	s.members = nil
	s.colorN = 0
	s.cursors = make(map[string]domain.Point)
	s.chat = nil
	s.moves.Reset()
	s.history.Reset()
}

func (s *Session) Draw(move domain.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == "" {
		return domain.ErrNotInRoom
	}
	return s.history.Draw(move)
}

func (s *Session) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == "" {
		return false, nil
	}
	return s.history.Undo()
}

func (s *Session) Redo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == "" {
		return false, nil
	}
	return s.history.Redo()
}

func (s *Session) ClearCanvas() error {
	s.mu.RLock()
	in := s.room != ""
	s.mu.RUnlock()
	if !in {
		return domain.ErrNotInRoom
	}
	return s.out.Emit(ws.TypeClearCanvas, nil)
}

func (s *Session) SendMessage(text string) error {
	s.mu.RLock()
	in := s.room != ""
	s.mu.RUnlock()
	if !in {
		return domain.ErrNotInRoom
	}
	return s.out.Emit(ws.TypeSendMsg, ws.SendMsgPayload{Text: text})
}

func (s *Session) MoveMouse(x, y float64) error {
	s.mu.RLock()
	in := s.room != ""
	s.mu.RUnlock()
	if !in {
		return nil
	}
	return s.out.Emit(ws.TypeMouseMove, ws.MouseMovePayload{X: x, Y: y})
}

// --- входящие события ---

// Handle применяет событие сервера. События комнаты вне комнаты отбрасываются.
func (s *Session) Handle(ev Event) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case ws.TypeConnected:
		var p ws.ConnectedPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		s.selfID = p.UserID
		return 0, nil

	case ws.TypeCreated:
		var p ws.CreatedPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		return s.enterLocked(p.RoomID)

	case ws.TypeJoined:
		var p ws.JoinedPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		if p.Failed {
			s.joinErr = p.Reason
			if s.joinErr == "" {
				s.joinErr = "Failed to join room"
			}
			s.notices = append(s.notices, s.joinErr)
			return ChangeRoom | ChangeNotice, nil
		}
		return s.enterLocked(p.RoomID)

	case ws.TypeRoomExists:
		var p ws.RoomExistsPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		s.roomExists = &p.Exists
		return ChangeRoom, nil

	case ws.TypeError:
		var p ws.ErrorPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		s.notices = append(s.notices, p.Message)
		return ChangeNotice, nil
	}

	if s.room == "" {
		slog.Debug("client dropped event outside room", "type", ev.Type)
		return 0, nil
	}

	switch ev.Type {
	case ws.TypeRoom:
		var p ws.RoomPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		s.seedLocked(p)
		return ChangeCanvas | ChangeMembers, nil

	case ws.TypeNewUser:
		var p ws.NewUserPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		if s.memberIndex(p.UserID) < 0 {
			s.members = append(s.members, Member{ID: p.UserID, Name: p.Username, Color: s.nextColor()})
		}
		s.moves.AddUser(p.UserID)
		s.notices = append(s.notices, fmt.Sprintf("%s has joined the room.", p.Username))
		return ChangeMembers | ChangeNotice, nil

	case ws.TypeUserDisconnected:
		var p ws.UserPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		name := "Anonymous"
		if i := s.memberIndex(p.UserID); i >= 0 {
			name = s.members[i].Name
			s.members = append(s.members[:i:i], s.members[i+1:]...)
		}
		delete(s.cursors, p.UserID)
		s.moves.RemoveUser(p.UserID)
		s.notices = append(s.notices, fmt.Sprintf("%s has left the room.", name))
		return ChangeMembers | ChangeCursors | ChangeNotice, nil

	case ws.TypeYourMove:
		var m domain.Move
		if err := unmarshal(ev, &m); err != nil {
			return 0, err
		}
		if !s.moves.AddOwn(m) {
			return 0, nil
		}
		return ChangeCanvas, nil

	case ws.TypeUserDraw:
		var p ws.UserDrawPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		if !s.moves.AddRemote(p.UserID, p.Move) {
			return 0, nil
		}
		return ChangeCanvas, nil

	case ws.TypeUserUndo:
		var p ws.UserPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		if _, ok := s.moves.UndoRemote(p.UserID); !ok {
			return 0, nil
		}
		return ChangeCanvas, nil

	case ws.TypeMouseMoved:
		var p ws.MouseMovedPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		s.cursors[p.UserID] = domain.Point{p.X, p.Y}
		return ChangeCursors, nil

	case ws.TypeCanvasCleared:
		var p ws.CanvasClearedPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		s.moves.Clear()
		s.history.Reset()
		if p.UserID == s.selfID {
			return ChangeCanvas, nil
		}
		s.notices = append(s.notices, fmt.Sprintf("Canvas cleared by %s", p.Username))
		return ChangeCanvas | ChangeNotice, nil

	case ws.TypeNewMsg:
		var p ws.NewMsgPayload
		if err := unmarshal(ev, &p); err != nil {
			return 0, err
		}
		line := ChatLine{UserID: p.UserID, Text: p.Text, At: s.now()}
		switch {
		case p.UserID == s.selfID:
			line.Name = "You"
		case s.memberIndex(p.UserID) >= 0:
			line.Name = s.members[s.memberIndex(p.UserID)].Name
		}
		s.chat = append(s.chat, line)
		return ChangeChat, nil
	}

	slog.Debug("client unknown event", "type", ev.Type)
	return 0, nil
}

// enterLocked переводит сессию в новую комнату и запрашивает снапшот.
func (s *Session) enterLocked(code string) (Change, error) {
	s.leaveLocked()
	s.room = code
	s.joinErr = ""
	s.members = []Member{{ID: s.selfID, Name: s.name, Color: Palette[0]}}
	if err := s.out.Emit(ws.TypeJoinedRoom, nil); err != nil {
		return ChangeRoom, fmt.Errorf("request snapshot: %w", err)
	}
	return ChangeRoom | ChangeMembers | ChangeCanvas, nil
}

func (s *Session) seedLocked(p ws.RoomPayload) {
	s.moves.Seed(s.selfID, p.Room.Drawed, p.UsersMoves, p.Users)
	s.history.Reset()

	s.members = s.members[:0]
	for i, u := range p.Users {
		name := u.Name
		if u.ID == s.selfID && s.name == "" {
			s.name = name
		}
		s.members = append(s.members, Member{ID: u.ID, Name: name, Color: Palette[i%len(Palette)]})
	}
	s.colorN = len(p.Users)
}

func (s *Session) nextColor() string {
	c := Palette[s.colorN%len(Palette)]
	s.colorN++
	return c
}

func (s *Session) memberIndex(id string) int {
	for i, m := range s.members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// --- чтение состояния ---

func (s *Session) SelfID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID
}

func (s *Session) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

func (s *Session) Members() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Member(nil), s.members...)
}

// Moves: ходы комнаты в порядке отрисовки.
func (s *Session) Moves() []domain.Move {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moves.Moves()
}

func (s *Session) OwnMoves() []domain.Move {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moves.Own()
}

func (s *Session) UserMoves(userID string) []domain.Move {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moves.Ledger(userID)
}

func (s *Session) Cursors() map[string]domain.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Point, len(s.cursors))
	for k, v := range s.cursors {
		out[k] = v
	}
	return out
}

func (s *Session) Chat() []ChatLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ChatLine(nil), s.chat...)
}

func (s *Session) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanRedo()
}

func (s *Session) JoinError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joinErr
}

// RoomExists: последний ответ на check_room; ok=false, пока ответа нет.
func (s *Session) RoomExists() (exists, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.roomExists == nil {
		return false, false
	}
	return *s.roomExists, true
}

// TakeNotices возвращает накопленные уведомления и очищает очередь.
func (s *Session) TakeNotices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

func unmarshal(ev Event, dst interface{}) error {
	if len(ev.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", ev.Type)
	}
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		return fmt.Errorf("%s: %w", ev.Type, err)
	}
	return nil
}
