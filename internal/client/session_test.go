package client

import (
	"encoding/json"
	"testing"

	"github.com/cwrk-planet/board-service/internal/domain"
	"github.com/cwrk-planet/board-service/internal/transport/ws"
)

type emitted struct {
	typ     string
	payload interface{}
}

type fakeEmitter struct {
	out []emitted
}

func (f *fakeEmitter) Emit(typ string, payload interface{}) error {
	f.out = append(f.out, emitted{typ: typ, payload: payload})
	return nil
}

func (f *fakeEmitter) last() emitted {
	if len(f.out) == 0 {
		return emitted{}
	}
	return f.out[len(f.out)-1]
}

func event(t *testing.T, typ string, payload interface{}) Event {
	t.Helper()
	ev := Event{Type: typ}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		ev.Payload = b
	}
	return ev
}

func handle(t *testing.T, s *Session, typ string, payload interface{}) Change {
	t.Helper()
	ch, err := s.Handle(event(t, typ, payload))
	if err != nil {
		t.Fatalf("handle %s: %v", typ, err)
	}
	return ch
}

// newJoinedSession: сессия "me" внутри комнаты ROOM вместе с участником "u".
func newJoinedSession(t *testing.T) (*Session, *fakeEmitter) {
	t.Helper()
	em := &fakeEmitter{}
	s := NewSession(em)

	handle(t, s, ws.TypeConnected, ws.ConnectedPayload{UserID: "me"})
	if err := s.JoinRoom("room", "Me"); err != nil {
		t.Fatal(err)
	}
	handle(t, s, ws.TypeJoined, ws.JoinedPayload{RoomID: "ROOM"})
	if em.last().typ != ws.TypeJoinedRoom {
		t.Fatalf("joined must request a snapshot, last emitted %q", em.last().typ)
	}
	handle(t, s, ws.TypeRoom, ws.RoomPayload{
		Room:       ws.RoomState{ID: "ROOM", Drawed: []domain.Move{mv("s1", 1)}},
		UsersMoves: domain.Ledgers{{UserID: "u", Moves: []domain.Move{mv("u1", 2)}}, {UserID: "me"}},
		Users:      domain.Members{{ID: "u", Name: "Una"}, {ID: "me", Name: "Me"}},
	})
	return s, em
}

func TestSession_JoinAndSnapshot(t *testing.T) {
	s, _ := newJoinedSession(t)

	if s.Room() != "ROOM" {
		t.Fatalf("room = %q", s.Room())
	}
	sameIDs(t, s.Moves(), "s1", "u1")

	ms := s.Members()
	if len(ms) != 2 || ms[0].Color != Palette[0] || ms[1].Color != Palette[1] {
		t.Fatalf("members colored by join index: %+v", ms)
	}
}

func TestSession_JoinFailureKeepsReason(t *testing.T) {
	em := &fakeEmitter{}
	s := NewSession(em)
	_ = s.JoinRoom("ABCD", "Me")

	ch := handle(t, s, ws.TypeJoined, ws.JoinedPayload{Failed: true, Reason: "Username already taken in this room"})
	if !ch.Has(ChangeNotice) || s.JoinError() != "Username already taken in this room" || s.Room() != "" {
		t.Fatalf("unexpected state: change=%b err=%q room=%q", ch, s.JoinError(), s.Room())
	}
	if n := s.TakeNotices(); len(n) != 1 {
		t.Fatalf("notices = %v", n)
	}
	if n := s.TakeNotices(); len(n) != 0 {
		t.Fatal("notices must be drained")
	}
}

func TestSession_RemoteEvents(t *testing.T) {
	s, _ := newJoinedSession(t)

	handle(t, s, ws.TypeNewUser, ws.NewUserPayload{UserID: "v", Username: "Vic"})
	if ms := s.Members(); len(ms) != 3 || ms[2].Color != Palette[2] {
		t.Fatalf("late joiner gets the next colour: %+v", ms)
	}

	handle(t, s, ws.TypeUserDraw, ws.UserDrawPayload{Move: mv("v1", 3), UserID: "v"})
	if ch := handle(t, s, ws.TypeUserDraw, ws.UserDrawPayload{Move: mv("v1", 3), UserID: "v"}); ch != 0 {
		t.Fatal("duplicate user_draw must change nothing")
	}
	sameIDs(t, s.Moves(), "s1", "u1", "v1")

	handle(t, s, ws.TypeMouseMoved, ws.MouseMovedPayload{X: 5, Y: 6, UserID: "v"})
	if p := s.Cursors()["v"]; p.X() != 5 || p.Y() != 6 {
		t.Fatalf("cursor = %v", p)
	}

	handle(t, s, ws.TypeUserUndo, ws.UserPayload{UserID: "u"})
	sameIDs(t, s.Moves(), "s1", "v1")

	handle(t, s, ws.TypeUserDisconnected, ws.UserPayload{UserID: "v"})
	if len(s.Members()) != 2 || len(s.Cursors()) != 0 {
		t.Fatal("departed user must vanish from members and cursors")
	}
	sameIDs(t, s.Moves(), "s1", "v1")
	if len(s.UserMoves("v")) != 0 {
		t.Fatal("departed user's moves are stranded")
	}

	handle(t, s, ws.TypeNewMsg, ws.NewMsgPayload{UserID: "u", Text: "hi"})
	handle(t, s, ws.TypeNewMsg, ws.NewMsgPayload{UserID: "me", Text: "yo"})
	chat := s.Chat()
	if len(chat) != 2 || chat[0].Name != "Una" || chat[1].Name != "You" {
		t.Fatalf("chat = %+v", chat)
	}
}

// Сценарий: три штриха, два undo, один redo.
func TestSession_UndoRedo(t *testing.T) {
	s, em := newJoinedSession(t)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.Draw(mv("", 0)); err != nil {
			t.Fatal(err)
		}
		handle(t, s, ws.TypeYourMove, mv(id, int64(10+i)))
	}

	for i := 0; i < 2; i++ {
		ok, err := s.Undo()
		if !ok || err != nil {
			t.Fatalf("undo %d: %v %v", i, ok, err)
		}
		if em.last().typ != ws.TypeUndo {
			t.Fatalf("undo must be mirrored to the server, got %q", em.last().typ)
		}
	}
	sameIDs(t, s.OwnMoves(), "a")

	ok, err := s.Redo()
	if !ok || err != nil {
		t.Fatalf("redo: %v %v", ok, err)
	}
	resent := em.last()
	if resent.typ != ws.TypeDraw {
		t.Fatalf("redo must go through draw, got %q", resent.typ)
	}
	if m := resent.payload.(domain.Move); m.ID != "" || m.Timestamp != 0 {
		t.Fatalf("redo must not reuse identity: %+v", m)
	}
	handle(t, s, ws.TypeYourMove, mv("b2", 20))
	sameIDs(t, s.OwnMoves(), "a", "b2")

	if !s.CanRedo() {
		t.Fatal("one more move is redoable")
	}
	_ = s.Draw(mv("", 0))
	if s.CanRedo() {
		t.Fatal("a fresh draw must clear the redo stack")
	}
}

func TestSession_UndoOnEmptyIsSilent(t *testing.T) {
	s, em := newJoinedSession(t)
	before := len(em.out)

	ok, err := s.Undo()
	if ok || err != nil {
		t.Fatalf("undo on empty: %v %v", ok, err)
	}
	if ok, _ := s.Redo(); ok {
		t.Fatal("redo on empty must be a no-op")
	}
	if len(em.out) != before {
		t.Fatal("nothing must be sent")
	}
}

func TestSession_CanvasClearedResets(t *testing.T) {
	s, _ := newJoinedSession(t)
	_ = s.Draw(mv("", 0))
	handle(t, s, ws.TypeYourMove, mv("a", 5))
	_, _ = s.Undo()

	ch := handle(t, s, ws.TypeCanvasCleared, ws.CanvasClearedPayload{Username: "Una", UserID: "u"})
	if !ch.Has(ChangeNotice) {
		t.Fatal("clear by someone else is announced")
	}
	if len(s.Moves()) != 0 || s.CanRedo() || s.CanUndo() {
		t.Fatal("clear must drop every ledger and the redo stack")
	}
	if len(s.Members()) != 2 {
		t.Fatal("clear keeps membership")
	}

	ch = handle(t, s, ws.TypeCanvasCleared, ws.CanvasClearedPayload{Username: "Me", UserID: "me"})
	if ch.Has(ChangeNotice) {
		t.Fatal("own clear is not announced")
	}
}

func TestSession_LeaveDropsRoomEvents(t *testing.T) {
	s, em := newJoinedSession(t)

	if err := s.Leave(); err != nil {
		t.Fatal(err)
	}
	if em.last().typ != ws.TypeLeaveRoom {
		t.Fatalf("leave must be sent, got %q", em.last().typ)
	}

	if ch := handle(t, s, ws.TypeUserDraw, ws.UserDrawPayload{Move: mv("late", 9), UserID: "u"}); ch != 0 {
		t.Fatal("events after leaving must be ignored")
	}
	if len(s.Moves()) != 0 || len(s.Members()) != 0 {
		t.Fatal("leaving resets the room state")
	}
	if err := s.Draw(mv("", 0)); err == nil {
		t.Fatal("draw outside a room must fail")
	}
}

func TestSession_CheckRoom(t *testing.T) {
	s := NewSession(&fakeEmitter{})
	_ = s.CheckRoom("abcd")
	if _, ok := s.RoomExists(); ok {
		t.Fatal("no answer yet")
	}
	handle(t, s, ws.TypeRoomExists, ws.RoomExistsPayload{Exists: true})
	if exists, ok := s.RoomExists(); !ok || !exists {
		t.Fatal("expected exists=true")
	}
}
