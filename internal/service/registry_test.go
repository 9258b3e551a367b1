package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/board-service/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(t *testing.T, opts ...RegistryOption) (*RoomRegistry, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	seq := 0
	base := []RegistryOption{
		WithClock(clk.now),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("move-%d", seq)
		}),
	}
	return NewRoomRegistry(domain.DefaultLimits(), append(base, opts...)...), clk
}

func sampleMove() domain.Move {
	return domain.Move{
		Shape: domain.ShapePath,
		Path:  []domain.Point{{1, 1}, {2, 2}},
		Style: domain.Style{LineWidth: 3, Mode: domain.ModeDraw},
	}
}

var codeRe = regexp.MustCompile(`^[0-9A-Z]{4}$`)

func TestCreateRoom_CodeShapeAndExists(t *testing.T) {
	r, _ := newTestRegistry(t)

	code, _, err := r.CreateRoom("c1", "  Alice ")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if !codeRe.MatchString(code) {
		t.Fatalf("code %q is not 4 uppercase alphanumerics", code)
	}
	if !r.RoomExists(code) || !r.RoomExists(strings.ToLower(code)) {
		t.Fatal("room must exist right after creation, case-insensitively")
	}

	snap, err := r.Snapshot(code)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Members) != 1 || snap.Members[0].Name != "Alice" || len(snap.Ledgers.Of("c1")) != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestCreateRoom_Validation(t *testing.T) {
	r, _ := newTestRegistry(t)

	if _, _, err := r.CreateRoom("c1", "   "); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("blank name: %v", err)
	}
	if _, _, err := r.CreateRoom("c1", strings.Repeat("x", 51)); !errors.Is(err, domain.ErrNameTooLong) {
		t.Fatalf("long name: %v", err)
	}
	if len(r.Rooms()) != 0 {
		t.Fatal("failed create must not leave a room behind")
	}
}

func TestCreateRoom_FailsClosedAfterAttempts(t *testing.T) {
	calls := 0
	r, _ := newTestRegistry(t, WithCodeGenerator(func(int) (string, error) {
		calls++
		return "AAAA", nil
	}))

	if _, _, err := r.CreateRoom("c1", "first"); err != nil {
		t.Fatal(err)
	}
	calls = 0
	_, _, err := r.CreateRoom("c2", "second")
	if !errors.Is(err, domain.ErrCapacityExhausted) {
		t.Fatalf("err = %v", err)
	}
	if calls != domain.DefaultRoomCodeAttempts {
		t.Fatalf("draws = %d, want %d", calls, domain.DefaultRoomCodeAttempts)
	}
	if _, ok := r.RoomOf("c2"); ok {
		t.Fatal("c2 must not be mapped to a room")
	}
}

func TestJoinRoom_DuplicateNameCaseInsensitive(t *testing.T) {
	r, _ := newTestRegistry(t)
	code, _, _ := r.CreateRoom("c1", "Alice")

	_, _, err := r.JoinRoom("c2", code, "aLiCe")
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("err = %v", err)
	}
	if domain.Reason(err) != "Username already taken in this room" {
		t.Fatalf("reason = %q", domain.Reason(err))
	}
	snap, _ := r.Snapshot(code)
	if len(snap.Members) != 1 {
		t.Fatalf("membership changed: %+v", snap.Members)
	}
}

func TestJoinRoom_Rejections(t *testing.T) {
	r, _ := newTestRegistry(t)
	code, _, _ := r.CreateRoom("owner", "owner")

	if _, _, err := r.JoinRoom("x", "ZZZZ", "bob"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("missing room: %v", err)
	}
	for i := 1; i < domain.DefaultRoomCapacity; i++ {
		if _, _, err := r.JoinRoom(fmt.Sprintf("c%d", i), code, fmt.Sprintf("user%d", i)); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	if _, _, err := r.JoinRoom("late", code, "late"); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("full room: %v", err)
	}
}

func TestJoinRoom_NormalizesCode(t *testing.T) {
	r, _ := newTestRegistry(t, WithCodeGenerator(func(int) (string, error) { return "AB12", nil }))
	if _, _, err := r.CreateRoom("c1", "a"); err != nil {
		t.Fatal(err)
	}
	got, _, err := r.JoinRoom("c2", " ab12 ", "b")
	if err != nil || got != "AB12" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestLedger_DrawUndoCount(t *testing.T) {
	r, _ := newTestRegistry(t)
	code, _, _ := r.CreateRoom("c1", "alice")

	ops := "ddudduuuuddu"
	draws, pops := 0, 0
	for _, op := range ops {
		switch op {
		case 'd':
			if _, _, ok := r.Draw("c1", sampleMove()); !ok {
				t.Fatal("draw rejected")
			}
			draws++
		case 'u':
			if _, popped := r.Undo("c1"); popped {
				pops++
			}
		}
		l, _ := r.Ledger(code, "c1")
		if len(l) != draws-pops {
			t.Fatalf("after %q: len = %d, want %d", op, len(l), draws-pops)
		}
	}
}

func TestUndo_EmptyLedgerIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t)
	code, _, _ := r.CreateRoom("c1", "alice")

	for i := 0; i < 5; i++ {
		if _, popped := r.UndoLastMove(code, "c1"); popped {
			t.Fatal("pop on empty ledger")
		}
	}
	l, ok := r.Ledger(code, "c1")
	if !ok || len(l) != 0 {
		t.Fatalf("ledger = %v %v", l, ok)
	}
}

func TestDraw_StampsMonotonicTimestampsAndIDs(t *testing.T) {
	r, clk := newTestRegistry(t)
	code, _, _ := r.CreateRoom("c1", "alice")

	first, _, _ := r.Draw("c1", sampleMove())
	clk.advance(-time.Second) // часы сервера ушли назад
	second, _, _ := r.Draw("c1", sampleMove())
	clk.advance(2 * time.Second)
	third, _, _ := r.Draw("c1", sampleMove())

	if second.Timestamp < first.Timestamp || third.Timestamp < second.Timestamp {
		t.Fatalf("timestamps not monotonic: %d %d %d", first.Timestamp, second.Timestamp, third.Timestamp)
	}
	if first.ID == "" || first.ID == second.ID || second.ID == third.ID {
		t.Fatalf("ids not unique: %q %q %q", first.ID, second.ID, third.ID)
	}

	// повторно присланный id заменяется новым
	dup := sampleMove()
	dup.ID = third.ID
	fourth, _, _ := r.Draw("c1", dup)
	if fourth.ID == third.ID {
		t.Fatal("duplicate id accepted")
	}

	l, _ := r.Ledger(code, "c1")
	if len(l) != 4 {
		t.Fatalf("ledger len = %d", len(l))
	}
}

func TestDraw_ReplacesClientID(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.CreateRoom("c1", "alice")

	m := sampleMove()
	m.ID = "client-chosen"
	got, _, ok := r.Draw("c1", m)
	if !ok || got.ID == "client-chosen" || got.ID == "" {
		t.Fatalf("got %+v %v, want a server id", got, ok)
	}
}

func TestAppendMove_MissingRoomOrUserIsNoop(t *testing.T) {
	r, _ := newTestRegistry(t)
	code, _, _ := r.CreateRoom("c1", "alice")

	if r.AppendMove("NOPE", "c1", sampleMove()) {
		t.Fatal("append into missing room")
	}
	if r.AppendMove(code, "ghost", sampleMove()) {
		t.Fatal("append for missing user")
	}
	if _, _, ok := r.Draw("ghost", sampleMove()); ok {
		t.Fatal("draw without a room")
	}
}

func TestRedoScenario(t *testing.T) {
	r, _ := newTestRegistry(t)
	code, _, _ := r.CreateRoom("c1", "alice")

	var drawn []domain.Move
	for i := 0; i < 3; i++ {
		m, _, _ := r.Draw("c1", sampleMove())
		drawn = append(drawn, m)
	}
	r.Undo("c1")
	r.Undo("c1")
	if l, _ := r.Ledger(code, "c1"); len(l) != 1 {
		t.Fatalf("after undo x2: %d", len(l))
	}

	redo, _, _ := r.Draw("c1", drawn[1].Redraw())
	l, _ := r.Ledger(code, "c1")
	if len(l) != 2 {
		t.Fatalf("after redo: %d", len(l))
	}
	if l[1].ID == drawn[1].ID || redo.ID == drawn[1].ID {
		t.Fatal("redo must produce a new id")
	}
	if !l[1].SameContent(drawn[1]) {
		t.Fatal("redo must keep visual content")
	}
}

func TestLeave_StrandsMovesAndDeletesEmptyRoom(t *testing.T) {
	r, _ := newTestRegistry(t)
	code, _, _ := r.CreateRoom("c1", "alice")
	r.JoinRoom("c2", code, "bob")
	r.Draw("c2", sampleMove())
	r.Draw("c2", sampleMove())

	d, ok := r.Leave("c2")
	if !ok || d.RoomDeleted || d.Member.Name != "bob" || d.Remaining != 1 {
		t.Fatalf("departure = %+v %v", d, ok)
	}
	snap, _ := r.Snapshot(code)
	if len(snap.Stranded) != 2 || len(snap.Ledgers) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, ok := r.RoomOf("c2"); ok {
		t.Fatal("c2 still mapped")
	}

	d, ok = r.Leave("c1")
	if !ok || !d.RoomDeleted {
		t.Fatalf("last leave = %+v %v", d, ok)
	}
	if r.RoomExists(code) {
		t.Fatal("empty room survived")
	}
	if _, ok := r.Leave("c1"); ok {
		t.Fatal("second leave must be a no-op")
	}
}

func TestClearRoom_KeepsMembership(t *testing.T) {
	r, _ := newTestRegistry(t)
	code, _, _ := r.CreateRoom("c1", "alice")
	r.JoinRoom("c2", code, "bob")
	r.JoinRoom("c3", code, "carol")
	r.Draw("c1", sampleMove())
	r.Draw("c2", sampleMove())
	r.Draw("c2", sampleMove())
	r.Undo("c2") // bob посреди undo-стека
	r.Draw("c3", sampleMove())
	r.Leave("c3")

	_, who, ok := r.Clear("c2")
	if !ok || who.Name != "bob" {
		t.Fatalf("clear = %+v %v", who, ok)
	}
	snap, _ := r.Snapshot(code)
	if len(snap.Members) != 2 || len(snap.Stranded) != 0 || len(snap.Moves()) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
	for _, l := range snap.Ledgers {
		if len(l.Moves) != 0 {
			t.Fatalf("ledger %s not empty", l.UserID)
		}
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	r, _ := newTestRegistry(t)
	code, _, _ := r.CreateRoom("c1", "alice")
	r.Draw("c1", sampleMove())

	snap, _ := r.Snapshot(code)
	snap.Ledgers[0].Moves[0].Path[0] = domain.Point{99, 99}
	snap.Members[0].Name = "mallory"

	again, _ := r.Snapshot(code)
	if again.Ledgers[0].Moves[0].Path[0] != (domain.Point{1, 1}) || again.Members[0].Name != "alice" {
		t.Fatal("snapshot aliases registry state")
	}
}

func TestRooms_Summary(t *testing.T) {
	codes := []string{"BBBB", "AAAA"}
	r, _ := newTestRegistry(t, WithCodeGenerator(func(int) (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}))
	r.CreateRoom("c1", "a")
	r.CreateRoom("c2", "b")
	r.Draw("c1", sampleMove())

	got := r.Rooms()
	if len(got) != 2 || got[0].Code != "AAAA" || got[1].Moves != 1 || got[1].Members != 1 {
		t.Fatalf("rooms = %+v", got)
	}
}

func TestChatService_Prepare(t *testing.T) {
	s := NewChatService(domain.DefaultLimits())
	if got, err := s.Prepare("  hello "); err != nil || got != "hello" {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := s.Prepare(strings.Repeat("a", 501)); !errors.Is(err, domain.ErrMessageTooLong) {
		t.Fatalf("err = %v", err)
	}
	if s.Farewell("") != "Anonymous has disconnected" {
		t.Fatal("farewell fallback")
	}
}

func TestRandomRoomCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, err := RandomRoomCode(4)
		if err != nil {
			t.Fatal(err)
		}
		if !codeRe.MatchString(c) {
			t.Fatalf("bad code %q", c)
		}
	}
}

func TestJoinRoom_RejectionKeepsCurrentRoom(t *testing.T) {
	r, _ := newTestRegistry(t)
	home, _, _ := r.CreateRoom("c1", "alice")
	r.JoinRoom("c2", home, "bob")
	other, _, _ := r.CreateRoom("c3", "carol")

	tests := []struct {
		name     string
		code     string
		username string
		want     error
	}{
		{"invalid name", other, "   ", domain.ErrInvalidName},
		{"unknown room", "ZZZZZ", "bob", domain.ErrRoomNotFound},
		{"duplicate name", other, "CAROL", domain.ErrDuplicateName},
		{"same room", home, "bobby", domain.ErrAlreadyJoined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, left, err := r.JoinRoom("c2", tt.code, tt.username)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if left != nil {
				t.Fatalf("departure on rejection: %+v", left)
			}
			if code, ok := r.RoomOf("c2"); !ok || code != home {
				t.Fatalf("room = %q %v, want %s", code, ok, home)
			}
		})
	}
}

func TestJoinRoom_MovesConnection(t *testing.T) {
	r, _ := newTestRegistry(t)
	home, _, _ := r.CreateRoom("c1", "alice")
	other, _, _ := r.CreateRoom("c2", "bob")
	r.Draw("c1", sampleMove())

	got, left, err := r.JoinRoom("c1", other, "alice")
	if err != nil || got != other {
		t.Fatalf("switch = %q %v", got, err)
	}
	if left == nil || left.RoomCode != home || !left.RoomDeleted {
		t.Fatalf("departure = %+v", left)
	}
	if r.RoomExists(home) {
		t.Fatal("emptied room must be deleted")
	}
	snap, _ := r.Snapshot(other)
	if len(snap.Members) != 2 || len(snap.Ledgers.Of("c1")) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestCreateRoom_LeavesCurrentRoom(t *testing.T) {
	r, _ := newTestRegistry(t)
	home, _, _ := r.CreateRoom("c1", "alice")
	r.JoinRoom("c2", home, "bob")

	if _, left, err := r.CreateRoom("c2", ""); !errors.Is(err, domain.ErrInvalidName) || left != nil {
		t.Fatalf("invalid name: left=%+v err=%v", left, err)
	}
	if code, _ := r.RoomOf("c2"); code != home {
		t.Fatal("rejected create must keep the current room")
	}

	code, left, err := r.CreateRoom("c2", "bob")
	if err != nil || code == home {
		t.Fatalf("create = %q %v", code, err)
	}
	if left == nil || left.RoomCode != home || left.RoomDeleted || left.Member.Name != "bob" {
		t.Fatalf("departure = %+v", left)
	}
	if cur, _ := r.RoomOf("c2"); cur != code {
		t.Fatalf("room = %q, want %s", cur, code)
	}

	if _, left, err := r.CreateRoom("c9", "dave"); err != nil || left != nil {
		t.Fatalf("fresh connection: left=%+v err=%v", left, err)
	}
}
