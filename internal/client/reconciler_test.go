package client

import (
	"testing"

	"github.com/cwrk-planet/board-service/internal/domain"
)

func mv(id string, ts int64) domain.Move {
	return domain.Move{
		ID:        id,
		Timestamp: ts,
		Shape:     domain.ShapePath,
		Path:      []domain.Point{{0, 0}, {1, 1}},
		Style:     domain.Style{LineWidth: 1, Mode: domain.ModeDraw},
	}
}

func ids(moves []domain.Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.ID
	}
	return out
}

func sameIDs(t *testing.T, got []domain.Move, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got %v, want %v", g, want)
		}
	}
}

func TestReconciler_SameTimestampKeepsEmissionOrder(t *testing.T) {
	r := NewReconciler()
	r.AddUser("u")
	r.AddUser("v")

	// три части одного штриха u с одним timestamp, вперемешку с ходами v
	r.AddRemote("u", mv("m1", 100))
	r.AddRemote("v", mv("x1", 100))
	r.AddRemote("u", mv("m2", 100))
	r.AddRemote("v", mv("x2", 101))
	r.AddRemote("u", mv("m3", 100))

	sameIDs(t, r.Ledger("u"), "m1", "m2", "m3")

	// внутри равных timestamp порядок задают журналы: сначала весь u, затем v
	sameIDs(t, r.Moves(), "m1", "m2", "m3", "x1", "x2")
}

func TestReconciler_LateArrivalInsertedByArrivalOffset(t *testing.T) {
	r := NewReconciler()
	r.AddRemote("u", mv("a", 200))
	r.AddRemote("u", mv("b", 200))

	// новый timestamp сбрасывает счётчик прихода
	r.AddRemote("u", mv("c", 300))
	r.AddRemote("u", mv("d", 300))
	sameIDs(t, r.Ledger("u"), "a", "b", "c", "d")
}

func TestReconciler_OutOfOrderTimestampInsertedInPlace(t *testing.T) {
	r := NewReconciler()
	r.AddRemote("u", mv("a", 100))
	r.AddRemote("u", mv("c", 300))
	r.AddRemote("u", mv("b", 200))
	sameIDs(t, r.Ledger("u"), "a", "b", "c")
}

func TestReconciler_DuplicateDeliveryIsNoop(t *testing.T) {
	r := NewReconciler()
	if !r.AddRemote("u", mv("a", 100)) {
		t.Fatal("first delivery must be applied")
	}
	if r.AddRemote("u", mv("a", 100)) {
		t.Fatal("duplicate delivery must be ignored")
	}
	if !r.AddOwn(mv("o", 100)) || r.AddOwn(mv("o", 100)) {
		t.Fatal("own echo must be applied once")
	}
	sameIDs(t, r.Moves(), "o", "a")
}

func TestReconciler_GlobalOrderStrandedOwnRemote(t *testing.T) {
	r := NewReconciler()
	r.AddUser("u")
	r.AddRemote("u", mv("r", 50))
	r.AddOwn(mv("own", 50))
	r.AddRemote("u", mv("r2", 10))

	r.RemoveUser("u")
	r.AddUser("w")
	r.AddRemote("w", mv("w1", 50))

	// stranded(r2, r) + own + w, устойчиво по timestamp
	sameIDs(t, r.Moves(), "r2", "r", "own", "w1")
	if len(r.Users()) != 1 || r.Users()[0] != "w" {
		t.Fatalf("users = %v", r.Users())
	}
}

func TestReconciler_UndoRemotePopsLast(t *testing.T) {
	r := NewReconciler()
	r.AddRemote("u", mv("a", 1))
	r.AddRemote("u", mv("b", 2))

	last, ok := r.UndoRemote("u")
	if !ok || last.ID != "b" {
		t.Fatalf("popped %v, %v", last.ID, ok)
	}
	r.UndoRemote("u")
	if _, ok := r.UndoRemote("u"); ok {
		t.Fatal("undo on empty ledger must be a no-op")
	}
	if _, ok := r.UndoRemote("ghost"); ok {
		t.Fatal("undo for unknown user must be a no-op")
	}

	// снятый ход может прийти снова как новый ход с тем же содержимым
	if !r.AddRemote("u", mv("b", 3)) {
		t.Fatal("an undone id is no longer held")
	}
}

func TestReconciler_SeedFromSnapshot(t *testing.T) {
	r := NewReconciler()
	r.AddRemote("stale", mv("old", 1))

	members := domain.Members{{ID: "me", Name: "Me"}, {ID: "u", Name: "U"}}
	ledgers := domain.Ledgers{
		{UserID: "me", Moves: []domain.Move{mv("m1", 10)}},
		{UserID: "u", Moves: []domain.Move{mv("u1", 20), mv("u2", 20)}},
	}
	r.Seed("me", []domain.Move{mv("s1", 5)}, ledgers, members)

	sameIDs(t, r.Moves(), "s1", "m1", "u1", "u2")
	sameIDs(t, r.Own(), "m1")

	// счётчик прихода продолжает блок из снапшота
	r.AddRemote("u", mv("u3", 20))
	sameIDs(t, r.Ledger("u"), "u1", "u2", "u3")

	if r.AddRemote("u", mv("u1", 20)) {
		t.Fatal("moves from the snapshot count as held")
	}
}

func TestReconciler_ClearKeepsUsers(t *testing.T) {
	r := NewReconciler()
	r.AddUser("u")
	r.AddRemote("u", mv("a", 1))
	r.AddOwn(mv("b", 2))
	r.RemoveUser("u")
	r.AddUser("v")

	r.Clear()
	if len(r.Moves()) != 0 {
		t.Fatalf("moves left after clear: %v", ids(r.Moves()))
	}
	if len(r.Users()) != 1 {
		t.Fatal("clear must keep membership")
	}
	if !r.AddRemote("v", mv("a", 5)) {
		t.Fatal("ids are forgotten after clear")
	}
}
