package client

import (
	"sort"

	"github.com/cwrk-planet/board-service/internal/domain"
)

type arrival struct {
	ts    int64
	count int
}

// Reconciler хранит локальное зеркало журналов комнаты и сводит ходы,
// пришедшие по широковещательному каналу, в один порядок отрисовки.
// Живёт ровно одну сессию в комнате.
type Reconciler struct {
	own      []domain.Move
	stranded []domain.Move
	order    []string // удалённые участники в порядке входа
	ledgers  map[string][]domain.Move
	arrivals map[string]arrival
	ids      map[string]struct{}
}

func NewReconciler() *Reconciler {
	r := &Reconciler{}
	r.Reset()
	return r
}

// Reset забывает всё, включая счётчики прихода.
func (r *Reconciler) Reset() {
	r.own = nil
	r.stranded = nil
	r.order = nil
	r.ledgers = make(map[string][]domain.Move)
	r.arrivals = make(map[string]arrival)
	r.ids = make(map[string]struct{})
}

// Seed заменяет состояние снапшотом комнаты. Журнал selfID становится своими ходами.
func (r *Reconciler) Seed(selfID string, stranded []domain.Move, ledgers domain.Ledgers, members domain.Members) {
	r.Reset()
	r.stranded = r.track(stranded)
	for _, m := range members {
		if m.ID == selfID {
			continue
		}
		r.addUser(m.ID)
	}
	for _, l := range ledgers {
		if l.UserID == selfID {
			r.own = r.track(l.Moves)
			continue
		}
		r.addUser(l.UserID)
		r.ledgers[l.UserID] = r.track(l.Moves)
		if n := len(l.Moves); n > 0 {
			last := l.Moves[n-1].Timestamp
			r.arrivals[l.UserID] = arrival{ts: last, count: countAt(l.Moves, last)}
		}
	}
}

func (r *Reconciler) track(moves []domain.Move) []domain.Move {
	out := make([]domain.Move, 0, len(moves))
	for _, m := range moves {
		if _, dup := r.ids[m.ID]; dup && m.ID != "" {
			continue
		}
		if m.ID != "" {
			r.ids[m.ID] = struct{}{}
		}
		out = append(out, m.Clone())
	}
	return out
}

// AddUser регистрирует нового участника с пустым журналом.
func (r *Reconciler) AddUser(userID string) {
	r.addUser(userID)
}

func (r *Reconciler) addUser(userID string) {
	if _, ok := r.ledgers[userID]; ok {
		return
	}
	r.ledgers[userID] = []domain.Move{}
	r.order = append(r.order, userID)
}

// RemoveUser переносит журнал ушедшего в stranded.
func (r *Reconciler) RemoveUser(userID string) {
	moves, ok := r.ledgers[userID]
	if !ok {
		return
	}
	r.stranded = append(r.stranded, moves...)
	delete(r.ledgers, userID)
	delete(r.arrivals, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// AddRemote вставляет ход участника userID. Повторная доставка хода с известным id
// ничего не меняет и возвращает false.
//
// Внутри блока ходов с одинаковым timestamp позиция определяется порядком прихода:
// k-й пришедший ход встаёт после min(k-1, already) уже лежащих ходов блока.
func (r *Reconciler) AddRemote(userID string, move domain.Move) bool {
	if _, dup := r.ids[move.ID]; dup {
		return false
	}

	a := r.arrivals[userID]
	if a.ts != move.Timestamp {
		a = arrival{ts: move.Timestamp}
	}
	a.count++
	r.arrivals[userID] = a

	r.addUser(userID)
	ledger := r.ledgers[userID]

	var block []int
	for i, m := range ledger {
		if m.Timestamp == move.Timestamp {
			block = append(block, i)
		}
	}

	var pos int
	switch already := len(block); {
	case already == 0:
		// первый ход с таким временем: после всех более ранних
		pos = sort.Search(len(ledger), func(i int) bool { return ledger[i].Timestamp > move.Timestamp })
	case a.count-1 >= already:
		pos = block[already-1] + 1
	default:
		pos = block[a.count-1]
	}

	ledger = append(ledger, domain.Move{})
	copy(ledger[pos+1:], ledger[pos:])
	ledger[pos] = move.Clone()
	r.ledgers[userID] = ledger
	if move.ID != "" {
		r.ids[move.ID] = struct{}{}
	}
	return true
}

// UndoRemote снимает последний ход участника, как это делает сервер.
func (r *Reconciler) UndoRemote(userID string) (domain.Move, bool) {
	ledger := r.ledgers[userID]
	if len(ledger) == 0 {
		return domain.Move{}, false
	}
	last := ledger[len(ledger)-1]
	r.ledgers[userID] = ledger[:len(ledger)-1]
	delete(r.ids, last.ID)
	return last, true
}

// AddOwn принимает эхо собственного хода от сервера.
func (r *Reconciler) AddOwn(move domain.Move) bool {
	if _, dup := r.ids[move.ID]; dup {
		return false
	}
	r.own = append(r.own, move.Clone())
	if move.ID != "" {
		r.ids[move.ID] = struct{}{}
	}
	return true
}

// PopOwn снимает последний собственный ход.
func (r *Reconciler) PopOwn() (domain.Move, bool) {
	if len(r.own) == 0 {
		return domain.Move{}, false
	}
	last := r.own[len(r.own)-1]
	r.own = r.own[:len(r.own)-1]
	delete(r.ids, last.ID)
	return last, true
}

// Clear опустошает все журналы; состав участников сохраняется.
func (r *Reconciler) Clear() {
	r.own = nil
	r.stranded = nil
	for id := range r.ledgers {
		r.ledgers[id] = []domain.Move{}
	}
	r.arrivals = make(map[string]arrival)
	r.ids = make(map[string]struct{})
}

// Moves возвращает порядок отрисовки: stranded, свои, чужие по порядку входа,
// затем устойчивая сортировка по timestamp. Равные timestamp не переставляются.
func (r *Reconciler) Moves() []domain.Move {
	n := len(r.stranded) + len(r.own)
	for _, l := range r.ledgers {
		n += len(l)
	}
	out := make([]domain.Move, 0, n)
	out = append(out, r.stranded...)
	out = append(out, r.own...)
	for _, id := range r.order {
		out = append(out, r.ledgers[id]...)
	}
	domain.SortByTimestamp(out)
	return out
}

func (r *Reconciler) Own() []domain.Move {
	return append([]domain.Move(nil), r.own...)
}

func (r *Reconciler) Ledger(userID string) []domain.Move {
	return append([]domain.Move(nil), r.ledgers[userID]...)
}

func (r *Reconciler) Users() []string {
	return append([]string(nil), r.order...)
}

func countAt(moves []domain.Move, ts int64) int {
	n := 0
	for _, m := range moves {
		if m.Timestamp == ts {
			n++
		}
	}
	return n
}
