package service

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/board-service/internal/domain"
)

type room struct {
	code     string
	members  domain.Members           // порядок входа
	ledgers  map[string][]domain.Move // userID -> стек ходов
	stranded []domain.Move            // ходы ушедших участников
	lastTS   int64
}

func (r *room) memberIndex(userID string) int {
	for i, m := range r.members {
		if m.ID == userID {
			return i
		}
	}
	return -1
}

func (r *room) moveCount() int {
	n := len(r.stranded)
	for _, l := range r.ledgers {
		n += len(l)
	}
	return n
}

// RoomRegistry: единственный владелец состояния комнат. Любой публичный метод
// выполняется целиком под одной блокировкой, поэтому изменения атомарны на событие.
// Рядом с членством хранится таблица conn -> room.
type RoomRegistry struct {
	mu     sync.Mutex
	rooms  map[string]*room
	conns  map[string]string
	limits domain.Limits

	now     func() time.Time
	newCode func(n int) (string, error)
	newID   func() string
}

type RegistryOption func(*RoomRegistry)

func WithClock(now func() time.Time) RegistryOption {
	return func(r *RoomRegistry) { r.now = now }
}

func WithCodeGenerator(gen func(n int) (string, error)) RegistryOption {
	return func(r *RoomRegistry) { r.newCode = gen }
}

func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *RoomRegistry) { r.newID = gen }
}

func NewRoomRegistry(limits domain.Limits, opts ...RegistryOption) *RoomRegistry {
	r := &RoomRegistry{
		rooms:   make(map[string]*room),
		conns:   make(map[string]string),
		limits:  limits,
		now:     time.Now,
		newCode: RandomRoomCode,
		newID:   NewMoveID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RoomRegistry) Limits() domain.Limits { return r.limits }

// CreateRoom создаёт комнату с уникальным кодом; создатель становится единственным участником.
// Если соединение уже в комнате, оно покидает её, но только когда новая гарантированно создаётся.
// Departure описывает этот уход; nil, если соединение не было в комнате.
func (r *RoomRegistry) CreateRoom(connID, displayName string) (string, *Departure, error) {
	name, err := r.limits.NormalizeName(displayName)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.freeCodeLocked()
	if err != nil {
		return "", nil, err
	}
	left := r.leaveLocked(connID)
	r.createLocked(code, connID, name)
	return code, left, nil
}

func (r *RoomRegistry) freeCodeLocked() (string, error) {
	for attempt := 1; attempt <= r.limits.RoomCodeAttempts; attempt++ {
		c, err := r.newCode(r.limits.RoomCodeLength)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := r.rooms[c]; !taken {
			return c, nil
		}
	}
	return "", domain.ErrCapacityExhausted
}

func (r *RoomRegistry) createLocked(code, connID, name string) {
	r.rooms[code] = &room{
		code:    code,
		members: domain.Members{{ID: connID, Name: name}},
		ledgers: map[string][]domain.Move{connID: {}},
	}
	r.conns[connID] = code

	slog.Info("room created", "room", code, "conn", connID)
}

// RoomExists: чистый запрос, регистр кода не важен.
func (r *RoomRegistry) RoomExists(roomCode string) bool {
	code, err := r.limits.NormalizeRoomCode(roomCode)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[code]
	return ok
}

// JoinRoom добавляет участника с пустым стеком ходов и возвращает нормализованный код.
// Отказ не меняет состояния: прежняя комната соединения покидается только при успешном входе.
func (r *RoomRegistry) JoinRoom(connID, roomCode, displayName string) (string, *Departure, error) {
	code, name, err := r.normalizeJoin(roomCode, displayName)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, err := r.admitLocked(code, name)
	if err != nil {
		return "", nil, err
	}
	if cur, ok := r.conns[connID]; ok && cur == code {
		return "", nil, domain.ErrAlreadyJoined
	}
	left := r.leaveLocked(connID)
	r.addMemberLocked(rm, connID, name)
	return code, left, nil
}

func (r *RoomRegistry) normalizeJoin(roomCode, displayName string) (code, name string, err error) {
	if code, err = r.limits.NormalizeRoomCode(roomCode); err != nil {
		return "", "", err
	}
	if name, err = r.limits.NormalizeName(displayName); err != nil {
		return "", "", err
	}
	return code, name, nil
}

// admitLocked проверяет, что в комнату можно войти под именем name. Состояние не меняет.
func (r *RoomRegistry) admitLocked(code, name string) (*room, error) {
	rm, ok := r.rooms[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if len(rm.members) >= r.limits.RoomCapacity {
		return nil, domain.ErrRoomFull
	}
	for _, m := range rm.members {
		if domain.SameName(m.Name, name) {
			return nil, domain.ErrDuplicateName
		}
	}
	return rm, nil
}

func (r *RoomRegistry) addMemberLocked(rm *room, connID, name string) {
	rm.members = append(rm.members, domain.Member{ID: connID, Name: name})
	rm.ledgers[connID] = []domain.Move{}
	r.conns[connID] = rm.code

	slog.Info("room joined", "room", rm.code, "conn", connID, "members", len(rm.members))
}

// RoomOf возвращает текущую комнату соединения.
func (r *RoomRegistry) RoomOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.conns[connID]
	return code, ok
}

// AppendMove добавляет уже проштампованный ход в стек участника.
// Отсутствие комнаты или участника не считается ошибкой: считаем, что он уже ушёл.
func (r *RoomRegistry) AppendMove(roomCode, userID string, move domain.Move) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(roomCode, userID, move)
}

func (r *RoomRegistry) appendLocked(roomCode, userID string, move domain.Move) bool {
	rm, ok := r.rooms[roomCode]
	if !ok {
		return false
	}
	ledger, ok := rm.ledgers[userID]
	if !ok {
		return false
	}
	rm.ledgers[userID] = append(ledger, move.Clone())
	if move.Timestamp > rm.lastTS {
		rm.lastTS = move.Timestamp
	}
	return true
}

// Draw штампует ход временем сервера (неубывающим в пределах комнаты) и новым id,
// id клиента не сохраняется. Ход добавляется в стек отправителя.
func (r *RoomRegistry) Draw(connID string, move domain.Move) (domain.Move, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.conns[connID]
	if !ok {
		return domain.Move{}, "", false
	}
	rm, ok := r.rooms[code]
	if !ok {
		return domain.Move{}, "", false
	}

	stamped := move.Clone()
	ts := r.now().UnixMilli()
	if ts < rm.lastTS {
		ts = rm.lastTS
	}
	stamped.Timestamp = ts
	stamped.ID = r.newID()

	if !r.appendLocked(code, connID, stamped) {
		return domain.Move{}, "", false
	}
	return stamped, code, true
}

// UndoLastMove снимает последний ход участника. На пустом стеке ничего не делает.
func (r *RoomRegistry) UndoLastMove(roomCode, userID string) (domain.Move, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.undoLocked(roomCode, userID)
}

func (r *RoomRegistry) undoLocked(roomCode, userID string) (domain.Move, bool) {
	rm, ok := r.rooms[roomCode]
	if !ok {
		return domain.Move{}, false
	}
	ledger := rm.ledgers[userID]
	if len(ledger) == 0 {
		return domain.Move{}, false
	}
	last := ledger[len(ledger)-1]
	rm.ledgers[userID] = ledger[:len(ledger)-1]
	return last, true
}

// Undo: UndoLastMove для текущей комнаты соединения.
func (r *RoomRegistry) Undo(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	_, popped := r.undoLocked(code, connID)
	return code, popped
}

// Departure описывает результат выхода участника.
type Departure struct {
	RoomCode    string
	Member      domain.Member
	Remaining   int
	RoomDeleted bool
}

// RemoveUser переносит ходы участника в stranded, удаляет его и,
// если комната опустела, удаляет её.
func (r *RoomRegistry) RemoveUser(roomCode, userID string) (Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(roomCode, userID)
}

func (r *RoomRegistry) removeLocked(roomCode, userID string) (Departure, bool) {
	rm, ok := r.rooms[roomCode]
	if !ok {
		return Departure{}, false
	}
	idx := rm.memberIndex(userID)
	if idx < 0 {
		return Departure{}, false
	}

	member := rm.members[idx]
	rm.stranded = append(rm.stranded, rm.ledgers[userID]...)
	rm.members = append(rm.members[:idx:idx], rm.members[idx+1:]...)
	delete(rm.ledgers, userID)
	if r.conns[userID] == roomCode {
		delete(r.conns, userID)
	}

	d := Departure{RoomCode: roomCode, Member: member, Remaining: len(rm.members)}
	if len(rm.members) == 0 {
		delete(r.rooms, roomCode)
		d.RoomDeleted = true
		slog.Info("room deleted", "room", roomCode)
	}
	return d, true
}

// Leave: RemoveUser для текущей комнаты соединения.
func (r *RoomRegistry) Leave(connID string) (Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d := r.leaveLocked(connID); d != nil {
		return *d, true
	}
	return Departure{}, false
}

func (r *RoomRegistry) leaveLocked(connID string) *Departure {
	code, ok := r.conns[connID]
	if !ok {
		return nil
	}
	d, ok := r.removeLocked(code, connID)
	if !ok {
		// таблица соединений разошлась с комнатой, чиним
		delete(r.conns, connID)
		return nil
	}
	return &d
}

// ClearRoom очищает stranded и стеки всех участников; состав комнаты не меняется.
func (r *RoomRegistry) ClearRoom(roomCode string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearLocked(roomCode)
}

func (r *RoomRegistry) clearLocked(roomCode string) bool {
	rm, ok := r.rooms[roomCode]
	if !ok {
		return false
	}
	rm.stranded = nil
	for id := range rm.ledgers {
		rm.ledgers[id] = []domain.Move{}
	}
	return true
}

// Clear очищает текущую комнату соединения и возвращает того, кто очистил.
func (r *RoomRegistry) Clear(connID string) (string, domain.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.conns[connID]
	if !ok {
		return "", domain.Member{}, false
	}
	rm, ok := r.rooms[code]
	if !ok {
		return "", domain.Member{}, false
	}
	member, ok := rm.members.Find(connID)
	if !ok {
		return "", domain.Member{}, false
	}
	r.clearLocked(code)
	return code, member, true
}

// Snapshot возвращает глубокую копию состояния комнаты.
func (r *RoomRegistry) Snapshot(roomCode string) (domain.RoomSnapshot, error) {
	code, err := r.limits.NormalizeRoomCode(roomCode)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	snap := domain.RoomSnapshot{
		Code:     rm.code,
		Members:  append(domain.Members(nil), rm.members...),
		Ledgers:  make(domain.Ledgers, 0, len(rm.members)),
		Stranded: cloneMoves(rm.stranded),
	}
	for _, m := range rm.members {
		snap.Ledgers = append(snap.Ledgers, domain.UserLedger{
			UserID: m.ID,
			Moves:  cloneMoves(rm.ledgers[m.ID]),
		})
	}
	return snap, nil
}

// Ledger возвращает копию стека ходов участника.
func (r *RoomRegistry) Ledger(roomCode, userID string) ([]domain.Move, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomCode]
	if !ok {
		return nil, false
	}
	l, ok := rm.ledgers[userID]
	if !ok {
		return nil, false
	}
	return cloneMoves(l), true
}

// Rooms возвращает сводку по живым комнатам, отсортированную по коду.
func (r *RoomRegistry) Rooms() []domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.RoomSummary, 0, len(r.rooms))
	for code, rm := range r.rooms {
		out = append(out, domain.RoomSummary{
			Code:    code,
			Members: len(rm.members),
			Moves:   rm.moveCount(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func cloneMoves(in []domain.Move) []domain.Move {
	out := make([]domain.Move, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
