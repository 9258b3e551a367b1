package ws

import (
	"log/slog"
	"sync"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	ID() string
}

// Hub держит транспортные группы: комната -> набор соединений.
// Членство в комнатах как бизнес-факт живёт в RoomRegistry, хаб только раздаёт сообщения.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
	rooms map[string]map[string]Conn // roomCode -> connID -> conn
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]Conn),
		rooms: make(map[string]map[string]Conn),
	}
}

func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

// Unregister убирает соединение из всех групп.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.ID())
	for code, rs := range h.rooms {
		delete(rs, c.ID())
		if len(rs) == 0 {
			delete(h.rooms, code)
		}
	}
}

// CloseAll закрывает все соединения; дальше их убирает цикл чтения.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}

func (h *Hub) Join(roomCode string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[roomCode]
	if !ok {
		rs = make(map[string]Conn)
		h.rooms[roomCode] = rs
	}
	rs[c.ID()] = c
}

// Leave синхронно отписывает соединение от комнаты: после возврата
// ни одно событие этой комнаты до него не дойдёт.
func (h *Hub) Leave(roomCode string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[roomCode]; ok {
		delete(rs, c.ID())
		if len(rs) == 0 {
			delete(h.rooms, roomCode)
		}
	}
}

// SendTo: приватное событие одному соединению.
func (h *Hub) SendTo(connID string, msg Message) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.Send(msg); err != nil {
		slog.Debug("ws send failed", "conn", connID, "type", msg.Type, "err", err)
	}
}

// Broadcast рассылает всей комнате.
func (h *Hub) Broadcast(roomCode string, msg Message) {
	h.BroadcastExcept(roomCode, "", msg)
}

// BroadcastExcept рассылает комнате, кроме exceptID. Доставка best-effort.
func (h *Hub) BroadcastExcept(roomCode, exceptID string, msg Message) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[roomCode]))
	for id, c := range h.rooms[roomCode] {
		if id != exceptID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(msg); err != nil {
			slog.Debug("ws broadcast failed", "room", roomCode, "conn", c.ID(), "type", msg.Type, "err", err)
		}
	}
}

func (h *Hub) RoomSize(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}
