package client

import (
	"github.com/cwrk-planet/board-service/internal/domain"
	"github.com/cwrk-planet/board-service/internal/transport/ws"
)

// Emitter отправляет событие серверу.
type Emitter interface {
	Emit(typ string, payload interface{}) error
}

// History: undo/redo локального пользователя. Стек ходов хранят собственные
// ходы Reconciler, здесь хранится только стек redo.
type History struct {
	moves *Reconciler
	out   Emitter
	redo  []domain.Move
}

func NewHistory(moves *Reconciler, out Emitter) *History {
	return &History{moves: moves, out: out}
}

// Draw отправляет новый ход. Новый ход обрывает ветку redo.
func (h *History) Draw(move domain.Move) error {
	if err := move.Validate(); err != nil {
		return err
	}
	h.redo = nil
	return h.out.Emit(ws.TypeDraw, move.Redraw())
}

// Undo снимает последний свой ход и сообщает серверу. На пустом стеке ничего не делает.
func (h *History) Undo() (bool, error) {
	last, ok := h.moves.PopOwn()
	if !ok {
		return false, nil
	}
	h.redo = append(h.redo, last)
	return true, h.out.Emit(ws.TypeUndo, nil)
}

// Redo отправляет снятый ход заново как новый: сервер выдаст ему новые id и timestamp.
func (h *History) Redo() (bool, error) {
	if len(h.redo) == 0 {
		return false, nil
	}
	last := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return true, h.out.Emit(ws.TypeDraw, last.Redraw())
}

func (h *History) Reset() { h.redo = nil }

func (h *History) CanUndo() bool { return len(h.moves.own) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }
