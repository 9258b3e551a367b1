package domain

import (
	"errors"
	"fmt"

	"github.com/cwrk-planet/board-service/pkg/errs"
)

var (
	// валидация входных данных
	ErrInvalidName     = fmt.Errorf("%w: invalid username", errs.ErrInvalidInput)
	ErrNameTooLong     = fmt.Errorf("%w: username too long", errs.ErrInvalidInput)
	ErrInvalidRoomCode = fmt.Errorf("%w: invalid room code", errs.ErrInvalidInput)
	ErrInvalidMessage  = fmt.Errorf("%w: invalid message", errs.ErrInvalidInput)
	ErrMessageTooLong  = fmt.Errorf("%w: message too long", errs.ErrInvalidInput)
	ErrInvalidMove     = fmt.Errorf("%w: invalid move", errs.ErrInvalidInput)

	// комната/участник отсутствуют
	ErrRoomNotFound = fmt.Errorf("%w: room", errs.ErrNotFound)
	ErrNotInRoom    = fmt.Errorf("%w: user not in the room", errs.ErrNotFound)

	// конфликты
	ErrRoomFull          = fmt.Errorf("%w: room is full", errs.ErrConflict)
	ErrDuplicateName     = fmt.Errorf("%w: username already taken", errs.ErrConflict)
	ErrAlreadyJoined     = fmt.Errorf("%w: user already joined a room", errs.ErrConflict)
	ErrCapacityExhausted = fmt.Errorf("%w: no free room code", errs.ErrUnavailable)
)

// Reason возвращает текст, который уходит клиенту в "error"/"joined".
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidName):
		return "Invalid username"
	case errors.Is(err, ErrNameTooLong):
		return "Username too long"
	case errors.Is(err, ErrInvalidRoomCode):
		return "Invalid room code"
	case errors.Is(err, ErrInvalidMessage):
		return "Invalid message"
	case errors.Is(err, ErrMessageTooLong):
		return "Message too long"
	case errors.Is(err, ErrInvalidMove):
		return "Invalid move"
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrDuplicateName):
		return "Username already taken in this room"
	case errors.Is(err, ErrCapacityExhausted):
		return "Failed to create room"
	default:
		return "Internal error"
	}
}

// IsValidation сообщает, относится ли ошибка к классу ошибок ввода.
func IsValidation(err error) bool {
	return errors.Is(err, errs.ErrInvalidInput)
}
