package ws

import "github.com/cwrk-planet/board-service/internal/domain"

// События клиент -> сервер
const (
	TypeCreateRoom    = "create_room"
	TypeCheckRoom     = "check_room"
	TypeJoinRoom      = "join_room"
	TypeJoinedRoom    = "joined_room" // запрос снапшота
	TypeLeaveRoom     = "leave_room"
	TypeDisconnecting = "disconnecting"
	TypeDraw          = "draw"
	TypeUndo          = "undo"
	TypeMouseMove     = "mouse_move"
	TypeClearCanvas   = "clear_canvas"
	TypeSendMsg       = "send_msg"
)

// События сервер -> клиент
const (
	TypeConnected        = "connected" // id соединения, сразу после upgrade
	TypeCreated          = "created"
	TypeRoomExists       = "room_exists"
	TypeJoined           = "joined"
	TypeRoom             = "room"
	TypeNewUser          = "new_user"
	TypeUserDisconnected = "user_disconnected"
	TypeYourMove         = "your_move"
	TypeUserDraw         = "user_draw"
	TypeUserUndo         = "user_undo"
	TypeMouseMoved       = "mouse_moved"
	TypeCanvasCleared    = "canvas_cleared"
	TypeNewMsg           = "new_msg"
	TypeError            = "error"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type ConnectedPayload struct {
	UserID string `json:"user_id"`
}

type CreateRoomPayload struct {
	Username string `json:"username"`
}

type CreatedPayload struct {
	RoomID string `json:"room_id"`
}

type CheckRoomPayload struct {
	RoomID string `json:"room_id"`
}

type RoomExistsPayload struct {
	Exists bool `json:"exists"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

// JoinedPayload: Failed=true означает отказ, Reason различает причины.
type JoinedPayload struct {
	RoomID string `json:"room_id"`
	Failed bool   `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RoomState struct {
	ID     string        `json:"id"`
	Drawed []domain.Move `json:"drawed"`
}

// RoomPayload: полный снапшот комнаты для только что вошедшего.
type RoomPayload struct {
	Room       RoomState      `json:"room"`
	UsersMoves domain.Ledgers `json:"users_moves"`
	Users      domain.Members `json:"users"`
}

type NewUserPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// UserPayload: для user_disconnected и user_undo.
type UserPayload struct {
	UserID string `json:"user_id"`
}

type UserDrawPayload struct {
	Move   domain.Move `json:"move"`
	UserID string      `json:"user_id"`
}

type MouseMovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type MouseMovedPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	UserID string  `json:"user_id"`
}

type CanvasClearedPayload struct {
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

type SendMsgPayload struct {
	Text string `json:"text"`
}

type NewMsgPayload struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
