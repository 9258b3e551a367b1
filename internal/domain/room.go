package domain

import (
	"encoding/json"
	"fmt"
)

// Member: участник комнаты; ID совпадает с id соединения.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Members сохраняет порядок входа и сериализуется как [[id, name], ...].
type Members []Member

func (ms Members) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, 0, len(ms))
	for _, m := range ms {
		pairs = append(pairs, [2]string{m.ID, m.Name})
	}
	return json.Marshal(pairs)
}

func (ms *Members) UnmarshalJSON(data []byte) error {
	var pairs [][2]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("decode members: %w", err)
	}
	out := make(Members, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Member{ID: p[0], Name: p[1]})
	}
	*ms = out
	return nil
}

func (ms Members) Find(id string) (Member, bool) {
	for _, m := range ms {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// UserLedger: упорядоченный список принятых ходов одного участника.
type UserLedger struct {
	UserID string
	Moves  []Move
}

// Ledgers сериализуется как [[userId, [move, ...]], ...].
type Ledgers []UserLedger

func (ls Ledgers) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, 0, len(ls))
	for _, l := range ls {
		moves := l.Moves
		if moves == nil {
			moves = []Move{}
		}
		pairs = append(pairs, [2]any{l.UserID, moves})
	}
	return json.Marshal(pairs)
}

func (ls *Ledgers) UnmarshalJSON(data []byte) error {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("decode ledgers: %w", err)
	}
	out := make(Ledgers, 0, len(pairs))
	for _, p := range pairs {
		var l UserLedger
		if err := json.Unmarshal(p[0], &l.UserID); err != nil {
			return fmt.Errorf("decode ledger owner: %w", err)
		}
		if err := json.Unmarshal(p[1], &l.Moves); err != nil {
			return fmt.Errorf("decode ledger %s: %w", l.UserID, err)
		}
		out = append(out, l)
	}
	*ls = out
	return nil
}

func (ls Ledgers) Of(userID string) []Move {
	for _, l := range ls {
		if l.UserID == userID {
			return l.Moves
		}
	}
	return nil
}

// RoomSnapshot: состояние комнаты на момент запроса.
type RoomSnapshot struct {
	Code     string
	Members  Members
	Ledgers  Ledgers
	Stranded []Move
}

// Moves возвращает все видимые ходы комнаты в порядке отрисовки.
func (s RoomSnapshot) Moves() []Move {
	n := len(s.Stranded)
	for _, l := range s.Ledgers {
		n += len(l.Moves)
	}
	out := make([]Move, 0, n)
	out = append(out, s.Stranded...)
	for _, l := range s.Ledgers {
		out = append(out, l.Moves...)
	}
	SortByTimestamp(out)
	return out
}

// RoomSummary: краткая информация о живой комнате.
type RoomSummary struct {
	Code    string `json:"code"`
	Members int    `json:"members"`
	Moves   int    `json:"moves"`
}
