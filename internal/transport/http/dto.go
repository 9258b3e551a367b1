package http

import "github.com/cwrk-planet/board-service/internal/domain"

type RoomsListResponse struct {
	Items []domain.RoomSummary `json:"items"`
}

type MemberItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Moves int    `json:"moves"`
}

type RoomResponse struct {
	Code     string       `json:"code"`
	Members  []MemberItem `json:"members"`
	Moves    int          `json:"moves"`
	Stranded int          `json:"stranded"`
}
