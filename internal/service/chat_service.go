package service

import (
	"github.com/cwrk-planet/board-service/internal/domain"
)

// ChatService проверяет сообщения чата. Сообщения не сохраняются.
type ChatService struct {
	limits domain.Limits
}

func NewChatService(limits domain.Limits) *ChatService {
	return &ChatService{limits: limits}
}

// Prepare обрезает пробелы и проверяет длину текста.
func (s *ChatService) Prepare(text string) (string, error) {
	return s.limits.NormalizeMessage(text)
}

// Farewell: системная строка при обрыве соединения.
func (s *ChatService) Farewell(name string) string {
	if name == "" {
		name = "Anonymous"
	}
	return name + " has disconnected"
}
