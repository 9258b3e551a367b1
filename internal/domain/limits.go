package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultRoomCapacity     = 12
	DefaultRoomCodeLength   = 4
	DefaultRoomCodeAttempts = 100
	DefaultMaxNameLength    = 50
	DefaultMaxCodeLength    = 10
	DefaultMaxMessageLength = 500
)

// Limits: ограничения на ввод и размер комнат.
type Limits struct {
	RoomCapacity     int
	RoomCodeLength   int
	RoomCodeAttempts int
	MaxNameLength    int
	MaxCodeLength    int
	MaxMessageLength int
}

func DefaultLimits() Limits {
	return Limits{
		RoomCapacity:     DefaultRoomCapacity,
		RoomCodeLength:   DefaultRoomCodeLength,
		RoomCodeAttempts: DefaultRoomCodeAttempts,
		MaxNameLength:    DefaultMaxNameLength,
		MaxCodeLength:    DefaultMaxCodeLength,
		MaxMessageLength: DefaultMaxMessageLength,
	}
}

// NormalizeName обрезает пробелы и проверяет длину отображаемого имени.
func (l Limits) NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	if utf8.RuneCountInString(name) > l.MaxNameLength {
		return "", fmt.Errorf("%w: %d > %d", ErrNameTooLong, utf8.RuneCountInString(name), l.MaxNameLength)
	}
	return name, nil
}

// NormalizeRoomCode приводит код к верхнему регистру.
func (l Limits) NormalizeRoomCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > l.MaxCodeLength {
		return "", ErrInvalidRoomCode
	}
	return strings.ToUpper(code), nil
}

func (l Limits) NormalizeMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrInvalidMessage
	}
	if utf8.RuneCountInString(text) > l.MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return text, nil
}

// SameName сравнивает имена без учёта регистра.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
