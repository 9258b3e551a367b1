package service

import (
	"crypto/rand"
	"io"

	"github.com/google/uuid"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randomBytes генерирует криптостойкие байты
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	return b, err
}

// RandomRoomCode генерирует код комнаты из [0-9A-Z].
func RandomRoomCode(n int) (string, error) {
	b, err := randomBytes(n)
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, v := range b {
		out[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(out), nil
}

// NewMoveID: глобально уникальный id хода.
func NewMoveID() string {
	return uuid.NewString()
}
