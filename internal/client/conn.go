package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/board-service/internal/transport/ws"

	"github.com/gorilla/websocket"
)

const DefaultPort = "8080"

var ErrClosed = errors.New("connection closed")

// Conn: websocket-соединение клиента с сервером доски.
type Conn struct {
	conn      *websocket.Conn
	events    chan Event
	writeMu   sync.Mutex
	writeWait time.Duration

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// ServerURL собирает ws-адрес из host[:port] или принимает готовый ws(s):// адрес.
func ServerURL(host string) string {
	if strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://") {
		return host
	}
	if !strings.Contains(host, ":") {
		host = host + ":" + DefaultPort
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	return u.String()
}

func Dial(ctx context.Context, rawURL string) (*Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	conn := &Conn{
		conn:      c,
		events:    make(chan Event, 256),
		writeWait: 5 * time.Second,
	}
	go conn.readLoop()
	return conn, nil
}

func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Debug("client bad event", "err", err)
			continue
		}
		c.events <- ev
	}
}

// Events закрывается, когда соединение обрывается; причину вернёт Err.
func (c *Conn) Events() <-chan Event { return c.events }

func (c *Conn) Emit(typ string, payload interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.Err(); err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	if err := c.conn.WriteJSON(ws.Message{Type: typ, Payload: payload}); err != nil {
		return fmt.Errorf("emit %s: %w", typ, err)
	}
	return nil
}

func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Close сообщает серверу об уходе и закрывает соединение.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.Emit(ws.TypeDisconnecting, nil)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.setErr(ErrClosed)
		err = c.conn.Close()
	})
	return err
}
