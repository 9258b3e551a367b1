package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/board-service/internal/domain"

	"gopkg.in/yaml.v3"
)

const defaultPath = "./config/config.yaml"

type GRPC struct {
	Addr        string `yaml:"addr"`        // пусто: gRPC выключен
	CallTimeout string `yaml:"callTimeout"` // 10s
}

type HTTP struct {
	Addr           string   `yaml:"addr"`
	ReadTimeout    string   `yaml:"readTimeout"`
	WriteTimeout   string   `yaml:"writeTimeout"`
	IdleTimeout    string   `yaml:"idleTimeout"`
	RequestTimeout string   `yaml:"requestTimeout"`
	AllowedOrigins []string `yaml:"allowedOrigins"` // пусто: любой origin
}

type WS struct {
	PingInterval string `yaml:"pingInterval"`
	WriteWait    string `yaml:"writeWait"`
	ReadLimit    int64  `yaml:"readLimit"` // байты
	SendBuffer   int    `yaml:"sendBuffer"`
}

type Rooms struct {
	Capacity         int `yaml:"capacity"`
	CodeLength       int `yaml:"codeLength"`
	CodeAttempts     int `yaml:"codeAttempts"`
	MaxNameLength    int `yaml:"maxNameLength"`
	MaxCodeLength    int `yaml:"maxCodeLength"`
	MaxMessageLength int `yaml:"maxMessageLength"`
}

type Render struct {
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	Background   string `yaml:"background"` // #rrggbb
	ImageTimeout string `yaml:"imageTimeout"`
}

type Discovery struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"` // пусто: имя хоста
	Service  string `yaml:"service"`  // _board._tcp
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // board-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	WS        WS        `yaml:"ws"`
	Rooms     Rooms     `yaml:"rooms"`
	Render    Render    `yaml:"render"`
	Discovery Discovery `yaml:"discovery"`
	Logging   Logging   `yaml:"logging"`
}

// LoadConfig читает YAML из CONFIG_PATH. Если переменная не задана и
// файла по умолчанию нет, работает на значениях по умолчанию.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, os.ErrNotExist):
		data = nil
	default:
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	// установка дефолтов, если значения не указаны
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "board-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Discovery.Service == "" {
		c.Discovery.Service = "_board._tcp"
	}

	if c.Rooms.Capacity < 0 || c.Rooms.CodeLength < 0 || c.Rooms.MaxNameLength < 0 || c.Rooms.MaxMessageLength < 0 {
		return errors.New("rooms limits must not be negative")
	}
	if c.Rooms.CodeLength > 0 && c.Rooms.MaxCodeLength > 0 && c.Rooms.CodeLength > c.Rooms.MaxCodeLength {
		return errors.New("rooms.codeLength exceeds rooms.maxCodeLength")
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		return errors.New("render size must not be negative")
	}
	if c.Render.Background != "" {
		if _, err := ParseColor(c.Render.Background); err != nil {
			return err
		}
	}
	if c.WS.ReadLimit < 0 || c.WS.SendBuffer < 0 {
		return errors.New("ws limits must not be negative")
	}
	return nil
}

// Limits: ограничения комнат; нули заменяются значениями по умолчанию.
func (c *Config) Limits() domain.Limits {
	l := domain.DefaultLimits()
	if c.Rooms.Capacity > 0 {
		l.RoomCapacity = c.Rooms.Capacity
	}
	if c.Rooms.CodeLength > 0 {
		l.RoomCodeLength = c.Rooms.CodeLength
	}
	if c.Rooms.CodeAttempts > 0 {
		l.RoomCodeAttempts = c.Rooms.CodeAttempts
	}
	if c.Rooms.MaxNameLength > 0 {
		l.MaxNameLength = c.Rooms.MaxNameLength
	}
	if c.Rooms.MaxCodeLength > 0 {
		l.MaxCodeLength = c.Rooms.MaxCodeLength
	}
	if c.Rooms.MaxMessageLength > 0 {
		l.MaxMessageLength = c.Rooms.MaxMessageLength
	}
	return l
}

func (h HTTP) Timeouts() (read, write, idle, request time.Duration) {
	return parseDurationOr(10*time.Second, h.ReadTimeout),
		parseDurationOr(15*time.Second, h.WriteTimeout),
		parseDurationOr(60*time.Second, h.IdleTimeout),
		parseDurationOr(30*time.Second, h.RequestTimeout)
}

func (g GRPC) Timeout() time.Duration {
	return parseDurationOr(10*time.Second, g.CallTimeout)
}

func (w WS) Intervals() (ping, writeWait time.Duration) {
	return parseDurationOr(15*time.Second, w.PingInterval), parseDurationOr(5*time.Second, w.WriteWait)
}

func (r Render) Timeout() time.Duration {
	return parseDurationOr(5*time.Second, r.ImageTimeout)
}

// BackgroundColor: фон холста; по умолчанию белый.
func (r Render) BackgroundColor() domain.RGBA {
	c, err := ParseColor(r.Background)
	if err != nil {
		return domain.RGBA{R: 255, G: 255, B: 255, A: 1}
	}
	return c
}

// ParseColor разбирает #rgb и #rrggbb.
func ParseColor(s string) (domain.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	var r, g, b uint8
	if len(s) != 6 {
		return domain.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return domain.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return domain.RGBA{R: r, G: g, B: b, A: 1}, nil
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
