package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cwrk-planet/board-service/internal/domain"
)

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("CONFIG_PATH", "config.yaml")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.GRPC.Addr != ":9090" {
		t.Fatalf("addrs = %q %q", cfg.HTTP.Addr, cfg.GRPC.Addr)
	}
	if got := cfg.Limits(); got != domain.DefaultLimits() {
		t.Fatalf("limits = %+v", got)
	}
	if ping, wait := cfg.WS.Intervals(); ping != 15*time.Second || wait != 5*time.Second {
		t.Fatalf("ws intervals = %v %v", ping, wait)
	}
	if bg := cfg.Render.BackgroundColor(); bg != (domain.RGBA{R: 255, G: 255, B: 255, A: 1}) {
		t.Fatalf("background = %+v", bg)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Logging.Service != "board-service" || cfg.Discovery.Service != "_board._tcp" {
		t.Fatalf("defaults = %+v", cfg)
	}
	read, write, idle, req := cfg.HTTP.Timeouts()
	if read != 10*time.Second || write != 15*time.Second || idle != time.Minute || req != 30*time.Second {
		t.Fatalf("timeouts = %v %v %v %v", read, write, idle, req)
	}
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte("rooms:\n  capacity: 3\nrender:\n  background: \"#0f0\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Limits().RoomCapacity != 3 {
		t.Fatalf("capacity = %d", cfg.Limits().RoomCapacity)
	}
	if bg := cfg.Render.BackgroundColor(); bg != (domain.RGBA{G: 255, A: 1}) {
		t.Fatalf("background = %+v", bg)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, raw := range []string{
		"rooms:\n  capacity: -1\n",
		"rooms:\n  codeLength: 12\n  maxCodeLength: 10\n",
		"render:\n  background: blue\n",
		"http: [",
	} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("Parse(%q) expected error", raw)
		}
	}
}
