package discovery

import (
	"context"
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestPeerOf(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  string
		ok    bool
	}{
		{"nil", nil, "", false},
		{"no ipv4", &mdns.ServiceEntry{Port: 8080}, "", false},
		{"no port", &mdns.ServiceEntry{AddrV4: net.IPv4(10, 0, 0, 2)}, "", false},
		{"ok", &mdns.ServiceEntry{Name: "desk", AddrV4: net.IPv4(10, 0, 0, 2), Port: 8080}, "10.0.0.2:8080", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := peerOf(tt.entry)
			if ok != tt.ok || p.Addr != tt.want {
				t.Fatalf("peerOf = %+v %v, want %q %v", p, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBrowse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	if err := Browse(ctx, "", 0, func(Peer) { called = true }); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("found must not be called after cancel")
	}
}
