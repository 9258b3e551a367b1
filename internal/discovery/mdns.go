package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	DefaultService = "_board._tcp"
	DefaultTimeout = 2 * time.Second
)

// Server: объявление доски в локальной сети.
type Server struct {
	mdns *mdns.Server
}

// Advertise объявляет сервис service на порту port. Пустой instance
// заменяется именем хоста. В TXT кладётся путь WebSocket.
func Advertise(instance, service string, port int) (*Server, error) {
	if service == "" {
		service = DefaultService
	}
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	zone, err := mdns.NewMDNSService(instance, service, "", "", port, nil, []string{"board", "path=/ws"})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return &Server{mdns: srv}, nil
}

func (s *Server) Shutdown() error {
	if s == nil || s.mdns == nil {
		return nil
	}
	return s.mdns.Shutdown()
}

// Peer: найденная доска.
type Peer struct {
	Name string
	Addr string // host:port
}

// Browse ищет доски в течение timeout (но не дольше ctx) и вызывает found
// для каждого нового адреса. После отмены ctx found больше не вызывается.
func Browse(ctx context.Context, service string, timeout time.Duration, found func(Peer)) error {
	if service == "" {
		service = DefaultService
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(dl))
	}
	if err := ctx.Err(); err != nil {
		return nil
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		seen := make(map[string]struct{})
		for e := range entries {
			p, ok := peerOf(e)
			if !ok || ctx.Err() != nil {
				continue
			}
			if _, dup := seen[p.Addr]; dup {
				continue
			}
			seen[p.Addr] = struct{}{}
			found(p)
		}
	}()

	params := mdns.DefaultParams(service)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return fmt.Errorf("mdns lookup: %w", err)
	}
	return nil
}

// First возвращает первую найденную доску.
func First(ctx context.Context, service string, timeout time.Duration) (Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, max(timeout, DefaultTimeout))
	defer cancel()

	var (
		first Peer
		got   bool
	)
	err := Browse(ctx, service, timeout, func(p Peer) {
		if !got {
			first, got = p, true
			cancel()
		}
	})
	if err != nil {
		return Peer{}, err
	}
	if !got {
		return Peer{}, ErrNoPeers
	}
	return first, nil
}

var ErrNoPeers = fmt.Errorf("no boards found on the local network")

func peerOf(e *mdns.ServiceEntry) (Peer, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Peer{}, false
	}
	return Peer{
		Name: e.Name,
		Addr: net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)),
	}, true
}
