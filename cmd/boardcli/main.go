package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/board-service/internal/client"
	"github.com/cwrk-planet/board-service/internal/discovery"
	"github.com/cwrk-planet/board-service/internal/render"
	"github.com/cwrk-planet/board-service/pkg/logger"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	server := flag.String("server", "localhost:"+client.DefaultPort, "board server host[:port] or ws:// URL")
	discover := flag.Bool("discover", false, "find a board on the local network via mDNS")
	service := flag.String("service", discovery.DefaultService, "mDNS service type")
	name := flag.String("name", os.Getenv("USER"), "display name")
	room := flag.String("room", "", "room code to join on start")
	create := flag.Bool("create", false, "create a room on start")
	logPath := flag.String("log", "", "write debug log to this file")
	flag.Parse()

	var out io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger.Init(logger.Config{
		Service: "boardcli",
		Env:     logger.EnvDev,
		Backend: logger.BackendStd,
		Debug:   true,
		Output:  out,
	})

	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "fatal: -name is required")
		os.Exit(2)
	}

	addr := *server
	if *discover {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		peer, err := discovery.First(ctx, *service, 3*time.Second)
		cancel()
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		slog.Info("board discovered", "name", peer.Name, "addr", peer.Addr)
		addr = peer.Addr
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := client.Dial(ctx, client.ServerURL(addr))
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	defer conn.Close()

	var start func(*client.Session) error
	switch {
	case *room != "":
		code := *room
		start = func(s *client.Session) error { return s.JoinRoom(code, *name) }
	case *create:
		start = func(s *client.Session) error { return s.CreateRoom(*name) }
	}

	replayer := render.NewReplayer(render.DefaultOptions())
	p := tea.NewProgram(newModel(conn, replayer, *name, start), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
	if m, ok := final.(model); ok && m.err != nil {
		fmt.Fprintln(os.Stderr, "disconnected:", m.err)
	}
}
