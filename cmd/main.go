package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cwrk-planet/board-service/config"
	"github.com/cwrk-planet/board-service/internal/discovery"
	"github.com/cwrk-planet/board-service/internal/render"
	"github.com/cwrk-planet/board-service/internal/service"
	grpcx "github.com/cwrk-planet/board-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/board-service/internal/transport/http"
	"github.com/cwrk-planet/board-service/internal/transport/ws"
	"github.com/cwrk-planet/board-service/pkg/logger"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	defer func() { _ = logger.Sync() }()
	slog.Info("starting board-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- tracing: спаны нужны только для trace_id в логах ---
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	// --- services ---
	limits := cfg.Limits()
	registry := service.NewRoomRegistry(limits)
	chatSvc := service.NewChatService(limits)

	// --- WS Hub & Server ---
	ping, writeWait := cfg.WS.Intervals()
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, registry, chatSvc, ws.Options{
		PingEvery:      ping,
		WriteWait:      writeWait,
		ReadLimit:      cfg.WS.ReadLimit,
		SendBuffer:     cfg.WS.SendBuffer,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	// --- canvas export ---
	replayer := render.NewReplayer(render.Options{
		Width:        cfg.Render.Width,
		Height:       cfg.Render.Height,
		Background:   cfg.Render.BackgroundColor(),
		ImageTimeout: cfg.Render.Timeout(),
	})

	// --- HTTP ---
	readTimeout, writeTimeout, idleTimeout, requestTimeout := cfg.HTTP.Timeouts()
	handler := httpx.NewHandler(registry, replayer)
	router := httpx.NewRouter(handler, wsServer.HandleWS, httpx.RouterOptions{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: requestTimeout,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// --- gRPC ---
	grpcSrv := grpcx.NewServer(registry, cfg.GRPC.Timeout())

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if cfg.GRPC.Addr != "" {
		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				errCh <- err
				return
			}
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// --- mDNS ---
	var mdnsSrv *discovery.Server
	if cfg.Discovery.Enabled {
		mdnsSrv = advertise(cfg)
	}

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mdnsSrv.Shutdown(); err != nil {
		slog.Warn("mdns shutdown", "err", err)
	}
	grpcSrv.Shutdown()
	wsServer.Shutdown()
	_ = httpSrv.Shutdown(ctxShutdown)
	_ = tp.Shutdown(ctxShutdown)
	slog.Info("stopped")
}

func advertise(cfg *config.Config) *discovery.Server {
	_, portStr, err := net.SplitHostPort(cfg.HTTP.Addr)
	if err != nil {
		slog.Warn("mdns disabled: bad http addr", "addr", cfg.HTTP.Addr, "err", err)
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		slog.Warn("mdns disabled: bad http port", "addr", cfg.HTTP.Addr, "err", err)
		return nil
	}

	srv, err := discovery.Advertise(cfg.Discovery.Instance, cfg.Discovery.Service, port)
	if err != nil {
		slog.Warn("mdns advertise failed", "err", err)
		return nil
	}
	slog.Info("mdns advertised", "service", cfg.Discovery.Service, "port", port)
	return srv
}
