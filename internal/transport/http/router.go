package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/board-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(h *Handler, wsHandler http.HandlerFunc, opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	}))

	// WS endpoint
	r.Get("/ws", wsHandler)

	r.Group(func(pr chi.Router) {
		pr.Use(middlewareChi.Timeout(opts.RequestTimeout))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Get("/", h.ListRooms)

			rm.Route("/{code}", func(rr chi.Router) {
				rr.Get("/", h.GetRoom)
				rr.Get("/canvas.png", h.CanvasPNG)
				rr.Get("/canvas.pdf", h.CanvasPDF)
			})
		})
	})

	// health
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
	r.Get("/healthz", health)
	r.Get("/health", health)

	return r
}
