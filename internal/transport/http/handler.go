package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/board-service/internal/domain"
	"github.com/cwrk-planet/board-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

// RoomReader: то, что HTTP-слою нужно от реестра комнат.
type RoomReader interface {
	Rooms() []domain.RoomSummary
	Snapshot(roomCode string) (domain.RoomSnapshot, error)
}

// Canvas перерисовывает ходы комнаты в картинку или документ.
type Canvas interface {
	EncodePNG(ctx context.Context, w io.Writer, moves []domain.Move) error
	ExportPDF(ctx context.Context, w io.Writer, title string, moves []domain.Move) error
}

type Handler struct {
	rooms  RoomReader
	canvas Canvas
}

func NewHandler(rooms RoomReader, canvas Canvas) *Handler {
	return &Handler{
		rooms:  rooms,
		canvas: canvas,
	}
}

// GET /rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, RoomsListResponse{Items: h.rooms.Rooms()})
}

// GET /rooms/{code}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	members := make([]MemberItem, 0, len(snap.Members))
	for _, m := range snap.Members {
		members = append(members, MemberItem{ID: m.ID, Name: m.Name, Moves: len(snap.Ledgers.Of(m.ID))})
	}
	httputil.OK(w, RoomResponse{
		Code:     snap.Code,
		Members:  members,
		Moves:    len(snap.Moves()),
		Stranded: len(snap.Stranded),
	})
}

// GET /rooms/{code}/canvas.png
func (h *Handler) CanvasPNG(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.canvas.EncodePNG(r.Context(), &buf, snap.Moves()); err != nil {
		httputil.Fail(r.Context(), w, fmt.Errorf("encode png: %w", err), "render failed")
		return
	}
	writeFile(w, "image/png", "board-"+snap.Code+".png", buf.Bytes())
}

// GET /rooms/{code}/canvas.pdf
func (h *Handler) CanvasPDF(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.canvas.ExportPDF(r.Context(), &buf, "Room "+snap.Code, snap.Moves()); err != nil {
		httputil.Fail(r.Context(), w, fmt.Errorf("export pdf: %w", err), "render failed")
		return
	}
	writeFile(w, "application/pdf", "board-"+snap.Code+".pdf", buf.Bytes())
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (domain.RoomSnapshot, bool) {
	code := chi.URLParam(r, "code")
	snap, err := h.rooms.Snapshot(code)
	if err != nil {
		slog.Debug("handler.snapshot:", "room", code, slog.Any("err", err))
		httputil.Fail(r.Context(), w, err, domain.Reason(err))
		return domain.RoomSnapshot{}, false
	}
	return snap, true
}

func writeFile(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Debug("write file response failed", slog.Any("err", err))
	}
}
