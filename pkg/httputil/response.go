package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/board-service/pkg/errs"
)

type envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// OK: «успешный» ответ с обёрткой.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{"data": data})
}

// Error: унифицированная ошибка (message + request_id + meta).
func Error(ctx context.Context, w http.ResponseWriter, status int, msg string, meta map[string]any) {
	body := envelope{"message": msg}
	if reqID, ok := FromContext(ctx); ok {
		body["request_id"] = reqID
	}
	if len(meta) > 0 {
		body["meta"] = meta
	}
	JSON(w, status, envelope{"error": body})
}

// Fail выбирает статус по классу ошибки. 5xx пишутся в лог.
func Fail(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	status := errs.ToHTTP(err)
	if status >= http.StatusInternalServerError {
		reqID, _ := FromContext(ctx)
		slog.Error("request failed", "req_id", reqID, "status", status, slog.Any("err", err))
	}
	Error(ctx, w, status, msg, nil)
}
