package middleware

import (
	"log/slog"
	"net/http"
	"time"

	lux "github.com/edgflow/lux-router"
)

// AccessLog writes one structured line per request once the chain has
// returned. 5xx responses are logged at error level.
func AccessLog(logger *slog.Logger) lux.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(req *http.Request, res *lux.Response, next lux.NextFunc) error {
		start := time.Now()
		err := next()

		status := responseStatus(res, err)
		attrs := []any{
			"method", req.Method,
			"path", urlPath(req),
			"route", routeLabel(res),
			"status", status,
			"duration", time.Since(start),
		}
		if id := GetRequestID(res); id != "" {
			attrs = append(attrs, "request_id", id)
		}
		if result := res.Result(); result != nil {
			attrs = append(attrs, "bytes", len(result.Body))
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(req.Context(), level, "request", attrs...)
		return err
	}
}
