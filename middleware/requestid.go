package middleware

import (
	"net/http"

	lux "github.com/edgflow/lux-router"
	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-Id"

	requestIDKey    = "lux.middleware.request_id"
	maxRequestIDLen = 128
)

// RequestID reuses a sane incoming X-Request-Id or generates a UUID, echoes
// it on the response and stores it for GetRequestID.
func RequestID() lux.HandlerFunc {
	return func(req *http.Request, res *lux.Response, next lux.NextFunc) error {
		id := req.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen || !httpguts.ValidHeaderFieldValue(id) {
			id = uuid.NewString()
		}
		res.Set(requestIDKey, id)
		res.SetHeader(RequestIDHeader, id)
		return next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(res *lux.Response) string {
	return res.GetString(requestIDKey)
}
