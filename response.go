package lux

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

const (
	defaultStatus = http.StatusOK

	contentTypeText = "text/plain; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// Response accumulates the status and headers of one request and
// finalizes exactly one Result. It belongs to a single request chain.
type Response struct {
	statusCode int
	header     Header
	finalized  *Result
	routePath  string

	mu   sync.RWMutex
	Keys map[string]any
}

func newResponse() *Response {
	return &Response{statusCode: defaultStatus}
}

// Status sets the status code. Any integer is accepted.
func (r *Response) Status(code int) *Response {
	r.statusCode = code
	return r
}

func (r *Response) StatusCode() int { return r.statusCode }

// Header returns the mutable header collection. Changes made after the
// response is finalized do not reach the Result.
func (r *Response) Header() *Header { return &r.header }

// SetHeader sets a header after validating it against RFC 7230. An invalid
// field is dropped and the first such failure, whether it came through
// SetHeader or Header().Set, is returned by the next Send, SendBytes or
// JSON call.
func (r *Response) SetHeader(name, value string) *Response {
	r.header.Set(name, value)
	return r
}

// Send finalizes the response with body as text. A second send returns
// ErrAlreadySent and leaves the first Result in place.
func (r *Response) Send(body string) error {
	return r.finalize(contentTypeText, []byte(body))
}

// SendBytes is Send for a raw payload.
func (r *Response) SendBytes(body []byte) error {
	b := make([]byte, len(body))
	copy(b, body)
	return r.finalize("", b)
}

// JSON serializes v, sets the JSON content type and finalizes the
// response. A serialization failure leaves the response open.
func (r *Response) JSON(v any) error {
	if r.finalized != nil {
		return ErrAlreadySent
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("lux: encode json body: %w", err)
	}
	r.header.Set("Content-Type", contentTypeJSON)
	return r.finalize("", body)
}

func (r *Response) finalize(defaultType string, body []byte) error {
	if r.finalized != nil {
		return ErrAlreadySent
	}
	if err := r.header.Err(); err != nil {
		return err
	}
	if defaultType != "" && !r.header.Has("Content-Type") {
		r.header.Set("Content-Type", defaultType)
	}
	r.finalized = &Result{
		StatusCode: r.statusCode,
		Header:     r.header.Clone(),
		Body:       body,
	}
	return nil
}

// Finalized reports whether a Result has been produced.
func (r *Response) Finalized() bool { return r.finalized != nil }

// Result returns the finalized result, or nil.
func (r *Response) Result() *Result { return r.finalized }

// MatchedPath returns the normalized path of the last route the Router
// dispatched this request to, or "" if none matched.
func (r *Response) MatchedPath() string { return r.routePath }

// Set stores a value in the per-request key/value bag.
func (r *Response) Set(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Keys == nil {
		r.Keys = make(map[string]any)
	}
	r.Keys[key] = value
}

func (r *Response) Get(key string) (value any, exists bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, exists = r.Keys[key]
	return value, exists
}

func (r *Response) GetString(key string) (s string) {
	return Value[string](r, key)
}

// Value returns the value stored under key as T, or the zero value when
// it is missing or of another type.
func Value[T any](r *Response, key string) (res T) {
	if val, ok := r.Get(key); ok && val != nil {
		res, _ = val.(T)
	}
	return
}
