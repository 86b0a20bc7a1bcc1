package lux

import (
	"fmt"
	"net/http"
	"net/textproto"

	"golang.org/x/net/http/httpguts"
)

// HeaderField is a single response header.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered header collection, unique by canonical name. The
// first Set of a name fixes its position; later Sets replace the value in
// place. Fields that are not valid per RFC 7230 never enter the collection.
type Header struct {
	fields []HeaderField
	err    error
}

func (h *Header) index(name string) int {
	for i, f := range h.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Set stores value under name, canonicalizing the name. An invalid name or
// value is dropped and the first such failure is kept for Err.
func (h *Header) Set(name, value string) {
	if !validHeaderField(name, value) {
		if h.err == nil {
			h.err = fmt.Errorf("%w: %q", ErrInvalidHeader, name)
		}
		return
	}
	name = textproto.CanonicalMIMEHeaderKey(name)
	if i := h.index(name); i >= 0 {
		h.fields[i].Value = value
		return
	}
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
}

func (h *Header) Get(name string) string {
	if i := h.index(textproto.CanonicalMIMEHeaderKey(name)); i >= 0 {
		return h.fields[i].Value
	}
	return ""
}

func (h *Header) Has(name string) bool {
	return h.index(textproto.CanonicalMIMEHeaderKey(name)) >= 0
}

func (h *Header) Del(name string) {
	if i := h.index(textproto.CanonicalMIMEHeaderKey(name)); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

func (h *Header) Len() int { return len(h.fields) }

// Err returns the first rejected Set, or nil.
func (h *Header) Err() error { return h.err }

// Fields returns a copy of the fields in order.
func (h *Header) Fields() []HeaderField {
	out := make([]HeaderField, len(h.fields))
	copy(out, h.fields)
	return out
}

// Clone returns an independent copy of h.
func (h *Header) Clone() Header {
	return Header{fields: h.Fields()}
}

// HTTPHeader converts h to a net/http header map.
func (h *Header) HTTPHeader() http.Header {
	out := make(http.Header, len(h.fields))
	for _, f := range h.fields {
		out[f.Name] = []string{f.Value}
	}
	return out
}

func validHeaderField(name, value string) bool {
	return httpguts.ValidHeaderFieldName(name) && httpguts.ValidHeaderFieldValue(value)
}
