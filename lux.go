package lux

import (
	"net/http"
	"reflect"
	"runtime"
)

// HandlerFunc handles one step of a request chain. Calling next hands
// control to the following layer; returning without calling it ends the
// chain. A returned error travels back up the chain unchanged.
type HandlerFunc func(req *http.Request, res *Response, next NextFunc) error

// NextFunc advances the chain. Each NextFunc runs at most once: any later
// call returns ErrNextCalled and does nothing.
type NextFunc func() error

// RouteInfo describes one registered handler.
type RouteInfo struct {
	Method  string
	Path    string
	Handler string
}

type RoutesInfo []RouteInfo

// Options controls path normalization for every layer of a Router.
type Options struct {
	// CaseSensitive compares paths byte for byte. When false, layer paths
	// and request paths are lower-cased before comparison.
	CaseSensitive bool
	// StrictSlash keeps a trailing slash significant, so "/a/" and "/a"
	// are different paths.
	StrictSlash bool
}

func nameOfFunction(f any) string {
	if f == nil {
		return ""
	}
	return runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
}
