package lux

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Wildcard is the layer path that matches every request path.
const Wildcard = "*"

// normalizePath applies the layer path rule: a leading slash, no trailing
// slash except for the root (unless StrictSlash), lower case unless
// CaseSensitive. The wildcard is returned untouched.
func normalizePath(p string, opts Options) (string, error) {
	if p == Wildcard {
		return p, nil
	}
	if strings.IndexByte(p, 0) >= 0 {
		return "", fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidPath, p)
	}
	if !utf8.ValidString(p) {
		return "", fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidPath, p)
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !opts.StrictSlash && len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	if !opts.CaseSensitive {
		p = strings.ToLower(p)
	}
	return p, nil
}

// requestPath extracts the pathname of req. A request without a usable URL
// is routed as "/".
func requestPath(req *http.Request) string {
	if req.URL != nil {
		if req.URL.Path == "" {
			return "/"
		}
		return req.URL.Path
	}
	u, err := url.ParseRequestURI(req.RequestURI)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
