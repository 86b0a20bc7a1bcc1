package middleware

import (
	"net/http"

	lux "github.com/edgflow/lux-router"
)

// responseStatus is the status the client sees once the chain returns.
func responseStatus(res *lux.Response, err error) int {
	if result := res.Result(); result != nil {
		return result.StatusCode
	}
	if err != nil {
		return lux.StatusOf(err)
	}
	return res.StatusCode()
}

func routeLabel(res *lux.Response) string {
	if route := res.MatchedPath(); route != "" {
		return route
	}
	return "unmatched"
}

// urlPath tolerates requests built without a parsed URL.
func urlPath(req *http.Request) string {
	if req.URL != nil {
		return req.URL.Path
	}
	return req.RequestURI
}
