package server

import (
	"net/http"
)

// Middleware decorates a handler, e.g. with request logging.
type Middleware func(http.Handler) http.Handler

// Handler serves a fixed set of paths, such as the login callback.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router is what the login flow needs from a router.
type Router interface {
	http.Handler
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
}

var _ Router = (*BasicRouter)(nil)
