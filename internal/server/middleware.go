package server

import (
	"net/http"

	"hlsgate/internal/server/cors"
)

type middleware func(next http.Handler) http.Handler

func handle(mux *http.ServeMux, pattern string, handler http.Handler, middlewares ...middleware) {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](http.Handler(handler))
	}
	mux.Handle(pattern, handler)
}

// corsMiddleware stamps CORS headers onto every response before the
// inner handler runs, so error and not-found branches are covered too.
func corsMiddleware(allow *cors.AllowList) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allow.Apply(w, r)
			next.ServeHTTP(w, r)
		})
	}
}
