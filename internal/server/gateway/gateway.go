// Package gateway routes media requests to the blob store and edge cache.
// It serves HLS/DASH segments and playlist manifests read-only; encoding
// and playlist generation happen elsewhere, as does the websocket job-log
// stream the frontend opens under /ws/scan/.
package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"hlsgate/internal/server/edgecache"
	"hlsgate/pkg/api"
	"hlsgate/pkg/object"
)

const (
	videoPlaylistKey = "video-playlist/playlist.json"
	musicPlaylistKey = "music-playlist/playlist.json"
)

// Gateway serves media objects from a blob store, consulting an optional
// edge cache for immutable segments.
type Gateway struct {
	store object.Store
	cache *edgecache.Cache // nil disables edge caching
}

func New(store object.Store, cache *edgecache.Cache) *Gateway {
	return &Gateway{store: store, cache: cache}
}

// Handler builds the route table. GET patterns also match HEAD; every
// other method/path combination falls through to the 404 handler. CORS
// stamping happens in the middleware wrapping this handler, so error
// branches are covered too.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
	})
	mux.HandleFunc("GET /api/video/playlist", func(w http.ResponseWriter, r *http.Request) {
		g.serveObject(w, r, videoPlaylistKey)
	})
	mux.HandleFunc("GET /api/music/playlist", func(w http.ResponseWriter, r *http.Request) {
		g.serveObject(w, r, musicPlaylistKey)
	})
	mux.HandleFunc("POST /api/scan/video", scanUnavailable)
	mux.HandleFunc("POST /api/scan/music", scanUnavailable)
	mux.HandleFunc("GET /video-hls/", g.serveByPath)
	mux.HandleFunc("GET /music-hls/", g.serveByPath)
	mux.HandleFunc("/", notFound)

	return mux
}

func (g *Gateway) serveByPath(w http.ResponseWriter, r *http.Request) {
	g.serveObject(w, r, pathKey(r.URL.EscapedPath()))
}

// pathKey maps a request path to a store key: the escaped path minus its
// leading slash, percent-decoded once. A decode failure falls back to the
// raw string so odd-but-retrievable keys still resolve.
func pathKey(escaped string) string {
	raw := strings.TrimPrefix(escaped, "/")
	key, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return key
}

// scanUnavailable is a capability stub: library scanning belongs to the
// worker pipeline, which is not part of this deployment.
func scanUnavailable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, api.ErrorResponse{Error: "scan is not available in worker-only mode"})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, "Not Found")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
