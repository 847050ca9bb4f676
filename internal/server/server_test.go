package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"hlsgate/internal/server/cors"
	"hlsgate/internal/server/edgecache"
	"hlsgate/internal/server/gateway"
	"hlsgate/pkg/sqlite"
)

// newTestHandler spins up the full stack: sqlite store, leveldb edge
// cache, and the CORS-stamping middleware around the router.
func newTestHandler(t *testing.T) (http.Handler, *sqlite.Storage) {
	t.Helper()
	ctx := context.Background()

	store := &sqlite.Storage{}
	src := fmt.Sprintf("file:%s?cache=shared&mode=rwc", filepath.Join(t.TempDir(), "media.db"))
	if err := store.Init(ctx, sqlite.Config{Source: src, AllowOverwrite: true}); err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(ctx) })

	cache, err := edgecache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	allow := cors.Parse("https://player.example.com,https://*.cdn.example.com", false)
	return Handler(allow, gateway.New(store, cache)), store
}

func seed(t *testing.T, store *sqlite.Storage, key string, body []byte) {
	t.Helper()
	if _, err := store.Put(context.Background(), key, bytes.NewReader(body), "", nil); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func TestPreflightFromAllowedOrigin(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/video-hls/anything", nil)
	req.Header.Set("Origin", "https://player.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status: %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://player.example.com" {
		t.Fatalf("allow-origin: %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Fatalf("vary: %q", got)
	}
}

func TestPreflightFromDisallowedOriginStillSucceeds(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/video-hls/anything", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	// The 204 is always returned; only the allow-origin header is
	// conditionally omitted. The browser enforces the actual block.
	if w.Code != http.StatusNoContent {
		t.Fatalf("status: %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET,HEAD,POST,OPTIONS" {
		t.Fatalf("allow-methods: %q", got)
	}
}

func TestNotFoundIsCorsStamped(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("Origin", "https://a.cdn.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://a.cdn.example.com" {
		t.Fatalf("allow-origin on 404: %q", got)
	}
}

func TestSegmentRangeOverSQLite(t *testing.T) {
	h, store := newTestHandler(t)

	body := make([]byte, 12345)
	for i := range body {
		body[i] = byte(i)
	}
	seed(t, store, "video-hls/abc/000.ts", body)

	req := httptest.NewRequest(http.MethodGet, "/video-hls/abc/000.ts", nil)
	req.Header.Set("Range", "bytes=0-4095")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusPartialContent {
		t.Fatalf("status: %d", w.Code)
	}
	if got := w.Header().Get("Content-Range"); got != "bytes 0-4095/12345" {
		t.Fatalf("content-range: %q", got)
	}
	if got := w.Header().Get("Content-Length"); got != "4096" {
		t.Fatalf("content-length: %q", got)
	}
	if !bytes.Equal(w.Body.Bytes(), body[:4096]) {
		t.Fatal("ranged body mismatch")
	}
}

func TestSegmentCacheHitAfterStoreDelete(t *testing.T) {
	h, store := newTestHandler(t)

	body := []byte("immutable segment bytes")
	seed(t, store, "music-hls/s/001.m4s", body)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/music-hls/s/001.m4s", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status: %d", first.Code)
	}

	if err := store.Delete(context.Background(), "music-hls/s/001.m4s"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/music-hls/s/001.m4s", nil))
	if second.Code != http.StatusOK {
		t.Fatalf("second status: %d (cache should have answered)", second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatal("cache-hit body differs from store-path body")
	}
}

func TestCacheHitGetsFreshCorsHeaders(t *testing.T) {
	h, store := newTestHandler(t)
	seed(t, store, "video-hls/s/002.ts", []byte("segment"))

	// Populate the cache with a request from one origin.
	req := httptest.NewRequest(http.MethodGet, "/video-hls/s/002.ts", nil)
	req.Header.Set("Origin", "https://player.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}

	// A cache hit from another allowed origin must carry that origin,
	// not the one that populated the entry.
	req = httptest.NewRequest(http.MethodGet, "/video-hls/s/002.ts", nil)
	req.Header.Set("Origin", "https://b.cdn.example.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://b.cdn.example.com" {
		t.Fatalf("allow-origin on cache hit: %q", got)
	}
}

func TestPlaylistRoutesUseFixedKeys(t *testing.T) {
	h, store := newTestHandler(t)
	seed(t, store, "video-playlist/playlist.json", []byte(`{"items":["a"]}`))
	seed(t, store, "music-playlist/playlist.json", []byte(`{"items":["b"]}`))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/video/playlist", nil))
	if w.Code != http.StatusOK || w.Body.String() != `{"items":["a"]}` {
		t.Fatalf("video playlist: %d %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Fatalf("content-type: %q", got)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/music/playlist", nil))
	if w.Code != http.StatusOK || w.Body.String() != `{"items":["b"]}` {
		t.Fatalf("music playlist: %d %q", w.Code, w.Body.String())
	}
}
