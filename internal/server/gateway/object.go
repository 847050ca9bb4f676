package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"hlsgate/internal/server/edgecache"
	"hlsgate/pkg/object"
)

// serveObject handles one HEAD or GET against a resolved store key.
func (g *Gateway) serveObject(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()

	// HEAD is a metadata probe; it never touches the edge cache.
	if r.Method == http.MethodHead {
		meta, err := g.store.Stat(ctx, key)
		if errors.Is(err, object.ErrNotFound) {
			notFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hdr := objectHeaders(key, meta.ETag)
		hdr.Set("Content-Length", strconv.FormatInt(meta.Size, 10))
		copyHeader(w.Header(), hdr)
		w.WriteHeader(http.StatusOK)
		return
	}

	rangeHeader := r.Header.Get("Range")
	cacheable := g.cache != nil && shouldEdgeCache(r.Method, rangeHeader, key)
	cacheKey := cacheKeyFor(r)

	if cacheable {
		if ent, ok := g.cache.Match(cacheKey); ok {
			copyHeader(w.Header(), ent.Header)
			w.WriteHeader(ent.Status)
			_, _ = w.Write(ent.Body)
			return
		}
	}

	rd, err := g.store.Get(ctx, key, parseRange(rangeHeader))
	if errors.Is(err, object.ErrNotFound) {
		notFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer rd.Body.Close()

	hdr := objectHeaders(key, rd.Object.ETag)

	// A range was asked for and the store reports it honored the read.
	// Anything else, including a store that silently ignored the range,
	// degrades to a plain 200 with the full size.
	if rd.Served != nil {
		start := rd.Served.Offset
		end := start + rd.Served.Length - 1
		hdr.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, rd.Object.Size))
		hdr.Set("Content-Length", strconv.FormatInt(rd.Served.Length, 10))
		copyHeader(w.Header(), hdr)
		w.WriteHeader(http.StatusPartialContent)
		if _, err := io.Copy(w, rd.Body); err != nil {
			log.Printf("gateway: stream %s: %v", key, err)
		}
		return
	}

	hdr.Set("Content-Length", strconv.FormatInt(rd.Object.Size, 10))
	copyHeader(w.Header(), hdr)
	w.WriteHeader(http.StatusOK)

	if !cacheable {
		if _, err := io.Copy(w, rd.Body); err != nil {
			log.Printf("gateway: stream %s: %v", key, err)
		}
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(w, io.TeeReader(rd.Body, &buf)); err != nil {
		// Partial stream; never cache a truncated body.
		log.Printf("gateway: stream %s: %v", key, err)
		return
	}

	// The client already has every byte, so a failed cache write costs
	// nothing but a log line. The stored headers exclude the CORS stamp,
	// which is re-applied per request on replay.
	if err := g.cache.Put(cacheKey, edgecache.Entry{
		Status:   http.StatusOK,
		Header:   hdr,
		Body:     buf.Bytes(),
		StoredAt: time.Now().Unix(),
	}); err != nil {
		log.Printf("gateway: cache write %s: %v", key, err)
	}
}

// objectHeaders assembles the response headers shared by HEAD, full, and
// ranged reads.
func objectHeaders(key, etag string) http.Header {
	h := make(http.Header)
	if ct := contentTypeForKey(key); ct != "" {
		h.Set("Content-Type", ct)
	}
	h.Set("Cache-Control", cacheControlForKey(key))
	h.Set("Accept-Ranges", "bytes")
	if etag != "" {
		h.Set("ETag", etag)
	}
	return h
}

// cacheKeyFor normalizes the request to its GET URL form; HEAD and
// ranged requests never reach the cache, so the method is always GET by
// the time this key is used.
func cacheKeyFor(r *http.Request) string {
	return "GET " + r.Host + r.URL.RequestURI()
}

// copyHeader overwrites dst entries with src ones, leaving headers the
// middleware already stamped (CORS) untouched.
func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		dst[k] = vs
	}
}
