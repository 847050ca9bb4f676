package gateway

import (
	"net/http"
	"strings"
)

// contentTypeForKey maps a store key to the media content type served for
// it. An empty return leaves the transport default in place.
func contentTypeForKey(key string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(lower, ".ts"):
		return "video/mp2t"
	case strings.HasSuffix(lower, ".m4s"):
		return "video/iso.segment"
	case strings.HasSuffix(lower, ".mpd"):
		return "application/dash+xml"
	case strings.HasSuffix(lower, ".json"):
		return "application/json; charset=utf-8"
	}
	return ""
}

// cacheControlForKey picks the TTL class for a key: playlists mutate as
// segments are published and get a short TTL, segments are immutable and
// get a long one.
func cacheControlForKey(key string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".m3u8"), strings.HasSuffix(lower, "playlist.json"):
		return "public, max-age=60"
	case strings.HasSuffix(lower, ".ts"), strings.HasSuffix(lower, ".m4s"):
		return "public, max-age=86400"
	}
	return "public, max-age=300"
}

// shouldEdgeCache limits edge caching to full-object GETs of immutable
// segment types.
func shouldEdgeCache(method, rangeHeader, key string) bool {
	if method != http.MethodGet || rangeHeader != "" {
		return false
	}
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, ".ts") || strings.HasSuffix(lower, ".m4s")
}
