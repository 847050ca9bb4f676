// Package cors implements the gateway's cross-origin allowlist: exact
// origins, exact hosts, and wildcard-subdomain host suffixes.
package cors

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultAllowOrigins is used when CORS_ALLOW_ORIGINS is not configured.
const DefaultAllowOrigins = "https://*.igcrystal.icu,https://*.revaea.com,https://www.revaea.com,https://revaea.com,https://igcrystal.icu,https://www.igcrystal.icu"

// localDevOrigins are added to the exact-origin set unless disabled via
// ALLOW_LOCALHOST_CORS=0.
var localDevOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:8080",
	"http://127.0.0.1:8080",
	"http://localhost:4321",
	"http://127.0.0.1:4321",
}

// AllowList holds the parsed origin rules. It is immutable after Parse
// and safe for unsynchronized concurrent reads.
type AllowList struct {
	exactOrigins map[string]struct{}
	exactHosts   map[string]struct{}
	hostSuffixes map[string]struct{}
}

// Parse builds an AllowList from a comma-separated configuration string.
// Entries with a scheme are exact origins unless their host carries a
// "*." prefix, which registers a host suffix instead; bare entries are
// exact hosts with the same wildcard rule. Malformed URL entries are
// dropped, not fatal.
func Parse(raw string, allowLocalhost bool) *AllowList {
	a := &AllowList{
		exactOrigins: make(map[string]struct{}),
		exactHosts:   make(map[string]struct{}),
		hostSuffixes: make(map[string]struct{}),
	}

	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "://") {
			u, err := url.Parse(item)
			if err != nil || u.Host == "" {
				continue
			}
			if suffix, ok := strings.CutPrefix(u.Host, "*."); ok {
				a.hostSuffixes[suffix] = struct{}{}
			} else {
				a.exactOrigins[item] = struct{}{}
			}
			continue
		}
		if suffix, ok := strings.CutPrefix(item, "*."); ok {
			a.hostSuffixes[suffix] = struct{}{}
		} else {
			a.exactHosts[item] = struct{}{}
		}
	}

	if allowLocalhost {
		for _, o := range localDevOrigins {
			a.exactOrigins[o] = struct{}{}
		}
	}

	return a
}

// IsAllowed reports whether the given Origin header value may read
// responses cross-origin. An absent origin is never allowed; same-origin
// requests carry no Origin header and are unaffected.
func (a *AllowList) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}

	if _, ok := a.exactOrigins[origin]; ok {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Host

	if _, ok := a.exactHosts[host]; ok {
		return true
	}

	for suffix := range a.hostSuffixes {
		s := strings.TrimPrefix(suffix, ".")
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// Apply stamps CORS headers onto the response. Called for every response
// the gateway produces, success or failure.
func (a *AllowList) Apply(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	origin := r.Header.Get("Origin")
	if a.IsAllowed(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Vary", "Origin")
	}

	h.Set("Access-Control-Allow-Methods", "GET,HEAD,POST,OPTIONS")
	allowHeaders := r.Header.Get("Access-Control-Request-Headers")
	if allowHeaders == "" {
		allowHeaders = "Content-Type, Range"
	}
	h.Set("Access-Control-Allow-Headers", allowHeaders)
}
