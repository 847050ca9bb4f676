// Package edgecache stores full GET responses for immutable media
// segments in a local leveldb database. Entries expire through the
// max-age of the Cache-Control header they were stored with; leveldb
// handles its own locking, so the cache is safe for concurrent use.
package edgecache

import (
	"bytes"
	"encoding/gob"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// Entry is a stored response: status line, headers, and full body.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt int64 // unix seconds
}

// Cache is a leveldb-backed response cache keyed by normalized GET URL.
type Cache struct {
	db *leveldb.DB
}

// Open creates or reopens the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close flushes and closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Match looks up a stored response. Entries older than the max-age in
// their own Cache-Control header are deleted and reported as a miss;
// entries without a max-age do not expire.
func (c *Cache) Match(key string) (Entry, bool) {
	b, err := c.db.Get(entryKey(key), nil)
	if err != nil {
		return Entry{}, false
	}
	var ent Entry
	if err := decodeGob(b, &ent); err != nil {
		return Entry{}, false
	}
	if ttl, ok := maxAge(ent.Header); ok {
		if time.Now().Unix()-ent.StoredAt > ttl {
			c.Delete(key)
			return Entry{}, false
		}
	}
	return ent, true
}

// Put stores a response under key. Writes are idempotent; concurrent
// writers racing on the same key are benign, last write wins.
func (c *Cache) Put(key string, ent Entry) error {
	if ent.StoredAt == 0 {
		ent.StoredAt = time.Now().Unix()
	}
	b, err := encodeGob(ent)
	if err != nil {
		return err
	}
	return c.db.Put(entryKey(key), b, nil)
}

// Delete removes a stored response.
func (c *Cache) Delete(key string) {
	_ = c.db.Delete(entryKey(key), nil)
}

func entryKey(key string) []byte {
	return []byte("e:" + key)
}

// maxAge extracts the max-age directive from a stored Cache-Control
// header.
func maxAge(h http.Header) (int64, bool) {
	cc := h.Get("Cache-Control")
	for _, part := range strings.Split(cc, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

func init() {
	gob.Register(http.Header{})
}
