// Package object contains the media store interface
// Implementation including Cloudflare R2 or SQLite
package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// Object holds metadata about a stored item.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	CustomMeta   map[string]string
}

// Range represents a byte range [Start, End] inclusive.
// If End < 0 the range is open-ended.
type Range struct {
	Start int64
	End   int64
}

// ServedRange reports the byte window a backend actually returned for a
// ranged read.
type ServedRange struct {
	Offset int64
	Length int64
}

// Read is the result of a Get. Served is nil for a full-object read and
// non-nil only when the backend honored a byte-range read; callers must
// not infer partial content any other way.
type Read struct {
	Object Object
	Body   io.ReadCloser
	Served *ServedRange
}

// Common errors returned by implementations.
var (
	ErrNotFound = errors.New("object not found")
	ErrConflict = errors.New("object already exists")
)

// Lifecycle defines init/teardown behavior.
type Lifecycle interface {
	Init(ctx context.Context, param any) error
	Close(ctx context.Context) error
}

// Store aggregates the read-only contract the gateway needs from a blob
// backend. The gateway never mutates the store; write operations, where a
// backend has them, live on the concrete type.
type Store interface {
	Lifecycle
	// Stat returns metadata without streaming the body.
	Stat(ctx context.Context, key string) (Object, error)
	// Get returns the object and a stream the caller must close. A non-nil
	// rng requests a ranged read; backends that honor it report the served
	// window through Read.Served.
	Get(ctx context.Context, key string, rng *Range) (Read, error)
}
