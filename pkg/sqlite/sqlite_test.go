package sqlite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"hlsgate/pkg/object"
)

func newTestStorage(t *testing.T, allowOverwrite bool) *Storage {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "media.db")
	src := fmt.Sprintf("file:%s?cache=shared&mode=rwc", dbPath)

	st := &Storage{}
	if err := st.Init(ctx, Config{
		Source:         src,
		AllowOverwrite: allowOverwrite,
	}); err != nil {
		t.Fatalf("init storage: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(ctx) })
	return st
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t, true)

	key := "video-hls/unit/000.ts"
	content := []byte("abcdefghijklmnopqrstuvwxyz")
	meta := map[string]string{"stream": "unit"}
	contentType := "video/mp2t"

	putObj, err := st.Put(ctx, key, bytes.NewReader(content), contentType, meta)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if putObj.Key != key {
		t.Fatalf("Put: expected key %s got %s", key, putObj.Key)
	}
	if putObj.Size != int64(len(content)) {
		t.Fatalf("Put: expected size %d got %d", len(content), putObj.Size)
	}
	if putObj.ETag == "" {
		t.Fatalf("Put: expected a derived etag")
	}

	statObj, err := st.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if statObj.Size != putObj.Size || statObj.ETag != putObj.ETag {
		t.Fatalf("Stat: metadata mismatch, got size %d etag %s", statObj.Size, statObj.ETag)
	}
	if statObj.CustomMeta["stream"] != "unit" {
		t.Fatalf("Stat: missing custom meta, got %v", statObj.CustomMeta)
	}

	rd, err := st.Get(ctx, key, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, err := io.ReadAll(rd.Body)
	_ = rd.Body.Close()
	if err != nil {
		t.Fatalf("Get read: %v", err)
	}
	if !bytes.Equal(body, content) {
		t.Fatalf("Get: content mismatch, got %q", body)
	}
	if rd.Served != nil {
		t.Fatalf("Get: full read reported served range %+v", rd.Served)
	}
}

func TestSQLiteRangedGet(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t, true)

	key := "video-hls/unit/001.ts"
	content := []byte("0123456789")
	if _, err := st.Put(ctx, key, bytes.NewReader(content), "video/mp2t", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rd, err := st.Get(ctx, key, &object.Range{Start: 2, End: 5})
	if err != nil {
		t.Fatalf("ranged Get: %v", err)
	}
	body, _ := io.ReadAll(rd.Body)
	_ = rd.Body.Close()
	if string(body) != "2345" {
		t.Fatalf("ranged Get: got %q want %q", body, "2345")
	}
	if rd.Served == nil || rd.Served.Offset != 2 || rd.Served.Length != 4 {
		t.Fatalf("ranged Get: served %+v", rd.Served)
	}
	if rd.Object.Size != int64(len(content)) {
		t.Fatalf("ranged Get: size %d want %d", rd.Object.Size, len(content))
	}

	open, err := st.Get(ctx, key, &object.Range{Start: 7, End: -1})
	if err != nil {
		t.Fatalf("open-ended Get: %v", err)
	}
	body, _ = io.ReadAll(open.Body)
	_ = open.Body.Close()
	if string(body) != "789" {
		t.Fatalf("open-ended Get: got %q", body)
	}
	if open.Served == nil || open.Served.Offset != 7 || open.Served.Length != 3 {
		t.Fatalf("open-ended Get: served %+v", open.Served)
	}

	if _, err := st.Get(ctx, key, &object.Range{Start: 100, End: -1}); err == nil {
		t.Fatalf("expected error for range start beyond size")
	}
}

func TestSQLiteNotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t, true)

	if _, err := st.Stat(ctx, "missing"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Stat missing: got %v", err)
	}
	if _, err := st.Get(ctx, "missing", nil); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Get missing: got %v", err)
	}

	key := "music-hls/unit/a.m4s"
	if _, err := st.Put(ctx, key, bytes.NewReader([]byte("x")), "", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Stat(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Stat after delete: got %v", err)
	}
	if err := st.Delete(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Delete missing: got %v", err)
	}
}

func TestSQLiteOverwrite(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t, false)

	key := "video-playlist/playlist.json"
	if _, err := st.Put(ctx, key, bytes.NewReader([]byte("v1")), "application/json", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := st.Put(ctx, key, bytes.NewReader([]byte("v2")), "application/json", nil); !errors.Is(err, object.ErrConflict) {
		t.Fatalf("expected ErrConflict without overwrite, got %v", err)
	}

	ow := newTestStorage(t, true)
	if _, err := ow.Put(ctx, key, bytes.NewReader([]byte("v1")), "application/json", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := ow.Put(ctx, key, bytes.NewReader([]byte("v2")), "application/json", nil); err != nil {
		t.Fatalf("overwrite Put: %v", err)
	}
	rd, err := ow.Get(ctx, key, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rd.Body)
	_ = rd.Body.Close()
	if string(body) != "v2" {
		t.Fatalf("overwrite: got %q", body)
	}
}
