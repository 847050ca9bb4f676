// Package fetch implements the fetch command: read an object, optionally
// ranged, through a running gateway.
package fetch

import (
	"context"
	"errors"
	"io"
	"log"
	"os"

	"hlsgate/internal/client"
	"hlsgate/pkg/object"
)

type Flags struct {
	Server string
	Out    string
	Range  string
}

func Run(flags Flags, key string) {
	c := client.New(flags.Server)
	_, body, err := c.Fetch(context.Background(), key, flags.Range)
	if errors.Is(err, object.ErrNotFound) {
		log.Fatalf("object %s not found", key)
	}
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}
	defer body.Close()

	out := os.Stdout
	if flags.Out != "" {
		f, err := os.Create(flags.Out)
		if err != nil {
			log.Fatalf("create %s: %v", flags.Out, err)
		}
		defer f.Close()
		out = f
	}

	if _, err := io.Copy(out, body); err != nil {
		log.Fatalf("read body: %v", err)
	}
}
