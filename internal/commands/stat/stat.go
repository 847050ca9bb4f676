// Package stat implements the stat command: probe object metadata
// through a running gateway.
package stat

import (
	"context"
	"errors"
	"fmt"
	"log"

	"hlsgate/internal/client"
	"hlsgate/pkg/object"
)

type Flags struct {
	Server string
}

func Run(flags Flags, key string) {
	c := client.New(flags.Server)
	info, err := c.Stat(context.Background(), key)
	if errors.Is(err, object.ErrNotFound) {
		log.Fatalf("object %s not found", key)
	}
	if err != nil {
		log.Fatalf("stat failed: %v", err)
	}

	fmt.Printf("Key:            %s\n", key)
	fmt.Printf("Content-Length: %d\n", info.ContentLength)
	fmt.Printf("Content-Type:   %s\n", info.ContentType)
	fmt.Printf("Cache-Control:  %s\n", info.CacheControl)
	fmt.Printf("ETag:           %s\n", info.ETag)
}
