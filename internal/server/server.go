// Package server provides functionalities to start and manage the media
// gateway.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"

	"hlsgate/internal/server/cors"
	"hlsgate/internal/server/edgecache"
	"hlsgate/internal/server/gateway"
	"hlsgate/pkg/object"
	"hlsgate/pkg/r2"
	"hlsgate/pkg/sqlite"

	"github.com/gnitoahc/go-dotenv"
)

func init() {
	dotenv.Load(".env")
}

func getOrPanic(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("environment variable %s not set", key))
	}
	return value
}

// AllowListFromEnv builds the CORS allowlist from CORS_ALLOW_ORIGINS and
// ALLOW_LOCALHOST_CORS.
func AllowListFromEnv() *cors.AllowList {
	raw := dotenv.Get("CORS_ALLOW_ORIGINS", cors.DefaultAllowOrigins)
	allowLocalhost := strings.ToLower(dotenv.Get("ALLOW_LOCALHOST_CORS", "1")) != "0"
	return cors.Parse(raw, allowLocalhost)
}

// Handler assembles the routed gateway with CORS stamping applied to
// every response, success or failure.
func Handler(allow *cors.AllowList, gw *gateway.Gateway) http.Handler {
	mux := http.NewServeMux()
	handle(mux, "/", gw.Handler(), corsMiddleware(allow))
	return mux
}

// Serve wires configuration, the store backend, and the edge cache, then
// blocks serving HTTP on the given port.
func Serve(port int) {
	allow := AllowListFromEnv()

	backendDriver := dotenv.Get("OBJECT_BACKEND_DRIVER", "sqlite")

	var store object.Store
	switch backendDriver {
	case "r2":
		log.Println("Using R2 as media store backend")
		store = &r2.Storage{}
		if err := store.Init(context.Background(), r2.Config{
			AccountID:        getOrPanic("CF_ACCOUNT_ID"),
			AccessKey:        getOrPanic("CF_ACCESS_KEY"),
			SecretAccessKey:  getOrPanic("CF_SECRET_ACCESS_KEY"),
			Bucket:           getOrPanic("CF_BUCKET"),
			EndpointOverride: os.Getenv("CF_ENDPOINT"),
		}); err != nil {
			panic(err)
		}
	case "sqlite":
		log.Println("Using SQLite as media store backend")
		store = &sqlite.Storage{}
		if err := store.Init(context.Background(), sqlite.Config{
			Source: dotenv.Get("OBJECT_STORAGE_SOURCE", "file:media.db?cache=shared"),
			Driver: dotenv.Get("OBJECT_STORAGE_DRIVER", "sqlite"),
		}); err != nil {
			panic(err)
		}
	default:
		panic(fmt.Sprintf("unknown backend driver: %s", backendDriver))
	}

	var cache *edgecache.Cache
	if path := dotenv.Get("EDGE_CACHE_PATH", "./data/edgecache"); path != "" {
		c, err := edgecache.Open(path)
		if err != nil {
			log.Fatalf("failed to open edge cache at %s: %v", path, err)
		}
		cache = c
	} else {
		log.Println("Edge cache disabled")
	}

	gw := gateway.New(store, cache)

	log.Printf("Starting gateway on port %d", port)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	log.Fatal(http.Serve(lis, Handler(allow, gw)))
}
