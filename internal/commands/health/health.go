// Package health implements the health command.
package health

import (
	"context"
	"fmt"
	"log"

	"hlsgate/internal/client"
)

type Flags struct {
	Server string
}

func Run(flags Flags) {
	c := client.New(flags.Server)
	if err := c.Health(context.Background()); err != nil {
		log.Fatalf("gateway unhealthy: %v", err)
	}
	fmt.Println("ok")
}
