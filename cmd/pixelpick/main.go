// Command pixelpick maps a browser map cursor onto a local template image and
// prints the template pixel color under it.
//
// Usage:
//
//	pixelpick run --template art.png --origin 1024,680,312,455
//	pixelpick run --journal events.db --grpc-port 8788
//	pixelpick history --journal events.db
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pixelpick/internal/cli"
	"pixelpick/internal/config"
	"pixelpick/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixelpick: config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixelpick: logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(cfg, logger).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
