package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hitoshi/socialhub/internal/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := client.Run(ctx, os.Stdout, os.Stderr, os.Args[1:], nil)
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, client.ErrUsage):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "socialhubctl: %v\n", err)
		os.Exit(1)
	}
}
