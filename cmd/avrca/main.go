// Command avrca parses AV/IT logs and explains incidents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Register parser implementations.
	_ "github.com/crimson-sun/avrca/internal/parser/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "avrca: %v\n", err)
		os.Exit(1)
	}
}
