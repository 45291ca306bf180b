package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(&App{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
