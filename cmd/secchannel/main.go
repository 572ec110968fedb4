package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"secchannel/cmd/secchannel/commands"
	"secchannel/internal/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		if kind := domain.KindOf(err); kind != domain.KindUnknown {
			fmt.Fprintf(os.Stderr, "secchannel: %s error: %v\n", kind, err)
		} else {
			fmt.Fprintf(os.Stderr, "secchannel: error: %v\n", err)
		}
		os.Exit(1)
	}
}
