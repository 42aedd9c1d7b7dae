package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/vbonduro/ilmigreen/internal/chatcli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := chatcli.NewChatCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
