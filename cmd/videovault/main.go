package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/you-humble/videovault/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	a := app.New(ctx)
	if err := a.Run(ctx); err != nil {
		log.Fatalln("videovault:", err)
	}
}
