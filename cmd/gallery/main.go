package main

import (
	"context"
	"time"

	"github.com/niksmo/gallery/config"
	"github.com/niksmo/gallery/internal/app"
	"github.com/niksmo/gallery/pkg/sigctx"
)

const closeTimeout = 10 * time.Second

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()
	cfg.Print()

	galleryService := app.New(sigCtx, cfg)

	galleryService.Run(closeApp)

	<-sigCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	galleryService.Close(ctx)
}
