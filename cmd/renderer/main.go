// Command renderer captures START_URL into the PNG file named by its first
// argument. It exits 0 only when the file has been fully written.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"screenshot-lambda/internal/config"
	"screenshot-lambda/internal/renderer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := cfg.Log.NewLogger()

	if len(os.Args) < 2 {
		logger.WithError(renderer.ErrNoOutputPath).Fatal("usage: renderer <output.png>")
	}
	out := os.Args[len(os.Args)-1]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	capturer := renderer.NewRodCapturer(renderer.BrowserOptions{
		Bin:            cfg.Render.ChromeBin,
		ViewportWidth:  cfg.Render.ViewportWidth,
		ViewportHeight: cfg.Render.ViewportHeight,
		FullPage:       cfg.Render.FullPage,
	}, logger)

	logger.Info("Start renderer")
	err = renderer.Run(ctx, capturer, renderer.Job{
		URL:        cfg.Render.StartURL,
		OutputPath: out,
		Timeout:    cfg.Render.RenderTimeout,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Render failed")
		stop()
		os.Exit(1)
	}
}
