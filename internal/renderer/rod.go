package renderer

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// BrowserOptions configures the headless browser
type BrowserOptions struct {
	// Bin is the browser executable; empty lets rod find or download one
	Bin            string
	ViewportWidth  int
	ViewportHeight int
	FullPage       bool
}

// RodCapturer drives a headless Chromium through the DevTools protocol
type RodCapturer struct {
	opts   BrowserOptions
	logger *logrus.Logger
}

// NewRodCapturer creates a capturer that launches a fresh browser per capture
func NewRodCapturer(opts BrowserOptions, logger *logrus.Logger) *RodCapturer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RodCapturer{opts: opts, logger: logger}
}

// Capture opens url, waits for the load event and returns a PNG screenshot
func (c *RodCapturer) Capture(ctx context.Context, url string) ([]byte, error) {
	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true).
		Leakless(false)
	if c.opts.Bin != "" {
		l = l.Bin(c.opts.Bin)
	}
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			c.logger.WithError(err).Debug("Browser close failed")
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	if c.opts.ViewportWidth > 0 && c.opts.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             c.opts.ViewportWidth,
			Height:            c.opts.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for load: %w", err)
	}
	c.logger.WithField("url", url).Info("Page is loaded")

	data, err := page.Screenshot(c.opts.FullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return data, nil
}
