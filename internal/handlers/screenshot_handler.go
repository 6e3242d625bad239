package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"screenshot-lambda/internal/middleware"
	"screenshot-lambda/pkg/lambda"
)

// Invoker runs one screenshot invocation
type Invoker interface {
	Invoke(ctx context.Context) (*lambda.Response, error)
}

// ScreenshotHandler serves screenshots over gin and Lambda
type ScreenshotHandler struct {
	invoker Invoker
	logger  *logrus.Logger
	ready   func() bool
}

// NewScreenshotHandler creates a new screenshot handler
func NewScreenshotHandler(invoker Invoker, logger *logrus.Logger) *ScreenshotHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ScreenshotHandler{invoker: invoker, logger: logger}
}

// WithReadiness makes Health report unavailable while ready returns false
func (h *ScreenshotHandler) WithReadiness(ready func() bool) *ScreenshotHandler {
	h.ready = ready
	return h
}

// Screenshot renders the configured URL.
// The image is returned raw unless ?format=base64 asks for the proxy envelope.
func (h *ScreenshotHandler) Screenshot(c *gin.Context) {
	resp, err := h.invoker.Invoke(c.Request.Context())
	if err != nil {
		status := statusFor(err)
		_ = c.Error(err)
		c.JSON(status, ErrorResponse{
			Error:     errorTitle(status),
			Message:   err.Error(),
			RequestID: c.GetString(middleware.RequestIDKey),
		})
		return
	}

	if c.Query("format") == "base64" {
		c.JSON(http.StatusOK, resp.ToAPIGateway())
		return
	}

	body, err := resp.DecodedBody()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     errorTitle(http.StatusInternalServerError),
			Message:   "response body is not valid base64",
			RequestID: c.GetString(middleware.RequestIDKey),
		})
		return
	}
	c.Data(resp.StatusCode, resp.Headers["Content-Type"], body)
}

// Health reports liveness
func (h *ScreenshotHandler) Health(c *gin.Context) {
	if h.ready != nil && !h.ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unavailable",
			"service":   "screenshot-lambda",
			"timestamp": time.Now().UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "screenshot-lambda",
		"timestamp": time.Now().UTC(),
	})
}

// HandleScreenshot is the Lambda entry. Failures are returned as errors so
// the invocation itself fails; no partial response is produced.
func (h *ScreenshotHandler) HandleScreenshot(ctx context.Context, req *lambda.Request) (*lambda.Response, error) {
	resp, err := h.invoker.Invoke(ctx)
	if err != nil {
		h.logger.WithError(err).WithField("path", req.Path).Error("Screenshot invocation failed")
		return nil, err
	}
	return resp, nil
}
