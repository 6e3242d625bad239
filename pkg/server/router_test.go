package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestRouterHealthFollowsManager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	m := NewManager(testConfig(t), WithLogger(logger))

	router, container, err := m.NewRouter(context.Background())
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	if container.Orchestrator == nil {
		t.Fatal("router built without an orchestrator")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 while the container is live, got %d", w.Code)
	}

	if err := m.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after cleanup, got %d", w.Code)
	}
}
