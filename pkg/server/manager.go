package server

import (
	"context"
	"sync"

	"screenshot-lambda/internal/config"
)

// Manager keeps one container alive across warm Lambda invocations
type Manager struct {
	container   *Container
	mu          sync.RWMutex
	initialized bool
	initOnce    sync.Once
	initErr     error
	config      *config.Config
	opts        []Option
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the process-wide manager
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{}
	})
	return globalManager
}

// NewManager creates a manager that builds its container from cfg on first use.
// A nil cfg is loaded with config.GetOptimizedConfig.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	return &Manager{config: cfg, opts: opts}
}

// Initialize builds the container once
func (m *Manager) Initialize(cfg *config.Config) error {
	m.initOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if cfg == nil {
			cfg = m.config
		}
		if cfg == nil {
			cfg, m.initErr = config.GetOptimizedConfig()
			if m.initErr != nil {
				return
			}
		}
		m.config = cfg

		container, err := NewContainer(cfg, m.opts...)
		if err != nil {
			m.initErr = err
			return
		}

		m.container = container
		m.initialized = true
	})

	return m.initErr
}

// GetContainer returns the container, initializing it if necessary
func (m *Manager) GetContainer(ctx context.Context) (*Container, error) {
	m.mu.RLock()
	if m.initialized && m.container != nil {
		container := m.container
		m.mu.RUnlock()
		return container, nil
	}
	m.mu.RUnlock()

	if err := m.Initialize(nil); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.container, nil
}

// IsHealthy reports whether a container is built and not yet cleaned up
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized && m.container != nil
}

// Cleanup closes the container
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.container != nil {
		if err := m.container.Close(); err != nil {
			return err
		}
		m.container = nil
	}

	m.initialized = false
	m.initErr = nil
	m.initOnce = sync.Once{}
	return nil
}
