package control

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Manager owns one control channel per module id, created lazily on
// first use and reused afterwards. It is constructed once in main and
// injected into everything that pushes live changes to modules.
type Manager struct {
	timeout time.Duration

	mu       sync.Mutex
	channels map[string]Channel

	// dial is swapped out in tests
	dial func(address string, timeout time.Duration) Channel
}

func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		timeout:  timeout,
		channels: make(map[string]Channel),
		dial:     newGRPCChannel,
	}
}

// GetChannel returns the cached channel for the module, creating it if
// this is the first call for that module id.
func (m *Manager) GetChannel(moduleID string, host string, port int) Channel {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.channels[moduleID]; ok {
		return ch
	}
	ch := m.dial(fmt.Sprintf("%s:%d", host, port), m.timeout)
	m.channels[moduleID] = ch
	return ch
}

// Drop closes and forgets the channel for a module. Called when a
// module's control endpoint changes or the module is deleted.
func (m *Manager) Drop(moduleID string) {
	m.mu.Lock()
	ch, ok := m.channels[moduleID]
	delete(m.channels, moduleID)
	m.mu.Unlock()

	if ok {
		if err := ch.Close(); err != nil {
			log.Printf("[Control] Error closing channel for module %s: %v", moduleID, err)
		}
	}
}

// CloseAll tears down every channel. Used at process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	channels := m.channels
	m.channels = make(map[string]Channel)
	m.mu.Unlock()

	for moduleID, ch := range channels {
		if err := ch.Close(); err != nil {
			log.Printf("[Control] Error closing channel for module %s: %v", moduleID, err)
		}
	}
}

// HealthCheckAll probes every cached channel and returns the snapshots
// keyed by module id.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]HealthSnapshot {
	m.mu.Lock()
	channels := make(map[string]Channel, len(m.channels))
	for id, ch := range m.channels {
		channels[id] = ch
	}
	m.mu.Unlock()

	results := make(map[string]HealthSnapshot, len(channels))
	for id, ch := range channels {
		results[id] = ch.HealthCheck(ctx)
	}
	return results
}
