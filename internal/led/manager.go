package led

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/smazurov/edgeviewer/internal/events"
)

// Manager drives the status LED from capture state and the activity LED
// from the edge detection toggle.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	logger     *slog.Logger

	mu     sync.Mutex
	unsubs []func()
}

// NewManager creates a manager. Nothing is subscribed until Start.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start applies the initial edge detection state and begins following
// events. The status LED blinks until capture reports running.
func (m *Manager) Start(edgeDetection bool) {
	m.set(RoleStatus, true, PatternBlink)
	m.set(RoleActivity, edgeDetection, PatternSolid)

	unsubCapture := m.eventBus.Subscribe(func(e events.CaptureStateEvent) {
		m.handleCapture(e)
	})
	unsubEdges := m.eventBus.Subscribe(func(e events.EdgeDetectionChangedEvent) {
		m.set(RoleActivity, e.Enabled, PatternSolid)
	})

	m.mu.Lock()
	m.unsubs = append(m.unsubs, unsubCapture, unsubEdges)
	m.mu.Unlock()
	m.logger.Info("LED manager started", "roles", m.controller.Roles())
}

// Stop unsubscribes and turns both LEDs off.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
	m.set(RoleStatus, false, PatternSolid)
	m.set(RoleActivity, false, PatternSolid)
}

func (m *Manager) handleCapture(e events.CaptureStateEvent) {
	switch e.State {
	case "running":
		m.set(RoleStatus, true, PatternSolid)
	case "failed":
		m.set(RoleStatus, true, PatternBlink)
	default:
		m.set(RoleStatus, false, PatternSolid)
	}
}

func (m *Manager) set(role string, on bool, pattern string) {
	if !slices.Contains(m.controller.Roles(), role) {
		return
	}
	if err := m.controller.Set(role, on, pattern); err != nil {
		m.logger.Warn("Failed to set LED", "role", role, "pattern", pattern, "error", err)
	}
}
