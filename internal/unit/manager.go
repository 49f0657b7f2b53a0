package unit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/safedrive/reminderd/internal/metrics"
)

// CheckFunc performs a one-shot restriction check on its own connection.
type CheckFunc func(ctx context.Context) (bool, error)

// Manager owns the current deferral unit. A unit never comes back after
// termination, so the manager lazily creates a fresh one whenever a request
// arrives and none is live.
type Manager struct {
	newUnit func() *Unit
	logger  *slog.Logger

	mu      sync.Mutex
	current *Unit
}

// NewManager creates a manager using newUnit as the unit factory.
func NewManager(newUnit func() *Unit, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{newUnit: newUnit, logger: logger}
}

// Add routes one intake request to the live unit, creating one if needed.
// A malformed request is rejected before any unit is touched.
func (m *Manager) Add(req Request) error {
	if err := req.Validate(); err != nil {
		m.logger.Error("Dropping malformed reminder request",
			"error", err,
			"subject", req.SubjectID,
			"category", req.CategoryID,
			"principal", req.PrincipalID)
		metrics.RemindersRejected.Inc()
		return err
	}

	// The current unit can terminate between acquire and Add (the feed may
	// fail concurrently), so retry once with a fresh unit.
	for i := 0; i < 2; i++ {
		err := m.acquire().Add(req)
		if !errors.Is(err, ErrTerminated) {
			return err
		}
	}
	return ErrTerminated
}

// AddIfRestricted performs a one-shot restriction check before conditionally
// issuing the request. Returns true when the reminder was deferred; false
// when the restriction is not active (or the request was malformed) and the
// caller should notify immediately itself.
func (m *Manager) AddIfRestricted(ctx context.Context, check CheckFunc, req Request) (bool, error) {
	if err := req.Validate(); err != nil {
		m.logger.Error("Dropping malformed reminder request",
			"error", err,
			"subject", req.SubjectID,
			"category", req.CategoryID,
			"principal", req.PrincipalID)
		metrics.RemindersRejected.Inc()
		return false, err
	}

	restricted, err := check(ctx)
	if err != nil {
		m.logger.Warn("Restriction check failed, not deferring", "error", err)
		return false, err
	}
	if !restricted {
		m.logger.Debug("Not restricted, no reminder deferred",
			"subject", req.SubjectID, "category", req.CategoryID)
		return false, nil
	}
	return true, m.Add(req)
}

// Current returns the live unit, or nil when none has been created yet.
func (m *Manager) Current() *Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Stop tears down the current unit if one is live.
func (m *Manager) Stop() {
	m.mu.Lock()
	u := m.current
	m.mu.Unlock()
	if u != nil {
		u.Stop()
	}
}

func (m *Manager) acquire() *Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Terminated() {
		m.current = m.newUnit()
		m.logger.Debug("Created fresh reminder unit")
	}
	return m.current
}
