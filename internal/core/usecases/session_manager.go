package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/metrics"
)

// ManagerDeps builds the per-session collaborators.
type ManagerDeps struct {
	Source    ports.GeoSource
	Cache     ports.CacheService   // optional
	Publisher ports.EventPublisher // optional
	// NewLocator returns a geolocator fed by device reports.
	NewLocator func(supported bool) ports.ReportedGeolocator
	// NewSurface returns the render surface for a session.
	NewSurface func(sessionID string) ports.InteractiveSurface
}

type sessionEntry struct {
	session *Session
	locator ports.ReportedGeolocator
	surface ports.InteractiveSurface
}

// SessionManager owns every live session and reaps idle ones.
type SessionManager struct {
	deps        ManagerDeps
	opts        SessionOptions
	idleTimeout time.Duration
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	ctx      context.Context
}

// NewSessionManager creates a manager. Sessions live under ctx.
func NewSessionManager(ctx context.Context, deps ManagerDeps, opts SessionOptions, idleTimeout time.Duration, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		deps:        deps,
		opts:        opts,
		idleTimeout: idleTimeout,
		logger:      logger,
		sessions:    make(map[string]*sessionEntry),
		ctx:         ctx,
	}
}

// Create starts a new session. geolocationSupported is the device's
// reported capability.
func (m *SessionManager) Create(ctx context.Context, geolocationSupported bool) (*SessionSnapshot, error) {
	id := uuid.NewString()
	locator := m.deps.NewLocator(geolocationSupported)
	surface := m.deps.NewSurface(id)

	s := NewSession(id, SessionDeps{
		Locator:   locator,
		Source:    m.deps.Source,
		Cache:     m.deps.Cache,
		Surface:   surface,
		Publisher: m.deps.Publisher,
	}, m.opts, m.logger)

	m.mu.Lock()
	m.sessions[id] = &sessionEntry{session: s, locator: locator, surface: surface}
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	s.Start(m.ctx)
	m.logger.Info("session created", "session", id, "geolocation_supported", geolocationSupported)
	return s.Snapshot(ctx)
}

func (m *SessionManager) entry(id string) (*sessionEntry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return e, nil
}

// Get returns a live session.
func (m *SessionManager) Get(id string) (*Session, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	return e.session, nil
}

// Report delivers a device position report to its session's geolocator.
func (m *SessionManager) Report(report domain.PositionReport) error {
	e, err := m.entry(report.SessionID)
	if err != nil {
		return err
	}
	e.session.touch()
	e.locator.Report(report)
	return nil
}

// Retry updates the device capability, when given, and retries acquisition.
func (m *SessionManager) Retry(ctx context.Context, id string, supported *bool) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	if supported != nil {
		e.locator.SetSupported(*supported)
	}
	return e.session.Retry(ctx)
}

// Click dispatches a marker click from a remote client.
func (m *SessionManager) Click(id string, handle ports.LayerHandle) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	e.session.touch()
	if !e.surface.Click(handle) {
		return fmt.Errorf("marker %s: %w", handle, domain.ErrUnknownService)
	}
	return nil
}

// Replay returns the render operations that rebuild the session's map.
func (m *SessionManager) Replay(id string) ([]domain.RenderOp, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	return e.surface.Replay(), nil
}

// Close tears down one session.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	e.session.Close()
	metrics.ActiveSessions.Dec()
	m.logger.Info("session closed", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReapIdle closes sessions idle since before now minus the idle timeout.
func (m *SessionManager) ReapIdle(now time.Time) int {
	cutoff := now.Add(-m.idleTimeout)
	m.mu.RLock()
	var idle []string
	for id, e := range m.sessions {
		if e.session.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		_ = m.Close(id)
	}
	if len(idle) > 0 {
		m.logger.Info("reaped idle sessions", "count", len(idle))
	}
	return len(idle)
}

// Run reaps idle sessions every interval until ctx is done, then closes all.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case now := <-ticker.C:
			m.ReapIdle(now)
		}
	}
}

// Shutdown closes every session.
func (m *SessionManager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_ = m.Close(id)
	}
}
