// Package browser owns the shared headless browser used by adapters
// that face bot detection, paywalls or CAPTCHAs. One underlying
// process is started lazily and torn down after an idle period; each
// logical fetch gets its own isolated browsing context.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/deadonfilm/morbid/internal/model"
)

// Manager owns the browser process. All access goes through context
// handles; shutdown only proceeds when no handle is outstanding.
type Manager struct {
	cfg      model.BrowserConfig
	sessions *SessionStore
	solver   CaptchaSolver

	mu        sync.Mutex
	browser   *rod.Browser
	cleanup   func()
	starting  chan struct{} // non-nil while a launch is in flight
	contexts  int
	idleTimer *time.Timer

	solverSpend float64
}

// NewManager creates a manager. The browser process is not started
// until the first fetch needs it.
func NewManager(cfg model.BrowserConfig, solver CaptchaSolver) *Manager {
	if solver == nil {
		solver = NoSolver{}
	}
	return &Manager{
		cfg:      cfg,
		sessions: NewSessionStore(cfg.SessionDir),
		solver:   solver,
	}
}

// SolverSpend reports the accumulated CAPTCHA solver cost.
func (m *Manager) SolverSpend() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.solverSpend
}

func (m *Manager) addSolverSpend(cost float64) {
	m.mu.Lock()
	m.solverSpend += cost
	m.mu.Unlock()
}

// ensureBrowser returns the shared browser, launching it if needed.
// Concurrent first-callers all wait on the single in-flight launch so
// only one process ever starts.
func (m *Manager) ensureBrowser(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	for {
		if m.browser != nil {
			b := m.browser
			m.mu.Unlock()
			return b, nil
		}
		if m.starting == nil {
			break
		}
		ch := m.starting
		m.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
	}
	ch := make(chan struct{})
	m.starting = ch
	m.mu.Unlock()

	browser, cleanup, err := m.launch()

	m.mu.Lock()
	m.starting = nil
	close(ch)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.browser = browser
	m.cleanup = cleanup
	m.armIdleTimerLocked()
	m.mu.Unlock()
	return browser, nil
}

func (m *Manager) launch() (*rod.Browser, func(), error) {
	l := launcher.New().Headless(m.cfg.Headless).Leakless(true)
	if m.cfg.BinPath != "" {
		l = l.Bin(m.cfg.BinPath)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, nil, err
	}
	return browser, l.Cleanup, nil
}

// acquireContext opens an isolated incognito context and counts it as
// active, which blocks idle shutdown until released.
func (m *Manager) acquireContext(ctx context.Context) (*rod.Browser, func(), error) {
	browser, err := m.ensureBrowser(ctx)
	if err != nil {
		return nil, nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.contexts++
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		m.contexts--
		m.mu.Unlock()
	}
	return incognito, release, nil
}

// armIdleTimerLocked (re)starts the idle shutdown timer. Callers hold
// m.mu.
func (m *Manager) armIdleTimerLocked() {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = time.AfterFunc(m.cfg.IdleTimeout, m.idleCheck)
}

// idleCheck fires on the idle timer. Shutdown is deferred, not
// cancelled, while contexts remain open: the timer re-arms and a
// long-running fetch is never interrupted mid-flight.
func (m *Manager) idleCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return
	}
	if m.contexts > 0 {
		m.armIdleTimerLocked()
		return
	}
	m.shutdownLocked()
}

func (m *Manager) shutdownLocked() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	if m.browser != nil {
		_ = m.browser.Close()
		m.browser = nil
	}
	if m.cleanup != nil {
		m.cleanup()
		m.cleanup = nil
	}
}

// Close tears the browser down immediately. Intended for process exit;
// outstanding contexts are abandoned.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownLocked()
}

// active reports the open context count, for tests.
func (m *Manager) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contexts
}

// running reports whether the browser process is up, for tests.
func (m *Manager) running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil
}
