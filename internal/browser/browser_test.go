package browser

import (
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"

	"github.com/deadonfilm/morbid/internal/model"
)

func testBrowserConfig(idle time.Duration) model.BrowserConfig {
	return model.BrowserConfig{Headless: true, IdleTimeout: idle}
}

func TestManager_IdleShutdownDeferredWhileContextsOpen(t *testing.T) {
	m := NewManager(testBrowserConfig(15*time.Millisecond), nil)

	// Stand in for a launched process; contexts keep it alive.
	m.mu.Lock()
	m.browser = &rod.Browser{}
	m.contexts = 1
	m.armIdleTimerLocked()
	m.mu.Unlock()

	// Well past several idle periods the browser must still be up:
	// the timer re-arms instead of firing shutdown.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, m.running())
	assert.Equal(t, 1, m.active())

	// Detach the sentinel before the timer can fire against it.
	m.mu.Lock()
	m.contexts = 0
	m.browser = nil
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	m.mu.Unlock()
}

func TestManager_IdleCheckWithoutBrowserIsNoOp(t *testing.T) {
	m := NewManager(testBrowserConfig(time.Second), nil)
	m.idleCheck()
	assert.False(t, m.running())
}

func TestManager_CloseWithoutLaunchIsNoOp(t *testing.T) {
	m := NewManager(testBrowserConfig(time.Second), nil)
	m.Close()
	m.Close()
	assert.False(t, m.running())
}

func TestNewManager_DefaultsToNoSolver(t *testing.T) {
	m := NewManager(testBrowserConfig(time.Second), nil)
	assert.NotNil(t, m.solver)
	assert.IsType(t, NoSolver{}, m.solver)
}
