// Package hotkey registers the global keyboard shortcuts that drive
// dictation without the window focused.
package hotkey

import (
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

// Default chords. Chosen to avoid common editor bindings.
var (
	toggleChord    = []string{"ctrl", "shift", "d"}
	handsFreeChord = []string{"ctrl", "shift", "h"}
)

// HotkeyManager owns the global event hook. One instance per process.
type HotkeyManager struct {
	onToggle    func()
	onHandsFree func()

	mu      sync.Mutex
	status  func(granted bool)
	running bool
}

// NewHotkeyManager creates a manager. onToggle fires on the dictation
// chord, onHandsFree on the hands-free chord. Callbacks run on the hook
// goroutine and must not block.
func NewHotkeyManager(onToggle, onHandsFree func()) *HotkeyManager {
	return &HotkeyManager{
		onToggle:    onToggle,
		onHandsFree: onHandsFree,
	}
}

// SetStatusCallback registers a callback reporting whether the OS granted
// input monitoring to the process.
func (m *HotkeyManager) SetStatusCallback(cb func(granted bool)) {
	m.mu.Lock()
	m.status = cb
	m.mu.Unlock()
}

// Start installs the chords and begins listening. It returns immediately;
// the hook runs on its own goroutine until Stop.
func (m *HotkeyManager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	status := m.status
	m.mu.Unlock()

	hook.Register(hook.KeyDown, toggleChord, func(e hook.Event) {
		slog.Debug("hotkey", "chord", "toggle")
		if m.onToggle != nil {
			m.onToggle()
		}
	})
	hook.Register(hook.KeyDown, handsFreeChord, func(e hook.Event) {
		slog.Debug("hotkey", "chord", "hands-free")
		if m.onHandsFree != nil {
			m.onHandsFree()
		}
	})

	go func() {
		s := hook.Start()
		if status != nil {
			// Reaching the event loop means the OS accepted the hook.
			status(true)
		}
		<-hook.Process(s)
	}()
	return nil
}

// Stop tears down the global hook.
func (m *HotkeyManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	hook.End()
}
