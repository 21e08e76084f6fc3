// Package tray provides the system tray control surface for gesturecall.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/gesturecall/internal/call"
)

// Tray represents the system tray application.
type Tray struct {
	onSimulate func() error
	onOpen     func()
	onQuit     func()
	status     string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuStatus   *systray.MenuItem
	menuSimulate *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{status: call.StatusIdle}
}

// OnSimulateCall sets the callback run by the "Simulate Call" item. An
// error is shown in the status line.
func (t *Tray) OnSimulateCall(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSimulate = fn
}

// OnOpen sets the callback run by the "Open Preview..." item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("gesturecall")
	systray.SetTooltip("Gesture call control")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Call status")
	t.menuStatus.Disable()
	systray.AddSeparator()
	t.menuSimulate = systray.AddMenuItem("Simulate Call", "Ring an incoming call")
	t.mu.Unlock()

	menuOpen := systray.AddMenuItem("Open Preview...", "Open the preview in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit gesturecall")

	go func() {
		for {
			select {
			case <-t.menuSimulate.ClickedCh:
				t.handleSimulate()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleSimulate starts a call through the callback.
func (t *Tray) handleSimulate() {
	t.mu.RLock()
	callback := t.onSimulate
	t.mu.RUnlock()

	if callback == nil {
		return
	}
	if err := callback(); err != nil {
		t.SetStatus("Cannot start call: " + err.Error())
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus updates the status line.
func (t *Tray) SetStatus(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = text
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(text)
	}
}

// Status returns the text of the status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Watch mirrors the call status of m into the status line until the
// returned function is called.
func (t *Tray) Watch(m *call.Machine) func() {
	t.SetStatus(m.Snapshot().Status)
	return m.Subscribe(func(s call.Session) {
		t.SetStatus(s.Status)
	})
}
