package browser

import (
	"fmt"
	"os/exec"
	"time"
)

// xvfbArgs builds the Xvfb invocation for the given display and screen
// geometry. The geometry bounds what headful screenshots can show.
func xvfbArgs(display, screen string) []string {
	return []string{display, "-screen", "0", screen, "-ac"}
}

// startXvfb launches an Xvfb virtual display for headful mode.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil // already running
	}

	cmd := exec.Command("Xvfb", xvfbArgs(m.cfg.XvfbDisplay, m.cfg.XvfbScreen)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	// Give Xvfb a moment to initialise.
	time.Sleep(500 * time.Millisecond)

	m.cfg.Logger.Info("browser: xvfb started",
		"display", m.cfg.XvfbDisplay, "screen", m.cfg.XvfbScreen, "pid", cmd.Process.Pid)
	return nil
}

// stopXvfb kills the Xvfb process if running.
func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if m.xvfb.Process != nil {
		m.xvfb.Process.Kill()
		m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped")
	m.xvfb = nil
}
