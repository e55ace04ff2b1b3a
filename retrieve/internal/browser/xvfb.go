package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// xvfbScreen is the virtual screen headful profile renders run on.
const xvfbScreen = "1366x768x24"

// xvfbReadyTimeout bounds the wait for the display socket to appear.
const xvfbReadyTimeout = 5 * time.Second

// displaySocket maps an X display name (":99", ":99.0") to the unix socket
// Xvfb listens on. Remote displays ("host:0") have none.
func displaySocket(display string) (string, bool) {
	host, num, ok := strings.Cut(display, ":")
	if !ok || host != "" {
		return "", false
	}
	num, _, _ = strings.Cut(num, ".")
	if num == "" || strings.Trim(num, "0123456789") != "" {
		return "", false
	}
	return filepath.Join("/tmp/.X11-unix", "X"+num), true
}

// startXvfb launches the virtual display the headful rendered channel draws
// on when no $DISPLAY is available. It returns once the display accepts
// connections.
func (m *Manager) startXvfb(ctx context.Context) error {
	if m.xvfb != nil {
		return nil
	}

	display := m.cfg.XvfbDisplay
	sock, ok := displaySocket(display)
	if !ok {
		return fmt.Errorf("xvfb display %q is not a local display", display)
	}
	cmd := exec.Command("Xvfb", display, "-screen", "0", xvfbScreen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	if err := waitForSocket(ctx, sock, xvfbReadyTimeout); err != nil {
		m.stopXvfb()
		return fmt.Errorf("xvfb %s: %w", display, err)
	}
	m.cfg.Logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return nil
}

func waitForSocket(ctx context.Context, path string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("display socket %s not ready: %w", path, ctx.Err())
		case <-tick.C:
		}
	}
}

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
