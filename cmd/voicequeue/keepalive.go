package main

import (
	"log/slog"
	"os/exec"
)

const keepaliveSession = "voicequeue-claude-keepalive"

// startKeepalive launches a background tmux session running an interactive
// Claude CLI session. The interactive session refreshes the OAuth token
// (~8h expiry) while alive, so processing jobs keep working in long-running
// deployments.
//
// Failures only log: without tmux, or when the session already exists, the
// service continues normally. Disable with VOICEQUEUE_DISABLE_KEEPALIVE=true.
func startKeepalive(logger *slog.Logger, claudePath string) {
	if _, err := exec.LookPath("tmux"); err != nil {
		logger.Warn("keepalive: tmux not found, token auto-refresh disabled")
		return
	}

	// Session already exists (e.g. service restart).
	if err := exec.Command("tmux", "has-session", "-t", keepaliveSession).Run(); err == nil {
		logger.Info("keepalive: session already running")
		return
	}

	if err := exec.Command("tmux", "new-session", "-d", "-s", keepaliveSession, claudePath).Run(); err != nil {
		logger.Warn("keepalive: failed to start session", "error", err)
		return
	}

	logger.Info("keepalive: started tmux session", "session", keepaliveSession)
}
