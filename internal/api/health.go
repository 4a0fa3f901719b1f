package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Health handles GET /api/v1/health and responds 200 with queue depth.
// It also reports Claude OAuth token validity from ~/.claude/.credentials.json,
// since processing jobs run through the claude CLI.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":      "ok",
		"backlog":     h.sched.Backlog(),
		"active":      h.sched.ActiveCount(),
		"claude_auth": "unknown",
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		data, err := os.ReadFile(filepath.Join(homeDir, ".claude", ".credentials.json"))
		if err == nil {
			var creds struct {
				ClaudeAiOauth struct {
					ExpiresAt int64 `json:"expiresAt"`
				} `json:"claudeAiOauth"`
			}
			if json.Unmarshal(data, &creds) == nil && creds.ClaudeAiOauth.ExpiresAt > 0 {
				expiresAt := time.UnixMilli(creds.ClaudeAiOauth.ExpiresAt).UTC()
				if time.Until(expiresAt) > 0 {
					resp["claude_auth"] = "valid"
				} else {
					resp["claude_auth"] = "expired"
				}
				resp["token_expires_at"] = expiresAt.Format(time.RFC3339)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
