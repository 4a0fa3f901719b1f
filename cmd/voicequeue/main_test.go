package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/auth"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/config"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenCommand(t *testing.T) {
	t.Setenv("VOICEQUEUE_JWT_SECRET", testSecret)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	missingEnv := filepath.Join(t.TempDir(), "none.env")
	err := app.Run(context.Background(), []string{"voicequeue", "token", "--env-file", missingEnv, "--subject", "alice", "--ttl", "1h"})
	require.NoError(t, err)

	tokens, err := auth.NewTokens(testSecret)
	require.NoError(t, err)
	subject, err := tokens.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestTokenCommand_RequiresSubject(t *testing.T) {
	t.Setenv("VOICEQUEUE_JWT_SECRET", testSecret)

	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run(context.Background(), []string{"voicequeue", "token", "--env-file", ""})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "job_id", "j1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"job_id":"j1"`)

	buf.Reset()
	newLogger(&buf, "debug", "text").Debug("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestBuildRunners(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	cfg := &config.Config{
		OpenAIAPIKey:       "sk-test",
		TranscriptionModel: "whisper-1",
		AudioDir:           t.TempDir(),
		ClaudePath:         filepath.Join(t.TempDir(), "no-claude"),
	}
	runners, err := buildRunners(context.Background(), cfg, logger)
	require.NoError(t, err)

	assert.Contains(t, runners, job.KindTranscription)
	assert.NotContains(t, runners, job.KindSummarization)
	assert.NotContains(t, runners, job.KindProcessing)
}
