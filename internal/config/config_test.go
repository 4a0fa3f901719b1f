package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VOICEQUEUE_JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, 100, cfg.MaxQueueSize)
	assert.Equal(t, 30*time.Second, cfg.JobDurationEstimate)
	assert.Equal(t, 10*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 24*time.Hour, cfg.JobTTL)
	assert.Equal(t, 10*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 5, cfg.RateLimitRPS)
	assert.Equal(t, "voicequeue.db", cfg.JournalPath)
	assert.Equal(t, "audio", cfg.AudioDir)
	assert.Equal(t, "whisper-1", cfg.TranscriptionModel)
	assert.Equal(t, "gemini-2.0-flash", cfg.SummaryModel)
	assert.Equal(t, "claude", cfg.ClaudePath)
	assert.Equal(t, "haiku", cfg.ClaudeModel)
	assert.Empty(t, cfg.CORSOrigins)
	assert.NotEmpty(t, cfg.SecurityPrompt)
	assert.False(t, cfg.DisableKeepalive)
}

func TestLoad_AllVarsSet(t *testing.T) {
	vars := map[string]string{
		"JWT_SECRET":                testSecret,
		"LISTEN_ADDR":               ":9090",
		"LOG_LEVEL":                 "DEBUG",
		"LOG_FORMAT":                "text",
		"MAX_CONCURRENT":            "4",
		"MAX_QUEUE_SIZE":            "500",
		"JOB_DURATION_ESTIMATE":     "45s",
		"JOB_TIMEOUT":               "2m",
		"JOB_TTL":                   "0",
		"CLEANUP_INTERVAL":          "1m",
		"CORS_ORIGINS":              "https://a.example, https://b.example,",
		"RATE_LIMIT_RPS":            "0",
		"AUDIO_DIR":                 "/srv/voice/audio",
		"OPENAI_API_KEY":            "sk-test",
		"GEMINI_API_KEY":            "gm-test",
		"CLAUDE_PATH":               "/usr/bin/claude",
		"CLAUDE_MODEL":              "sonnet",
		"DISABLE_KEEPALIVE":         "true",
		"UNSAFE_NO_SECURITY_PROMPT": "true",
	}
	for k, v := range vars {
		t.Setenv(prefix+k, v)
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.Equal(t, 500, cfg.MaxQueueSize)
	assert.Equal(t, 45*time.Second, cfg.JobDurationEstimate)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
	assert.Zero(t, cfg.JobTTL)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Zero(t, cfg.RateLimitRPS)
	assert.Equal(t, "/srv/voice/audio", cfg.AudioDir)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, "gm-test", cfg.GeminiAPIKey)
	assert.Equal(t, "/usr/bin/claude", cfg.ClaudePath)
	assert.Equal(t, "sonnet", cfg.ClaudeModel)
	assert.True(t, cfg.DisableKeepalive)
	assert.Empty(t, cfg.SecurityPrompt)
}

func TestLoad_EmptyJournalPathDisablesJournal(t *testing.T) {
	t.Setenv("VOICEQUEUE_JWT_SECRET", testSecret)
	t.Setenv("VOICEQUEUE_JOURNAL_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.JournalPath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantMsg string
	}{
		{"missing secret", "JWT_SECRET", "", "VOICEQUEUE_JWT_SECRET"},
		{"short secret", "JWT_SECRET", "short", "VOICEQUEUE_JWT_SECRET"},
		{"zero concurrency", "MAX_CONCURRENT", "0", "VOICEQUEUE_MAX_CONCURRENT"},
		{"bad integer", "MAX_QUEUE_SIZE", "lots", "VOICEQUEUE_MAX_QUEUE_SIZE"},
		{"bad duration", "JOB_TIMEOUT", "soon", "VOICEQUEUE_JOB_TIMEOUT"},
		{"negative ttl", "JOB_TTL", "-1h", "VOICEQUEUE_JOB_TTL"},
		{"bad bool", "DISABLE_KEEPALIVE", "maybe", "VOICEQUEUE_DISABLE_KEEPALIVE"},
		{"unknown model", "CLAUDE_MODEL", "gpt-4", "VOICEQUEUE_CLAUDE_MODEL"},
		{"unknown log level", "LOG_LEVEL", "trace", "VOICEQUEUE_LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VOICEQUEUE_JWT_SECRET", testSecret)
			t.Setenv(prefix+tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "VOICEQUEUE_JWT_SECRET=" + testSecret + "\nVOICEQUEUE_MAX_CONCURRENT=7\nVOICEQUEUE_LISTEN_ADDR=:7070\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv sets process variables; register them so they are restored.
	t.Setenv("VOICEQUEUE_JWT_SECRET", "")
	t.Setenv("VOICEQUEUE_MAX_CONCURRENT", "")
	t.Setenv("VOICEQUEUE_LISTEN_ADDR", ":6060")
	os.Unsetenv("VOICEQUEUE_JWT_SECRET")
	os.Unsetenv("VOICEQUEUE_MAX_CONCURRENT")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxConcurrent)
	assert.Equal(t, ":6060", cfg.ListenAddr, "real environment wins over the file")
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("VOICEQUEUE_JWT_SECRET", testSecret)

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
