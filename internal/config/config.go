// Package config loads service settings from VOICEQUEUE_ environment
// variables, optionally preloaded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const prefix = "VOICEQUEUE_"

type Config struct {
	ListenAddr string `validate:"required"`
	LogLevel   string `validate:"oneof=debug info warn error"`
	LogFormat  string `validate:"oneof=json text"`

	MaxConcurrent       int           `validate:"min=1"`
	MaxQueueSize        int           `validate:"min=1"`
	JobDurationEstimate time.Duration `validate:"gt=0"`
	JobTimeout          time.Duration `validate:"min=0"`
	JobTTL              time.Duration `validate:"min=0"`
	CleanupInterval     time.Duration `validate:"gt=0"`

	JWTSecret    string `validate:"required,min=32"`
	CORSOrigins  []string
	RateLimitRPS int `validate:"min=0"`

	// JournalPath is the SQLite journal file. Empty disables the journal.
	JournalPath string

	// AudioDir is the media root; transcription audio_path values resolve
	// inside it.
	AudioDir string `validate:"required"`

	OpenAIAPIKey       string
	TranscriptionModel string `validate:"required"`
	GeminiAPIKey       string
	SummaryModel       string `validate:"required"`
	ClaudePath         string `validate:"required"`
	ClaudeModel        string `validate:"oneof=haiku sonnet opus"`
	SecurityPrompt     string
	DisableKeepalive   bool
}

// defaultSecurityPrompt is a server-side guardrail passed to every processing
// job. Set VOICEQUEUE_UNSAFE_NO_SECURITY_PROMPT=true to disable it.
const defaultSecurityPrompt = `You are operating in a sandboxed note-processing environment. Security rules:
1. NEVER execute shell commands, system calls, or access the filesystem
2. NEVER read, write, modify, or delete any files
3. NEVER access environment variables or system configuration
4. NEVER make network requests or open connections
5. Only transform the note text you are given according to the instructions
6. If asked to perform any forbidden action, refuse and explain why`

var validate = validator.New()

// Load reads the configuration. When envFile is set it is loaded first;
// a missing file is not an error and real environment variables win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "json")),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "")),
		JournalPath:        lookupEnv("JOURNAL_PATH", "voicequeue.db"),
		AudioDir:           getEnv("AUDIO_DIR", "audio"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		TranscriptionModel: getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		SummaryModel:       getEnv("SUMMARY_MODEL", "gemini-2.0-flash"),
		ClaudePath:         getEnv("CLAUDE_PATH", "claude"),
		ClaudeModel:        getEnv("CLAUDE_MODEL", "haiku"),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg.MaxConcurrent, err = getEnvInt("MAX_CONCURRENT", 2)
	collect(err)
	cfg.MaxQueueSize, err = getEnvInt("MAX_QUEUE_SIZE", 100)
	collect(err)
	cfg.RateLimitRPS, err = getEnvInt("RATE_LIMIT_RPS", 5)
	collect(err)
	cfg.JobDurationEstimate, err = getEnvDuration("JOB_DURATION_ESTIMATE", 30*time.Second)
	collect(err)
	cfg.JobTimeout, err = getEnvDuration("JOB_TIMEOUT", 10*time.Minute)
	collect(err)
	cfg.JobTTL, err = getEnvDuration("JOB_TTL", 24*time.Hour)
	collect(err)
	cfg.CleanupInterval, err = getEnvDuration("CLEANUP_INTERVAL", 10*time.Minute)
	collect(err)
	cfg.DisableKeepalive, err = getEnvBool("DISABLE_KEEPALIVE", false)
	collect(err)

	// UNSAFE_NO_SECURITY_PROMPT=true lets processing instructions drive the CLI unrestricted.
	noPrompt, err := getEnvBool("UNSAFE_NO_SECURITY_PROMPT", false)
	collect(err)
	if !noPrompt {
		cfg.SecurityPrompt = defaultSecurityPrompt
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %s", describe(err))
	}
	return cfg, nil
}

// describe names the offending variables instead of struct fields.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s%s failed %s", prefix, envName(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

var envNames = map[string]string{
	"ListenAddr":          "LISTEN_ADDR",
	"LogLevel":            "LOG_LEVEL",
	"LogFormat":           "LOG_FORMAT",
	"MaxConcurrent":       "MAX_CONCURRENT",
	"MaxQueueSize":        "MAX_QUEUE_SIZE",
	"JobDurationEstimate": "JOB_DURATION_ESTIMATE",
	"JobTimeout":          "JOB_TIMEOUT",
	"JobTTL":              "JOB_TTL",
	"CleanupInterval":     "CLEANUP_INTERVAL",
	"JWTSecret":           "JWT_SECRET",
	"RateLimitRPS":        "RATE_LIMIT_RPS",
	"AudioDir":            "AUDIO_DIR",
	"TranscriptionModel":  "TRANSCRIPTION_MODEL",
	"SummaryModel":        "SUMMARY_MODEL",
	"ClaudePath":          "CLAUDE_PATH",
	"ClaudeModel":         "CLAUDE_MODEL",
}

func envName(field string) string {
	if n, ok := envNames[field]; ok {
		return n
	}
	return strings.ToUpper(field)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(prefix + key); v != "" {
		return v
	}
	return fallback
}

// lookupEnv is getEnv but keeps an explicitly empty value.
func lookupEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(prefix + key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(prefix + key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: invalid integer %q", prefix, key, v)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(prefix + key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: invalid duration %q", prefix, key, v)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(prefix + key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s%s: invalid boolean %q", prefix, key, v)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
