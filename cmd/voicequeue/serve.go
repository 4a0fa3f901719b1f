package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/api"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/auth"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/config"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/journal"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/queue"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/runner"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/webhook"
	"github.com/urfave/cli/v3"
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	tokens, err := auth.NewTokens(cfg.JWTSecret)
	if err != nil {
		return err
	}

	notifier := webhook.New(logger)
	opts := []queue.Option{queue.WithLogger(logger), queue.WithNotifier(notifier)}

	var history api.History
	if cfg.JournalPath != "" {
		jr, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer jr.Close()
		opts = append(opts, queue.WithJournal(jr))
		history = jr
	}

	runners, err := buildRunners(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sched := queue.NewScheduler(queue.Config{
		MaxConcurrent:       cfg.MaxConcurrent,
		MaxQueueSize:        cfg.MaxQueueSize,
		JobTimeout:          cfg.JobTimeout,
		JobDurationEstimate: cfg.JobDurationEstimate,
		JobTTL:              cfg.JobTTL,
		CleanupInterval:     cfg.CleanupInterval,
	}, runners, opts...)
	sched.Start()

	if _, ok := runners[job.KindProcessing]; ok && !cfg.DisableKeepalive {
		startKeepalive(logger, cfg.ClaudePath)
	}

	limiterCtx, cancelLimiter := context.WithCancel(context.Background())
	defer cancelLimiter()

	handler := api.NewRouter(limiterCtx, api.NewHandler(sched, history, logger), tokens, api.RouterConfig{
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPS: cfg.RateLimitRPS,
	})

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: event streams stay open for the life of a job.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("voicequeue listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown", "error", err)
	}
	if err := notifier.Drain(shutdownCtx); err != nil {
		logger.Warn("webhook deliveries abandoned", "error", err)
	}
	return nil
}

// buildRunners registers a runner for every kind whose backend is
// configured. Jobs of a missing kind are failed on admission.
func buildRunners(ctx context.Context, cfg *config.Config, logger *slog.Logger) (map[job.Kind]queue.Runner, error) {
	runners := make(map[job.Kind]queue.Runner)

	if cfg.OpenAIAPIKey != "" {
		runners[job.KindTranscription] = runner.NewTranscription(
			runner.NewOpenAITranscriber(cfg.OpenAIAPIKey, cfg.TranscriptionModel), cfg.AudioDir)
	} else {
		logger.Warn("transcription runner disabled: VOICEQUEUE_OPENAI_API_KEY not set")
	}

	if cfg.GeminiAPIKey != "" {
		gen, err := runner.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.SummaryModel)
		if err != nil {
			return nil, fmt.Errorf("summarization runner: %w", err)
		}
		runners[job.KindSummarization] = runner.NewSummarization(gen)
	} else {
		logger.Warn("summarization runner disabled: VOICEQUEUE_GEMINI_API_KEY not set")
	}

	if path, err := exec.LookPath(cfg.ClaudePath); err == nil {
		runners[job.KindProcessing] = runner.NewClaude(path, cfg.ClaudeModel, cfg.SecurityPrompt)
	} else {
		logger.Warn("processing runner disabled: claude CLI not found", "path", cfg.ClaudePath)
	}

	return runners, nil
}
