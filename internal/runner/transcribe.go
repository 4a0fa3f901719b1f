package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/queue"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, language string) (string, error)
}

// Transcription runs transcription jobs: it opens the recording referenced by
// the payload under audioDir and hands it to a Transcriber.
type Transcription struct {
	client   Transcriber
	audioDir string
}

func NewTranscription(client Transcriber, audioDir string) *Transcription {
	return &Transcription{client: client, audioDir: audioDir}
}

func (t *Transcription) Run(ctx context.Context, j job.Job, progress queue.ProgressFunc) (string, error) {
	p, ok := j.Payload.(job.TranscriptionParams)
	if !ok {
		return "", fmt.Errorf("%w: transcription runner: unexpected payload %T", job.ErrRunnerFailure, j.Payload)
	}

	// OpenInRoot refuses paths and symlinks that leave audioDir. Every failure
	// reads the same so a caller cannot map the filesystem.
	f, err := os.OpenInRoot(t.audioDir, p.AudioPath)
	if err != nil {
		return "", fmt.Errorf("%w: audio file %q is unavailable", job.ErrRunnerFailure, p.AudioPath)
	}
	defer f.Close()
	progress(10)

	text, err := t.client.Transcribe(ctx, f, p.Language)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: transcription returned no text", job.ErrRunnerFailure)
	}
	progress(90)
	return text, nil
}

// OpenAITranscriber calls the OpenAI audio transcriptions endpoint.
type OpenAITranscriber struct {
	client openai.Client
	model  string
}

func NewOpenAITranscriber(apiKey, model string, opts ...option.RequestOption) *OpenAITranscriber {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAITranscriber{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAITranscriber) Transcribe(ctx context.Context, audio io.Reader, language string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  audio,
		Model: openai.AudioModel(o.model),
	}
	if language != "" {
		params.Language = openai.String(language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai transcription failed with status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.Text, nil
}
