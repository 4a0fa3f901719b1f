package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/queue"
	"google.golang.org/genai"
)

// Generator produces text from a prompt and a system instruction.
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// Summarization runs summarization jobs against a Generator.
type Summarization struct {
	gen Generator
}

func NewSummarization(gen Generator) *Summarization {
	return &Summarization{gen: gen}
}

func (s *Summarization) Run(ctx context.Context, j job.Job, progress queue.ProgressFunc) (string, error) {
	p, ok := j.Payload.(job.SummarizationParams)
	if !ok {
		return "", fmt.Errorf("%w: summarization runner: unexpected payload %T", job.ErrRunnerFailure, j.Payload)
	}

	progress(10)
	out, err := s.gen.Generate(ctx, buildSummaryInput(p), summaryPrompt)
	if err != nil {
		return "", err
	}
	progress(90)
	return stripCodeFences(out), nil
}

// GeminiGenerator generates text with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt, system string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", job.ErrRunnerFailure)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: gemini blocked the response for safety reasons", job.ErrRunnerFailure)
	}
	if cand.Content == nil {
		return "", fmt.Errorf("%w: gemini returned an empty candidate", job.ErrRunnerFailure)
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: gemini returned no text", job.ErrRunnerFailure)
	}
	return sb.String(), nil
}
