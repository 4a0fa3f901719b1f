package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	out       string
	err       error
	gotPrompt string
	gotSystem string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, system string) (string, error) {
	f.gotPrompt = prompt
	f.gotSystem = system
	return f.out, f.err
}

func summaryJob(maxWords int) job.Job {
	return job.Job{
		ID:      "job-1",
		Kind:    job.KindSummarization,
		Payload: job.SummarizationParams{NoteID: "n1", Text: "we agreed to ship on friday", MaxWords: maxWords},
	}
}

func TestSummarization_Run(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{out: "Ship Friday."}
	progress := &progressLog{}

	out, err := NewSummarization(gen).Run(context.Background(), summaryJob(20), progress.record)
	require.NoError(t, err)
	assert.Equal(t, "Ship Friday.", out)
	assert.Contains(t, gen.gotPrompt, "at most 20 words")
	assert.Contains(t, gen.gotPrompt, "ship on friday")
	assert.Equal(t, summaryPrompt, gen.gotSystem)
	assert.Equal(t, []int{10, 90}, progress.values)
}

func TestSummarization_Error(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{err: errors.New("quota exceeded")}

	_, err := NewSummarization(gen).Run(context.Background(), summaryJob(0), func(int) {})
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Contains(t, gen.gotPrompt, "Be brief.")
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	t.Parallel()
	_, err := NewGeminiGenerator(context.Background(), "", "gemini-2.0-flash")
	assert.Error(t, err)
}

func TestResponseText(t *testing.T) {
	t.Parallel()
	text := func(parts ...string) *genai.Content {
		c := &genai.Content{}
		for _, p := range parts {
			c.Parts = append(c.Parts, &genai.Part{Text: p})
		}
		return c
	}

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr bool
	}{
		{"nil response", nil, "", true},
		{"no candidates", &genai.GenerateContentResponse{}, "", true},
		{"nil content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, "", true},
		{
			"safety block",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: text("x"), FinishReason: genai.FinishReasonSafety}}},
			"", true,
		},
		{"empty text", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: text("")}}}, "", true},
		{
			"joins parts",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: text("Ship ", "Friday.")}}},
			"Ship Friday.", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := responseText(tt.resp)
			if tt.wantErr {
				assert.ErrorIs(t, err, job.ErrRunnerFailure)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
