package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCLI writes an executable script standing in for the claude binary.
func fakeCLI(t *testing.T, body string) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "claude.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"+body), 0o755))
	return script
}

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) record(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func processingJob(text string) job.Job {
	return job.Job{
		ID:   "job-1",
		Kind: job.KindProcessing,
		Payload: job.ProcessingParams{
			NoteID:       "n1",
			Text:         text,
			Instructions: "Turn into a todo list",
		},
	}
}

func TestClaude_StreamsAndReturnsResult(t *testing.T) {
	t.Parallel()
	argsFile := filepath.Join(t.TempDir(), "args")
	script := fakeCLI(t, `printf '%s\n' "$@" > `+argsFile+`
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"- buy "}]}}'
echo '{"type":"assistant","content":[{"type":"text","text":"milk"}]}'
echo 'not json'
echo '{"type":"result","result":"- buy milk","stop_reason":"end_turn"}'
`)

	c := NewClaude(script, "haiku", "")
	progress := &progressLog{}
	out, err := c.Run(context.Background(), processingJob("buy milk tomorrow"), progress.record)
	require.NoError(t, err)
	assert.Equal(t, "- buy milk", out)

	require.Len(t, progress.values, 3)
	assert.Equal(t, 5, progress.values[0])
	assert.IsNonDecreasing(t, progress.values)
	for _, v := range progress.values {
		assert.LessOrEqual(t, v, 95)
	}

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "--model\nhaiku\n")
	assert.Contains(t, string(args), "stream-json")
	assert.Contains(t, string(args), "Turn into a todo list")
}

func TestClaude_PayloadModelOverridesDefault(t *testing.T) {
	t.Parallel()
	argsFile := filepath.Join(t.TempDir(), "args")
	script := fakeCLI(t, `printf '%s\n' "$@" > `+argsFile+`
echo '{"type":"result","result":"ok"}'
`)

	j := processingJob("text")
	p := j.Payload.(job.ProcessingParams)
	p.Model = "opus"
	j.Payload = p

	_, err := NewClaude(script, "haiku", "be safe").Run(context.Background(), j, func(int) {})
	require.NoError(t, err)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "--model\nopus\n")
	assert.Contains(t, string(args), "be safe")
}

func TestClaude_StripsCodeFences(t *testing.T) {
	t.Parallel()
	script := fakeCLI(t, `printf '%s\n' '{"type":"result","result":"`+"```"+`json\n{\"a\":1}\n`+"```"+`"}'
`)

	out, err := NewClaude(script, "haiku", "").Run(context.Background(), processingJob("x"), func(int) {})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestClaude_CLIError(t *testing.T) {
	t.Parallel()
	script := fakeCLI(t, `echo '{"type":"result","result":"auth failed"}'
exit 1
`)

	_, err := NewClaude(script, "haiku", "").Run(context.Background(), processingJob("x"), func(int) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth failed")
}

func TestClaude_ContextCancelled(t *testing.T) {
	t.Parallel()
	script := fakeCLI(t, "sleep 5\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClaude(script, "haiku", "").Run(ctx, processingJob("x"), func(int) {})
	require.Error(t, err)
}

func TestClaude_WrongPayload(t *testing.T) {
	t.Parallel()
	j := job.Job{Kind: job.KindProcessing, Payload: job.SummarizationParams{}}
	_, err := NewClaude("claude", "haiku", "").Run(context.Background(), j, func(int) {})
	assert.ErrorContains(t, err, "unexpected payload")
}

func TestFilteredEnv(t *testing.T) {
	t.Setenv("CLAUDE_CODE_SESSION", "nested")
	t.Setenv("VOICEQUEUE_TEST_KEEP", "1")

	env := filteredEnv()
	for _, kv := range env {
		assert.False(t, strings.HasPrefix(kv, "CLAUDE"), kv)
	}
	assert.Contains(t, env, "VOICEQUEUE_TEST_KEEP=1")
}

func TestParseLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		line       string
		wantText   string
		wantResult string
		wantOK     bool
	}{
		{"assistant top-level content", `{"type":"assistant","content":[{"type":"text","text":"hi"},{"type":"tool_use","text":"x"}]}`, "hi", "", true},
		{"assistant nested message", `{"type":"assistant","message":{"content":[{"type":"text","text":"yo"}]}}`, "yo", "", true},
		{"result", `{"type":"result","result":"done"}`, "", "done", true},
		{"system line", `{"type":"system","subtype":"init"}`, "", "", false},
		{"garbage", `{{`, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, result, ok := parseLine([]byte(tt.line))
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantResult, result)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"standard JSON fence", "```json\n{\"key\":\"value\"}\n```", "{\"key\":\"value\"}"},
		{"plain fence", "```\nline one\nline two\n```", "line one\nline two"},
		{"no fence unchanged", "- buy milk", "- buy milk"},
		{"only whitespace trimmed", "  text  ", "text"},
		{"trailing newline after closing fence", "```md\n# Title\n```\n", "# Title"},
		{"empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFences(tt.input))
		})
	}
}
