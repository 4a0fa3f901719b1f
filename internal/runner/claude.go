package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/queue"
)

// Claude runs processing jobs through the claude CLI in print mode.
type Claude struct {
	Path  string
	Model string
	// SystemPrompt is prepended to every job's instructions. Empty disables it.
	SystemPrompt string
}

func NewClaude(path, model, systemPrompt string) *Claude {
	return &Claude{Path: path, Model: model, SystemPrompt: systemPrompt}
}

func (c *Claude) Run(ctx context.Context, j job.Job, progress queue.ProgressFunc) (string, error) {
	p, ok := j.Payload.(job.ProcessingParams)
	if !ok {
		return "", fmt.Errorf("%w: claude runner: unexpected payload %T", job.ErrRunnerFailure, j.Payload)
	}

	model := c.Model
	if p.Model != "" {
		model = p.Model
	}
	system := processingPrompt
	if c.SystemPrompt != "" {
		system = c.SystemPrompt + "\n\n" + system
	}

	progress(5)
	expected := max(len(p.Text), 1)
	streamed := 0
	onChunk := func(text string) {
		streamed += len(text)
		progress(min(5+90*streamed/expected, 95))
	}

	result, err := c.exec(ctx, model, buildProcessingInput(p), system, onChunk)
	if err != nil {
		return "", err
	}
	return stripCodeFences(result), nil
}

// exec runs the CLI and returns the final result, calling onChunk for
// every assistant text block as it streams in.
func (c *Claude) exec(ctx context.Context, model, prompt, systemPrompt string, onChunk func(string)) (string, error) {
	args := []string{
		"--print",
		"--verbose",
		"--model", model,
		"--output-format", "stream-json",
	}
	if systemPrompt != "" {
		args = append(args, "--system-prompt", systemPrompt)
	}
	args = append(args, prompt)

	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Env = filteredEnv()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start claude: %w", err)
	}

	var finalResult string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		text, result, ok := parseLine(line)
		if !ok {
			continue
		}
		if result != "" {
			finalResult = result
		}
		if text != "" && onChunk != nil {
			onChunk(text)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// The CLI often reports errors on stdout in the result line.
		detail := strings.TrimSpace(stderr.String())
		if detail == "" && finalResult != "" {
			detail = finalResult
		}
		return "", fmt.Errorf("claude exited: %w: %s", err, detail)
	}

	return finalResult, nil
}

// filteredEnv returns os.Environ() minus variables starting with CLAUDE, so a
// nested CLI does not inherit the parent session.
func filteredEnv() []string {
	env := os.Environ()
	filtered := make([]string, 0, len(env))
	for _, kv := range env {
		if !strings.HasPrefix(kv, "CLAUDE") {
			filtered = append(filtered, kv)
		}
	}
	return filtered
}

// parseLine extracts the assistant text and/or the final result of a
// stream-json line.
func parseLine(line []byte) (text, result string, ok bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return "", "", false
	}

	var msgType string
	if err := json.Unmarshal(raw["type"], &msgType); err != nil {
		return "", "", false
	}

	switch msgType {
	case "assistant":
		content := raw["content"]
		if msg, ok := raw["message"]; ok {
			var inner struct {
				Content json.RawMessage `json:"content"`
			}
			if json.Unmarshal(msg, &inner) == nil && inner.Content != nil {
				content = inner.Content
			}
		}
		return extractAssistantText(content), "", true

	case "result":
		if err := json.Unmarshal(raw["result"], &result); err != nil {
			return "", "", false
		}
		return "", result, true
	}

	return "", "", false
}

func extractAssistantText(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}

	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
