package runner

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscriber struct {
	text     string
	err      error
	gotAudio string
	gotLang  string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, language string) (string, error) {
	b, _ := io.ReadAll(audio)
	f.gotAudio = string(b)
	f.gotLang = language
	return f.text, f.err
}

// writeAudio creates a media root holding notes/note.m4a and returns the root.
func writeAudio(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "notes"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "note.m4a"), []byte("RIFF-fake-audio"), 0o600))
	return root
}

func transcriptionJob(path, lang string) job.Job {
	return job.Job{
		ID:      "job-1",
		Kind:    job.KindTranscription,
		Payload: job.TranscriptionParams{NoteID: "n1", AudioPath: path, Language: lang},
	}
}

func TestTranscription_Run(t *testing.T) {
	t.Parallel()
	client := &fakeTranscriber{text: "  call the dentist on monday \n"}
	progress := &progressLog{}

	out, err := NewTranscription(client, writeAudio(t)).Run(context.Background(), transcriptionJob("notes/note.m4a", "en"), progress.record)
	require.NoError(t, err)
	assert.Equal(t, "call the dentist on monday", out)
	assert.Equal(t, "RIFF-fake-audio", client.gotAudio)
	assert.Equal(t, "en", client.gotLang)
	assert.Equal(t, []int{10, 90}, progress.values)
}

func TestTranscription_Errors(t *testing.T) {
	t.Parallel()
	root := writeAudio(t)
	audio := "notes/note.m4a"

	tests := []struct {
		name    string
		client  *fakeTranscriber
		path    string
		wantErr string
	}{
		{"missing file", &fakeTranscriber{text: "x"}, "notes/nope.m4a", "unavailable"},
		{"client error", &fakeTranscriber{err: errors.New("rate limited")}, audio, "rate limited"},
		{"empty text", &fakeTranscriber{text: "   "}, audio, "no text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTranscription(tt.client, root).Run(context.Background(), transcriptionJob(tt.path, ""), func(int) {})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTranscription_StaysInsideAudioDir(t *testing.T) {
	t.Parallel()
	root := writeAudio(t)
	outside := filepath.Join(filepath.Dir(root), "outside.m4a")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	t.Cleanup(func() { _ = os.Remove(outside) })
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "notes", "link.m4a")))

	missing, err := NewTranscription(&fakeTranscriber{text: "x"}, root).
		Run(context.Background(), transcriptionJob("notes/absent.m4a", ""), func(int) {})
	require.Error(t, err)
	require.Empty(t, missing)

	paths := []string{
		"../outside.m4a",
		"notes/../../outside.m4a",
		outside,
		"notes/link.m4a",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			client := &fakeTranscriber{text: "x"}
			_, runErr := NewTranscription(client, root).Run(context.Background(), transcriptionJob(path, ""), func(int) {})
			require.ErrorIs(t, runErr, job.ErrRunnerFailure)
			assert.Empty(t, client.gotAudio, "nothing outside the media root is read")

			// An escape attempt fails exactly like a missing file.
			assert.Equal(t,
				strings.Replace(err.Error(), "notes/absent.m4a", path, 1),
				runErr.Error())
		})
	}
}

func TestOpenAITranscriber(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "fr" {
			http.Error(w, "bad params", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"bonjour"}`))
	}))
	t.Cleanup(srv.Close)

	tr := NewOpenAITranscriber("sk-test", "whisper-1", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	text, err := tr.Transcribe(context.Background(), strings.NewReader("audio"), "fr")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", text)
}

func TestOpenAITranscriber_APIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	tr := NewOpenAITranscriber("sk-bad", "whisper-1", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	_, err := tr.Transcribe(context.Background(), strings.NewReader("audio"), "")
	assert.ErrorContains(t, err, "status 401")
}
