package job

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload holds the kind-specific parameters of a job. Each kind has exactly
// one concrete parameter type so runners never guess at fields.
type Payload interface {
	Kind() Kind
}

// TranscriptionParams describes an audio recording to turn into note text.
// AudioPath is relative to the configured media root.
type TranscriptionParams struct {
	NoteID    string `json:"note_id" validate:"required"`
	AudioPath string `json:"audio_path" validate:"required,localpath"`
	Language  string `json:"language,omitempty" validate:"omitempty,len=2,alpha"`
}

func (TranscriptionParams) Kind() Kind { return KindTranscription }

// SummarizationParams asks for a short summary of note text.
type SummarizationParams struct {
	NoteID   string `json:"note_id" validate:"required"`
	Text     string `json:"text" validate:"required,max=200000"`
	MaxWords int    `json:"max_words,omitempty" validate:"omitempty,min=10,max=2000"`
}

func (SummarizationParams) Kind() Kind { return KindSummarization }

// ProcessingParams applies free-form instructions to note text.
type ProcessingParams struct {
	NoteID       string `json:"note_id" validate:"required"`
	Text         string `json:"text" validate:"required,max=200000"`
	Instructions string `json:"instructions" validate:"required,max=4000"`
	Model        string `json:"model,omitempty" validate:"omitempty,oneof=haiku sonnet opus"`
}

func (ProcessingParams) Kind() Kind { return KindProcessing }

// DecodePayload parses raw into the parameter type for kind and validates it.
func DecodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: payload must not be empty", ErrInvalidRequest)
	}

	var p Payload
	var err error
	switch kind {
	case KindTranscription:
		p, err = decodeStrict[TranscriptionParams](raw)
	case KindSummarization:
		p, err = decodeStrict[SummarizationParams](raw)
	case KindProcessing:
		p, err = decodeStrict[ProcessingParams](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidRequest, err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: payload: %s", ErrInvalidRequest, describe(err))
	}
	return p, nil
}

func decodeStrict[T Payload](raw json.RawMessage) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}
