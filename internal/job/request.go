package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// localpath: a relative path that stays inside the directory it is joined to.
	_ = v.RegisterValidation("localpath", func(fl validator.FieldLevel) bool {
		return filepath.IsLocal(fl.Field().String())
	})
	return v
}

// CreateRequest is the payload used to submit a new job.
type CreateRequest struct {
	Kind        Kind            `json:"kind" validate:"required,oneof=transcription summarization processing"`
	Priority    int             `json:"priority,omitempty" validate:"omitempty,min=1,max=10"`
	Payload     json.RawMessage `json:"payload" validate:"required"`
	CallbackURL string          `json:"callback_url,omitempty" validate:"omitempty,url,startswith=http"`
}

// Validate checks the request and decodes its payload into the variant
// selected by Kind. A zero priority becomes DefaultPriority.
func (r *CreateRequest) Validate() (Payload, error) {
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, describe(err))
	}
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
	return DecodePayload(r.Kind, r.Payload)
}

// UpdateRequest carries externally driven progress for a job. Every field is
// optional but at least one must be present.
type UpdateRequest struct {
	Progress *int   `json:"progress,omitempty" validate:"omitempty,min=0,max=100"`
	State    *State `json:"state,omitempty" validate:"omitempty,oneof=active completed failed"`
	Error    string `json:"error,omitempty" validate:"max=2000"`
}

func (r *UpdateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, describe(err))
	}
	if r.Progress == nil && r.State == nil && r.Error == "" {
		return fmt.Errorf("%w: one of progress, state or error is required", ErrInvalidRequest)
	}
	if r.Error != "" && r.State != nil && *r.State != StateFailed {
		return fmt.Errorf("%w: error is only allowed with state failed", ErrInvalidRequest)
	}
	return nil
}

// describe flattens validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
