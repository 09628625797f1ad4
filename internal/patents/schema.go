package patents

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidSubmission is wrapped by every SubmissionError.
var ErrInvalidSubmission = errors.New("invalid patent submission")

// SubmissionError lists every problem found in a submission.
type SubmissionError struct {
	Problems []string
}

func (e *SubmissionError) Error() string {
	return ErrInvalidSubmission.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *SubmissionError) Unwrap() error { return ErrInvalidSubmission }

// submissionSchema is the JSON Schema a SubmitRequest must satisfy. The enum
// lists are filled in from Types, Priorities and the storage options.
const submissionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "description", "inventor", "patent_type", "priority", "storage", "agree_terms"],
  "properties": {
    "title":           {"type": "string", "maxLength": 100, "pattern": "\\S"},
    "description":     {"type": "string", "pattern": "\\S"},
    "inventor":        {"type": "string", "pattern": "\\S"},
    "patent_type":     {"enum": %s},
    "priority":        {"enum": %s},
    "storage":         {"enum": %s},
    "estimated_value": {"type": "number", "minimum": 0},
    "agree_terms":     {"const": true}
  }
}`

// SchemaValidator checks submissions against the compiled submission schema.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles the submission schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	types, _ := json.Marshal(Types)
	priorities, _ := json.Marshal(Priorities)
	storages, _ := json.Marshal([]Storage{StorageOnChain, StorageOffChain})

	src := fmt.Sprintf(submissionSchema, types, priorities, storages)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		return nil, fmt.Errorf("compile submission schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate returns a *SubmissionError describing every schema violation in
// req, or nil.
func (v *SchemaValidator) Validate(req *SubmitRequest) error {
	doc, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &SubmissionError{Problems: problems}
}
