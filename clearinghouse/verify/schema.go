package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/clearinghouse/shared/params"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaVerifier validates JSON payloads against the contract's requirements
// schema. It is purely local: no external services are involved.
type SchemaVerifier struct{}

// NewSchemaVerifier creates a schema verifier.
func NewSchemaVerifier() *SchemaVerifier {
	return &SchemaVerifier{}
}

type validationError struct {
	Path       string `json:"path"`
	Message    string `json:"message"`
	SchemaPath string `json:"schema_path"`
}

// Verify parses the payload as JSON and validates it against the contract's
// requirements schema. A missing schema, unparseable payload, or malformed
// schema is a strategy failure; validation violations reject the work with a
// deterministic error list in logs.
func (v *SchemaVerifier) Verify(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errors.New("nil verification request")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.WithField("contractID", req.ContractID).Debug("Running schema verifier")

	if len(req.RequirementsSchema) == 0 {
		return failure(ErrCodeMissingSchema, "no requirements schema provided on the contract", nil), nil
	}

	schema, err := jsonschema.CompileString("requirements.json", string(req.RequirementsSchema))
	if err != nil {
		return failure(
			ErrCodeInvalidSchema,
			fmt.Sprintf("the requirements schema itself is invalid: %v", err),
			nil,
		), nil
	}

	var payload interface{}
	dec := json.NewDecoder(bytes.NewReader(req.Payload))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return failure(
			ErrCodeInvalidJSON,
			fmt.Sprintf("payload is not valid JSON: %v", err),
			map[string]interface{}{
				"raw_payload_preview": preview(string(req.Payload), params.ClearinghouseConfig().PayloadPreviewBytes),
			},
		), nil
	}

	if err := schema.Validate(payload); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return failure(ErrCodeInvalidSchema, fmt.Sprintf("schema validation could not run: %v", err), nil), nil
		}
		violations := flattenValidationErrors(ve)
		return &Result{
			IsValid: false,
			Details: fmt.Sprintf("schema validation failed with %d error(s)", len(violations)),
			Logs: map[string]interface{}{
				"validation_errors": violations,
			},
		}, nil
	}

	return &Result{
		IsValid: true,
		Score:   scoreOf(1.0),
		Details: "payload successfully validated against the requirements schema",
	}, nil
}

// flattenValidationErrors collects the leaf causes of a validation error in
// deterministic order, sorted by instance path then schema path.
func flattenValidationErrors(ve *jsonschema.ValidationError) []validationError {
	var out []validationError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, validationError{
				Path:       e.InstanceLocation,
				Message:    e.Message,
				SchemaPath: e.KeywordLocation,
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return strings.Compare(out[i].SchemaPath, out[j].SchemaPath) < 0
	})
	return out
}
