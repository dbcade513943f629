// Package verify implements the pluggable verification strategies of the
// clearinghouse. A strategy takes a submitted payload plus the contract's
// verification descriptor and produces a verdict. Strategy failures (the
// verifier could not run) are reported through Result.Error and are distinct
// from a rejected submission (IsValid=false with no error code).
package verify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
)

// Strategy failure codes recorded in Result.Error.
const (
	ErrCodeSandbox           = "SANDBOX_ERROR"
	ErrCodeExecutionTimeout  = "EXECUTION_TIMEOUT"
	ErrCodeMissingSandboxKey = "MISSING_SANDBOX_KEY"
	ErrCodeLLMJudge          = "LLM_JUDGE_ERROR"
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeInvalidSchema     = "INVALID_SCHEMA"
	ErrCodeMissingSchema     = "MISSING_SCHEMA"
	ErrCodeMissingCriteria   = "MISSING_CRITERIA"
	ErrCodeNoSubmissions     = "NO_SUBMISSIONS"
	ErrCodeUnknownVerifier   = "UNKNOWN_VERIFIER"
	ErrCodeVerifierFailure   = "VERIFIER_FAILURE"
)

// Request is the input to a verifier strategy.
type Request struct {
	ContractID         uuid.UUID
	Payload            []byte
	Descriptor         types.Descriptor
	RequirementsSchema json.RawMessage
}

// Result is the output of a verifier strategy. Error identifies a strategy
// failure; IsValid=false with an empty Error means the work was evaluated
// and rejected.
type Result struct {
	IsValid bool                   `json:"is_valid"`
	Score   *float64               `json:"score,omitempty"`
	Details string                 `json:"details"`
	Logs    map[string]interface{} `json:"logs,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Encode serializes the result for storage on a submission row.
func (r *Result) Encode() (json.RawMessage, error) {
	return json.Marshal(r)
}

// Metadata flattens the result into audit event metadata.
func (r *Result) Metadata() map[string]interface{} {
	md := map[string]interface{}{
		"is_valid": r.IsValid,
		"details":  r.Details,
	}
	if r.Score != nil {
		md["score"] = *r.Score
	}
	if r.Error != "" {
		md["error"] = r.Error
	}
	return md
}

// Strategy is implemented by every verifier. Implementations report handled
// failures through Result.Error; a non-nil error is reserved for misuse such
// as a nil request.
type Strategy interface {
	Verify(ctx context.Context, req *Request) (*Result, error)
}

func scoreOf(v float64) *float64 {
	return &v
}

// failure builds a strategy-failure result.
func failure(code, details string, logs map[string]interface{}) *Result {
	return &Result{IsValid: false, Details: details, Logs: logs, Error: code}
}

// Failure builds a strategy-failure result with no logs, for callers outside
// the strategy implementations.
func Failure(code, details string) *Result {
	return failure(code, details, nil)
}
