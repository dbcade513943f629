package verify

import (
	"context"

	"github.com/pkg/errors"
)

// MockVerifier returns a configurable verdict with no I/O. It backs dry-run
// simulations and offline testing. Controlled via descriptor fields:
// should_pass (default true), score (default 1 on pass, 0 on fail), and
// details.
type MockVerifier struct{}

// NewMockVerifier creates a mock verifier.
func NewMockVerifier() *MockVerifier {
	return &MockVerifier{}
}

// Verify returns the descriptor-configured verdict.
func (v *MockVerifier) Verify(_ context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errors.New("nil verification request")
	}
	shouldPass := true
	if req.Descriptor.ShouldPass != nil {
		shouldPass = *req.Descriptor.ShouldPass
	}
	score := 0.0
	if shouldPass {
		score = 1.0
	}
	if req.Descriptor.Score != nil {
		score = *req.Descriptor.Score
	}
	details := req.Descriptor.Details
	if details == "" {
		if shouldPass {
			details = "mock verification passed (dry-run mode)"
		} else {
			details = "mock verification failed (dry-run mode)"
		}
	}
	return &Result{
		IsValid: shouldPass,
		Score:   scoreOf(score),
		Details: details,
		Logs:    map[string]interface{}{"mode": "dry-run", "verifier": "mock"},
	}, nil
}
