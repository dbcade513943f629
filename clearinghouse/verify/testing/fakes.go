// Package testing defines fake sandbox and judge implementations for tests
// and dry-run simulations.
package testing

import (
	"context"
	"time"

	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verify"
)

// FakeSandboxProvider hands out sandboxes that replay scripted results. When
// AllocFailures is positive, that many allocations fail first, exercising the
// strategy's allocation retry.
type FakeSandboxProvider struct {
	AllocFailures int
	AllocErr      error
	RunResult     *verify.ExecResult
	RunErr        error

	AllocCalls int
	RunCalls   int
	Closed     int
}

// Allocate returns a scripted sandbox, failing the first AllocFailures calls.
func (p *FakeSandboxProvider) Allocate(_ context.Context, _ time.Duration) (verify.Sandbox, error) {
	p.AllocCalls++
	if p.AllocCalls <= p.AllocFailures {
		return nil, p.AllocErr
	}
	return &fakeSandbox{provider: p}, nil
}

type fakeSandbox struct {
	provider *FakeSandboxProvider
}

func (s *fakeSandbox) Run(_ context.Context, _ string) (*verify.ExecResult, error) {
	s.provider.RunCalls++
	if s.provider.RunErr != nil {
		return nil, s.provider.RunErr
	}
	return s.provider.RunResult, nil
}

func (s *fakeSandbox) Close() error {
	s.provider.Closed++
	return nil
}

// FakeJudge replays a scripted response. When Failures is positive, that many
// calls error first, exercising the strategy's network retry.
type FakeJudge struct {
	Response string
	Err      error
	Failures int

	Calls      int
	LastSystem string
	LastUser   string
}

// Judge returns the scripted response, failing the first Failures calls.
func (j *FakeJudge) Judge(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	j.Calls++
	j.LastSystem = systemPrompt
	j.LastUser = userPrompt
	if j.Calls <= j.Failures {
		return "", j.Err
	}
	if j.Err != nil && j.Failures == 0 {
		return "", j.Err
	}
	return j.Response, nil
}
