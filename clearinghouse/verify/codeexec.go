package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/clearinghouse/shared/params"
	"github.com/sirupsen/logrus"
)

// CodeExecutionVerifier runs submitted code in an isolated sandbox and checks
// the exit code plus, when configured, an expected stdout substring.
type CodeExecutionVerifier struct {
	provider SandboxProvider
}

// NewCodeExecutionVerifier creates a verifier backed by the given sandbox
// provider.
func NewCodeExecutionVerifier(provider SandboxProvider) *CodeExecutionVerifier {
	return &CodeExecutionVerifier{provider: provider}
}

// Verify executes the payload and evaluates the result:
//
//  1. non-zero exit code fails the submission,
//  2. if expected_output is set, it must be a substring of trimmed stdout,
//  3. otherwise exit code 0 passes.
//
// Sandbox problems are strategy failures (SANDBOX_ERROR / EXECUTION_TIMEOUT),
// not evaluations of the work.
func (v *CodeExecutionVerifier) Verify(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errors.New("nil verification request")
	}
	cfg := params.ClearinghouseConfig()
	if v.provider == nil {
		return failure(ErrCodeMissingSandboxKey, "sandbox provider not configured", nil), nil
	}

	timeout := cfg.SandboxTimeout
	if req.Descriptor.TimeoutSeconds > 0 {
		timeout = time.Duration(req.Descriptor.TimeoutSeconds) * time.Second
	}
	expected := strings.TrimSpace(req.Descriptor.ExpectedOutput)

	log.WithFields(logrus.Fields{
		"contractID":        req.ContractID,
		"timeout":           timeout,
		"hasExpectedOutput": expected != "",
	}).Debug("Running code execution verifier")

	exec, err := v.runInSandbox(ctx, string(req.Payload), timeout)
	if err != nil {
		if errors.Is(err, ErrExecutionTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return failure(
				ErrCodeExecutionTimeout,
				fmt.Sprintf("code execution timed out after %s", timeout),
				map[string]interface{}{"timeout_seconds": timeout.Seconds()},
			), nil
		}
		return failure(
			ErrCodeSandbox,
			fmt.Sprintf("sandbox execution failed: %v", err),
			map[string]interface{}{"exception": err.Error()},
		), nil
	}

	logs := map[string]interface{}{
		"stdout":          exec.Stdout,
		"stderr":          exec.Stderr,
		"exit_code":       exec.ExitCode,
		"timeout_seconds": timeout.Seconds(),
		"expected_output": expected,
	}

	if exec.ExitCode != 0 {
		return &Result{
			IsValid: false,
			Details: fmt.Sprintf("code exited with non-zero exit code: %d", exec.ExitCode),
			Logs:    logs,
		}, nil
	}

	if expected != "" {
		stdout := strings.TrimSpace(exec.Stdout)
		if !strings.Contains(stdout, expected) {
			preview := stdout
			if max := params.ClearinghouseConfig().StdoutPreviewBytes; len(preview) > max {
				preview = preview[:max]
			}
			return &Result{
				IsValid: false,
				Details: fmt.Sprintf("code ran but output does not match: expected %q in stdout, got %q", expected, preview),
				Logs:    logs,
			}, nil
		}
		return &Result{
			IsValid: true,
			Score:   scoreOf(1.0),
			Details: fmt.Sprintf("code executed successfully, expected output %q found in stdout", expected),
			Logs:    logs,
		}, nil
	}

	return &Result{
		IsValid: true,
		Score:   scoreOf(1.0),
		Details: "code executed successfully with exit code 0",
		Logs:    logs,
	}, nil
}

// runInSandbox allocates a sandbox, retrying transient allocation failures
// with bounded exponential backoff, then executes the code within the
// wall-clock budget.
func (v *CodeExecutionVerifier) runInSandbox(ctx context.Context, code string, timeout time.Duration) (*ExecResult, error) {
	cfg := params.ClearinghouseConfig()

	var sandbox Sandbox
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.SandboxRetryMinWait
	bo.MaxInterval = cfg.SandboxRetryMaxWait
	err := backoff.Retry(func() error {
		var allocErr error
		sandbox, allocErr = v.provider.Allocate(ctx, timeout)
		return allocErr
	}, backoff.WithContext(backoff.WithMaxRetries(bo, cfg.SandboxAllocationAttempts-1), ctx))
	if err != nil {
		return nil, errors.Wrap(err, "could not allocate sandbox")
	}
	defer func() {
		if err := sandbox.Close(); err != nil {
			log.WithError(err).Warn("Failed to close sandbox")
		}
	}()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sandbox.Run(execCtx, code)
}
