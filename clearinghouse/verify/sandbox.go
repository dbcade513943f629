package verify

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrExecutionTimeout is returned by a sandbox when the submitted code did
// not finish within its wall-clock budget.
var ErrExecutionTimeout = errors.New("code execution timed out")

// ExecResult is the collected output of one sandboxed execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Sandbox executes untrusted code in full isolation. Network, filesystem,
// and syscall restrictions are the implementation's responsibility.
type Sandbox interface {
	Run(ctx context.Context, code string) (*ExecResult, error)
	Close() error
}

// SandboxProvider allocates sandboxes. Allocation may fail transiently; the
// code execution strategy retries it with bounded backoff.
type SandboxProvider interface {
	Allocate(ctx context.Context, timeout time.Duration) (Sandbox, error)
}

// Judge submits a prompt to an external model and returns its raw text
// response. The semantic strategy owns prompt construction and parsing.
type Judge interface {
	Judge(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
