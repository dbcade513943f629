package verify

import (
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
)

// Factory dispatches a verification descriptor to the concrete strategy for
// its type tag. The sandbox provider and judge are injected once at wiring
// time; strategies themselves are stateless.
type Factory struct {
	sandbox SandboxProvider
	judge   Judge
}

// NewFactory creates a strategy factory with the given external adapters.
// Either adapter may be nil, in which case the corresponding strategy reports
// a configuration failure at verify time.
func NewFactory(sandbox SandboxProvider, judge Judge) *Factory {
	return &Factory{sandbox: sandbox, judge: judge}
}

// SupportedTypes returns the descriptor type tags the factory can dispatch.
func (f *Factory) SupportedTypes() []string {
	return []string{
		types.VerifierCodeExecution,
		types.VerifierSemantic,
		types.VerifierSchema,
		types.VerifierMock,
	}
}

// Create returns the strategy selected by the descriptor's type tag. A
// missing or unknown tag is a configuration error listing the known types.
func (f *Factory) Create(d types.Descriptor) (Strategy, error) {
	switch d.Type {
	case types.VerifierCodeExecution:
		return NewCodeExecutionVerifier(f.sandbox), nil
	case types.VerifierSemantic:
		return NewSemanticVerifier(f.judge), nil
	case types.VerifierSchema:
		return NewSchemaVerifier(), nil
	case types.VerifierMock:
		return NewMockVerifier(), nil
	case "":
		return nil, errors.Errorf("verification descriptor must contain a type, valid types: %v", f.SupportedTypes())
	default:
		return nil, errors.Errorf("unknown verifier type %q, valid types: %v", d.Type, f.SupportedTypes())
	}
}
