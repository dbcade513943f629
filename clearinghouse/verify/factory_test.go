package verify_test

import (
	"testing"

	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verify"
	verifytesting "github.com/prysmaticlabs/clearinghouse/clearinghouse/verify/testing"
	"github.com/prysmaticlabs/clearinghouse/shared/testutil/assert"
	"github.com/prysmaticlabs/clearinghouse/shared/testutil/require"
)

func TestFactory_CreatesEveryType(t *testing.T) {
	f := verify.NewFactory(&verifytesting.FakeSandboxProvider{}, &verifytesting.FakeJudge{})
	for _, typ := range f.SupportedTypes() {
		strategy, err := f.Create(types.Descriptor{Type: typ})
		require.NoError(t, err, "type %s", typ)
		require.NotNil(t, strategy)
	}
}

func TestFactory_UnknownType(t *testing.T) {
	f := verify.NewFactory(nil, nil)
	_, err := f.Create(types.Descriptor{Type: "clairvoyance"})
	require.ErrorContains(t, `unknown verifier type "clairvoyance"`, err)
	require.ErrorContains(t, types.VerifierMock, err)
}

func TestFactory_MissingType(t *testing.T) {
	f := verify.NewFactory(nil, nil)
	_, err := f.Create(types.Descriptor{})
	require.ErrorContains(t, "must contain a type", err)
}

func TestFactory_SupportedTypes(t *testing.T) {
	f := verify.NewFactory(nil, nil)
	assert.DeepEqual(t, []string{
		types.VerifierCodeExecution,
		types.VerifierSemantic,
		types.VerifierSchema,
		types.VerifierMock,
	}, f.SupportedTypes())
}
