package verify_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verify"
	verifytesting "github.com/prysmaticlabs/clearinghouse/clearinghouse/verify/testing"
	"github.com/prysmaticlabs/clearinghouse/shared/params"
	"github.com/prysmaticlabs/clearinghouse/shared/testutil/assert"
	"github.com/prysmaticlabs/clearinghouse/shared/testutil/require"
)

func semanticRequest(criteria string) *verify.Request {
	return &verify.Request{
		ContractID: uuid.New(),
		Payload:    []byte("The report summarizes three key findings."),
		Descriptor: types.Descriptor{
			Type:     types.VerifierSemantic,
			Criteria: criteria,
		},
	}
}

func TestSemantic_PassVerdict(t *testing.T) {
	fastRetryConfig(t)
	judge := &verifytesting.FakeJudge{
		Response: "VERDICT: TRUE\nSCORE: 0.9\nREASONING: The summary covers all findings.",
	}
	v := verify.NewSemanticVerifier(judge)

	result, err := v.Verify(context.Background(), semanticRequest("Summarize the report"))
	require.NoError(t, err)
	assert.Equal(t, true, result.IsValid)
	require.NotNil(t, result.Score)
	assert.Equal(t, 0.9, *result.Score)
	assert.Equal(t, "The summary covers all findings.", result.Details)
	assert.Equal(t, 1, judge.Calls)
	// Judge call bounds are recorded on the result for auditability.
	cfg := params.ClearinghouseConfig()
	assert.Equal(t, cfg.JudgeModel, result.Logs["model"])
	assert.Equal(t, cfg.JudgeMaxTokens, result.Logs["max_tokens"])
}

func TestSemantic_FailVerdict(t *testing.T) {
	fastRetryConfig(t)
	judge := &verifytesting.FakeJudge{
		Response: "verdict: false\nscore: 0.2\nreasoning: Missing two findings.",
	}
	v := verify.NewSemanticVerifier(judge)

	result, err := v.Verify(context.Background(), semanticRequest("Summarize the report"))
	require.NoError(t, err)
	assert.Equal(t, false, result.IsValid)
	require.NotNil(t, result.Score)
	assert.Equal(t, 0.2, *result.Score)
	assert.Equal(t, "Missing two findings.", result.Details)
}

func TestSemantic_ScoreClampedAndAmbiguityFails(t *testing.T) {
	fastRetryConfig(t)
	judge := &verifytesting.FakeJudge{
		Response: "VERDICT: MAYBE\nSCORE: 3.5\nREASONING: Unsure.",
	}
	v := verify.NewSemanticVerifier(judge)

	result, err := v.Verify(context.Background(), semanticRequest("criteria"))
	require.NoError(t, err)
	// Any verdict other than TRUE fails; scores clamp into [0,1].
	assert.Equal(t, false, result.IsValid)
	require.NotNil(t, result.Score)
	assert.Equal(t, 1.0, *result.Score)
}

func TestSemantic_NaNScoreResolvesToZero(t *testing.T) {
	fastRetryConfig(t)
	judge := &verifytesting.FakeJudge{
		Response: "VERDICT: TRUE\nSCORE: NaN\nREASONING: Fine.",
	}
	v := verify.NewSemanticVerifier(judge)

	result, err := v.Verify(context.Background(), semanticRequest("criteria"))
	require.NoError(t, err)
	require.NotNil(t, result.Score)
	assert.Equal(t, 0.0, *result.Score)
	// The result must stay encodable for storage on the submission row.
	_, err = result.Encode()
	require.NoError(t, err)
}

func TestSemantic_UnparseableResponse(t *testing.T) {
	fastRetryConfig(t)
	judge := &verifytesting.FakeJudge{Response: "I think it looks fine to me."}
	v := verify.NewSemanticVerifier(judge)

	result, err := v.Verify(context.Background(), semanticRequest("criteria"))
	require.NoError(t, err)
	assert.Equal(t, false, result.IsValid)
	require.NotNil(t, result.Score)
	assert.Equal(t, 0.0, *result.Score)
	assert.Equal(t, true, strings.Contains(result.Details, "could not parse structured reasoning"))
}

func TestSemantic_RetryOnTransientFailure(t *testing.T) {
	fastRetryConfig(t)
	judge := &verifytesting.FakeJudge{
		Failures: 2,
		Err:      errors.New("rate limited"),
		Response: "VERDICT: TRUE\nSCORE: 1.0\nREASONING: Good.",
	}
	v := verify.NewSemanticVerifier(judge)

	result, err := v.Verify(context.Background(), semanticRequest("criteria"))
	require.NoError(t, err)
	assert.Equal(t, true, result.IsValid)
	assert.Equal(t, 3, judge.Calls)
}

func TestSemantic_RetriesExhausted(t *testing.T) {
	fastRetryConfig(t)
	judge := &verifytesting.FakeJudge{
		Failures: 10,
		Err:      errors.New("rate limited"),
	}
	v := verify.NewSemanticVerifier(judge)

	result, err := v.Verify(context.Background(), semanticRequest("criteria"))
	require.NoError(t, err)
	assert.Equal(t, false, result.IsValid)
	assert.Equal(t, verify.ErrCodeLLMJudge, result.Error)
	// Default budget is three attempts total.
	assert.Equal(t, 3, judge.Calls)
}

func TestSemantic_MissingCriteria(t *testing.T) {
	v := verify.NewSemanticVerifier(&verifytesting.FakeJudge{})
	result, err := v.Verify(context.Background(), semanticRequest("   "))
	require.NoError(t, err)
	assert.Equal(t, false, result.IsValid)
	assert.Equal(t, verify.ErrCodeMissingCriteria, result.Error)
}

func TestSemantic_MissingJudge(t *testing.T) {
	v := verify.NewSemanticVerifier(nil)
	result, err := v.Verify(context.Background(), semanticRequest("criteria"))
	require.NoError(t, err)
	assert.Equal(t, false, result.IsValid)
	assert.Equal(t, verify.ErrCodeLLMJudge, result.Error)
}

func TestSemantic_MultilineReasoning(t *testing.T) {
	fastRetryConfig(t)
	judge := &verifytesting.FakeJudge{
		Response: "VERDICT: TRUE\nSCORE: 0.8\nREASONING: First point.\nSecond point on its own line.",
	}
	v := verify.NewSemanticVerifier(judge)

	result, err := v.Verify(context.Background(), semanticRequest("criteria"))
	require.NoError(t, err)
	assert.Equal(t, true, result.IsValid)
	assert.Equal(t, "First point.", result.Details)
}
