package verify

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/clearinghouse/shared/params"
	"github.com/sirupsen/logrus"
)

// judgeSystemPrompt instructs the model to answer in a strict three-line
// format. Ambiguous answers are treated as FAIL by the parser.
const judgeSystemPrompt = `You are an impartial, strict verification judge for an AI escrow system.

Your job is to determine whether submitted work meets the specified criteria.
You must be OBJECTIVE and STRICT. If there is any ambiguity, err on the side of FAILING.

You MUST respond in EXACTLY this format (no extra text before or after):

VERDICT: TRUE or FALSE
SCORE: a number from 0.0 to 1.0
REASONING: one paragraph explaining your decision

Rules:
- VERDICT must be exactly "TRUE" or "FALSE" (no "MAYBE", "PARTIAL", etc.)
- SCORE 1.0 = perfect, 0.0 = completely wrong
- Be concise but thorough in REASONING`

const judgeUserTemplate = `## Criteria
%s

## Submitted Work
%s

Evaluate whether the submitted work meets the criteria above.`

// SemanticVerifier delegates the verdict to an external model judge.
type SemanticVerifier struct {
	judge Judge
}

// NewSemanticVerifier creates a verifier backed by the given judge.
func NewSemanticVerifier(judge Judge) *SemanticVerifier {
	return &SemanticVerifier{judge: judge}
}

// Verify evaluates the payload against the descriptor's criteria via the
// judge. Transient judge failures are retried with exponential backoff; if
// every attempt fails the result carries LLM_JUDGE_ERROR.
func (v *SemanticVerifier) Verify(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errors.New("nil verification request")
	}
	criteria := strings.TrimSpace(req.Descriptor.Criteria)
	if criteria == "" {
		return failure(ErrCodeMissingCriteria, "no criteria field in verification descriptor", nil), nil
	}
	if v.judge == nil {
		return failure(ErrCodeLLMJudge, "judge not configured", nil), nil
	}

	log.WithFields(logrus.Fields{
		"contractID":      req.ContractID,
		"criteriaPreview": preview(criteria, 100),
	}).Debug("Running semantic verifier")

	response, err := v.callJudge(ctx, criteria, string(req.Payload))
	if err != nil {
		return failure(
			ErrCodeLLMJudge,
			fmt.Sprintf("judge call failed: %v", err),
			map[string]interface{}{"exception": err.Error()},
		), nil
	}

	verdict, score, reasoning := parseJudgeResponse(response)
	return &Result{
		IsValid: verdict,
		Score:   scoreOf(score),
		Details: reasoning,
		Logs: map[string]interface{}{
			"llm_response": response,
			"criteria":     criteria,
			"model":        params.ClearinghouseConfig().JudgeModel,
			"max_tokens":   params.ClearinghouseConfig().JudgeMaxTokens,
		},
	}, nil
}

func (v *SemanticVerifier) callJudge(ctx context.Context, criteria, payload string) (string, error) {
	cfg := params.ClearinghouseConfig()
	userPrompt := fmt.Sprintf(judgeUserTemplate, criteria, payload)

	var response string
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.JudgeRetryMinWait
	bo.MaxInterval = cfg.JudgeRetryMaxWait
	err := backoff.Retry(func() error {
		var callErr error
		response, callErr = v.judge.Judge(ctx, judgeSystemPrompt, userPrompt)
		if callErr != nil {
			return callErr
		}
		if strings.TrimSpace(response) == "" {
			return errors.New("judge returned empty response")
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, cfg.JudgeAttempts-1), ctx))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// parseJudgeResponse extracts (verdict, score, reasoning) from the judge's
// three-line answer. Every ambiguity resolves to failure: a verdict other
// than TRUE is false, an unparseable score is 0, and scores are clamped to
// [0,1].
func parseJudgeResponse(response string) (bool, float64, string) {
	verdict := false
	score := 0.0
	reasoning := ""

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "VERDICT:"):
			value := strings.ToUpper(strings.TrimSpace(line[len("VERDICT:"):]))
			verdict = value == "TRUE"
		case strings.HasPrefix(upper, "SCORE:"):
			value := strings.TrimSpace(line[len("SCORE:"):])
			parsed, err := strconv.ParseFloat(value, 64)
			// ParseFloat accepts "NaN", which would survive the clamp and
			// poison JSON encoding of the result downstream.
			if err != nil || math.IsNaN(parsed) {
				score = 0.0
				continue
			}
			if parsed < 0 {
				parsed = 0
			} else if parsed > 1 {
				parsed = 1
			}
			score = parsed
		case strings.HasPrefix(upper, "REASONING:") && reasoning == "":
			reasoning = strings.TrimSpace(line[len("REASONING:"):])
		}
	}

	// The reasoning may span multiple lines after the marker.
	if reasoning == "" {
		if idx := strings.Index(strings.ToUpper(response), "REASONING:"); idx >= 0 {
			reasoning = strings.TrimSpace(response[idx+len("REASONING:"):])
		}
	}
	if reasoning == "" {
		reasoning = fmt.Sprintf("could not parse structured reasoning from judge response, raw: %s", preview(response, 200))
	}
	return verdict, score, reasoning
}

func preview(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
