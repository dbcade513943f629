// Package workflow chains the per-step services into the standard contract
// flows: submit, verify, and settle on success. It owns no state of its own.
package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/escrow"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verification"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verify"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "workflow")

// Runner drives the submit -> verify -> settle flow.
type Runner struct {
	escrow   *escrow.Service
	verifier *verification.Service
}

// NewRunner creates a workflow runner.
func NewRunner(escrowSvc *escrow.Service, verifier *verification.Service) *Runner {
	return &Runner{escrow: escrowSvc, verifier: verifier}
}

// Outcome summarises one submit-and-verify round.
type Outcome struct {
	Contract      *types.Contract
	Submission    *types.Submission
	Result        *verify.Result
	SettlementRef string
}

// SubmitAndVerify records a submission, runs one verification round, and, if
// the contract completed, settles the payout. A settlement failure does not
// fail the round: the contract stays COMPLETED without a settlement ref and
// the payment error is reported on the outcome's contract state for
// operational reconciliation.
func (r *Runner) SubmitAndVerify(ctx context.Context, contractID uuid.UUID, payload []byte, workerID string) (*Outcome, error) {
	submission, err := r.escrow.SubmitWork(ctx, contractID, payload, workerID)
	if err != nil {
		return nil, err
	}
	result, contract, err := r.verifier.VerifyLatest(ctx, contractID)
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{Contract: contract, Submission: submission, Result: result}
	if contract.Status != types.StatusCompleted {
		return outcome, nil
	}

	ref, err := r.escrow.Settle(ctx, contractID)
	if err != nil {
		log.WithError(err).WithField("contractID", contractID).Error("Settlement failed, contract remains completed without a settlement ref")
		return outcome, nil
	}
	outcome.SettlementRef = ref
	outcome.Contract.SettlementRef = ref
	return outcome, nil
}

// VerifyAndSettle runs one verification round on an already submitted
// contract and settles on completion.
func (r *Runner) VerifyAndSettle(ctx context.Context, contractID uuid.UUID) (*Outcome, error) {
	result, contract, err := r.verifier.VerifyLatest(ctx, contractID)
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{Contract: contract, Result: result}
	if contract.Status != types.StatusCompleted {
		return outcome, nil
	}
	ref, err := r.escrow.Settle(ctx, contractID)
	if err != nil {
		log.WithError(err).WithField("contractID", contractID).Error("Settlement failed, contract remains completed without a settlement ref")
		return outcome, nil
	}
	outcome.SettlementRef = ref
	outcome.Contract.SettlementRef = ref
	return outcome, nil
}
