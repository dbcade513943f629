// Package verification orchestrates one verification round: it moves the
// contract into VERIFYING, runs the strategy selected by the contract's
// descriptor against the latest submission, and records the outcome through
// the escrow service. It never mutates contract state directly.
package verification

import (
	"context"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/db"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/escrow"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verify"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "verification")

var verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "clearinghouse_verifications_total",
	Help: "Count of verification rounds by verifier type and outcome.",
}, []string{"verifier_type", "outcome"})

// Service runs verification rounds for submitted contracts.
type Service struct {
	escrow  *escrow.Service
	db      db.ReadOnlyDatabase
	factory *verify.Factory
}

// NewService creates a verification service.
func NewService(escrowSvc *escrow.Service, database db.ReadOnlyDatabase, factory *verify.Factory) *Service {
	return &Service{escrow: escrowSvc, db: database, factory: factory}
}

// VerifyLatest verifies the most recent submission of a SUBMITTED contract
// and records the outcome. Strategy errors are converted into failed results
// rather than propagated: a broken verifier consumes a retry attempt, it does
// not wedge the contract in VERIFYING. The returned contract reflects the
// post-verification status.
func (s *Service) VerifyLatest(ctx context.Context, contractID uuid.UUID) (*verify.Result, *types.Contract, error) {
	contract, err := s.escrow.StartVerification(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}

	submission, err := s.db.LatestSubmission(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	if submission == nil {
		result := verify.Failure(verify.ErrCodeNoSubmissions, "no submissions found for contract")
		updated, err := s.escrow.RecordVerificationFailed(ctx, contractID, result)
		if err != nil {
			return nil, nil, err
		}
		verificationsTotal.WithLabelValues(contract.VerificationDescriptor.Type, "failed").Inc()
		return result, updated, nil
	}

	result := s.runStrategy(ctx, contract, submission)

	var updated *types.Contract
	outcome := "failed"
	if result.IsValid {
		outcome = "passed"
		updated, err = s.escrow.RecordVerificationPassed(ctx, contractID, result)
	} else {
		updated, err = s.escrow.RecordVerificationFailed(ctx, contractID, result)
	}
	if err != nil {
		return nil, nil, err
	}
	verificationsTotal.WithLabelValues(contract.VerificationDescriptor.Type, outcome).Inc()

	log.WithFields(logrus.Fields{
		"contractID":   contractID,
		"submissionID": submission.ID,
		"verifier":     contract.VerificationDescriptor.Type,
		"isValid":      result.IsValid,
		"newStatus":    updated.Status,
	}).Info("Verification round recorded")
	return result, updated, nil
}

func (s *Service) runStrategy(ctx context.Context, contract *types.Contract, submission *types.Submission) *verify.Result {
	strategy, err := s.factory.Create(contract.VerificationDescriptor)
	if err != nil {
		return verify.Failure(verify.ErrCodeUnknownVerifier, err.Error())
	}
	result, err := strategy.Verify(ctx, &verify.Request{
		ContractID:         contract.ID,
		Payload:            submission.Payload,
		Descriptor:         contract.VerificationDescriptor,
		RequirementsSchema: contract.RequirementsSchema,
	})
	if err != nil {
		log.WithError(err).WithField("contractID", contract.ID).Error("Verifier returned an error")
		return verify.Failure(verify.ErrCodeVerifierFailure, err.Error())
	}
	return result
}
