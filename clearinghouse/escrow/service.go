// Package escrow implements the contract lifecycle service. It is the only
// component authorised to mutate a contract's status. Every mutating
// operation follows the same five-step pattern inside one unit of work: load
// the contract, construct the state machine at its current status, fire the
// event, apply domain updates, and append the canonical audit event. The
// status update and the event commit together or not at all.
package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/db"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/db/kv"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/payments"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/statemachine"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verify"
	"github.com/prysmaticlabs/clearinghouse/shared/params"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "escrow")

// Service manages the escrow contract lifecycle.
type Service struct {
	db       db.Database
	payments payments.Adapter
	idem     *IdempotencyGuard
}

// NewService creates an escrow service on top of the given store and payment
// adapter.
func NewService(database db.Database, adapter payments.Adapter) *Service {
	return &Service{db: database, payments: adapter, idem: NewIdempotencyGuard()}
}

// CreateContractRequest carries the buyer's task posting. IdempotencyKey is
// optional; reusing a key within the guard's TTL returns a
// DuplicateOperationError holding the originally created contract.
type CreateContractRequest struct {
	BuyerID            string
	Amount             decimal.Decimal
	Description        string
	Descriptor         types.Descriptor
	RequirementsSchema []byte
	MaxRetries         int
	IdempotencyKey     string
}

// CreateContract creates a new contract in CREATED state and records the
// CONTRACT_CREATED event.
func (s *Service) CreateContract(ctx context.Context, req *CreateContractRequest) (*types.Contract, error) {
	if req.BuyerID == "" {
		return nil, errors.New("buyer id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, errors.Errorf("contract amount must be positive, got %s", req.Amount)
	}
	if req.Descriptor.Type == "" {
		return nil, errors.New("verification descriptor must contain a type")
	}
	if err := s.idem.Check(req.IdempotencyKey); err != nil {
		return nil, err
	}
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = params.ClearinghouseConfig().DefaultMaxRetries
	}

	now := time.Now().UTC()
	contract := &types.Contract{
		ID:                     uuid.New(),
		BuyerID:                req.BuyerID,
		Amount:                 req.Amount,
		Status:                 types.StatusCreated,
		Description:            req.Description,
		VerificationDescriptor: req.Descriptor,
		RequirementsSchema:     req.RequirementsSchema,
		MaxRetries:             maxRetries,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	err := s.db.RunUnitOfWork(ctx, func(uow *kv.UnitOfWork) error {
		if err := uow.CreateContract(contract); err != nil {
			return err
		}
		return uow.AppendEvent(&types.Event{
			ContractID: contract.ID,
			EventType:  types.EventContractCreated,
			OldStatus:  nil,
			NewStatus:  types.StatusCreated,
			Actor:      req.BuyerID,
			Metadata:   map[string]interface{}{"description": req.Description},
		})
	})
	if err != nil {
		return nil, err
	}
	s.idem.Record(req.IdempotencyKey, contract)

	log.WithFields(logrus.Fields{
		"contractID": contract.ID,
		"amount":     contract.Amount.String(),
	}).Info("Contract created")
	return contract, nil
}

// FundContract provisions an escrow wallet, confirms the buyer's deposit via
// the payment adapter, and transitions CREATED -> FUNDED. The adapter calls
// happen before the unit of work; the wallet and funding ref are set once and
// never rewritten.
func (s *Service) FundContract(ctx context.Context, contractID uuid.UUID) (*types.Contract, error) {
	contract, err := s.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	// Reject before provisioning a wallet for a contract that cannot fund.
	if !statemachine.Legal(contract.Status, types.EvOnChainConfirmed) {
		return nil, &types.IllegalTransitionError{Current: contract.Status, Attempted: types.EvOnChainConfirmed}
	}

	wallet, err := s.payments.CreateEscrowWallet(ctx)
	if err != nil {
		return nil, &types.PaymentError{ContractID: contractID, Op: "create_escrow_wallet", Err: err}
	}
	fundingRef, err := s.payments.ConfirmFunding(ctx, wallet, contract.Amount, contract.BuyerID)
	if err != nil {
		return nil, &types.PaymentError{ContractID: contractID, Op: "confirm_funding", Err: err}
	}

	var updated *types.Contract
	err = s.db.RunUnitOfWork(ctx, func(uow *kv.UnitOfWork) error {
		c, oldStatus, newStatus, err := s.fire(uow, contractID, types.EvOnChainConfirmed)
		if err != nil {
			return err
		}
		c.EscrowWallet = wallet
		c.FundingRef = fundingRef
		if err := uow.UpdateStatus(c, newStatus); err != nil {
			return err
		}
		updated = c
		return s.appendTransitionEvent(uow, c.ID, types.EvOnChainConfirmed, oldStatus, newStatus, types.SystemActor, map[string]interface{}{
			"funding_ref":   fundingRef,
			"escrow_wallet": wallet,
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"contractID": contractID,
		"fundingRef": fundingRef,
	}).Info("Contract funded")
	return updated, nil
}

// AcceptContract assigns a worker and transitions FUNDED -> IN_PROGRESS. A
// second accept attempt is rejected even if the state machine event would
// succeed: at most one worker is ever assigned to a contract.
func (s *Service) AcceptContract(ctx context.Context, contractID uuid.UUID, workerID string) (*types.Contract, error) {
	if workerID == "" {
		return nil, errors.New("worker id is required")
	}
	var updated *types.Contract
	err := s.db.RunUnitOfWork(ctx, func(uow *kv.UnitOfWork) error {
		c, err := s.load(uow, contractID)
		if err != nil {
			return err
		}
		if c.WorkerID != "" {
			return &types.WorkerAlreadyAssignedError{ContractID: contractID, WorkerID: c.WorkerID}
		}
		oldStatus, newStatus, err := fireOn(c, types.EvWorkerAccepts)
		if err != nil {
			return err
		}
		c.WorkerID = workerID
		if err := uow.UpdateStatus(c, newStatus); err != nil {
			return err
		}
		updated = c
		return s.appendTransitionEvent(uow, c.ID, types.EvWorkerAccepts, oldStatus, newStatus, workerID, nil)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"contractID": contractID,
		"workerID":   workerID,
	}).Info("Worker accepted contract")
	return updated, nil
}

// SubmitWork records a submission and transitions IN_PROGRESS -> SUBMITTED.
func (s *Service) SubmitWork(ctx context.Context, contractID uuid.UUID, payload []byte, workerID string) (*types.Submission, error) {
	var submission *types.Submission
	err := s.db.RunUnitOfWork(ctx, func(uow *kv.UnitOfWork) error {
		c, err := s.load(uow, contractID)
		if err != nil {
			return err
		}
		oldStatus, newStatus, err := fireOn(c, types.EvWorkerSubmits)
		if err != nil {
			return err
		}
		if err := uow.UpdateStatus(c, newStatus); err != nil {
			return err
		}
		actor := workerID
		if actor == "" {
			actor = c.WorkerID
		}
		submission = &types.Submission{
			ID:          uuid.New(),
			ContractID:  contractID,
			Payload:     payload,
			SubmittedBy: actor,
			SubmittedAt: time.Now().UTC(),
		}
		if err := uow.AddSubmission(submission); err != nil {
			return err
		}
		return s.appendTransitionEvent(uow, c.ID, types.EvWorkerSubmits, oldStatus, newStatus, actor, map[string]interface{}{
			"submission_id": submission.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"contractID":   contractID,
		"submissionID": submission.ID,
	}).Info("Work submitted")
	return submission, nil
}

// StartVerification transitions SUBMITTED -> VERIFYING.
func (s *Service) StartVerification(ctx context.Context, contractID uuid.UUID) (*types.Contract, error) {
	return s.transition(ctx, contractID, types.EvAutoVerify, types.SystemActor, nil)
}

// RecordVerificationPassed marks the submission valid, transitions
// VERIFYING -> COMPLETED, and records the verification result on the event.
func (s *Service) RecordVerificationPassed(ctx context.Context, contractID uuid.UUID, result *verify.Result) (*types.Contract, error) {
	encoded, err := result.Encode()
	if err != nil {
		return nil, err
	}
	var updated *types.Contract
	err = s.db.RunUnitOfWork(ctx, func(uow *kv.UnitOfWork) error {
		c, err := s.load(uow, contractID)
		if err != nil {
			return err
		}
		oldStatus, newStatus, err := fireOn(c, types.EvVerificationPassed)
		if err != nil {
			return err
		}
		if err := uow.UpdateStatus(c, newStatus); err != nil {
			return err
		}
		if sub, err := uow.LatestSubmission(contractID); err != nil {
			return err
		} else if sub != nil {
			if err := uow.UpdateSubmissionVerification(sub, true, encoded); err != nil {
				return err
			}
		}
		updated = c
		return s.appendTransitionEvent(uow, c.ID, types.EvVerificationPassed, oldStatus, newStatus, types.SystemActor, result.Metadata())
	})
	if err != nil {
		return nil, err
	}

	log.WithField("contractID", contractID).Info("Verification passed")
	return updated, nil
}

// RecordVerificationFailed marks the submission invalid and increments the
// retry counter first; the post-increment value decides between a retry
// (VERIFYING -> IN_PROGRESS) and permanent failure (VERIFYING -> FAILED).
func (s *Service) RecordVerificationFailed(ctx context.Context, contractID uuid.UUID, result *verify.Result) (*types.Contract, error) {
	encoded, err := result.Encode()
	if err != nil {
		return nil, err
	}
	var updated *types.Contract
	err = s.db.RunUnitOfWork(ctx, func(uow *kv.UnitOfWork) error {
		c, err := s.load(uow, contractID)
		if err != nil {
			return err
		}
		if sub, err := uow.LatestSubmission(contractID); err != nil {
			return err
		} else if sub != nil {
			if err := uow.UpdateSubmissionVerification(sub, false, encoded); err != nil {
				return err
			}
		}
		if err := uow.IncrementRetry(c); err != nil {
			return err
		}

		ev := types.EvVerificationFailedRetry
		if c.RetryCount >= c.MaxRetries {
			ev = types.EvMaxRetriesExceeded
		}
		oldStatus, newStatus, err := fireOn(c, ev)
		if err != nil {
			return err
		}
		if err := uow.UpdateStatus(c, newStatus); err != nil {
			return err
		}
		metadata := result.Metadata()
		metadata["retry_count"] = c.RetryCount
		updated = c
		return s.appendTransitionEvent(uow, c.ID, ev, oldStatus, newStatus, types.SystemActor, metadata)
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == types.StatusFailed {
		log.WithField("contractID", contractID).Info("Max retries exceeded")
	} else {
		log.WithFields(logrus.Fields{
			"contractID": contractID,
			"retryCount": updated.RetryCount,
		}).Info("Verification failed, retry available")
	}
	return updated, nil
}

// RaiseDispute transitions FUNDED or IN_PROGRESS -> DISPUTED.
func (s *Service) RaiseDispute(ctx context.Context, contractID uuid.UUID, reason, raisedBy string) (*types.Contract, error) {
	return s.transition(ctx, contractID, types.EvBuyerDisputes, raisedBy, map[string]interface{}{
		"reason": reason,
	})
}

// ResolveDisputeForWorker transitions DISPUTED -> COMPLETED. A dispute raised
// from FUNDED may resolve for the worker with no submission on record;
// consumers must not assume a WORK_SUBMITTED event precedes COMPLETED.
func (s *Service) ResolveDisputeForWorker(ctx context.Context, contractID uuid.UUID, resolution string) (*types.Contract, error) {
	return s.transition(ctx, contractID, types.EvDisputeResolvedForWorker, types.SystemActor, map[string]interface{}{
		"resolution": resolution,
	})
}

// ResolveDisputeForBuyer transitions DISPUTED -> FAILED.
func (s *Service) ResolveDisputeForBuyer(ctx context.Context, contractID uuid.UUID, resolution string) (*types.Contract, error) {
	return s.transition(ctx, contractID, types.EvDisputeResolvedForBuyer, types.SystemActor, map[string]interface{}{
		"resolution": resolution,
	})
}

// ExpireContract transitions CREATED -> FAILED when funding never arrived.
func (s *Service) ExpireContract(ctx context.Context, contractID uuid.UUID) (*types.Contract, error) {
	return s.transition(ctx, contractID, types.EvTimeoutExpired, types.SystemActor, nil)
}

// Settle pays the deposit out to the worker of a COMPLETED contract and
// stores the settlement ref. Settlement happens after the COMPLETED commit:
// if the adapter fails, the contract remains COMPLETED without a settlement
// ref and the error must be reconciled operationally. Calling Settle again on
// a settled contract returns the existing ref.
func (s *Service) Settle(ctx context.Context, contractID uuid.UUID) (string, error) {
	contract, err := s.GetContract(ctx, contractID)
	if err != nil {
		return "", err
	}
	if contract.Status != types.StatusCompleted {
		return "", errors.Errorf("cannot settle contract %s in status %s", contractID, contract.Status)
	}
	if contract.SettlementRef != "" {
		return contract.SettlementRef, nil
	}

	ref, err := s.payments.TransferToWorker(ctx, contract.EscrowWallet, contract.WorkerID, contract.Amount)
	if err != nil {
		return "", &types.PaymentError{ContractID: contractID, Op: "transfer_to_worker", Err: err}
	}

	err = s.db.RunUnitOfWork(ctx, func(uow *kv.UnitOfWork) error {
		c, err := s.load(uow, contractID)
		if err != nil {
			return err
		}
		c.SettlementRef = ref
		return uow.SaveContract(c)
	})
	if err != nil {
		return "", err
	}

	log.WithFields(logrus.Fields{
		"contractID":    contractID,
		"settlementRef": ref,
	}).Info("Contract settled")
	return ref, nil
}

// GetContract returns a contract or ContractNotFoundError.
func (s *Service) GetContract(ctx context.Context, contractID uuid.UUID) (*types.Contract, error) {
	c, err := s.db.Contract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &types.ContractNotFoundError{ContractID: contractID}
	}
	return c, nil
}

// GetStatus returns the contract status together with its retry counters and
// the transition events legal from the current state.
func (s *Service) GetStatus(ctx context.Context, contractID uuid.UUID) (*types.StatusReport, error) {
	c, err := s.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	m, err := statemachine.New(c.Status)
	if err != nil {
		return nil, err
	}
	return &types.StatusReport{
		ContractID:    c.ID,
		Status:        c.Status,
		RetryCount:    c.RetryCount,
		MaxRetries:    c.MaxRetries,
		AllowedEvents: m.AllowedEvents(),
	}, nil
}

// GetEvents returns the contract's audit trail in ascending creation order.
func (s *Service) GetEvents(ctx context.Context, contractID uuid.UUID) ([]*types.Event, error) {
	if _, err := s.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	return s.db.Events(ctx, contractID)
}

// transition runs the five-step pattern for events that carry no extra
// domain updates beyond the status change.
func (s *Service) transition(ctx context.Context, contractID uuid.UUID, ev types.TransitionEvent, actor string, metadata map[string]interface{}) (*types.Contract, error) {
	var updated *types.Contract
	err := s.db.RunUnitOfWork(ctx, func(uow *kv.UnitOfWork) error {
		c, oldStatus, newStatus, err := s.fire(uow, contractID, ev)
		if err != nil {
			return err
		}
		if err := uow.UpdateStatus(c, newStatus); err != nil {
			return err
		}
		updated = c
		return s.appendTransitionEvent(uow, c.ID, ev, oldStatus, newStatus, actor, metadata)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"contractID": contractID,
		"event":      ev,
		"newStatus":  updated.Status,
	}).Info("Contract transitioned")
	return updated, nil
}

// fire loads a contract within the unit of work and validates the event
// against the state machine.
func (s *Service) fire(uow *kv.UnitOfWork, contractID uuid.UUID, ev types.TransitionEvent) (*types.Contract, types.Status, types.Status, error) {
	c, err := s.load(uow, contractID)
	if err != nil {
		return nil, "", "", err
	}
	oldStatus, newStatus, err := fireOn(c, ev)
	if err != nil {
		return nil, "", "", err
	}
	return c, oldStatus, newStatus, nil
}

func (s *Service) load(uow *kv.UnitOfWork, contractID uuid.UUID) (*types.Contract, error) {
	c, err := uow.Contract(contractID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &types.ContractNotFoundError{ContractID: contractID}
	}
	return c, nil
}

func fireOn(c *types.Contract, ev types.TransitionEvent) (types.Status, types.Status, error) {
	m, err := statemachine.New(c.Status)
	if err != nil {
		return "", "", err
	}
	newStatus, err := m.Fire(ev)
	if err != nil {
		return "", "", err
	}
	return c.Status, newStatus, nil
}

func (s *Service) appendTransitionEvent(uow *kv.UnitOfWork, contractID uuid.UUID, ev types.TransitionEvent, oldStatus, newStatus types.Status, actor string, metadata map[string]interface{}) error {
	eventType, ok := statemachine.EventTypeFor(ev)
	if !ok {
		return errors.Errorf("no canonical event type for transition event %q", ev)
	}
	old := oldStatus
	transitionsTotal.WithLabelValues(string(eventType)).Inc()
	return uow.AppendEvent(&types.Event{
		ContractID: contractID,
		EventType:  eventType,
		OldStatus:  &old,
		NewStatus:  newStatus,
		Actor:      actor,
		Metadata:   metadata,
	})
}
