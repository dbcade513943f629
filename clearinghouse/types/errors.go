package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Stable machine-readable error codes surfaced to external layers.
const (
	CodeContractNotFound       = "CONTRACT_NOT_FOUND"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeWorkerAlreadyAssigned  = "WORKER_ALREADY_ASSIGNED"
	CodeUnknownState           = "UNKNOWN_STATE"
	CodeDuplicateOperation     = "DUPLICATE_OPERATION"
	CodePaymentError           = "PAYMENT_ERROR"
)

// Coded is implemented by every domain error so that adapters can map errors
// 1:1 to transport error codes.
type Coded interface {
	error
	Code() string
}

// ContractNotFoundError indicates a store lookup miss.
type ContractNotFoundError struct {
	ContractID uuid.UUID
}

func (e *ContractNotFoundError) Error() string {
	return fmt.Sprintf("contract not found: %s", e.ContractID)
}

// Code returns the stable error code.
func (*ContractNotFoundError) Code() string { return CodeContractNotFound }

// UnknownStateError indicates a status string outside the known state set.
type UnknownStateError struct {
	Value string
	Valid []Status
}

func (e *UnknownStateError) Error() string {
	valid := make([]string, len(e.Valid))
	for i, s := range e.Valid {
		valid[i] = string(s)
	}
	return fmt.Sprintf("unknown status %q, valid states: %s", e.Value, strings.Join(valid, ", "))
}

// Code returns the stable error code.
func (*UnknownStateError) Code() string { return CodeUnknownState }

// IllegalTransitionError indicates the state machine rejected an event from
// the current state.
type IllegalTransitionError struct {
	Current   Status
	Attempted TransitionEvent
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: cannot fire %q from %s", e.Attempted, e.Current)
}

// Code returns the stable error code.
func (*IllegalTransitionError) Code() string { return CodeInvalidStateTransition }

// WorkerAlreadyAssignedError indicates a second accept attempt on a contract.
type WorkerAlreadyAssignedError struct {
	ContractID uuid.UUID
	WorkerID   string
}

func (e *WorkerAlreadyAssignedError) Error() string {
	return fmt.Sprintf("worker %s already assigned to contract %s", e.WorkerID, e.ContractID)
}

// Code returns the stable error code.
func (*WorkerAlreadyAssignedError) Code() string { return CodeWorkerAlreadyAssigned }

// DuplicateOperationError indicates a reused idempotency key. Result holds
// the outcome of the original operation.
type DuplicateOperationError struct {
	Key    string
	Result interface{}
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("duplicate operation detected for key: %s", e.Key)
}

// Code returns the stable error code.
func (*DuplicateOperationError) Code() string { return CodeDuplicateOperation }

// PaymentError indicates a settlement adapter failure. The contract state has
// already been committed, so the payout must be reconciled operationally.
type PaymentError struct {
	ContractID uuid.UUID
	Op         string
	Err        error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s failed for contract %s: %v", e.Op, e.ContractID, e.Err)
}

// Code returns the stable error code.
func (*PaymentError) Code() string { return CodePaymentError }

// Unwrap exposes the underlying adapter error.
func (e *PaymentError) Unwrap() error { return e.Err }
