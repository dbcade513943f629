package types

// Status is the lifecycle state of an escrow contract. Transitions between
// statuses are guarded by the state machine in clearinghouse/statemachine.
type Status string

// Contract lifecycle states.
const (
	StatusCreated    Status = "CREATED"
	StatusFunded     Status = "FUNDED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
	StatusVerifying  Status = "VERIFYING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusDisputed   Status = "DISPUTED"
)

// Statuses lists every known contract status.
func Statuses() []Status {
	return []Status{
		StatusCreated,
		StatusFunded,
		StatusInProgress,
		StatusSubmitted,
		StatusVerifying,
		StatusCompleted,
		StatusFailed,
		StatusDisputed,
	}
}

// Terminal reports whether a contract in this status can never transition again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TransitionEvent names a guarded transition between two statuses.
type TransitionEvent string

// Named transition events, one per edge of the contract lifecycle.
const (
	EvOnChainConfirmed         TransitionEvent = "on_chain_confirmed"
	EvTimeoutExpired           TransitionEvent = "timeout_expired"
	EvWorkerAccepts            TransitionEvent = "worker_accepts"
	EvWorkerSubmits            TransitionEvent = "worker_submits"
	EvAutoVerify               TransitionEvent = "auto_verify"
	EvVerificationPassed       TransitionEvent = "verification_passed"
	EvVerificationFailedRetry  TransitionEvent = "verification_failed_retry"
	EvMaxRetriesExceeded       TransitionEvent = "max_retries_exceeded"
	EvBuyerDisputes            TransitionEvent = "buyer_disputes"
	EvDisputeResolvedForWorker TransitionEvent = "dispute_resolved_for_worker"
	EvDisputeResolvedForBuyer  TransitionEvent = "dispute_resolved_for_buyer"
)

// EventType is the audit log classification of a recorded event. The set is
// closed: every state transition maps to exactly one event type.
type EventType string

// Audit event types.
const (
	EventContractCreated       EventType = "CONTRACT_CREATED"
	EventContractFunded        EventType = "CONTRACT_FUNDED"
	EventWorkerAssigned        EventType = "WORKER_ASSIGNED"
	EventWorkSubmitted         EventType = "WORK_SUBMITTED"
	EventVerificationStarted   EventType = "VERIFICATION_STARTED"
	EventVerificationPassed    EventType = "VERIFICATION_PASSED"
	EventVerificationFailed    EventType = "VERIFICATION_FAILED"
	EventPaymentInitiated      EventType = "PAYMENT_INITIATED"
	EventPaymentConfirmed      EventType = "PAYMENT_CONFIRMED"
	EventDisputeRaised         EventType = "DISPUTE_RAISED"
	EventDisputeResolvedWorker EventType = "DISPUTE_RESOLVED_WORKER"
	EventDisputeResolvedBuyer  EventType = "DISPUTE_RESOLVED_BUYER"
	EventContractExpired       EventType = "CONTRACT_EXPIRED"
	EventMaxRetriesExceeded    EventType = "MAX_RETRIES_EXCEEDED"
)

// SystemActor is the actor recorded on events fired by the clearinghouse
// itself rather than by a buyer or worker.
const SystemActor = "SYSTEM"
